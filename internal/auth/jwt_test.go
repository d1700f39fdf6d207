package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short")
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestIssue_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue("ci-runner", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "header.payload.signature")
}

func TestIssue_RequiresClient(t *testing.T) {
	ts := newTestTokenService(t)

	_, err := ts.Issue("", time.Hour)
	assert.Error(t, err)
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue("editor-frontend", 0)
	require.NoError(t, err)

	got, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "editor-frontend", got)
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)
	issued := time.Now().Add(-2 * time.Hour)
	ts.now = func() time.Time { return issued }

	token, err := ts.Issue("client", time.Hour)
	require.NoError(t, err)

	ts.now = time.Now
	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Issue("client", time.Hour)
	tampered := token[:len(token)-3] + "xxx"

	_, err := ts.Validate(tampered)
	assert.Error(t, err)
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!")
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")

	token, _ := ts1.Issue("client", time.Hour)

	_, err := ts2.Validate(token)
	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	for _, in := range []string{"", "not.a.jwt.token"} {
		_, err := ts.Validate(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestRequireToken(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Issue("ci-runner", time.Hour)
	require.NoError(t, err)

	var seen string
	h := RequireToken(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClientFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantClient string
	}{
		{name: "valid bearer", header: "Bearer " + token, wantStatus: http.StatusNoContent, wantClient: "ci-runner"},
		{name: "lowercase scheme", header: "bearer " + token, wantStatus: http.StatusNoContent, wantClient: "ci-runner"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/api/execute", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantClient, seen)
		})
	}
}
