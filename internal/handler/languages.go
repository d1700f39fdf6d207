package handler

import (
	"net/http"

	"github.com/sakif/coderunner/internal/language"
)

// LanguageResponse is the public view of a profile. Commands and images are
// server internals and stay out of it.
type LanguageResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Compiled  bool   `json:"compiled"`
}

// LanguagesHandler lists supported languages.
type LanguagesHandler struct {
	registry *language.Registry
}

// NewLanguagesHandler creates a LanguagesHandler.
func NewLanguagesHandler(registry *language.Registry) *LanguagesHandler {
	return &LanguagesHandler{registry: registry}
}

// HandleList serves GET /api/languages.
func (h *LanguagesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	profiles := h.registry.Profiles()
	out := make([]LanguageResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, LanguageResponse{
			ID:        p.ID,
			Name:      p.Name,
			Extension: p.Extension,
			Compiled:  p.Compiled(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
