// Package model defines the records the server persists.
package model

import "time"

// Execution is one row of execution history. The submitted source is never
// stored, only its size.
type Execution struct {
	ID         string    `json:"id"`
	Language   string    `json:"language"`
	Status     string    `json:"status"`
	Phase      string    `json:"phase,omitempty"`
	ExitCode   int       `json:"exitCode"`
	DurationMS int64     `json:"durationMs"`
	SourceSize int       `json:"sourceSize"`
	OutputSize int       `json:"outputSize"`
	Truncated  bool      `json:"truncated"`
	Client     string    `json:"client,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
