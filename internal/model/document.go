package model

import "time"

// Document describes one uploaded PDF.
// This is a pure domain model with no database-specific dependencies or tags.
// The JSON names are the public wire contract of GET /documents.
type Document struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	Filepath     string    `json:"filepath"`
	OriginalName string    `json:"original_name"`
	FileSize     int64     `json:"file_size"`
	CreatedAt    time.Time `json:"created_at"`
}
