// Package item defines the read-only view of documents owned by the
// surrounding collection app. The retrieval engine never mutates these;
// it only reads them at index time.
package item

import "time"

// Metadata holds the user-curated fields attached to a document.
// FolderName and Category are optional; the zero value means absent.
type Metadata struct {
	Title      string    `json:"title,omitempty"`
	Type       string    `json:"type,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	FolderName string    `json:"folderName,omitempty"`
	Category   string    `json:"category,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// Document is an external entity identified by a stable ID.
type Document struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}
