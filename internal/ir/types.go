package ir

import (
	"strings"
	"time"
)

// Document is an article owned by a project. It is mutated only by the
// engine (one committed action at a time) or by explicit user edits.
type Document struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Title          string    `json:"title"`
	Keywords       []string  `json:"keywords"`
	Body           string    `json:"body"`
	TargetURL      string    `json:"target_url"`
	FAQ            string    `json:"faq,omitempty"`
	StructuredData string    `json:"structured_data,omitempty"`
	InternalLinks  []string  `json:"internal_links,omitempty"`
	Assets         []string  `json:"assets,omitempty"`
	LastAction     string    `json:"last_action"`
	AppliedActions []string  `json:"applied_actions"`
	LastActionAt   time.Time `json:"last_action_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Section returns the leading path segment of the document's target URL.
// "/blog/how-to/x" and "https://example.com/blog/x" both yield "blog".
// Returns "" when the URL has no path segment.
func (d *Document) Section() string {
	return SectionOf(d.TargetURL)
}

// SectionOf extracts the first path segment from a URL or path.
func SectionOf(target string) string {
	path := target
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
		if j := strings.IndexByte(path, '/'); j >= 0 {
			path = path[j:]
		} else {
			return ""
		}
	}
	path = strings.TrimLeft(path, "/")
	if i := strings.IndexAny(path, "/?#"); i >= 0 {
		path = path[:i]
	}
	return path
}

// HasApplied reports whether action appears in the document's history.
func (d *Document) HasApplied(action string) bool {
	for _, a := range d.AppliedActions {
		if a == action {
			return true
		}
	}
	return false
}

// Snapshot is an immutable copy of a document body taken before a mutation.
// Snapshots form an append-only log per document, ordered by Seq.
type Snapshot struct {
	ID          int64     `json:"id"`
	DocumentID  string    `json:"document_id"`
	Seq         int64     `json:"seq"`
	Body        string    `json:"body"`
	LastAction  string    `json:"last_action"`
	ContentHash string    `json:"content_hash"`
	RunID       string    `json:"run_id,omitempty"`
	Action      string    `json:"action,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
