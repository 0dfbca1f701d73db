package entity

import (
	"path"
	"strings"
)

// AllowedSuffixes is the canonical accept list for uploads. Validation is
// by key suffix only; the declared content type travels with the event but
// does not decide.
var AllowedSuffixes = map[string]bool{
	".jpeg": true,
	".png":  true,
}

// UploadEvent identifies a freshly stored object. Read-only for consumers.
type UploadEvent struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ContentType string `json:"contentType,omitempty"`
}

// Suffix returns the lower-cased extension of the object key, including
// the dot.
func (e UploadEvent) Suffix() string {
	return strings.ToLower(path.Ext(e.Key))
}

// Accepted reports whether the object looks like a supported image.
func (e UploadEvent) Accepted() bool {
	return AllowedSuffixes[e.Suffix()]
}
