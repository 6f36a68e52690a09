package upload

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"gallery/internal/preview"
)

// Status represents the lifecycle of a queued upload.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Editable reports whether user fields may still change.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusFailed
}

// File describes the source file of an item. It never changes after intake.
type File struct {
	Name        string
	Path        string
	ContentType string
	Size        int64
}

// Item is one queued upload.
type Item struct {
	ID          string
	File        File
	Preview     *preview.Handle
	Title       string
	Description string
	TakenTime   string
	Camera      string
	Status      Status
	// Error is set only while Status is StatusFailed.
	Error string
}

// Patch carries user edits. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	TakenTime   *string
	Camera      *string
}

// Text returns a pointer to v for building a Patch.
func Text(v string) *string {
	return &v
}

func (p Patch) apply(item Item) Item {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.TakenTime != nil {
		item.TakenTime = *p.TakenTime
	}
	if p.Camera != nil {
		item.Camera = *p.Camera
	}
	return item
}

// DefaultTitle derives a title from a file name: everything before the first
// dot, so "sunset.beach.jpg" becomes "sunset". Names that start with a dot
// fall back to the whole base name.
func DefaultTitle(name string) string {
	base := filepath.Base(name)
	title := base
	if idx := strings.IndexByte(base, '.'); idx >= 0 {
		title = base[:idx]
	}
	if strings.TrimSpace(title) == "" {
		title = base
	}
	return norm.NFC.String(strings.TrimSpace(title))
}
