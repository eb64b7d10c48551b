package domain

import (
	"time"

	"github.com/google/uuid"
)

// Project groups the deliverables shared with one client.
type Project struct {
	ID           uuid.UUID
	Name         string
	Description  *string
	ShareID      string
	PasswordHash *string
	Active       bool
	CreatedAt    time.Time
}

// HasPassword reports whether the share link is password protected.
func (p *Project) HasPassword() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

// File is a single deliverable inside a project.
type File struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	Name             string
	Format           FileFormat
	Status           FileStatus
	CurrentVersionID *uuid.UUID
	CreatedAt        time.Time
}

// Version is an immutable upload of a file's content.
type Version struct {
	ID           uuid.UUID
	FileID       uuid.UUID
	URL          string
	ThumbnailURL *string
	CreatedAt    time.Time
}

// Feedback is a client comment on a file, optionally pinned to a version and a position.
type Feedback struct {
	ID        uuid.UUID
	FileID    uuid.UUID
	VersionID *uuid.UUID
	Text      string
	Locator   *Locator
	CreatedAt time.Time
}

// FileBundle is a file together with everything the review screen needs.
// Versions and Feedback are ordered newest first.
type FileBundle struct {
	File           File
	CurrentVersion *Version
	Versions       []Version
	Feedback       []Feedback
}

// FindVersion returns the version with the given id, or nil.
func (b *FileBundle) FindVersion(id uuid.UUID) *Version {
	for i := range b.Versions {
		if b.Versions[i].ID == id {
			return &b.Versions[i]
		}
	}
	return nil
}

// VersionNumber returns the 1-based human version number (oldest is 1).
// Returns 0 if the version does not belong to the bundle.
func (b *FileBundle) VersionNumber(id uuid.UUID) int {
	for i := range b.Versions {
		if b.Versions[i].ID == id {
			return len(b.Versions) - i
		}
	}
	return 0
}

// SourceURL returns the URL of the current version, or "" when the file has no content yet.
func (b *FileBundle) SourceURL() string {
	if b.CurrentVersion == nil {
		return ""
	}
	return b.CurrentVersion.URL
}

// Clone returns a deep copy so callers can hold a snapshot without sharing slices.
func (b FileBundle) Clone() FileBundle {
	out := b
	if b.CurrentVersion != nil {
		v := *b.CurrentVersion
		out.CurrentVersion = &v
	}
	out.Versions = append([]Version(nil), b.Versions...)
	out.Feedback = make([]Feedback, len(b.Feedback))
	for i, f := range b.Feedback {
		if f.Locator != nil {
			loc := f.Locator.Clone()
			f.Locator = &loc
		}
		out.Feedback[i] = f
	}
	return out
}

// CheckInvariants verifies that the current version belongs to the version list.
func (b *FileBundle) CheckInvariants() error {
	if len(b.Versions) == 0 {
		return nil
	}
	if b.File.CurrentVersionID == nil {
		return NewValidationError("current_version", "required when versions exist")
	}
	if b.FindVersion(*b.File.CurrentVersionID) == nil {
		return NewValidationError("current_version", "not among file versions")
	}
	return nil
}
