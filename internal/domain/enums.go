package domain

// FileFormat is the media kind of a deliverable.
type FileFormat string

const (
	FileFormatImage FileFormat = "image"
	FileFormatVideo FileFormat = "video"
	FileFormatPDF   FileFormat = "pdf"
)

func (f FileFormat) String() string { return string(f) }

func (f FileFormat) IsValid() bool {
	switch f {
	case FileFormatImage, FileFormatVideo, FileFormatPDF:
		return true
	}
	return false
}

// FileStatus is the client's review verdict for a file.
type FileStatus string

const (
	FileStatusPending      FileStatus = "pending"
	FileStatusApproved     FileStatus = "approved"
	FileStatusNeedsChanges FileStatus = "needs_changes"
)

func (s FileStatus) String() string { return string(s) }

func (s FileStatus) IsValid() bool {
	switch s {
	case FileStatusPending, FileStatusApproved, FileStatusNeedsChanges:
		return true
	}
	return false
}

// NotificationKind identifies the event sent to the project owner.
type NotificationKind string

const (
	NotificationFeedback    NotificationKind = "feedback"
	NotificationApproved    NotificationKind = "approved"
	NotificationAllApproved NotificationKind = "all_approved"
)

func (k NotificationKind) String() string { return string(k) }

func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationFeedback, NotificationApproved, NotificationAllApproved:
		return true
	}
	return false
}
