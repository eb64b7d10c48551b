package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxKind is the external write an outbox item stands for.
type OutboxKind string

const (
	OutboxUpdateStatus   OutboxKind = "update_status"
	OutboxInsertFeedback OutboxKind = "insert_feedback"
	OutboxNotify         OutboxKind = "notify"
)

func (k OutboxKind) IsValid() bool {
	switch k {
	case OutboxUpdateStatus, OutboxInsertFeedback, OutboxNotify:
		return true
	}
	return false
}

// OutboxStatus represents the delivery state of an outbox item.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusDone       OutboxStatus = "done"
	OutboxStatusFailed     OutboxStatus = "failed"
)

func (s OutboxStatus) IsValid() bool {
	switch s {
	case OutboxStatusPending, OutboxStatusProcessing, OutboxStatusDone, OutboxStatusFailed:
		return true
	}
	return false
}

// OutboxItem is a pending external write derived from an optimistic update.
type OutboxItem struct {
	ID        uuid.UUID
	Kind      OutboxKind
	FileID    uuid.UUID
	Payload   json.RawMessage
	Status    OutboxStatus
	Attempts  int
	LastError *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OutboxStats holds aggregate counts by status.
type OutboxStats struct {
	Pending    int
	Processing int
	Done       int
	Failed     int
	Total      int
}

// StatusUpdate is the payload of an update_status item.
type StatusUpdate struct {
	FileID uuid.UUID  `json:"file_id"`
	Status FileStatus `json:"status"`
}

// FeedbackInsert is the payload of an insert_feedback item.
type FeedbackInsert struct {
	Feedback Feedback `json:"feedback"`
}

// Notification is the payload of a notify item.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	ProjectID uuid.UUID        `json:"project_id"`
	FileID    uuid.UUID        `json:"file_id"`
	FileName  string           `json:"file_name"`
}
