package outbox

import (
	"context"
	"github.com/google/uuid"
	"github.com/heartmarshall/proofdesk/internal/domain"
	"sync"
)

var _ Writer = &WriterMock{}

type WriterMock struct {
	UpdateFileStatusFunc func(ctx context.Context, fileID uuid.UUID, status domain.FileStatus) error
	InsertFeedbackFunc   func(ctx context.Context, fb domain.Feedback) error

	calls struct {
		UpdateFileStatus []struct {
			Ctx    context.Context
			FileID uuid.UUID
			Status domain.FileStatus
		}
		InsertFeedback []struct {
			Ctx context.Context
			Fb  domain.Feedback
		}
	}
	lockUpdateFileStatus sync.RWMutex
	lockInsertFeedback   sync.RWMutex
}

func (mock *WriterMock) UpdateFileStatus(ctx context.Context, fileID uuid.UUID, status domain.FileStatus) error {
	if mock.UpdateFileStatusFunc == nil {
		panic("WriterMock.UpdateFileStatusFunc: method is nil but Writer.UpdateFileStatus was just called")
	}
	callInfo := struct {
		Ctx    context.Context
		FileID uuid.UUID
		Status domain.FileStatus
	}{Ctx: ctx, FileID: fileID, Status: status}
	mock.lockUpdateFileStatus.Lock()
	mock.calls.UpdateFileStatus = append(mock.calls.UpdateFileStatus, callInfo)
	mock.lockUpdateFileStatus.Unlock()
	return mock.UpdateFileStatusFunc(ctx, fileID, status)
}

func (mock *WriterMock) UpdateFileStatusCalls() []struct {
	Ctx    context.Context
	FileID uuid.UUID
	Status domain.FileStatus
} {
	mock.lockUpdateFileStatus.RLock()
	calls := mock.calls.UpdateFileStatus
	mock.lockUpdateFileStatus.RUnlock()
	return calls
}

func (mock *WriterMock) InsertFeedback(ctx context.Context, fb domain.Feedback) error {
	if mock.InsertFeedbackFunc == nil {
		panic("WriterMock.InsertFeedbackFunc: method is nil but Writer.InsertFeedback was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Fb  domain.Feedback
	}{Ctx: ctx, Fb: fb}
	mock.lockInsertFeedback.Lock()
	mock.calls.InsertFeedback = append(mock.calls.InsertFeedback, callInfo)
	mock.lockInsertFeedback.Unlock()
	return mock.InsertFeedbackFunc(ctx, fb)
}

func (mock *WriterMock) InsertFeedbackCalls() []struct {
	Ctx context.Context
	Fb  domain.Feedback
} {
	mock.lockInsertFeedback.RLock()
	calls := mock.calls.InsertFeedback
	mock.lockInsertFeedback.RUnlock()
	return calls
}
