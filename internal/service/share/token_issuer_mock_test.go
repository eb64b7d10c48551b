package share

import (
	"github.com/google/uuid"
	"sync"
)

var _ tokenIssuer = &tokenIssuerMock{}

type tokenIssuerMock struct {
	IssueFunc func(sessionID string, projectID uuid.UUID) (string, error)

	calls struct {
		Issue []struct {
			SessionID string
			ProjectID uuid.UUID
		}
	}
	lockIssue sync.RWMutex
}

func (mock *tokenIssuerMock) Issue(sessionID string, projectID uuid.UUID) (string, error) {
	if mock.IssueFunc == nil {
		panic("tokenIssuerMock.IssueFunc: method is nil but tokenIssuer.Issue was just called")
	}
	callInfo := struct {
		SessionID string
		ProjectID uuid.UUID
	}{SessionID: sessionID, ProjectID: projectID}
	mock.lockIssue.Lock()
	mock.calls.Issue = append(mock.calls.Issue, callInfo)
	mock.lockIssue.Unlock()
	return mock.IssueFunc(sessionID, projectID)
}

func (mock *tokenIssuerMock) IssueCalls() []struct {
	SessionID string
	ProjectID uuid.UUID
} {
	mock.lockIssue.RLock()
	calls := mock.calls.Issue
	mock.lockIssue.RUnlock()
	return calls
}
