package share

import (
	"context"
	"github.com/google/uuid"
	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/outbox"
	"sync"
)

var _ reconciler = &reconcilerMock{}

type reconcilerMock struct {
	ReconcileFunc func(ctx context.Context, projectID uuid.UUID, local []domain.FileBundle) ([]outbox.Drift, error)

	calls struct {
		Reconcile []struct {
			Ctx       context.Context
			ProjectID uuid.UUID
			Local     []domain.FileBundle
		}
	}
	lockReconcile sync.RWMutex
}

func (mock *reconcilerMock) Reconcile(ctx context.Context, projectID uuid.UUID, local []domain.FileBundle) ([]outbox.Drift, error) {
	if mock.ReconcileFunc == nil {
		panic("reconcilerMock.ReconcileFunc: method is nil but reconciler.Reconcile was just called")
	}
	callInfo := struct {
		Ctx       context.Context
		ProjectID uuid.UUID
		Local     []domain.FileBundle
	}{Ctx: ctx, ProjectID: projectID, Local: local}
	mock.lockReconcile.Lock()
	mock.calls.Reconcile = append(mock.calls.Reconcile, callInfo)
	mock.lockReconcile.Unlock()
	return mock.ReconcileFunc(ctx, projectID, local)
}

func (mock *reconcilerMock) ReconcileCalls() []struct {
	Ctx       context.Context
	ProjectID uuid.UUID
	Local     []domain.FileBundle
} {
	mock.lockReconcile.RLock()
	calls := mock.calls.Reconcile
	mock.lockReconcile.RUnlock()
	return calls
}
