package share

import (
	"context"
	"github.com/google/uuid"
	"github.com/heartmarshall/proofdesk/internal/domain"
	"sync"
)

var _ projectStore = &projectStoreMock{}

type projectStoreMock struct {
	LoadBundlesFunc          func(ctx context.Context, projectID uuid.UUID) ([]domain.FileBundle, error)
	LoadProjectByShareIDFunc func(ctx context.Context, shareID string) (*domain.Project, error)

	calls struct {
		LoadBundles []struct {
			Ctx       context.Context
			ProjectID uuid.UUID
		}
		LoadProjectByShareID []struct {
			Ctx     context.Context
			ShareID string
		}
	}
	lockLoadBundles          sync.RWMutex
	lockLoadProjectByShareID sync.RWMutex
}

func (mock *projectStoreMock) LoadBundles(ctx context.Context, projectID uuid.UUID) ([]domain.FileBundle, error) {
	if mock.LoadBundlesFunc == nil {
		panic("projectStoreMock.LoadBundlesFunc: method is nil but projectStore.LoadBundles was just called")
	}
	callInfo := struct {
		Ctx       context.Context
		ProjectID uuid.UUID
	}{Ctx: ctx, ProjectID: projectID}
	mock.lockLoadBundles.Lock()
	mock.calls.LoadBundles = append(mock.calls.LoadBundles, callInfo)
	mock.lockLoadBundles.Unlock()
	return mock.LoadBundlesFunc(ctx, projectID)
}

func (mock *projectStoreMock) LoadBundlesCalls() []struct {
	Ctx       context.Context
	ProjectID uuid.UUID
} {
	mock.lockLoadBundles.RLock()
	calls := mock.calls.LoadBundles
	mock.lockLoadBundles.RUnlock()
	return calls
}

func (mock *projectStoreMock) LoadProjectByShareID(ctx context.Context, shareID string) (*domain.Project, error) {
	if mock.LoadProjectByShareIDFunc == nil {
		panic("projectStoreMock.LoadProjectByShareIDFunc: method is nil but projectStore.LoadProjectByShareID was just called")
	}
	callInfo := struct {
		Ctx     context.Context
		ShareID string
	}{Ctx: ctx, ShareID: shareID}
	mock.lockLoadProjectByShareID.Lock()
	mock.calls.LoadProjectByShareID = append(mock.calls.LoadProjectByShareID, callInfo)
	mock.lockLoadProjectByShareID.Unlock()
	return mock.LoadProjectByShareIDFunc(ctx, shareID)
}

func (mock *projectStoreMock) LoadProjectByShareIDCalls() []struct {
	Ctx     context.Context
	ShareID string
} {
	mock.lockLoadProjectByShareID.RLock()
	calls := mock.calls.LoadProjectByShareID
	mock.lockLoadProjectByShareID.RUnlock()
	return calls
}
