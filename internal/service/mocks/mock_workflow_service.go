package mocks

import (
	"context"

	"citydesk/internal/model"
	"citydesk/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) ApplyUpdate(ctx context.Context, kind model.OwnerKind, id int64, patch service.WorkflowPatch) (*model.WorkflowEntity, error) {
	args := m.Called(ctx, kind, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WorkflowEntity), args.Error(1)
}

func (m *MockWorkflowService) GuardedDelete(ctx context.Context, kind model.OwnerKind, id int64) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}
