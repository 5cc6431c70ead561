package mocks

import (
	"context"

	"citydesk/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) FindByID(ctx context.Context, kind model.OwnerKind, id int64) (*model.WorkflowEntity, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WorkflowEntity), args.Error(1)
}

func (m *MockWorkflowRepository) Update(ctx context.Context, e *model.WorkflowEntity) (*model.WorkflowEntity, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WorkflowEntity), args.Error(1)
}

func (m *MockWorkflowRepository) ListCommentIDs(ctx context.Context, kind model.OwnerKind, id int64) ([]int64, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, kind model.OwnerKind, id int64) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}
