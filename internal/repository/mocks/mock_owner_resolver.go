package mocks

import (
	"context"

	"citydesk/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockOwnerResolver struct {
	mock.Mock
}

func (m *MockOwnerResolver) Resolve(ctx context.Context, kind model.OwnerKind, id int64) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}
