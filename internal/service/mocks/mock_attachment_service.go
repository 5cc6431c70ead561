package mocks

import (
	"context"
	"io"

	"citydesk/internal/model"
	"citydesk/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockAttachmentService struct {
	mock.Mock
}

func (m *MockAttachmentService) Upload(ctx context.Context, kind model.OwnerKind, ownerID int64, files []service.FileUpload) ([]model.Document, error) {
	args := m.Called(ctx, kind, ownerID, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockAttachmentService) ListByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) ([]model.Document, error) {
	args := m.Called(ctx, kind, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockAttachmentService) FetchContent(ctx context.Context, id string) (io.ReadCloser, *model.Document, error) {
	args := m.Called(ctx, id)
	rc, _ := args.Get(0).(io.ReadCloser)
	doc, _ := args.Get(1).(*model.Document)
	return rc, doc, args.Error(2)
}

func (m *MockAttachmentService) ExportArchive(ctx context.Context, kind model.OwnerKind, ownerID int64, w io.Writer) (int, error) {
	args := m.Called(ctx, kind, ownerID, w)
	if f, ok := args.Get(0).(func(io.Writer) int); ok {
		return f(w), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockAttachmentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAttachmentService) DeleteByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) error {
	args := m.Called(ctx, kind, ownerID)
	return args.Error(0)
}
