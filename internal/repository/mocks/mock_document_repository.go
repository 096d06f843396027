package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"patientdocs/internal/model"
	"patientdocs/internal/repository"
)

var _ repository.DocumentRepository = (*MockDocumentRepository)(nil)

// MockDocumentRepository is a testify mock. Create also accepts a
// func(*model.Document) *model.Document return to echo the input back.
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	args := m.Called(ctx, doc)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case func(*model.Document) *model.Document:
		return v(doc), args.Error(1)
	default:
		return v.(*model.Document), args.Error(1)
	}
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
