package repository

import (
	"context"

	"patientdocs/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, only persistence.
// Missing rows are reported as sql.ErrNoRows.
type DocumentRepository interface {
	// Create inserts a new document record and returns it with the id assigned by the database.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// List returns documents newest first and the total rows count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Delete removes a document by ID. It returns sql.ErrNoRows if nothing was deleted.
	Delete(ctx context.Context, id int64) error
}

// PageQuery holds limit/offset pagination parameters.
// A zero Limit means no limit.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
