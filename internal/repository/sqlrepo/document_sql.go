package sqlrepo

import (
	"context"
	"database/sql"

	"patientdocs/internal/database"
	"patientdocs/internal/model"
	"patientdocs/internal/repository"
)

// DocumentSQL is a database/sql implementation of repository.DocumentRepository.
// Queries are written with $N placeholders and rebound per dialect; it contains no business logic.
type DocumentSQL struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewDocumentSQL creates a new DocumentSQL repository.
func NewDocumentSQL(db *sql.DB, dialect database.Dialect) *DocumentSQL {
	return &DocumentSQL{db: db, dialect: dialect}
}

var _ repository.DocumentRepository = (*DocumentSQL)(nil)

func (r *DocumentSQL) q(query string) string {
	return database.Rebind(r.dialect, query)
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentSQL) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (filename, filepath, original_name, file_size, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	out := *doc
	if err := r.db.QueryRowContext(ctx, r.q(q),
		doc.Filename,
		doc.Filepath,
		doc.OriginalName,
		doc.FileSize,
		doc.CreatedAt,
	).Scan(&out.ID); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentSQL) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	const q = `
		SELECT id, filename, filepath, original_name, file_size, created_at
		FROM documents
		WHERE id = $1
	`
	var d model.Document
	if err := scanDocument(r.db.QueryRowContext(ctx, r.q(q), id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns documents ordered newest first with a total count.
// LIMIT/OFFSET are applied only when pq.Limit is positive.
func (r *DocumentSQL) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	// Count total rows
	const qCount = `SELECT COUNT(*) FROM documents`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qAll = `
		SELECT id, filename, filepath, original_name, file_size, created_at
		FROM documents
		ORDER BY created_at DESC, id DESC
	`
	var (
		rows *sql.Rows
		err  error
	)
	if pq.Limit > 0 {
		rows, err = r.db.QueryContext(ctx, r.q(qAll+` LIMIT $1 OFFSET $2`), pq.Limit, pq.Offset)
	} else {
		rows, err = r.db.QueryContext(ctx, qAll)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		var d model.Document
		if err := scanDocument(rows, &d); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a document by ID and reports sql.ErrNoRows when no row matched.
func (r *DocumentSQL) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, r.q(q), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, d *model.Document) error {
	return row.Scan(
		&d.ID,
		&d.Filename,
		&d.Filepath,
		&d.OriginalName,
		&d.FileSize,
		&d.CreatedAt,
	)
}
