package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"patientdocs/internal/model"
	"patientdocs/internal/repository"
	"patientdocs/internal/storage"
)

// PDFContentType is the only media type accepted for uploads.
const PDFContentType = "application/pdf"

// sniffLen is how much of an upload is inspected when content sniffing is on.
const sniffLen = 3072

var (
	// ErrValidation is the parent of every client-input error.
	ErrValidation = errors.New("validation failed")

	ErrReaderNil       = fmt.Errorf("%w: reader is nil", ErrValidation)
	ErrFileRequired    = fmt.Errorf("%w: file is required", ErrValidation)
	ErrInvalidFileType = fmt.Errorf("%w: only PDF files are allowed", ErrValidation)
	ErrIDRequired      = fmt.Errorf("%w: id is required", ErrValidation)

	ErrNotFound = errors.New("document not found")
)

// DocumentListResult is the service-level DTO for listed documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// Download is an open blob ready to be streamed; the caller must close Body.
type Download struct {
	Document    *model.Document
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload validates the declared type, stores the content under "<epochMillis>-<name>",
	// and saves metadata to DB, rolling back storage if the DB save fails.
	Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.Document, error)

	// List returns documents newest first. A non-positive limit returns all of them.
	List(ctx context.Context, limit, offset int) (*DocumentListResult, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id int64) (*model.Document, error)

	// Open resolves a document and opens its blob for download.
	Open(ctx context.Context, id int64) (*Download, error)

	// Delete removes a document's blob, then its record.
	Delete(ctx context.Context, id int64) error
}

// Option configures a documentService.
type Option func(*documentService)

// WithLogger sets the logger used for recovered failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *documentService) { s.log = l }
}

// WithKeyPrefix sets the directory-like prefix for blob keys (default "uploads").
func WithKeyPrefix(prefix string) Option {
	return func(s *documentService) { s.prefix = strings.Trim(prefix, "/") }
}

// WithContentSniffing requires uploads to carry a PDF signature in addition to the declared type.
func WithContentSniffing(on bool) Option {
	return func(s *documentService) { s.sniff = on }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *documentService) { s.now = now }
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store  storage.Storage
	repo   repository.DocumentRepository
	log    zerolog.Logger
	prefix string
	sniff  bool
	now    func() time.Time
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, opts ...Option) DocumentService {
	s := &documentService{
		store:  store,
		repo:   repo,
		log:    zerolog.Nop(),
		prefix: "uploads",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if strings.TrimSpace(originalFilename) == "" {
		return nil, ErrFileRequired
	}
	if contentType != PDFContentType {
		return nil, ErrInvalidFileType
	}
	if s.sniff {
		var err error
		if r, err = sniffPDF(r); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	storedName := StoredName(now, originalFilename)
	key := storedName
	if s.prefix != "" {
		key = path.Join(s.prefix, storedName)
	}

	objInfo, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": originalFilename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		Filename:     storedName,
		Filepath:     objInfo.Key,
		OriginalName: originalFilename,
		FileSize:     objInfo.Size,
		CreatedAt:    now,
	}
	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

// sniffPDF checks the leading bytes for a PDF signature and returns a reader
// that still yields the whole stream.
func sniffPDF(r io.Reader) (io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if !mimetype.Detect(head).Is(PDFContentType) {
		return nil, ErrInvalidFileType
	}
	return io.MultiReader(bytes.NewReader(head), r), nil
}

// List returns documents without exposing repository types.
func (s *documentService) List(ctx context.Context, limit, offset int) (*DocumentListResult, error) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 || limit == 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id int64) (*model.Document, error) {
	if id <= 0 {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Open returns the document and a reader over its blob. A record whose blob is gone reports ErrNotFound.
func (s *documentService) Open(ctx context.Context, id int64) (*Download, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	body, info, err := s.store.Get(ctx, doc.Filepath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.log.Warn().
				Int64("document_id", doc.ID).
				Str("filepath", doc.Filepath).
				Msg("blob missing for existing record")
			return nil, fmt.Errorf("%w: blob missing", ErrNotFound)
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	ct := info.ContentType
	if ct == "" {
		ct = PDFContentType
	}
	return &Download{Document: doc, Body: body, Size: info.Size, ContentType: ct}, nil
}

// Delete removes a document from storage, then deletes its record.
// Blob failures are logged and do not stop the record removal.
func (s *documentService) Delete(ctx context.Context, id int64) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, doc.Filepath); err != nil {
		ev := s.log.Error()
		if errors.Is(err, storage.ErrObjectNotFound) {
			ev = s.log.Warn()
		}
		ev.Err(err).
			Int64("document_id", doc.ID).
			Str("filepath", doc.Filepath).
			Msg("failed to delete blob, removing record anyway")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
