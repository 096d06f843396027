package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"patientdocs/internal/model"
	"patientdocs/internal/repository"
	repoMocks "patientdocs/internal/repository/mocks"
	"patientdocs/internal/storage"
	storeMocks "patientdocs/internal/storage/mocks"
)

var fixedNow = time.UnixMilli(1700000000000).UTC()

func fixedClock() time.Time { return fixedNow }

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name             string
		originalFilename string
		contentType      string
		size             int64
		setupMocks       func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader
		wantErr          error
		wantErrMsg       string
		checkDoc         func(t *testing.T, doc *model.Document)
	}{
		{
			name:             "happy path",
			originalFilename: "report.pdf",
			contentType:      "application/pdf",
			size:             11,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello world")
				mStore.On("Put", ctx, "uploads/1700000000000-report.pdf", r, storage.PutObjectOptions{
					Size:        11,
					ContentType: "application/pdf",
					Metadata:    map[string]string{"original-filename": "report.pdf"},
				}).Return(storage.ObjectInfo{
					Key:         "uploads/1700000000000-report.pdf",
					Size:        11,
					ContentType: "application/pdf",
				}, nil)

				mRepo.On("Create", ctx, &model.Document{
					Filename:     "1700000000000-report.pdf",
					Filepath:     "uploads/1700000000000-report.pdf",
					OriginalName: "report.pdf",
					FileSize:     11,
					CreatedAt:    fixedNow,
				}).Return(&model.Document{ID: 1, OriginalName: "report.pdf", FileSize: 11}, nil)

				return r
			},
			checkDoc: func(t *testing.T, doc *model.Document) {
				assert.Equal(t, int64(1), doc.ID)
				assert.Equal(t, int64(11), doc.FileSize)
			},
		},
		{
			name:             "unsafe name keeps original for display",
			originalFilename: "../../etc/pass wd?.pdf",
			contentType:      "application/pdf",
			size:             3,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("pdf")
				mStore.On("Put", ctx, "uploads/1700000000000-pass wd_.pdf", r, mock.Anything).
					Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key, Size: 3}
					}, nil)
				mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.OriginalName == "../../etc/pass wd?.pdf" && doc.Filename == "1700000000000-pass wd_.pdf"
				})).Return(&model.Document{ID: 2}, nil)
				return r
			},
		},
		{
			name:             "validation error - nil reader",
			originalFilename: "test.pdf",
			contentType:      "application/pdf",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				return nil
			},
			wantErr: ErrReaderNil,
		},
		{
			name:             "validation error - empty file name",
			originalFilename: " ",
			contentType:      "application/pdf",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				return strings.NewReader("x")
			},
			wantErr: ErrFileRequired,
		},
		{
			name:             "validation error - not a pdf",
			originalFilename: "notes.txt",
			contentType:      "text/plain",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				return strings.NewReader("hello")
			},
			wantErr: ErrInvalidFileType,
		},
		{
			name:             "validation error - declared type must match exactly",
			originalFilename: "report.pdf",
			contentType:      "application/pdf; charset=binary",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				return strings.NewReader("hello")
			},
			wantErr: ErrInvalidFileType,
		},
		{
			name:             "storage error",
			originalFilename: "test.pdf",
			contentType:      "application/pdf",
			size:             5,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
				return r
			},
			wantErrMsg: "upload to storage: storage fail",
		},
		{
			name:             "repository error with successful rollback",
			originalFilename: "test.pdf",
			contentType:      "application/pdf",
			size:             5,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key}
					}, nil)
				mRepo.On("Create", ctx, mock.Anything).
					Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, "uploads/1700000000000-test.pdf").Return(nil)
				return r
			},
			wantErrMsg: "db save failed: db fail",
		},
		{
			name:             "repository error with failed rollback",
			originalFilename: "test.pdf",
			contentType:      "application/pdf",
			size:             5,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key}
					}, nil)
				mRepo.On("Create", ctx, mock.Anything).
					Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(errors.New("delete fail"))
				return r
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mStore, mRepo, WithClock(fixedClock))

			r := tt.setupMocks(mStore, mRepo)

			doc, err := svc.Upload(ctx, r, tt.originalFilename, tt.contentType, tt.size)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrValidation)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				assert.NotErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, doc)
				if tt.checkDoc != nil {
					tt.checkDoc(t, doc)
				}
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Upload_ContentSniffing(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-pdf bytes declared as pdf", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := NewDocumentService(mStore, mRepo, WithClock(fixedClock), WithContentSniffing(true))

		_, err := svc.Upload(ctx, strings.NewReader("just some text"), "fake.pdf", "application/pdf", 14)
		assert.ErrorIs(t, err, ErrInvalidFileType)
		mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("passes the full stream through", func(t *testing.T) {
		content := "%PDF-1.7\n" + strings.Repeat("x", 5000)
		var written []byte

		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
				written, _ = io.ReadAll(r)
				return storage.ObjectInfo{Key: key, Size: int64(len(written))}
			}, nil)
		mRepo.On("Create", ctx, mock.Anything).Return(&model.Document{ID: 9}, nil)

		svc := NewDocumentService(mStore, mRepo, WithClock(fixedClock), WithContentSniffing(true))
		doc, err := svc.Upload(ctx, strings.NewReader(content), "real.pdf", "application/pdf", int64(len(content)))

		require.NoError(t, err)
		assert.Equal(t, int64(9), doc.ID)
		assert.Equal(t, content, string(written))
	})
}

func TestDocumentService_Upload_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockDocumentRepository)

	mStore.On("Put", ctx, "files/1700000000000-a.pdf", mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{Key: "files/1700000000000-a.pdf", Size: 1}, nil)
	mRepo.On("Create", ctx, mock.Anything).Return(func(d *model.Document) *model.Document {
		out := *d
		out.ID = 1
		return &out
	}, nil)

	svc := NewDocumentService(mStore, mRepo, WithClock(fixedClock), WithKeyPrefix("/files/"))
	doc, err := svc.Upload(ctx, strings.NewReader("a"), "a.pdf", "application/pdf", 1)

	require.NoError(t, err)
	assert.Equal(t, "files/1700000000000-a.pdf", doc.Filepath)
	assert.Equal(t, "1700000000000-a.pdf", doc.Filename)
	assert.Equal(t, fixedNow, doc.CreatedAt)
	mStore.AssertExpectations(t)
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
		checkRes   func(t *testing.T, res *DocumentListResult)
	}{
		{
			name:   "all documents",
			limit:  0,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, repository.PageQuery{}).
					Return(&repository.PageResult[model.Document]{
						Items: []model.Document{{ID: 2}, {ID: 1}},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, res *DocumentListResult) {
				assert.Equal(t, 2, len(res.Items))
				assert.Equal(t, 2, res.Total)
				assert.Equal(t, int64(2), res.Items[0].ID)
			},
		},
		{
			name:   "page",
			limit:  10,
			offset: 20,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 20}).
					Return(&repository.PageResult[model.Document]{Items: []model.Document{}, Total: 20}, nil)
			},
		},
		{
			name:   "negative values are clamped",
			limit:  -5,
			offset: -1,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 0, Offset: 0}).
					Return(&repository.PageResult[model.Document]{Items: []model.Document{}, Total: 0}, nil)
			},
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(nil, mRepo)

			tt.setupMocks(mRepo)

			res, err := svc.List(ctx, tt.limit, tt.offset)

			if tt.wantErr != nil {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         int64
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   1,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(1)).Return(&model.Document{ID: 1}, nil)
			},
		},
		{
			name:       "validation - zero id",
			id:         0,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found - mapping sql.ErrNoRows",
			id:   404,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(404)).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "generic repository error",
			id:   500,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(500)).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(nil, mRepo)

			tt.setupMocks(mRepo)

			doc, err := svc.Get(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
				}
				assert.Nil(t, doc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, doc)
				assert.Equal(t, tt.id, doc.ID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Open(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{ID: 1, Filepath: "uploads/1-a.pdf", OriginalName: "a.pdf"}

	t.Run("streams blob", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("FindByID", ctx, int64(1)).Return(doc, nil)
		mStore.On("Get", ctx, "uploads/1-a.pdf").
			Return(io.NopCloser(strings.NewReader("pdf")), storage.ObjectInfo{Size: 3}, nil)

		dl, err := NewDocumentService(mStore, mRepo).Open(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, "a.pdf", dl.Document.OriginalName)
		assert.Equal(t, int64(3), dl.Size)
		assert.Equal(t, "application/pdf", dl.ContentType)
	})

	t.Run("record missing", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("FindByID", ctx, int64(2)).Return(nil, sql.ErrNoRows)

		_, err := NewDocumentService(new(storeMocks.MockStorage), mRepo).Open(ctx, 2)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("blob missing", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("FindByID", ctx, int64(1)).Return(doc, nil)
		mStore.On("Get", ctx, "uploads/1-a.pdf").Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound)

		_, err := NewDocumentService(mStore, mRepo).Open(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("storage failure", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("FindByID", ctx, int64(1)).Return(doc, nil)
		mStore.On("Get", ctx, "uploads/1-a.pdf").Return(nil, storage.ObjectInfo{}, errors.New("permission denied"))

		_, err := NewDocumentService(mStore, mRepo).Open(ctx, 1)
		assert.ErrorContains(t, err, "open blob: permission denied")
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         int64
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
		wantLog    string
	}{
		{
			name: "happy path",
			id:   1,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(1)).Return(&model.Document{ID: 1, Filepath: "path/to/obj"}, nil)
				mStore.On("Delete", ctx, "path/to/obj").Return(nil)
				mRepo.On("Delete", ctx, int64(1)).Return(nil)
			},
		},
		{
			name:       "validation - zero id",
			id:         0,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found",
			id:   404,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(404)).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "blob already absent still removes record",
			id:   2,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(2)).Return(&model.Document{ID: 2, Filepath: "gone"}, nil)
				mStore.On("Delete", ctx, "gone").Return(storage.ErrObjectNotFound)
				mRepo.On("Delete", ctx, int64(2)).Return(nil)
			},
			wantLog: `"level":"warn"`,
		},
		{
			name: "storage delete error is logged and swallowed",
			id:   3,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(3)).Return(&model.Document{ID: 3, Filepath: "path"}, nil)
				mStore.On("Delete", ctx, "path").Return(errors.New("storage fail"))
				mRepo.On("Delete", ctx, int64(3)).Return(nil)
			},
			wantLog: `"level":"error"`,
		},
		{
			name: "record removed concurrently",
			id:   4,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(4)).Return(&model.Document{ID: 4, Filepath: "p"}, nil)
				mStore.On("Delete", ctx, "p").Return(storage.ErrObjectNotFound)
				mRepo.On("Delete", ctx, int64(4)).Return(sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "repository delete error",
			id:   5,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(5)).Return(&model.Document{ID: 5, Filepath: "path"}, nil)
				mStore.On("Delete", ctx, "path").Return(nil)
				mRepo.On("Delete", ctx, int64(5)).Return(errors.New("db fail"))
			},
			wantErr: errors.New("delete record: db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			var logBuf bytes.Buffer
			svc := NewDocumentService(mStore, mRepo, WithLogger(zerolog.New(&logBuf)))

			tt.setupMocks(mStore, mRepo)

			err := svc.Delete(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
			} else {
				assert.NoError(t, err)
			}
			if tt.wantLog != "" {
				assert.Contains(t, logBuf.String(), tt.wantLog)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}
