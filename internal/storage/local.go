package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// localStorage keeps blobs as plain files below root.
type localStorage struct {
	root string
}

// NewLocal creates a filesystem-backed Storage rooted at dir, creating it if missing.
func NewLocal(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &localStorage{root: abs}, nil
}

// resolve maps key to a path inside root and rejects anything that would escape it.
func (l *localStorage) resolve(key string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	p := filepath.Join(l.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(l.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return p, nil
}

// Put streams r into a new file. An existing blob under key is never overwritten.
func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	p, err := l.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectExists, key)
		}
		return ObjectInfo{}, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && opt.Size > 0 && opt.Size != n {
		err = fmt.Errorf("short write, got %d of %d bytes", n, opt.Size)
	}
	if err != nil {
		_ = os.Remove(p)
		return ObjectInfo{}, fmt.Errorf("write object: %w", err)
	}

	st, err := os.Stat(p)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens the file for streaming; the caller closes it.
func (l *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	p, err := l.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, ObjectInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	if st.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return f, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  mime.TypeByExtension(path.Ext(key)),
		LastModified: st.ModTime(),
	}, nil
}

// Delete unlinks the file; a missing file yields ErrObjectNotFound.
func (l *localStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return err
	}
	return nil
}

// Exists reports whether a regular file is stored under key. Put and Delete
// detect collisions and absence from the open and remove errors directly.
func (l *localStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := l.resolve(key)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !st.IsDir(), nil
}

// ctxReader aborts a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
