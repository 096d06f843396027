package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"patientdocs/internal/model"
)

// Banner texts shown after an action settles.
const (
	MsgUploaded       = "File uploaded successfully!"
	MsgUploadFailed   = "Upload failed. Please try again."
	MsgDeleted        = "File deleted successfully."
	MsgDeleteFailed   = "Failed to delete file."
	MsgDownloadFailed = "Failed to download file."
	MsgLoadFailed     = "Failed to load documents."
	MsgOnlyPDF        = "Only PDF files are allowed."
)

// ErrCannotSubmit is returned by Upload when no file is selected or an upload is already running.
var ErrCannotSubmit = errors.New("no file selected or upload in progress")

// Action names a user-triggered operation.
type Action string

const (
	ActionLoad     Action = "load"
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionDelete   Action = "delete"
)

// State is the lifecycle of one action: Idle -> InFlight -> Succeeded|Failed -> Idle.
type State int

const (
	Idle State = iota
	InFlight
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case InFlight:
		return "in-flight"
	case Succeeded:
		return "success"
	case Failed:
		return "error"
	default:
		return "idle"
	}
}

// Banner is the transient message shown to the user.
type Banner struct {
	Error bool
	Text  string
}

// API is the subset of Client the view depends on.
type API interface {
	List(ctx context.Context) ([]model.Document, error)
	Upload(ctx context.Context, name string, r io.Reader) (int64, error)
	Download(ctx context.Context, id int64, w io.Writer) (string, int64, error)
	Delete(ctx context.Context, id int64) error
}

// View holds the document list, the selected upload and the state of each action.
// Validation here only spares a round trip; the server has the final say.
type View struct {
	api API

	mu       sync.Mutex
	docs     []model.Document
	selected string
	states   map[Action]State
	banner   *Banner
}

// NewView returns an idle view backed by api.
func NewView(api API) *View {
	return &View{api: api, states: make(map[Action]State)}
}

// Documents returns a copy of the current list.
func (v *View) Documents() []model.Document {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.Document(nil), v.docs...)
}

// State reports the current state of a.
func (v *View) State(a Action) State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.states[a]
}

// Banner returns the message to display, or nil.
func (v *View) Banner() *Banner {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.banner == nil {
		return nil
	}
	b := *v.banner
	return &b
}

// Selected returns the path chosen for upload.
func (v *View) Selected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// Dismiss clears the banner and returns settled actions to Idle.
func (v *View) Dismiss() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.banner = nil
	for a, s := range v.states {
		if s == Succeeded || s == Failed {
			v.states[a] = Idle
		}
	}
}

// Select picks a file for upload. Non-PDF files are rejected and clear the selection.
func (v *View) Select(path string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if DeclaredType(path) != "application/pdf" {
		v.selected = ""
		v.banner = &Banner{Error: true, Text: MsgOnlyPDF}
		return false
	}
	v.selected = path
	v.banner = nil
	return true
}

// CanSubmit reports whether a file is selected and no upload is in flight.
func (v *View) CanSubmit() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.canSubmit()
}

func (v *View) canSubmit() bool {
	return v.selected != "" && v.states[ActionUpload] != InFlight
}

// begin moves a to InFlight and drops any previous banner.
func (v *View) begin(a Action) {
	v.states[a] = InFlight
	v.banner = nil
}

func (v *View) settle(a Action, err error, okText, failText string) {
	if err != nil {
		v.states[a] = Failed
		v.banner = &Banner{Error: true, Text: failText}
		return
	}
	v.states[a] = Succeeded
	if okText != "" {
		v.banner = &Banner{Text: okText}
	}
}

// Refresh reloads the document list.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.begin(ActionLoad)
	v.mu.Unlock()

	docs, err := v.api.List(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil {
		v.docs = docs
	}
	v.settle(ActionLoad, err, "", MsgLoadFailed)
	return err
}

// Upload sends the selected file and refreshes the list on success.
func (v *View) Upload(ctx context.Context) (int64, error) {
	v.mu.Lock()
	if !v.canSubmit() {
		v.mu.Unlock()
		return 0, ErrCannotSubmit
	}
	path := v.selected
	v.begin(ActionUpload)
	v.mu.Unlock()

	id, err := v.upload(ctx, path)

	v.mu.Lock()
	if err == nil {
		v.selected = ""
	}
	v.settle(ActionUpload, err, MsgUploaded, MsgUploadFailed)
	banner := v.banner
	v.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if rerr := v.Refresh(ctx); rerr != nil {
		return id, nil
	}
	// The refresh must not replace the upload banner.
	v.mu.Lock()
	v.banner = banner
	v.mu.Unlock()
	return id, nil
}

func (v *View) upload(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return v.api.Upload(ctx, filepath.Base(path), f)
}

// Download saves document id into dir under its suggested name and returns the written path.
func (v *View) Download(ctx context.Context, id int64, dir string) (string, error) {
	v.mu.Lock()
	v.begin(ActionDownload)
	v.mu.Unlock()

	path, err := v.download(ctx, id, dir)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.settle(ActionDownload, err, "", MsgDownloadFailed)
	return path, err
}

func (v *View) download(ctx context.Context, id int64, dir string) (string, error) {
	tmp, err := os.CreateTemp(dir, ".docctl-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	name, _, err := v.api.Download(ctx, id, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return dst, nil
}

// Delete removes a document and drops it from the local list without a reload.
func (v *View) Delete(ctx context.Context, id int64) error {
	v.mu.Lock()
	v.begin(ActionDelete)
	v.mu.Unlock()

	err := v.api.Delete(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil {
		kept := make([]model.Document, 0, len(v.docs))
		for _, d := range v.docs {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		v.docs = kept
	}
	v.settle(ActionDelete, err, MsgDeleted, MsgDeleteFailed)
	return err
}
