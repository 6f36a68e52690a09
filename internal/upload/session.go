package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"gallery/internal/exif"
	"gallery/internal/logging"
	"gallery/internal/preview"
	"gallery/internal/services"
)

// ErrSessionClosed is returned by Intake after Close.
var ErrSessionClosed = errors.New("upload session closed")

// MetadataExtractor reads capture details from a file.
type MetadataExtractor interface {
	Extract(ctx context.Context, path string) (exif.Metadata, error)
}

// PreviewFactory renders a preview for a file.
type PreviewFactory interface {
	Create(ctx context.Context, path string) (*preview.Handle, error)
}

// Session owns one upload queue, the previews of its items, and the
// background metadata extraction started at intake.
type Session struct {
	extractor MetadataExtractor
	previews  PreviewFactory
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  State
	closed bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates an empty session. A nil previews factory borrows the
// source files as previews.
func NewSession(extractor MetadataExtractor, previews PreviewFactory, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		extractor: extractor,
		previews:  previews,
		logger:    logging.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = logging.NewComponentLogger(s.logger, "upload-queue")
	return s
}

// Intake adds one pending item per image file in paths and returns their ids
// in order. Files that are not images are skipped. Metadata extraction runs in
// the background; see Wait.
func (s *Session) Intake(ctx context.Context, paths []string) ([]string, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	items := make([]Item, 0, len(paths))
	for _, path := range paths {
		file, ok := s.inspect(path)
		if !ok {
			continue
		}
		item := Item{
			ID:     uuid.NewString(),
			File:   file,
			Status: StatusPending,
		}
		item.Preview = s.createPreview(ctx, item)
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		for _, item := range items {
			_ = item.Preview.Release()
		}
		return nil, ErrSessionClosed
	}
	s.state = s.state.Append(items...)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		s.wg.Add(1)
		go s.extract(item.ID, item.File)
	}
	s.mu.Unlock()

	s.logger.Info("files queued",
		logging.Int("accepted", len(items)),
		logging.Int("skipped", len(paths)-len(items)),
	)
	return ids, nil
}

// inspect stats path and keeps it only when its content sniffs as an image.
func (s *Session) inspect(path string) (File, bool) {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("file skipped", logging.String("path", path), logging.Error(err))
		return File{}, false
	}
	if info.IsDir() {
		s.logger.Debug("directory skipped", logging.String("path", path))
		return File{}, false
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		s.logger.Warn("file skipped", logging.String("path", path), logging.Error(err))
		return File{}, false
	}
	contentType := mtype.String()
	if !strings.HasPrefix(contentType, "image/") {
		s.logger.Debug("non-image file skipped",
			logging.String("path", path),
			logging.String("content_type", contentType),
		)
		return File{}, false
	}
	return File{
		Name:        filepath.Base(path),
		Path:        path,
		ContentType: contentType,
		Size:        info.Size(),
	}, true
}

func (s *Session) createPreview(ctx context.Context, item Item) *preview.Handle {
	if s.previews == nil {
		return preview.Borrowed(item.File.Path)
	}
	handle, err := s.previews.Create(ctx, item.File.Path)
	if err != nil {
		s.logger.Debug("preview unavailable, using source image",
			logging.String("file", item.File.Name),
			logging.Error(err),
		)
	}
	if handle == nil {
		handle = preview.Borrowed(item.File.Path)
	}
	return handle
}

func (s *Session) extract(id string, file File) {
	defer s.wg.Done()
	if s.extractor == nil {
		return
	}
	ctx := services.WithItemID(s.ctx, id)
	logger := logging.WithContext(ctx, s.logger)

	meta, err := s.extractor.Extract(ctx, file.Path)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(logger, "metadata extraction failed", "exif_unavailable",
			logging.String("file", file.Name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "taken time and camera left blank"),
			logging.String(logging.FieldErrorHint, "fill the fields manually if needed"),
		)
	}
	if meta.Empty() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = s.state.PatchMetadata(id, meta)
	logger.Debug("metadata applied",
		logging.String("taken_time", meta.TakenTime),
		logging.String("camera", meta.Camera),
	)
}

// Wait blocks until every background extraction started so far has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Snapshot returns the current queue state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Item returns the current value of one item.
func (s *Session) Item(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Find(id)
}

// Update applies user edits to an item.
func (s *Session) Update(id string, p Patch) {
	s.apply(func(st State) State { return st.Update(id, p) })
}

// Focus selects the item being edited.
func (s *Session) Focus(id string) {
	s.apply(func(st State) State { return st.Focus(id) })
}

// Remove drops an item and releases its preview. Removing an unknown id is a
// no-op. If the focused item is removed the first remaining item gains focus.
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	next, removed, ok := s.state.Remove(id)
	if ok {
		s.state = next.EnsureFocus()
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if err := removed.Preview.Release(); err != nil {
		s.logger.Warn("preview release failed", logging.String(logging.FieldItemID, id), logging.Error(err))
	}
	return true
}

// Close tears the session down: background extraction is cancelled and every
// remaining preview is released. Later mutations are ignored. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	items := s.state.items
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	var errs []error
	for _, item := range items {
		if err := item.Preview.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("release previews: %w", err)
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) apply(fn func(State) State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = fn(s.state)
}

// beginRun fills default titles and returns the items a submit run will send.
func (s *Session) beginRun() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.state.Len() == 0 {
		return nil, ErrEmptyQueue
	}
	s.state = s.state.ApplyDefaultTitles()
	return s.state.WorkingSet(), nil
}

// markSubmitting moves id to submitting and returns the item as it will be sent.
func (s *Session) markSubmitting(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Item{}, false
	}
	s.state = s.state.MarkSubmitting(id)
	item, ok := s.state.Find(id)
	if !ok || item.Status != StatusSubmitting {
		return Item{}, false
	}
	return item, true
}

func (s *Session) settle(id string, err error) {
	s.apply(func(st State) State {
		if err != nil {
			return st.MarkFailed(id, err.Error())
		}
		return st.MarkSucceeded(id)
	})
}
