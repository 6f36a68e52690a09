package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gallery/internal/credentials"
	"gallery/internal/logging"
	"gallery/internal/services"
)

var (
	// ErrEmptyQueue is returned when Submit is called with nothing queued.
	ErrEmptyQueue = errors.New("upload queue is empty")
	// ErrMissingCredentials is returned when the username or password is blank.
	ErrMissingCredentials = errors.New("upload credentials are required")
)

const (
	defaultBatchSize  = 3
	defaultBatchDelay = 5000 * time.Millisecond
)

// Uploader sends one item to the backend.
type Uploader interface {
	Upload(ctx context.Context, creds credentials.Credentials, item Item) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Outcome reports how one item settled.
type Outcome struct {
	ItemID   string
	FileName string
	Title    string
	Batch    int
	Status   Status
	Error    string
	Duration time.Duration
}

// Result aggregates one submit run. Complete is true only when every queued
// item has been uploaded, including items that succeeded in earlier runs.
type Result struct {
	RunID     string
	Batches   [][]string
	Succeeded []string
	Failed    map[string]string
	Complete  bool
	Duration  time.Duration
}

// Submitter walks an upload queue in paced batches.
type Submitter struct {
	uploader    Uploader
	batchSize   int
	batchDelay  time.Duration
	itemTimeout time.Duration
	sleep       Sleeper
	logger      *slog.Logger
	onOutcome   func(context.Context, Outcome)
	newRunID    func() string
}

// SubmitterOption customizes a Submitter.
type SubmitterOption func(*Submitter)

// WithBatchSize sets the number of concurrent uploads per group.
func WithBatchSize(n int) SubmitterOption {
	return func(s *Submitter) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause before every group after the first.
func WithBatchDelay(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		if d >= 0 {
			s.batchDelay = d
		}
	}
}

// WithItemTimeout bounds each upload call. Zero disables the bound.
func WithItemTimeout(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		if d >= 0 {
			s.itemTimeout = d
		}
	}
}

// WithSleeper replaces the pacing sleeper.
func WithSleeper(fn Sleeper) SubmitterOption {
	return func(s *Submitter) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithLogger sets the submitter logger.
func WithLogger(logger *slog.Logger) SubmitterOption {
	return func(s *Submitter) {
		s.logger = logger
	}
}

// WithOutcomeHook registers fn to observe every settled item. It may be
// called concurrently from the goroutines of one group.
func WithOutcomeHook(fn func(context.Context, Outcome)) SubmitterOption {
	return func(s *Submitter) {
		s.onOutcome = fn
	}
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) SubmitterOption {
	return func(s *Submitter) {
		if fn != nil {
			s.newRunID = fn
		}
	}
}

// NewSubmitter builds a Submitter around uploader.
func NewSubmitter(uploader Uploader, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		uploader:   uploader,
		batchSize:  defaultBatchSize,
		batchDelay: defaultBatchDelay,
		sleep:      sleepContext,
		logger:     logging.NewNop(),
		newRunID:   func() string { return time.Now().UTC().Format("20060102T150405.000") },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = logging.NewComponentLogger(s.logger, "batch-submitter")
	return s
}

// Submit uploads every item in session that has not yet succeeded. The run is
// refused before any status change when the queue is empty or creds are
// incomplete. Individual failures are recorded on their items and never stop
// the run; a cancelled ctx stops pacing, and groups not yet started stay pending.
func (s *Submitter) Submit(ctx context.Context, session *Session, creds credentials.Credentials) (Result, error) {
	if session == nil {
		return Result{}, ErrEmptyQueue
	}
	if session.Snapshot().Len() == 0 {
		return Result{}, ErrEmptyQueue
	}
	if !creds.Complete() {
		return Result{}, ErrMissingCredentials
	}
	working, err := session.beginRun()
	if err != nil {
		return Result{}, err
	}

	started := time.Now()
	result := Result{RunID: s.newRunID(), Failed: make(map[string]string)}
	groups := chunk(working, s.batchSize)
	s.logger.Info("upload run started",
		logging.String("run_id", result.RunID),
		logging.Int("items", len(working)),
		logging.Int("batches", len(groups)),
		logging.Duration("batch_delay", s.batchDelay),
	)

	var runErr error
	for i, group := range groups {
		if i > 0 && s.batchDelay > 0 {
			if err := s.sleep(ctx, s.batchDelay); err != nil {
				runErr = fmt.Errorf("upload run interrupted before batch %d: %w", i+1, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("upload run interrupted before batch %d: %w", i+1, err)
			break
		}
		ids := make([]string, 0, len(group))
		for _, item := range group {
			ids = append(ids, item.ID)
		}
		result.Batches = append(result.Batches, ids)
		s.runGroup(ctx, session, creds, i+1, group)
	}

	final := session.Snapshot()
	for _, item := range working {
		current, ok := final.Find(item.ID)
		if !ok {
			continue
		}
		switch current.Status {
		case StatusSucceeded:
			result.Succeeded = append(result.Succeeded, current.ID)
		case StatusFailed:
			result.Failed[current.ID] = current.Error
		}
	}
	result.Complete = final.AllSucceeded()
	result.Duration = time.Since(started)

	s.logger.Info("upload run finished",
		logging.String("run_id", result.RunID),
		logging.Int("succeeded", len(result.Succeeded)),
		logging.Int("failed", len(result.Failed)),
		logging.Bool("complete", result.Complete),
		logging.Duration("duration", result.Duration),
	)
	return result, runErr
}

func (s *Submitter) runGroup(ctx context.Context, session *Session, creds credentials.Credentials, batch int, group []Item) {
	batchCtx := services.WithBatch(ctx, batch)
	var wg sync.WaitGroup
	for _, queued := range group {
		item, ok := session.markSubmitting(queued.ID)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(item Item) {
			defer wg.Done()
			s.submitOne(services.WithItemID(batchCtx, item.ID), session, creds, batch, item)
		}(item)
	}
	wg.Wait()
}

func (s *Submitter) submitOne(ctx context.Context, session *Session, creds credentials.Credentials, batch int, item Item) {
	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()
	err := s.upload(ctx, creds, item)
	session.settle(item.ID, err)

	outcome := Outcome{
		ItemID:   item.ID,
		FileName: item.File.Name,
		Title:    item.Title,
		Batch:    batch,
		Status:   StatusSucceeded,
		Duration: time.Since(started),
	}
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		logging.WarnWithContext(logger, "upload failed", "upload_failed",
			logging.String("file", item.File.Name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "item left failed; other uploads continue"),
			logging.String(logging.FieldErrorHint, "run the upload again to retry failed items"),
		)
	} else {
		logger.Info("upload succeeded",
			logging.String("file", item.File.Name),
			logging.String("title", item.Title),
			logging.Duration("duration", outcome.Duration),
		)
	}
	if s.onOutcome != nil {
		s.onOutcome(ctx, outcome)
	}
}

// upload calls the uploader and converts a panic into an error.
func (s *Submitter) upload(ctx context.Context, creds credentials.Credentials, item Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("upload panicked: %v", r)
		}
	}()
	if s.uploader == nil {
		return errors.New("no uploader configured")
	}
	if s.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.itemTimeout)
		defer cancel()
	}
	return s.uploader.Upload(ctx, creds, item)
}

func chunk(items []Item, size int) [][]Item {
	if size <= 0 {
		size = defaultBatchSize
	}
	var groups [][]Item
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Finish ends a run: it waits grace so the final statuses stay visible,
// closes the session, and then calls reload. Reload runs even when the wait
// is interrupted.
func Finish(ctx context.Context, session *Session, result Result, grace time.Duration, reload func(context.Context, Result) error) error {
	var errs []error
	if grace > 0 {
		if err := sleepContext(ctx, grace); err != nil {
			errs = append(errs, err)
		}
	}
	if session != nil {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if reload != nil {
		if err := reload(context.WithoutCancel(ctx), result); err != nil {
			errs = append(errs, fmt.Errorf("reload: %w", err))
		}
	}
	return errors.Join(errs...)
}
