package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gallery/internal/backend"
	"gallery/internal/config"
	"gallery/internal/credentials"
	"gallery/internal/exif"
	"gallery/internal/logging"
	"gallery/internal/notifications"
	"gallery/internal/preview"
	"gallery/internal/store"
	"gallery/internal/upload"
)

type uploadOptions struct {
	username      string
	passwordStdin bool
	remember      bool
	describe      bool
	dryRun        bool
	noWait        bool
	retries       int
	title         string
	description   string
	batchSize     int
	batchDelay    time.Duration
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload <file|dir>...",
		Short: "Upload images in paced batches",
		Long: "Queue the given images (directories are expanded one level), read their\n" +
			"EXIF metadata and upload them in small groups with a pause between groups.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, ctx, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.username, "username", "u", "", "Upload username (defaults to remembered credentials)")
	flags.BoolVar(&opts.passwordStdin, "password-stdin", false, "Read the password from stdin (GALLERY_PASSWORD is also honoured)")
	flags.BoolVar(&opts.remember, "remember", false, "Remember these credentials for later runs")
	flags.BoolVar(&opts.describe, "describe", false, "Generate descriptions for images that have none")
	flags.StringVar(&opts.title, "title", "", "Title for the image (only with a single image)")
	flags.StringVar(&opts.description, "description", "", "Description applied to every queued image")
	flags.IntVar(&opts.batchSize, "batch-size", 0, "Uploads per group (overrides upload.batch_size)")
	flags.DurationVar(&opts.batchDelay, "batch-delay", -1, "Pause between groups (overrides upload.batch_delay_ms)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Show the queue without uploading")
	flags.BoolVar(&opts.noWait, "no-wait", false, "Skip the completion grace period")
	flags.IntVar(&opts.retries, "retries", 0, "Re-run failed uploads this many times")
	return cmd
}

func runUpload(cmd *cobra.Command, ctx *commandContext, opts uploadOptions, args []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger(cmd)
	if err != nil {
		return err
	}
	client, err := ctx.client(logger)
	if err != nil {
		return err
	}
	paths, err := expandInputs(args)
	if err != nil {
		return err
	}

	return ctx.withStore(func(st *store.Store) error {
		runCtx := cmd.Context()
		out := cmd.OutOrStdout()

		creds, fromFlags, err := resolveCredentials(runCtx, cmd, credentials.NewStore(st), opts)
		if err != nil {
			return err
		}

		extractor := newExtractor(cfg, logger)
		defer extractor.Close()
		session := upload.NewSession(extractor,
			preview.NewGenerator(cfg.Paths.PreviewDir, cfg.Upload.PreviewWidth),
			upload.WithSessionLogger(logger),
		)
		defer session.Close()

		ids, err := session.Intake(runCtx, paths)
		if err != nil {
			return err
		}
		if skipped := len(paths) - len(ids); skipped > 0 {
			fmt.Fprintf(out, "Queued %d images (%d files skipped)\n", len(ids), skipped)
		} else {
			fmt.Fprintf(out, "Queued %d images\n", len(ids))
		}
		session.Wait()

		if opts.title != "" {
			if len(ids) != 1 {
				return fmt.Errorf("--title needs exactly one image, %d queued", len(ids))
			}
			session.Update(ids[0], upload.Patch{Title: upload.Text(opts.title)})
		}
		if opts.description != "" {
			for _, id := range ids {
				session.Update(id, upload.Patch{Description: upload.Text(opts.description)})
			}
		}
		if opts.describe {
			filled := upload.FillDescriptions(runCtx, session, backendDescriber{client: client}, logger)
			fmt.Fprintf(out, "Generated descriptions for %d images\n", filled)
		}

		if opts.dryRun {
			fmt.Fprintln(out, renderQueue(session.Snapshot(), newPalette(out)))
			return nil
		}

		if fromFlags && (opts.remember || cfg.Upload.Remember) && creds.Complete() {
			if err := credentials.NewStore(st).Save(runCtx, creds, true); err != nil {
				logger.Warn("remember credentials", logging.Error(err))
			}
		}

		pacing := uploadPacing{size: cfg.Upload.BatchSize, delay: cfg.BatchDelay()}
		if opts.batchSize > 0 {
			pacing.size = opts.batchSize
		}
		if opts.batchDelay >= 0 {
			pacing.delay = opts.batchDelay
		}

		result, runErr := submitWithRetries(runCtx, cfg, pacing, client, st, session, creds, opts.retries, out, logger)
		if errors.Is(runErr, upload.ErrEmptyQueue) {
			return errors.New("no images to upload")
		}
		if errors.Is(runErr, upload.ErrMissingCredentials) {
			return errors.New("upload credentials required: pass --username with --password-stdin or run `gallery login`")
		}

		grace := cfg.CompletionGrace()
		if opts.noWait {
			grace = 0
		}
		reload := func(ctx context.Context, res upload.Result) error {
			if len(res.Succeeded) == 0 {
				return nil
			}
			page, err := client.Gallery(ctx, 1, "")
			if err != nil {
				return err
			}
			if len(page.Items) > 0 {
				fmt.Fprintf(out, "Gallery refreshed; newest image: %s\n", valueOrDash(page.Items[0].Title()))
			}
			return nil
		}
		if err := upload.Finish(runCtx, session, result, grace, reload); err != nil {
			logger.Warn("finish upload run", logging.Error(err))
		}

		notifier := notifications.NewService(cfg)
		if err := notifier.Publish(context.WithoutCancel(runCtx), notifications.EventUploadCompleted, notifications.Payload{
			"succeeded": len(result.Succeeded),
			"failed":    len(result.Failed),
			"duration":  result.Duration,
		}); err != nil {
			logger.Warn("upload notification failed", logging.Error(err))
		}

		total := len(result.Succeeded) + len(result.Failed)
		fmt.Fprintf(out, "Uploaded %d of %d images in %s\n", len(result.Succeeded), total, result.Duration.Round(time.Millisecond))
		if runErr != nil {
			return runErr
		}
		if !result.Complete {
			return fmt.Errorf("%d uploads failed", len(result.Failed))
		}
		return nil
	})
}

type uploadPacing struct {
	size  int
	delay time.Duration
}

// submitWithRetries runs the submitter once plus up to retries re-runs while
// items keep failing. Re-runs only touch items that have not succeeded.
func submitWithRetries(ctx context.Context, cfg *config.Config, pacing uploadPacing, client *backend.Client, st *store.Store, session *upload.Session, creds credentials.Credentials, retries int, out io.Writer, logger *slog.Logger) (upload.Result, error) {
	runID := uuid.NewString()
	hook := newOutcomePrinter(out, st, runID, logger)
	submitter := upload.NewSubmitter(ingestUploader{client: client},
		upload.WithBatchSize(pacing.size),
		upload.WithBatchDelay(pacing.delay),
		upload.WithItemTimeout(cfg.UploadTimeout()),
		upload.WithLogger(logger),
		upload.WithRunID(func() string { return runID }),
		upload.WithOutcomeHook(hook),
	)

	var merged upload.Result
	for attempt := 0; ; attempt++ {
		result, err := submitter.Submit(ctx, session, creds)
		if attempt == 0 {
			merged = result
		} else {
			merged.Batches = append(merged.Batches, result.Batches...)
			merged.Succeeded = append(merged.Succeeded, result.Succeeded...)
			merged.Failed = result.Failed
			merged.Complete = result.Complete
			merged.Duration += result.Duration
		}
		if err != nil || result.Complete || attempt >= retries {
			return merged, err
		}
		fmt.Fprintf(out, "Retrying %d failed uploads\n", len(result.Failed))
		if delay := pacing.delay; delay > 0 {
			select {
			case <-ctx.Done():
				return merged, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
}

// newOutcomePrinter reports each settled item and records it in the history table.
func newOutcomePrinter(out io.Writer, st *store.Store, runID string, logger *slog.Logger) func(context.Context, upload.Outcome) {
	p := newPalette(out)
	var mu sync.Mutex
	return func(ctx context.Context, o upload.Outcome) {
		rec := store.UploadRecord{
			RunID:        runID,
			ItemID:       o.ItemID,
			FileName:     o.FileName,
			Title:        o.Title,
			Batch:        o.Batch,
			Status:       string(o.Status),
			ErrorMessage: o.Error,
			Duration:     o.Duration,
		}
		if err := st.RecordUpload(context.WithoutCancel(ctx), rec); err != nil {
			logger.Warn("record upload history", logging.Error(err))
		}

		mu.Lock()
		defer mu.Unlock()
		line := fmt.Sprintf("[batch %d] %s %s", o.Batch, p.status(o.Status), o.FileName)
		if o.Error != "" {
			line += ": " + o.Error
		}
		fmt.Fprintln(out, line)
	}
}

func renderQueue(state upload.State, p palette) string {
	items := state.Items()
	rows := make([][]string, 0, len(items))
	for i, item := range items {
		title := item.Title
		if title == "" {
			title = upload.DefaultTitle(item.File.Name)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			item.File.Name,
			truncate(title, 40),
			valueOrDash(item.TakenTime),
			truncate(valueOrDash(item.Camera), 40),
			truncate(valueOrDash(item.Description), 40),
			p.status(item.Status),
		})
	}
	return renderTable(
		[]string{"#", "File", "Title", "Taken", "Camera", "Description", "Status"},
		rows,
		[]columnAlignment{alignRight},
	)
}

// expandInputs resolves arguments to files. Directories contribute their
// direct entries in name order; nested directories are not descended.
func expandInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		path, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("inspect %q: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read directory %q: %w", arg, err)
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			paths = append(paths, filepath.Join(path, name))
		}
	}
	return paths, nil
}

// resolveCredentials prefers flag/env credentials and falls back to the
// remembered ones. The boolean reports whether the credentials came from flags.
func resolveCredentials(ctx context.Context, cmd *cobra.Command, stored *credentials.Store, opts uploadOptions) (credentials.Credentials, bool, error) {
	if opts.username != "" {
		password := os.Getenv("GALLERY_PASSWORD")
		if opts.passwordStdin {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return credentials.Credentials{}, false, err
			}
			password = secret
		}
		return credentials.Credentials{Username: opts.username, Password: password}, true, nil
	}
	creds, _, err := stored.Load(ctx)
	return creds, false, err
}

func newExtractor(cfg *config.Config, logger *slog.Logger) *exif.Extractor {
	opts := []exif.Option{exif.WithLogger(logger)}
	if cfg.Exif.UseExiftool {
		opts = append(opts, exif.WithExiftool())
	}
	return exif.New(opts...)
}

// ingestUploader sends queue items to the ingest endpoint.
type ingestUploader struct {
	client *backend.Client
}

func (u ingestUploader) Upload(ctx context.Context, creds credentials.Credentials, item upload.Item) error {
	_, err := u.client.Ingest(ctx, creds, backend.IngestRequest{
		FilePath:    item.File.Path,
		FileName:    item.File.Name,
		ContentType: item.File.ContentType,
		Title:       item.Title,
		Description: item.Description,
		TakenTime:   item.TakenTime,
		Camera:      item.Camera,
	})
	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		return errors.New(httpErr.Message)
	}
	return err
}

type backendDescriber struct {
	client *backend.Client
}

func (d backendDescriber) Describe(ctx context.Context, path string) (upload.Description, error) {
	desc, err := d.client.GenerateDescription(ctx, path)
	if err != nil {
		return upload.Description{}, err
	}
	return upload.Description{Title: desc.Title, Description: desc.Description}, nil
}
