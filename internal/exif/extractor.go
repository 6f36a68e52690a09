package exif

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/barasher/go-exiftool"
	goexif "github.com/rwcarlsen/goexif/exif"

	"gallery/internal/logging"
)

// ErrNoMetadata reports a readable file that carried none of the wanted tags.
var ErrNoMetadata = errors.New("no exif metadata")

// metadataTool is the subset of *exiftool.Exiftool the extractor uses.
type metadataTool interface {
	ExtractMetadata(files ...string) []exiftool.FileMetadata
	Close() error
}

// Extractor reads Metadata from image files. It is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger

	mu   sync.Mutex
	tool metadataTool
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithLogger sets the extractor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithExiftool starts an exiftool process used when in-process decoding finds nothing.
// A missing binary is logged and the fallback stays disabled.
func WithExiftool() Option {
	return func(e *Extractor) {
		tool, err := exiftool.NewExiftool()
		if err != nil {
			logging.WarnWithContext(e.logger, "exiftool unavailable", "exiftool_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "only JPEG and TIFF metadata will be read"),
				logging.String(logging.FieldErrorHint, "install exiftool or set exif.use_exiftool = false"),
			)
			return
		}
		e.tool = tool
	}
}

func withTool(tool metadataTool) Option {
	return func(e *Extractor) {
		e.tool = tool
	}
}

// New constructs an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: logging.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.logger = logging.NewComponentLogger(e.logger, "exif")
	return e
}

// Extract reads capture time and camera details from path. On any failure the
// returned Metadata is empty (or partial) and err describes why.
func (e *Extractor) Extract(ctx context.Context, path string) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	raw, decodeErr := decodeFile(path)
	meta := raw.metadata()
	if decodeErr == nil && !meta.Empty() {
		return meta, nil
	}

	if tool := e.currentTool(); tool != nil {
		if err := ctx.Err(); err != nil {
			return Metadata{}, err
		}
		e.mu.Lock()
		fallback, toolErr := readWithTool(tool, path)
		e.mu.Unlock()
		if toolErr == nil {
			if fm := fallback.metadata(); !fm.Empty() {
				e.logger.Debug("metadata read via exiftool", logging.String("file", filepath.Base(path)))
				return fm, nil
			}
			toolErr = ErrNoMetadata
		}
		if decodeErr == nil {
			decodeErr = toolErr
		} else {
			decodeErr = errors.Join(decodeErr, toolErr)
		}
	}

	if decodeErr == nil {
		decodeErr = ErrNoMetadata
	}
	return meta, fmt.Errorf("extract metadata from %s: %w", filepath.Base(path), decodeErr)
}

// Close stops the exiftool process if one was started.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tool == nil {
		return nil
	}
	err := e.tool.Close()
	e.tool = nil
	return err
}

func (e *Extractor) currentTool() metadataTool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool
}

func decodeFile(path string) (fields, error) {
	file, err := os.Open(path)
	if err != nil {
		return fields{}, err
	}
	defer file.Close()

	x, err := goexif.Decode(file)
	if err != nil {
		return fields{}, err
	}

	var f fields
	f.DateTime = tagString(x, goexif.DateTimeOriginal)
	if f.DateTime == "" {
		f.DateTime = tagString(x, goexif.DateTime)
	}
	f.Make = tagString(x, goexif.Make)
	f.Model = tagString(x, goexif.Model)
	f.Lens = tagString(x, goexif.LensModel)
	if tag, err := x.Get(goexif.FNumber); err == nil {
		if r, err := tag.Rat(0); err == nil {
			f.FNumber, _ = r.Float64()
		}
	}
	if tag, err := x.Get(goexif.ExposureTime); err == nil {
		if r, err := tag.Rat(0); err == nil {
			f.Exposure = r
		}
	}
	if tag, err := x.Get(goexif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil {
			f.ISO = iso
		}
	}
	if tag, err := x.Get(goexif.FocalLength); err == nil {
		if r, err := tag.Rat(0); err == nil {
			f.Focal, _ = r.Float64()
		}
	}
	return f, nil
}

func tagString(x *goexif.Exif, name goexif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	value, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return cleanString(value)
}

func readWithTool(tool metadataTool, path string) (fields, error) {
	results := tool.ExtractMetadata(path)
	if len(results) == 0 {
		return fields{}, ErrNoMetadata
	}
	fm := results[0]
	if fm.Err != nil {
		return fields{}, fm.Err
	}

	get := func(keys ...string) string {
		for _, key := range keys {
			if value, err := fm.GetString(key); err == nil {
				if value = cleanString(value); value != "" {
					return value
				}
			}
		}
		return ""
	}

	f := fields{
		DateTime: get("DateTimeOriginal", "CreateDate", "ModifyDate"),
		Make:     get("Make"),
		Model:    get("Model"),
		Lens:     get("LensModel", "Lens"),
		FNumber:  parseLeadingFloat(get("FNumber", "Aperture")),
		Exposure: parseExposure(get("ExposureTime", "ShutterSpeed")),
		Focal:    parseLeadingFloat(get("FocalLength")),
	}
	if iso := parseLeadingFloat(get("ISO")); iso > 0 {
		f.ISO = int(iso)
	}
	return f, nil
}
