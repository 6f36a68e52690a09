package upload

import (
	"context"
	"log/slog"

	"gallery/internal/logging"
	"gallery/internal/services"
)

// Description is a generated title and description for one image.
type Description struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Describer generates descriptions for image files.
type Describer interface {
	Describe(ctx context.Context, path string) (Description, error)
}

// FillDescriptions asks describer for every editable item that has no
// description yet. Generated text only fills empty fields. Failures are logged
// and skipped. It returns the number of items that changed.
func FillDescriptions(ctx context.Context, session *Session, describer Describer, logger *slog.Logger) int {
	if session == nil || describer == nil {
		return 0
	}
	logger = logging.NewComponentLogger(logger, "describe")
	filled := 0
	for _, item := range session.Snapshot().Items() {
		if item.Description != "" || !item.Status.Editable() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		itemCtx := services.WithItemID(ctx, item.ID)
		desc, err := describer.Describe(itemCtx, item.File.Path)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(itemCtx, logger), "description generation failed", "describe_failed",
				logging.String("file", item.File.Name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "item keeps its current title and description"),
			)
			continue
		}
		patch := Patch{}
		if desc.Description != "" {
			patch.Description = Text(desc.Description)
		}
		if item.Title == "" && desc.Title != "" {
			patch.Title = Text(desc.Title)
		}
		if patch.Title == nil && patch.Description == nil {
			continue
		}
		session.Update(item.ID, patch)
		filled++
	}
	return filled
}
