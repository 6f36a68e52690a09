package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gallery/internal/store"
	"gallery/internal/testsupport"
)

func TestSettingsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "upload_auth_v1"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := st.Set(ctx, "upload_auth_v1", `{"username":"a"}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Set(ctx, "upload_auth_v1", `{"username":"b"}`); err != nil {
		t.Fatalf("Set overwrite failed: %v", err)
	}
	value, ok, err := st.Get(ctx, "upload_auth_v1")
	if err != nil || !ok {
		t.Fatalf("expected stored value, got ok=%v err=%v", ok, err)
	}
	if value != `{"username":"b"}` {
		t.Fatalf("expected overwritten value, got %q", value)
	}
	if err := st.Delete(ctx, "upload_auth_v1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := st.Delete(ctx, "upload_auth_v1"); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "upload_auth_v1"); ok {
		t.Fatal("expected key to be gone")
	}
}

func TestUploadHistoryNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		rec := store.UploadRecord{
			RunID:     "run-1",
			ItemID:    name,
			FileName:  name,
			Batch:     1,
			Status:    "succeeded",
			Duration:  1500 * time.Millisecond,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if i == 2 {
			rec.Status = "failed"
			rec.ErrorMessage = "Upload failed"
		}
		if err := st.RecordUpload(ctx, rec); err != nil {
			t.Fatalf("RecordUpload failed: %v", err)
		}
	}

	records, err := st.RecentUploads(ctx, 2)
	if err != nil {
		t.Fatalf("RecentUploads failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].FileName != "c.jpg" || records[0].Status != "failed" || records[0].ErrorMessage != "Upload failed" {
		t.Fatalf("unexpected newest record: %#v", records[0])
	}
	if records[1].Duration != 1500*time.Millisecond {
		t.Fatalf("expected duration round trip, got %s", records[1].Duration)
	}
	if !records[1].CreatedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected created at: %s", records[1].CreatedAt)
	}

	removed, err := st.ClearUploads(ctx)
	if err != nil {
		t.Fatalf("ClearUploads failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := st.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	st.Close()

	reopened, err := store.Open(cfg)
	if err != nil {
		if errors.Is(err, store.ErrSchemaMismatch) {
			t.Fatalf("unexpected schema mismatch: %v", err)
		}
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if value, ok, _ := reopened.Get(context.Background(), "k"); !ok || value != "v" {
		t.Fatalf("expected persisted value, got %q ok=%v", value, ok)
	}
}
