package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gallery/internal/config"
	"gallery/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventUploadCompleted, notifications.Payload{"succeeded": 3}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "upload completed",
			event:         notifications.EventUploadCompleted,
			payload:       notifications.Payload{"succeeded": 7, "failed": 0, "duration": 12 * time.Second},
			expectTitle:   "Gallery - Upload Complete",
			expectMessage: "📷 Uploaded 7 images in 12s",
			expectTags:    "gallery,upload,completed",
		},
		{
			name:           "upload with failures",
			event:          notifications.EventUploadCompleted,
			payload:        notifications.Payload{"succeeded": 5, "failed": 2, "duration": 1500 * time.Millisecond},
			expectTitle:    "Gallery - Upload Complete (with errors)",
			expectMessage:  "📷 Upload finished: 5 succeeded, 2 failed in 2s",
			expectTags:     "gallery,upload,failed",
			expectPriority: "high",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "upload", "error": errors.New("backend unreachable")},
			expectTitle:    "Gallery - Error",
			expectMessage:  "❌ Error with upload: backend unreachable",
			expectTags:     "gallery,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Gallery - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "gallery,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			type capture struct {
				title, tags, priority, body string
			}
			captured := make(chan capture, 1)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				captured <- capture{
					title:    r.Header.Get("Title"),
					tags:     r.Header.Get("Tags"),
					priority: r.Header.Get("Priority"),
					body:     string(body),
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.Upload = true
			if err := notifications.NewService(&cfg).Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish returned error: %v", err)
			}

			got := <-captured
			if got.title != tc.expectTitle {
				t.Errorf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.body != tc.expectMessage {
				t.Errorf("message = %q, want %q", got.body, tc.expectMessage)
			}
			if got.tags != tc.expectTags {
				t.Errorf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Errorf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
		})
	}
}

func TestUploadEventsCanBeDisabled(t *testing.T) {
	called := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Upload = false
	if err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventUploadCompleted, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case <-called:
		t.Fatal("upload notification sent while disabled")
	default:
	}
}

func TestNtfyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
