package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gallery/internal/config"
)

const userAgent = "gallery/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventUploadCompleted Event = "upload_completed"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		uploadEvents: cfg.Notifications.Upload,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	uploadEvents bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventUploadCompleted:
		if !n.uploadEvents {
			return message{}, false
		}
		return uploadCompleted(payload), true
	case EventError:
		label := strings.TrimSpace(payload.string("context"))
		text := "❌ Error"
		if label != "" {
			text += " with " + label
		}
		if detail := strings.TrimSpace(payload.string("error")); detail != "" {
			text += ": " + detail
		}
		return message{
			title:    "Gallery - Error",
			body:     text,
			tags:     []string{"gallery", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Gallery - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"gallery", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func uploadCompleted(payload Payload) message {
	succeeded := payload.int("succeeded")
	failed := payload.int("failed")
	duration := payload.duration("duration").Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	if failed == 0 {
		return message{
			title: "Gallery - Upload Complete",
			body:  fmt.Sprintf("📷 Uploaded %d images in %s", succeeded, duration),
			tags:  []string{"gallery", "upload", "completed"},
		}
	}
	return message{
		title:    "Gallery - Upload Complete (with errors)",
		body:     fmt.Sprintf("📷 Upload finished: %d succeeded, %d failed in %s", succeeded, failed, duration),
		tags:     []string{"gallery", "upload", "failed"},
		priority: "high",
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) string(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func (p Payload) int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) duration(key string) time.Duration {
	if v, ok := p[key].(time.Duration); ok {
		return v
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
