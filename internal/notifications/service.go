package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"modelforge/internal/config"
	"modelforge/internal/textutil"
)

const userAgent = "modelforge/0.1.0"

// Event names a notification type.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventQueueDrained Event = "queue_drained"
	EventNotifyTest   Event = "test"
)

const promptPreviewLimit = 80

// Payload carries event fields. Known keys: projectID, queueID, prompt,
// geometries, printable, error, completed, failed, duration.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.NotifyCompleted,
		failed:    cfg.Notifications.NotifyFailed,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	project := payload.text("projectID")
	switch event {
	case EventJobCompleted:
		if !n.completed {
			return message{}, false
		}
		body := fmt.Sprintf("Model ready for %s: %s", project, textutil.Preview(payload.text("prompt"), promptPreviewLimit))
		if count := payload.text("geometries"); count != "" {
			body += fmt.Sprintf("\nGeometries: %s", count)
		}
		if printable, ok := payload["printable"].(bool); ok && !printable {
			body += "\nPrintability issues found"
		}
		return message{
			title: "modelforge - Job Complete",
			body:  body,
			tags:  []string{"modelforge", "job", "completed"},
		}, true
	case EventJobFailed:
		if !n.failed {
			return message{}, false
		}
		reason := payload.text("error")
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "modelforge - Job Failed",
			body:     fmt.Sprintf("Job %s in %s failed: %s", payload.text("queueID"), project, reason),
			tags:     []string{"modelforge", "job", "error"},
			priority: "high",
		}, true
	case EventQueueDrained:
		completed, _ := payload["completed"].(int)
		failed, _ := payload["failed"].(int)
		duration, _ := payload["duration"].(time.Duration)
		duration = max(duration.Round(time.Second), 0)
		if completed == 0 && failed == 0 {
			return message{}, false
		}
		title := "modelforge - Queue Drained"
		body := fmt.Sprintf("Drain complete: %d jobs processed in %s", completed, duration)
		if failed > 0 {
			title = "modelforge - Queue Drained (with errors)"
			body = fmt.Sprintf("Drain complete: %d succeeded, %d failed in %s", completed, failed, duration)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"modelforge", "queue", "drained"},
		}, true
	case EventNotifyTest:
		return message{
			title:    "modelforge - Test",
			body:     "Notification system test",
			tags:     []string{"modelforge", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) text(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(value)
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
