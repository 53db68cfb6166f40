package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"modelforge/internal/config"
	"modelforge/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, captured *[]capturedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		*captured = append(*captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventJobFailed, notifications.Payload{"error": "boom"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).Publish(context.Background(), notifications.EventNotifyTest, nil); err != nil {
		t.Fatalf("nil config should be a noop, got %v", err)
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
			name:  "job completed",
			event: notifications.EventJobCompleted,
			payload: notifications.Payload{
				"projectID":  "p1",
				"prompt":     "a  small\ncube",
				"geometries": 2,
				"printable":  true,
			},
			expectTitle:   "modelforge - Job Complete",
			expectMessage: "Model ready for p1: a small cube\nGeometries: 2",
			expectTags:    "modelforge,job,completed",
		},
		{
			name:  "job completed with printability issues",
			event: notifications.EventJobCompleted,
			payload: notifications.Payload{
				"projectID": "p1",
				"prompt":    "bracket",
				"printable": false,
			},
			expectTitle:   "modelforge - Job Complete",
			expectMessage: "Model ready for p1: bracket\nPrintability issues found",
			expectTags:    "modelforge,job,completed",
		},
		{
			name:  "job failed",
			event: notifications.EventJobFailed,
			payload: notifications.Payload{
				"projectID": "p1",
				"queueID":   "q-9",
				"error":     "EvaluationError: boom",
			},
			expectTitle:    "modelforge - Job Failed",
			expectMessage:  "Job q-9 in p1 failed: EvaluationError: boom",
			expectTags:     "modelforge,job,error",
			expectPriority: "high",
		},
		{
			name:  "queue drained with failures",
			event: notifications.EventQueueDrained,
			payload: notifications.Payload{
				"completed": 3,
				"failed":    1,
				"duration":  90 * time.Second,
			},
			expectTitle:   "modelforge - Queue Drained (with errors)",
			expectMessage: "Drain complete: 3 succeeded, 1 failed in 1m30s",
			expectTags:    "modelforge,queue,drained",
		},
		{
			name:           "test",
			event:          notifications.EventNotifyTest,
			expectTitle:    "modelforge - Test",
			expectMessage:  "Notification system test",
			expectTags:     "modelforge,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured []capturedRequest
			server := newCaptureServer(t, &captured)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeoutSeconds = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if len(captured) != 1 {
				t.Fatalf("expected one request, got %d", len(captured))
			}
			got := captured[0]
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.NotifyCompleted = false

	svc := notifications.NewService(&cfg)
	suppressed := []struct {
		event   notifications.Event
		payload notifications.Payload
	}{
		{notifications.EventJobCompleted, notifications.Payload{"prompt": "cube"}},
		{notifications.EventQueueDrained, notifications.Payload{"completed": 0, "failed": 0}},
		{notifications.Event("unknown"), nil},
	}
	for _, tc := range suppressed {
		if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", tc.event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventNotifyTest, nil)
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403: topic reserved") {
		t.Fatalf("expected status error, got %v", err)
	}
}
