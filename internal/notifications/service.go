package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tecscanner/internal/config"
)

const userAgent = "tecscanner/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventSessionFailed Event = "session_failed"
	EventLogUnwritable Event = "log_unwritable"
	EventLidarLost     Event = "lidar_lost"
	EventTest          Event = "test"
)

// Payload carries event details; keys depend on the event.
type Payload map[string]any

// Service publishes alerts.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Enabled() bool
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

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) Publish(ctx context.Context, event Event, p Payload) error {
	data, ok := render(event, p)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func render(event Event, p Payload) (payload, bool) {
	switch event {
	case EventSessionFailed:
		message := "Recording ended early: " + humanResult(p.text("result"))
		if session := p.text("session"); session != "" {
			message = fmt.Sprintf("%s\nSession: %s", message, session)
		}
		return payload{
			title:    "tecscanner - Recording Failed",
			message:  message,
			tags:     []string{"tecscanner", "recording", "failed"},
			priority: "high",
		}, true
	case EventLogUnwritable:
		message := "Recordings log on the drive could not be written"
		if mount := p.text("mount"); mount != "" {
			message = fmt.Sprintf("%s\nDrive: %s", message, mount)
		}
		return payload{
			title:    "tecscanner - Log Unwritable",
			message:  message,
			tags:     []string{"tecscanner", "log", "alert"},
			priority: "high",
		}, true
	case EventLidarLost:
		return payload{
			title:   "tecscanner - Sensor Lost",
			message: "LiDAR sensor stopped responding",
			tags:    []string{"tecscanner", "lidar", "warning"},
		}, true
	case EventTest:
		return payload{
			title:    "tecscanner - Test",
			message:  "Notification system test",
			tags:     []string{"tecscanner", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func humanResult(result string) string {
	result = strings.TrimSpace(result)
	if result == "" {
		return "unknown"
	}
	return strings.ReplaceAll(result, "_", " ")
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) Enabled() bool { return false }
