package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voxview/internal/config"
)

const userAgent = "voxview/0.1.0"

// Service is the toast surface the load orchestrator drives: one persistent
// "loading" notification, then exactly one terminal success or error.
type Service interface {
	NotifyLoading(ctx context.Context) error
	NotifyLoadSucceeded(ctx context.Context, datasets int) error
	NotifyLoadFailed(ctx context.Context, message string) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
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

func (n *ntfyService) NotifyLoading(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "voxview - Loading",
		message: "Loading datasets...",
		tags:    []string{"voxview", "load", "started"},
	})
}

func (n *ntfyService) NotifyLoadSucceeded(ctx context.Context, datasets int) error {
	return n.send(ctx, payload{
		title:   "voxview - Loaded",
		message: fmt.Sprintf("Loaded %d dataset(s)", datasets),
		tags:    []string{"voxview", "load", "completed"},
	})
}

func (n *ntfyService) NotifyLoadFailed(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "Load failed"
	}
	return n.send(ctx, payload{
		title:    "voxview - Load Errors",
		message:  message,
		tags:     []string{"voxview", "load", "failed"},
		priority: "high",
	})
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

func (noopService) NotifyLoading(context.Context) error            { return nil }
func (noopService) NotifyLoadSucceeded(context.Context, int) error { return nil }
func (noopService) NotifyLoadFailed(context.Context, string) error { return nil }
