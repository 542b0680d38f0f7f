package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"voxview/internal/config"
	"voxview/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyLoading(context.Background()); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceSendsHeaders(t *testing.T) {
	type captured struct {
		title    string
		tags     string
		priority string
		body     string
	}
	var got captured

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyLoadFailed(context.Background(), "- scan.nii: truncated"); err != nil {
		t.Fatalf("NotifyLoadFailed: %v", err)
	}
	if got.title != "voxview - Load Errors" {
		t.Fatalf("title = %q", got.title)
	}
	if got.tags != "voxview,load,failed" {
		t.Fatalf("tags = %q", got.tags)
	}
	if got.priority != "high" {
		t.Fatalf("priority = %q", got.priority)
	}
	if got.body != "- scan.nii: truncated" {
		t.Fatalf("body = %q", got.body)
	}

	if err := svc.NotifyLoadSucceeded(context.Background(), 3); err != nil {
		t.Fatalf("NotifyLoadSucceeded: %v", err)
	}
	if got.body != "Loaded 3 dataset(s)" {
		t.Fatalf("body = %q", got.body)
	}
}

func TestNtfyServiceReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyLoading(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
