package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"NewsCollector/internal/config"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	type call struct {
		path, chat, text string
	}
	calls := make(chan call, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		calls <- call{path: r.URL.Path, chat: r.PostForm.Get("chat_id"), text: r.PostForm.Get("text")}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "token", ChatID: "42"}, WithAPIBase(server.URL+"/"), WithHTTPClient(server.Client()))
	if err := n.PublishDigest(context.Background(), "run finished"); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	got := <-calls
	if got.path != "/bottoken/sendMessage" || got.chat != "42" || got.text != "run finished" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	if err := NewNotifier(config.TelegramConfig{}).PublishDigest(context.Background(), "x"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "t", ChatID: "c"}, WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	err := n.PublishDigest(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API description in error, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", maxMessageRunes+10)
	out := truncate(long, maxMessageRunes)
	if utf8.RuneCountInString(out) != maxMessageRunes {
		t.Fatalf("expected %d runes, got %d", maxMessageRunes, utf8.RuneCountInString(out))
	}
	if truncate("short", 10) != "short" {
		t.Fatalf("short strings must be unchanged")
	}
}
