package commands

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/session"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/ui"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	prevOut, prevNoColor := ui.Output, color.NoColor
	ui.Output, color.NoColor = buf, true
	t.Cleanup(func() {
		ui.Output, color.NoColor = prevOut, prevNoColor
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DENTAL_DATA_DIR", dir)
	t.Setenv("DENTAL_STORAGE_PATH", "")
	t.Setenv("DENTAL_RECORDER", "none")
	t.Setenv("DENTAL_PLAYER", "silent")
	return dir
}

func TestSessionRotateThenShow(t *testing.T) {
	dir := isolateEnv(t)
	storage := filepath.Join(dir, "custom.json")

	out, err := runCommand(t, "session", "rotate", "--storage", storage)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	token, ok, err := session.NewFileStore(storage).Get(session.StorageKey)
	if err != nil || !ok || token == "" {
		t.Fatalf("expected stored token, got %q ok=%v err=%v", token, ok, err)
	}
	if !strings.Contains(out, "new session "+token) {
		t.Fatalf("rotate output missing token:\n%s", out)
	}

	out, err = runCommand(t, "session", "show", "--storage", storage)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Session", token, storage} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestHealthCommand(t *testing.T) {
	isolateEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	out, err := runCommand(t, "health", "--api-url", srv.URL+"/api")
	if err != nil {
		t.Fatalf("health: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Assistant reachable") || !strings.Contains(out, "healthy") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestHealthCommandUnreachable(t *testing.T) {
	isolateEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	out, err := runCommand(t, "health", "--api-url", srv.URL)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(out, "Assistant unreachable") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestUsageTemplateHeaders(t *testing.T) {
	tmpl := usageTemplate()
	for _, want := range []string{"USAGE", "COMMANDS", "OPTIONS", "GLOBAL OPTIONS"} {
		if !strings.Contains(tmpl, want) {
			t.Fatalf("template missing %q", want)
		}
	}
}

func TestDisplayAddr(t *testing.T) {
	if got := displayAddr(":8080"); got != "localhost:8080" {
		t.Fatalf("unexpected %q", got)
	}
	if got := displayAddr("127.0.0.1:9000"); got != "127.0.0.1:9000" {
		t.Fatalf("unexpected %q", got)
	}
}
