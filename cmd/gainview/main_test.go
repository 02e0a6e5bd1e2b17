package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/gainview/internal/api"
	"github.com/verte-zerg/gainview/internal/auth"
	"github.com/verte-zerg/gainview/internal/config"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv(config.BaseURLEnv, "")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(api.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"details":"Invalid credentials"}`)
			return
		}
		fmt.Fprintf(w, `{"token":"t1","user":{"_id":"u1","email":%q,"username":"Ann"}}`, body["email"])
	})
	mux.HandleFunc(api.PathUpload, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if _, header, err := r.FormFile("file"); err != nil || header.Filename == "broken.csv" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"message":"Malformed transcript"}`)
			return
		}
		fmt.Fprint(w, `{"message":"ok"}`)
	})
	mux.HandleFunc(api.PathGain, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"talk.csv":{"text":"hello world","data":[{"position":0,"gain":0.1},{"position":1,"gain":0.2}]}}`)
	})
	mux.HandleFunc(api.PathTitles, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "start,title\n00:00:05,Opening, remarks\n")
	})
	mux.HandleFunc(api.PathProgress, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"progress":0.734}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	var cfg config.FileConfig
	if _, err := toml.Decode(defaultConfigTemplate(), &cfg); err != nil {
		t.Fatalf("template does not decode: %v", err)
	}
	if cfg.Server.BaseURL != nil || cfg.Dashboard.PlotHeight != nil {
		t.Fatalf("expected every value commented out")
	}
}

func TestResolveSettingsPrecedence(t *testing.T) {
	isolate(t)
	fileURL := "http://file.example/api"
	fileTimeout := 5
	fileHeight := 14
	showTopics := true
	level := "debug"
	cfg := config.FileConfig{
		Server:    config.ServerConfig{BaseURL: &fileURL, Timeout: &fileTimeout},
		Dashboard: config.DashboardConfig{PlotHeight: &fileHeight, ShowTopics: &showTopics},
		Log:       config.LogConfig{Level: &level},
	}

	root := newRootCmd()
	if err := root.ParseFlags([]string{"--timeout", "9"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	got, err := resolveSettings(root, cfg)
	if err != nil {
		t.Fatalf("resolveSettings: %v", err)
	}
	if got.BaseURL != fileURL {
		t.Fatalf("expected file base URL, got %q", got.BaseURL)
	}
	if got.Timeout != 9*time.Second {
		t.Fatalf("expected flag timeout, got %s", got.Timeout)
	}
	if got.PlotHeight != 14 || !got.ShowTopics || got.ShowGraph {
		t.Fatalf("unexpected dashboard settings %+v", got)
	}
	if got.LogFile != config.DefaultLogPath() {
		t.Fatalf("unexpected log file %q", got.LogFile)
	}

	t.Setenv(config.BaseURLEnv, "http://env.example/api")
	got, err = resolveSettings(root, cfg)
	if err != nil {
		t.Fatalf("resolveSettings: %v", err)
	}
	if got.BaseURL != "http://env.example/api" {
		t.Fatalf("expected env to override file, got %q", got.BaseURL)
	}

	if err := root.ParseFlags([]string{"--base-url", "http://flag.example"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	got, err = resolveSettings(root, cfg)
	if err != nil {
		t.Fatalf("resolveSettings: %v", err)
	}
	if got.BaseURL != "http://flag.example" {
		t.Fatalf("expected flag to win, got %q", got.BaseURL)
	}
}

func TestResolveSettingsRejectsBadLevel(t *testing.T) {
	isolate(t)
	level := "loud"
	root := newRootCmd()
	if _, err := resolveSettings(root, config.FileConfig{Log: config.LogConfig{Level: &level}}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestProtectedCommandsRequireLogin(t *testing.T) {
	isolate(t)
	srv := newBackend(t)
	for _, args := range [][]string{{"whoami"}, {"topics"}, {"progress"}, {"gain"}} {
		_, err := run(t, "", append(args, "--base-url", srv.URL)...)
		if err == nil || !strings.Contains(err.Error(), auth.ProtectedMessage) {
			t.Fatalf("%v: expected protected route error, got %v", args, err)
		}
	}
}

func TestLoginUploadAndHistory(t *testing.T) {
	isolate(t)
	srv := newBackend(t)

	if _, err := run(t, "a@b.c\nwrong\n", "login", "--base-url", srv.URL); err == nil || err.Error() != "Login failed: Invalid credentials" {
		t.Fatalf("expected login failure, got %v", err)
	}
	if _, err := run(t, "secret\n", "login", "--email", "a@b.c", "--base-url", srv.URL); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, err := run(t, "", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if strings.TrimSpace(out) != "Ann <a@b.c>" {
		t.Fatalf("unexpected whoami output %q", out)
	}

	path := filepath.Join(t.TempDir(), "talk.csv")
	if err := os.WriteFile(path, []byte("start,text\n00:00:01,hello\n"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	if _, err := run(t, "", "upload", path, "--base-url", srv.URL); err != nil {
		t.Fatalf("upload: %v", err)
	}
	out, err = run(t, "", "upload", path, "--analyze", "--base-url", srv.URL)
	if err != nil {
		t.Fatalf("upload --analyze: %v", err)
	}
	for _, want := range []string{"Analysis ready for: talk.csv", "hello world", "Opening, remarks", "Completion: 73%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	out, err = run(t, "", "history", "--output", "json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var entries []struct {
		File   string `json:"file"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(entries) != 2 || entries[0].File != "talk.csv" || entries[0].Status != "ok" {
		t.Fatalf("unexpected history %+v", entries)
	}

	if _, err := run(t, "", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := run(t, "", "whoami"); err == nil {
		t.Fatalf("expected whoami to fail after logout")
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	isolate(t)
	srv := newBackend(t)
	if _, err := run(t, "secret\n", "login", "--email", "a@b.c", "--base-url", srv.URL); err != nil {
		t.Fatalf("login: %v", err)
	}
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := run(t, "", "upload", path, "--base-url", srv.URL); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestGainPNGExport(t *testing.T) {
	isolate(t)
	srv := newBackend(t)
	if _, err := run(t, "secret\n", "login", "--email", "a@b.c", "--base-url", srv.URL); err != nil {
		t.Fatalf("login: %v", err)
	}
	png := filepath.Join(t.TempDir(), "out", "gain.png")
	out, err := run(t, "", "gain", "--png", png, "--output", "yaml", "--base-url", srv.URL)
	if err != nil {
		t.Fatalf("gain: %v", err)
	}
	if !strings.Contains(out, "file: talk.csv") {
		t.Fatalf("unexpected yaml output:\n%s", out)
	}
	info, err := os.Stat(png)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected png written: %v", err)
	}
	if _, err := run(t, "", "gain", "--file", "missing.csv", "--base-url", srv.URL); err == nil {
		t.Fatalf("expected unknown file error")
	}
}

func TestStandaloneUploadFailureMessage(t *testing.T) {
	isolate(t)
	srv := newBackend(t)
	if _, err := run(t, "secret\n", "login", "--email", "a@b.c", "--base-url", srv.URL); err != nil {
		t.Fatalf("login: %v", err)
	}
	path := filepath.Join(t.TempDir(), "broken.csv")
	if err := os.WriteFile(path, []byte("start,text\n"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	_, err := run(t, "", "upload", path, "--base-url", srv.URL)
	if err == nil || err.Error() != "Upload failed: Malformed transcript" {
		t.Fatalf("unexpected upload error %v", err)
	}

	out, err := run(t, "", "history", "--output", "json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, `"status": "failed"`) || !strings.Contains(out, "Upload failed: Malformed transcript") {
		t.Fatalf("expected failed upload recorded:\n%s", out)
	}
}
