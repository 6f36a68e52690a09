package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gallery/internal/testsupport"
)

type ingestCall struct {
	username string
	fileName string
	title    string
	fields   map[string]string
}

// fakeGallery mimics the proxy routes the CLI talks to.
type fakeGallery struct {
	mu       sync.Mutex
	ingests  []ingestCall
	failFile map[string]string
	searches []string
}

func (f *fakeGallery) calls() []ingestCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingestCall(nil), f.ingests...)
}

func (f *fakeGallery) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ingest":
		f.ingest(w, r)
	case "/gallery":
		cursor := "page-2"
		writeTestJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"preview_url": "/p/1.jpg", "original_url": "/o/1.jpg", "score": 0, "metadata": map[string]any{"title": "Sunset", "camera": "X100V"}},
			},
			"next_cursor": cursor,
		})
	case "/search":
		var body struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.searches = append(f.searches, body.Query)
		f.mu.Unlock()
		writeTestJSON(w, http.StatusOK, []map[string]any{
			{"preview_url": "/p/2.jpg", "original_url": "/o/2.jpg", "score": 0.875, "metadata": map[string]any{"title": "Harbour"}},
		})
	case "/health":
		writeTestJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case "/generate-description":
		writeTestJSON(w, http.StatusOK, map[string]string{"title": "Quiet lake", "description": "A lake at dawn"})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGallery) ingest(w http.ResponseWriter, r *http.Request) {
	user, _, ok := r.BasicAuth()
	if !ok {
		writeTestJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication required"})
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeTestJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	_, header, err := r.FormFile("file")
	if err != nil {
		writeTestJSON(w, http.StatusBadRequest, map[string]string{"detail": "file missing"})
		return
	}
	call := ingestCall{username: user, fileName: header.Filename, title: r.FormValue("title"), fields: map[string]string{}}
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			call.fields[key] = values[0]
		}
	}
	f.mu.Lock()
	f.ingests = append(f.ingests, call)
	reason, fail := f.failFile[header.Filename]
	f.mu.Unlock()
	if fail {
		writeTestJSON(w, http.StatusInternalServerError, map[string]string{"detail": reason})
		return
	}
	writeTestJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": header.Filename})
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type cliTestEnv struct {
	configPath string
	baseDir    string
	backend    *fakeGallery
	server     *httptest.Server
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("GALLERY_PASSWORD", "")
	t.Setenv("NTFY_TOPIC", "")
	t.Setenv("REDIS_ADDR", "")

	fake := &fakeGallery{failFile: map[string]string{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
preview_dir = %q

[backend]
url = %q

[upload]
endpoint = %q
batch_size = 2
batch_delay_ms = 0
completion_grace_ms = 0

[logging]
level = "error"
file = ""
`, cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.PreviewDir, server.URL, server.URL)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{
		configPath: configPath,
		baseDir:    base,
		backend:    fake,
		server:     server,
	}
}

func runCLI(t *testing.T, env *cliTestEnv, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var in io.Reader = strings.NewReader(stdin)
	cmd.SetIn(in)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
