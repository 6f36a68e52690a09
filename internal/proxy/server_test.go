package proxy_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"gallery/internal/backend"
	"gallery/internal/cache"
	"gallery/internal/config"
	"gallery/internal/proxy"
	"gallery/internal/testsupport"
)

func newProxy(t *testing.T, backendHandler http.Handler, mutate ...func(*config.Config)) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(backendHandler)
	t.Cleanup(upstream.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(upstream.URL))
	for _, fn := range mutate {
		fn(cfg)
	}
	client := backend.NewFromConfig(cfg, nil)
	srv := httptest.NewServer(proxy.New(cfg, client, cache.NewMemory(), nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestGalleryDegradesToEmptyPage(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"backend error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"non json": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, "<html>maintenance</html>")
		},
		"malformed json": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"items": [`)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newProxy(t, handler)
			resp, err := http.Get(srv.URL + "/api/gallery")
			if err != nil {
				t.Fatalf("GET gallery: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if strings.TrimSpace(string(raw)) != `{"items":[],"next_cursor":null}` {
				t.Fatalf("unexpected body %s", raw)
			}
		})
	}
}

func TestGalleryForwardsAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := newProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("expected default limit 50, got %q", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[{"id":"1","preview_url":"p","original_url":"o","score":1,"metadata":{"title":"Dunes","lens":"35mm"}}],"next_cursor":"n1"}`)
	}))

	for i := 0; i < 2; i++ {
		resp, err := http.Get(srv.URL + "/api/gallery")
		if err != nil {
			t.Fatalf("GET gallery: %v", err)
		}
		var page map[string]any
		decode(t, resp, &page)
		items := page["items"].([]any)
		meta := items[0].(map[string]any)["metadata"].(map[string]any)
		if meta["lens"] != "35mm" {
			t.Fatalf("extra metadata dropped: %v", meta)
		}
		if page["next_cursor"] != "n1" {
			t.Fatalf("unexpected cursor %v", page["next_cursor"])
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected second request served from cache, backend saw %d calls", calls.Load())
	}
}

func TestSearchValidationAndFallback(t *testing.T) {
	srv := newProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"qdrant down"}`, http.StatusInternalServerError)
	}))

	resp := postJSON(t, srv.URL+"/api/search", `{"limit": 5}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query, got %d", resp.StatusCode)
	}
	var errBody map[string]string
	decode(t, resp, &errBody)
	if errBody["error"] != "Query is required" {
		t.Fatalf("unexpected error body %v", errBody)
	}

	resp = postJSON(t, srv.URL+"/api/search", `{"query": "mountains"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on backend failure, got %d", resp.StatusCode)
	}
	var results []any
	decode(t, resp, &results)
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty array, got %v", results)
	}
}

func TestSearchForwardsDefaultLimit(t *testing.T) {
	srv := newProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["limit"] != float64(20) {
			t.Errorf("expected default limit 20, got %v", payload["limit"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"preview_url":"p","original_url":"o","score":0.5}]`)
	}))
	resp := postJSON(t, srv.URL+"/api/search", `{"query": "fog"}`)
	var results []backend.GalleryImage
	decode(t, resp, &results)
	if len(results) != 1 || results[0].Score != 0.5 {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestSimilarPassesBackendErrors(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := newProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"image_url not found"}`)
	}))

	resp := postJSON(t, srv.URL+"/api/similar", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing url, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	for _, route := range []string{"/api/similar", "/api/similar-to"} {
		resp = postJSON(t, srv.URL+route, `{"image_url": "https://cdn/a.jpg"}`)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected backend 404 passthrough, got %d", route, resp.StatusCode)
		}
		var body map[string]string
		decode(t, resp, &body)
		if body["error"] != "image_url not found" {
			t.Fatalf("%s: unexpected body %v", route, body)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 || paths[0] != "/similar-to" || paths[1] != "/similar-to" {
		t.Fatalf("expected both routes forwarded to /similar-to, got %v", paths)
	}
}

func TestSimilarTransportFailureIs500(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	deadURL := upstream.URL
	upstream.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(deadURL))
	srv := httptest.NewServer(proxy.New(cfg, backend.NewFromConfig(cfg, nil), nil, nil).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/similar", `{"image_url": "x"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/random-query")
	if err != nil {
		t.Fatalf("GET random-query: %v", err)
	}
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["query"] != "" {
		t.Fatalf("expected empty query, got %d %v", resp.StatusCode, body)
	}
}

func TestRandomQueryAndAutocomplete(t *testing.T) {
	srv := newProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/generate-random-query":
			_, _ = io.WriteString(w, `{"query":"misty forest"}`)
		case "/autocomplete":
			if r.URL.Query().Get("q") != "mou" {
				t.Errorf("unexpected q %q", r.URL.Query().Get("q"))
			}
			_, _ = io.WriteString(w, `{"suggestions":["mountain","mountains at dawn"]}`)
		default:
			http.NotFound(w, r)
		}
	}))

	for _, route := range []string{"/api/random-query", "/api/generate-random-query"} {
		resp, err := http.Get(srv.URL + route)
		if err != nil {
			t.Fatalf("GET %s: %v", route, err)
		}
		var body map[string]string
		decode(t, resp, &body)
		if body["query"] != "misty forest" {
			t.Fatalf("%s: unexpected body %v", route, body)
		}
	}

	resp, err := http.Get(srv.URL + "/api/autocomplete?q=mou")
	if err != nil {
		t.Fatalf("GET autocomplete: %v", err)
	}
	var body struct {
		Suggestions []string `json:"suggestions"`
	}
	decode(t, resp, &body)
	if len(body.Suggestions) != 2 {
		t.Fatalf("unexpected suggestions %v", body.Suggestions)
	}
}

func multipartBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "a.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("jpeg bytes"))
	_ = w.WriteField("title", "a")
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func TestIngestRequiresAuthAndPassesThrough(t *testing.T) {
	srv := newProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		if err := r.ParseMultipartForm(1 << 20); err != nil || r.FormValue("title") != "a" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"bad form"}`)
			return
		}
		switch user {
		case "ana":
			_, _ = io.WriteString(w, `{"status":"success","id":"7"}`)
		case "mallory":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Incorrect username or password"}`)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{}`)
		}
	}))

	body, contentType := multipartBody(t)
	resp, err := http.Post(srv.URL+"/api/ingest", contentType, body)
	if err != nil {
		t.Fatalf("POST ingest: %v", err)
	}
	var errBody map[string]string
	decode(t, resp, &errBody)
	if resp.StatusCode != http.StatusUnauthorized || errBody["error"] != "Authentication required" {
		t.Fatalf("expected 401 without auth, got %d %v", resp.StatusCode, errBody)
	}

	send := func(user string) (*http.Response, map[string]string) {
		body, contentType := multipartBody(t)
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/ingest", body)
		req.Header.Set("Content-Type", contentType)
		req.SetBasicAuth(user, "pw")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST ingest: %v", err)
		}
		var out map[string]string
		decode(t, resp, &out)
		return resp, out
	}

	resp, out := send("ana")
	if resp.StatusCode != http.StatusOK || out["id"] != "7" {
		t.Fatalf("expected success passthrough, got %d %v", resp.StatusCode, out)
	}
	resp, out = send("mallory")
	if resp.StatusCode != http.StatusUnauthorized || out["error"] != "Incorrect username or password" {
		t.Fatalf("expected backend 401 passthrough, got %d %v", resp.StatusCode, out)
	}
	resp, out = send("other")
	if resp.StatusCode != http.StatusServiceUnavailable || out["error"] != "Upload failed" {
		t.Fatalf("expected fallback message, got %d %v", resp.StatusCode, out)
	}
}

func TestSuccessfulIngestInvalidatesGalleryPages(t *testing.T) {
	var galleryCalls atomic.Int32
	srv := newProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/gallery":
			galleryCalls.Add(1)
			_, _ = io.WriteString(w, `{"items":[],"next_cursor":null}`)
		case "/ingest":
			if user, _, _ := r.BasicAuth(); user != "ana" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"detail":"Incorrect username or password"}`)
				return
			}
			_, _ = io.WriteString(w, `{"status":"success"}`)
		}
	}))

	getGallery := func() {
		resp, err := http.Get(srv.URL + "/api/gallery")
		if err != nil {
			t.Fatalf("GET gallery: %v", err)
		}
		resp.Body.Close()
	}
	ingest := func(user string) int {
		body, contentType := multipartBody(t)
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/ingest", body)
		req.Header.Set("Content-Type", contentType)
		req.SetBasicAuth(user, "pw")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST ingest: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	getGallery()
	getGallery()
	if galleryCalls.Load() != 1 {
		t.Fatalf("expected cached gallery page, backend saw %d calls", galleryCalls.Load())
	}

	if status := ingest("mallory"); status != http.StatusUnauthorized {
		t.Fatalf("expected rejected ingest, got %d", status)
	}
	getGallery()
	if galleryCalls.Load() != 1 {
		t.Fatalf("rejected ingest should keep the cache, backend saw %d calls", galleryCalls.Load())
	}

	if status := ingest("ana"); status != http.StatusOK {
		t.Fatalf("expected accepted ingest, got %d", status)
	}
	getGallery()
	if galleryCalls.Load() != 2 {
		t.Fatalf("expected gallery refetched after ingest, backend saw %d calls", galleryCalls.Load())
	}
}

func TestIngestRateLimited(t *testing.T) {
	srv := newProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"success"}`)
	}), func(c *config.Config) { c.Server.RateLimitPerMinute = 1 })

	statuses := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		body, contentType := multipartBody(t)
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/ingest", body)
		req.Header.Set("Content-Type", contentType)
		req.SetBasicAuth("ana", "pw")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST ingest: %v", err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %v", statuses)
	}

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health should not be rate limited, got %d", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newProxy(t, http.NotFoundHandler())

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") != "trace-123" {
		t.Fatalf("expected caller request id echoed, got %q", resp.Header.Get("X-Request-ID"))
	}
}
