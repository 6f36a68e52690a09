package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gallery/internal/backend"
	"gallery/internal/cache"
	"gallery/internal/logging"
)

const (
	defaultGalleryLimit = 50
	maxGalleryLimit     = 200
	defaultSearchLimit  = 20
	defaultSimilarLimit = 8
	maxUploadBytes      = 64 << 20
	jsonContentType     = "application/json; charset=utf-8"
)

type searchPayload struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

type similarPayload struct {
	ImageURL string `json:"image_url"`
	Limit    *int   `json:"limit"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGallery(c *gin.Context) {
	ctx := c.Request.Context()
	limit := parseLimit(c.Query("limit"), defaultGalleryLimit, maxGalleryLimit)
	cursor := c.Query("cursor")
	key := cache.GalleryKey(limit, cursor)

	if body, ok := s.cachedPage(ctx, key); ok {
		c.Data(http.StatusOK, jsonContentType, body)
		return
	}

	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	resp, err := s.backend.Forward(ctx, backend.ForwardRequest{Method: http.MethodGet, Path: "/gallery", Query: query})
	body, ok := galleryBody(resp, err)
	if !ok {
		s.degraded(ctx, "gallery", resp, err)
		c.JSON(http.StatusOK, backend.EmptyPage())
		return
	}
	if err := s.pages.Set(ctx, key, body, s.galleryTTL); err != nil {
		s.cacheWarning(ctx, "gallery page cache write failed", err)
	}
	c.Data(http.StatusOK, jsonContentType, body)
}

// galleryBody returns the backend page when it is a well-formed gallery page.
func galleryBody(resp *backend.Response, err error) ([]byte, bool) {
	if err != nil || !resp.OK() || !resp.IsJSON() {
		return nil, false
	}
	var page backend.GalleryPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, false
	}
	if page.Items == nil {
		page.Items = []backend.GalleryImage{}
		normalized, err := json.Marshal(page)
		if err != nil {
			return nil, false
		}
		return normalized, true
	}
	return resp.Body, true
}

func (s *Server) cachedPage(ctx context.Context, key string) ([]byte, bool) {
	body, ok, err := s.pages.Get(ctx, key)
	if err != nil {
		s.cacheWarning(ctx, "gallery page cache read failed", err)
		return nil, false
	}
	return body, ok
}

func (s *Server) handleSearch(c *gin.Context) {
	var payload searchPayload
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.Query) == "" {
		writeError(c, http.StatusBadRequest, "Query is required")
		return
	}
	limit := defaultSearchLimit
	if payload.Limit != nil && *payload.Limit > 0 {
		limit = *payload.Limit
	}
	body, err := json.Marshal(map[string]any{"query": payload.Query, "limit": limit})
	if err != nil {
		c.JSON(http.StatusOK, []backend.GalleryImage{})
		return
	}

	ctx := c.Request.Context()
	resp, err := s.backend.Forward(ctx, backend.ForwardRequest{
		Method:      http.MethodPost,
		Path:        "/search",
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
	})
	if err != nil || !resp.OK() || !isJSONArray(resp.Body) {
		s.degraded(ctx, "search", resp, err)
		c.JSON(http.StatusOK, []backend.GalleryImage{})
		return
	}
	c.Data(http.StatusOK, jsonContentType, resp.Body)
}

func (s *Server) handleSimilar(c *gin.Context) {
	var payload similarPayload
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.ImageURL) == "" {
		writeError(c, http.StatusBadRequest, "Image URL is required")
		return
	}
	limit := defaultSimilarLimit
	if payload.Limit != nil && *payload.Limit > 0 {
		limit = *payload.Limit
	}
	body, err := json.Marshal(map[string]any{"image_url": payload.ImageURL, "limit": limit})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to get similar images")
		return
	}

	resp, err := s.backend.Forward(c.Request.Context(), backend.ForwardRequest{
		Method:      http.MethodPost,
		Path:        s.similarPath,
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
	})
	s.passthrough(c, "similar", resp, err, "Failed to get similar images")
}

func (s *Server) handleRandomQuery(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := s.backend.Forward(ctx, backend.ForwardRequest{Method: http.MethodGet, Path: "/generate-random-query"})
	var payload struct {
		Query string `json:"query"`
	}
	if err != nil || !resp.OK() || !resp.IsJSON() || json.Unmarshal(resp.Body, &payload) != nil {
		s.degraded(ctx, "random-query", resp, err)
		c.JSON(http.StatusOK, gin.H{"query": ""})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": payload.Query})
}

func (s *Server) handleAutocomplete(c *gin.Context) {
	prefix := strings.TrimSpace(c.Query("q"))
	if prefix == "" {
		c.JSON(http.StatusOK, gin.H{"suggestions": []string{}})
		return
	}
	ctx := c.Request.Context()
	resp, err := s.backend.Forward(ctx, backend.ForwardRequest{
		Method: http.MethodGet,
		Path:   "/autocomplete",
		Query:  url.Values{"q": {prefix}},
	})
	var payload struct {
		Suggestions []string `json:"suggestions"`
	}
	if err != nil || !resp.OK() || json.Unmarshal(resp.Body, &payload) != nil {
		s.degraded(ctx, "autocomplete", resp, err)
		c.JSON(http.StatusOK, gin.H{"suggestions": []string{}})
		return
	}
	if payload.Suggestions == nil {
		payload.Suggestions = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": payload.Suggestions})
}

func (s *Server) handleIngest(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	if strings.TrimSpace(auth) == "" {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	resp, err := s.backend.Forward(c.Request.Context(), backend.ForwardRequest{
		Method:        http.MethodPost,
		Path:          "/ingest",
		Body:          http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes),
		ContentType:   c.GetHeader("Content-Type"),
		Authorization: auth,
	})
	if err == nil && resp.OK() {
		if err := s.pages.Invalidate(c.Request.Context(), cache.GalleryPrefix); err != nil {
			s.cacheWarning(c.Request.Context(), "gallery page cache invalidation failed", err)
		}
	}
	s.passthroughWithFallback(c, "ingest", resp, err, "Upload failed", "Failed to upload image")
}

func (s *Server) handleGenerateDescription(c *gin.Context) {
	resp, err := s.backend.Forward(c.Request.Context(), backend.ForwardRequest{
		Method:      http.MethodPost,
		Path:        "/generate-description",
		Body:        http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes),
		ContentType: c.GetHeader("Content-Type"),
	})
	s.passthroughWithFallback(c, "generate-description", resp, err, "Generate description failed", "Failed to generate description")
}

func (s *Server) passthrough(c *gin.Context, op string, resp *backend.Response, err error, transportMessage string) {
	s.passthroughWithFallback(c, op, resp, err, transportMessage, transportMessage)
}

// passthroughWithFallback relays a backend answer. A backend error keeps its
// status and message; the rejected text is used when the body has no message.
// Transport failures and unreadable bodies become 500 with the failed text.
func (s *Server) passthroughWithFallback(c *gin.Context, op string, resp *backend.Response, err error, rejected, failed string) {
	ctx := c.Request.Context()
	logger := logging.WithContext(ctx, s.logger)
	if err != nil {
		logger.Error("backend request failed", logging.String("op", op), logging.Error(err))
		writeError(c, http.StatusInternalServerError, failed)
		return
	}
	if !resp.OK() {
		message, ok := backend.DetailMessage(resp.Body)
		if !ok {
			message = rejected
		}
		logger.Info("backend rejected request",
			logging.String("op", op),
			logging.Int("status", resp.StatusCode),
			logging.String("detail", message),
		)
		writeError(c, resp.StatusCode, message)
		return
	}
	if !json.Valid(resp.Body) {
		logger.Error("backend returned malformed json", logging.String("op", op), logging.Int("status", resp.StatusCode))
		writeError(c, http.StatusInternalServerError, failed)
		return
	}
	c.Data(resp.StatusCode, jsonContentType, resp.Body)
}

func (s *Server) degraded(ctx context.Context, op string, resp *backend.Response, err error) {
	attrs := []logging.Attr{
		logging.String("op", op),
		logging.String(logging.FieldImpact, "client receives an empty result"),
		logging.String(logging.FieldErrorHint, "check that the backend is reachable at backend.url"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	} else if resp != nil {
		attrs = append(attrs, logging.Int("status", resp.StatusCode), logging.String("content_type", resp.Header.Get("Content-Type")))
	}
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "backend unavailable, serving empty result", "backend_degraded", attrs...)
}

func (s *Server) cacheWarning(ctx context.Context, msg string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), msg, "cache_error",
		logging.Error(err),
		logging.String(logging.FieldImpact, "request served without cache"),
		logging.String(logging.FieldErrorHint, "check redis connectivity"),
	)
}

func parseLimit(raw string, fallback, ceiling int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > ceiling {
		return ceiling
	}
	return n
}

func isJSONArray(body []byte) bool {
	var items []json.RawMessage
	return json.Unmarshal(body, &items) == nil && items != nil
}
