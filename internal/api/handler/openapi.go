package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"

	"sigs.k8s.io/yaml"

	"github.com/daap14/loyalty/internal/api/middleware"
	"github.com/daap14/loyalty/internal/api/response"
)

// OpenAPIHandler serves the embedded OpenAPI document as JSON. The document
// is converted once, at construction, and served with a strong ETag so API
// clients can revalidate cheaply.
type OpenAPIHandler struct {
	jsonSpec []byte
	etag     string
	convErr  error
}

// NewOpenAPIHandler converts yamlSpec to JSON. A conversion failure is logged
// and every request then gets a 500.
func NewOpenAPIHandler(yamlSpec []byte) *OpenAPIHandler {
	h := &OpenAPIHandler{}
	h.jsonSpec, h.convErr = yaml.YAMLToJSON(yamlSpec)
	if h.convErr != nil {
		slog.Error("failed to convert OpenAPI spec to JSON", "error", h.convErr)
		return h
	}
	sum := sha256.Sum256(h.jsonSpec)
	h.etag = `"` + hex.EncodeToString(sum[:16]) + `"`
	return h
}

func (h *OpenAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.convErr != nil {
		requestID := middleware.GetRequestID(r.Context())
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to convert OpenAPI spec", requestID)
		return
	}

	w.Header().Set("ETag", h.etag)
	if r.Header.Get("If-None-Match") == h.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.jsonSpec); err != nil {
		slog.Error("failed to write OpenAPI spec response", "error", err)
	}
}
