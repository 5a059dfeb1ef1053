// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package openapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/sqlrest/internal/catalog"
)

// Handler serves the generated OpenAPI document and its Swagger-UI shell.
type Handler struct {
	store         *catalog.Store
	defaultSchema string
	title         string
	version       string
	serverURL     string
}

// NewHandler constructs a Handler. serverURL is the document's `servers[0].url`.
func NewHandler(store *catalog.Store, defaultSchema, title, version, serverURL string) *Handler {
	return &Handler{store: store, defaultSchema: defaultSchema, title: title, version: version, serverURL: serverURL}
}

// Mount registers `GET /` (the document) and `GET /swagger` (the viewer).
func (h *Handler) Mount(r chi.Router) {
	r.Get("/", h.ServeDocument)
	r.Get("/swagger", h.ServeSwaggerUI)
}

// ServeDocument writes the OpenAPI document built from the current catalog
// snapshot. An unloaded catalog serves an empty document rather than an
// error — `/` is a discovery endpoint, not a data endpoint.
func (h *Handler) ServeDocument(w http.ResponseWriter, r *http.Request) {
	cat := h.store.Current()
	var doc map[string]any
	if cat != nil {
		doc = Document(cat, h.defaultSchema, h.title, h.version, h.serverURL)
	} else {
		doc = map[string]any{"openapi": "3.0.3", "info": map[string]any{"title": h.title, "version": h.version}, "paths": map[string]any{}}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(doc)
}

// ServeSwaggerUI writes the static Swagger-UI shell, pointed at this
// same host's `/` document endpoint.
func (h *Handler) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(SwaggerUIHTML(h.title, h.serverURL+"/")))
}
