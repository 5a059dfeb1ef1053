// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLiveness_AlwaysOK(t *testing.T) {
	liveness, _ := NewHealthHandlers(HealthDependencies{}, discardLogger())

	rec := httptest.NewRecorder()
	liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness_AllChecksPass(t *testing.T) {
	_, readiness := NewHealthHandlers(HealthDependencies{
		CheckDatabase: func() error { return nil },
		CatalogLoaded: func() bool { return true },
	}, discardLogger())

	rec := httptest.NewRecorder()
	readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness_DatabaseDownReturnsServiceUnavailable(t *testing.T) {
	_, readiness := NewHealthHandlers(HealthDependencies{
		CheckDatabase: func() error { return errors.New("connection refused") },
		CatalogLoaded: func() bool { return true },
	}, discardLogger())

	rec := httptest.NewRecorder()
	readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadiness_CatalogNotLoadedReturnsServiceUnavailable(t *testing.T) {
	_, readiness := NewHealthHandlers(HealthDependencies{
		CheckDatabase: func() error { return nil },
		CatalogLoaded: func() bool { return false },
	}, discardLogger())

	rec := httptest.NewRecorder()
	readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
