package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler_Check(t *testing.T) {
	// Setup
	e := NewTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler()

	// Act
	err := h.Check(c)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"timestamp"`)
	assert.NotContains(t, rec.Body.String(), `"checks"`)
}

func TestHealthHandler_Check_WithDependencies(t *testing.T) {
	e := NewTestEcho()

	t.Run("全ての依存先が正常", func(t *testing.T) {
		h := NewHealthHandler().
			WithCheck("database", func(ctx context.Context) error { return nil }).
			WithCheck("redis", func(ctx context.Context) error { return nil })

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Check(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"up"`)
		assert.Contains(t, rec.Body.String(), `"redis":"up"`)
	})

	t.Run("依存先が落ちている場合は503", func(t *testing.T) {
		h := NewHealthHandler().
			WithCheck("database", func(ctx context.Context) error { return nil }).
			WithCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Check(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
		assert.Contains(t, rec.Body.String(), `"redis":"down"`)
		assert.Contains(t, rec.Body.String(), `"database":"up"`)
	})
}

func TestNewHealthHandler(t *testing.T) {
	h := NewHealthHandler()
	assert.NotNil(t, h)
}
