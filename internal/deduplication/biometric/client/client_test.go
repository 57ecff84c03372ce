package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hope/pkg/platform/circuit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHTTPClient(srv.Client()),
	}, opts...)
	c, err := New(Config{
		BaseURL:        srv.URL + "/api/rest",
		APIKey:         "secret",
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, opts...)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Run("requires a base URL", func(t *testing.T) {
		_, err := New(Config{APIKey: "k"})
		assert.Error(t, err)
	})
	t.Run("requires an API key", func(t *testing.T) {
		_, err := New(Config{BaseURL: "http://engine"})
		assert.Error(t, err)
	})
}

func TestCreateDeduplicationSet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rest/deduplication_sets/", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))

		var body createSetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Winter 2026", body.Name)
		assert.Equal(t, "program-1", body.ReferenceID)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"set-42"}`))
	})

	setID, err := c.CreateDeduplicationSet(context.Background(), "Winter 2026", "program-1")
	require.NoError(t, err)
	assert.Equal(t, "set-42", setID)
}

func TestBulkUploadImages(t *testing.T) {
	var got []Image
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rest/deduplication_sets/set-42/images_bulk/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	images := []Image{{ReferenceID: "ind-1", ImageURL: "https://img/1.jpg"}, {ReferenceID: "ind-2", ImageURL: "https://img/2.jpg"}}
	require.NoError(t, c.BulkUploadImages(context.Background(), "set-42", images))
	assert.Equal(t, images, got)
}

func TestProcessDeduplication(t *testing.T) {
	t.Run("returns the status of an accepted run", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/rest/deduplication_sets/set-42/process/", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		})
		status, err := c.ProcessDeduplication(context.Background(), "set-42")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("a conflict is returned once without retries", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte("already processing"))
		})
		status, err := c.ProcessDeduplication(context.Background(), "set-42")
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, http.StatusConflict, StatusCodeOf(err))
		assert.Equal(t, int32(1), calls.Load())

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "process", apiErr.Op)
		assert.Contains(t, apiErr.Error(), "already processing")
	})
}

func TestTransientFailuresAreRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteDeduplicationSet(context.Background(), "set-42"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesStopAtTheLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.BulkUploadImages(context.Background(), "set-42", []Image{{ReferenceID: "a", ImageURL: "u"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusCodeOf(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDeleteMissingSet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.DeleteDeduplicationSet(context.Background(), "gone")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCodeOf(err))
}

func TestGetDuplicates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/rest/deduplication_sets/set-42/duplicates/", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"first":{"reference_pk":"a"},"second":{"reference_pk":"b"},"score":0.93},
			{"first":{"reference_pk":"a"},"second":{"reference_pk":"c"},"score":0.41}
		]`))
	})

	findings, err := c.GetDuplicates(context.Background(), "set-42")
	require.NoError(t, err)
	assert.Equal(t, []Finding{
		{First: "a", Second: "b", Score: 0.93},
		{First: "a", Second: "c", Score: 0.41},
	}, findings)
}

func TestOpenBreakerDisablesRetries(t *testing.T) {
	var calls atomic.Int32
	breaker := circuit.New("engine", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1))
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithBreaker(breaker))

	_, err := c.ProcessDeduplication(context.Background(), "set-42")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, breaker.IsOpen())

	calls.Store(0)
	_, err = c.ProcessDeduplication(context.Background(), "set-42")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelledContextIsAnAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ProcessDeduplication(ctx, "set-42")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.ErrorIs(t, err, context.Canceled)
}
