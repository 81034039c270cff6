package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsdesk_backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPNotifierPostsRequest(t *testing.T) {
	received := make(chan ScrapeRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req ScrapeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL)
	require.True(t, n.Enabled())
	n.Notify(context.Background(), "^DJI", models.CategoryIndex)

	select {
	case req := <-received:
		assert.Equal(t, "^DJI", req.Symbol)
		assert.Equal(t, models.CategoryIndex, req.Category)
		assert.False(t, req.RequestedAt.IsZero())
		_, err := uuid.Parse(req.RequestID)
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scraper was not notified")
	}
}

func TestHTTPNotifierWithoutURLIsNoop(t *testing.T) {
	n := NewHTTPNotifier("  ")
	assert.False(t, n.Enabled())
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), "XAU", models.CategoryCommodity)
	})
}

func TestHTTPNotifierSendReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL)
	err := n.send(context.Background(), ScrapeRequest{Symbol: "XAU", Category: models.CategoryCommodity})
	assert.ErrorContains(t, err, "502")
}
