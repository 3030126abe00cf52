package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/campaign-health/internal/utils"
)

func TestWebhookSignsAndRetries(t *testing.T) {
	var calls int32
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.True(t, utils.Verify("k", body, r.Header.Get("X-Signature")))
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.Client(), srv.URL, "k", utils.NewBackoff(time.Millisecond, 2), zerolog.Nop())
	err := wh.Notify(context.Background(), Alert{CampaignID: "c-1", Action: "STOP", Critical: true})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "STOP", got.Action)
	assert.NotNil(t, got.Issues)
	assert.False(t, got.SentAt.IsZero())
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.Client(), srv.URL, "", utils.NewBackoff(time.Millisecond, 3), zerolog.Nop())
	err := wh.Notify(context.Background(), Alert{CampaignID: "c-1"})
	assert.ErrorContains(t, err, "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), Alert{}))
}
