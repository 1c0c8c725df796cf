package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"namelis/internal/config"
	"namelis/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification() models.BookingNotification {
	return models.BookingNotification{
		FullName:  "Jonas Jonaitis",
		Email:     "jonas@example.lt",
		DateTime:  "2025-06-10T14:30:00+02:00",
		TimeZone:  "Europe/Vilnius",
		Cabin:     "sauna-a",
		CabinName: "Sauna A",
	}
}

func newTestNotifier(url string) *Notifier {
	logger := zerolog.Nop()
	return NewNotifier(config.WebhookConfig{Enabled: true, URL: url, Timeout: 2}, &logger)
}

func TestNotifyBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("DeliversPayload", func(t *testing.T) {
		var gotBody []byte
		var gotContentType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			gotContentType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		err := newTestNotifier(server.URL).NotifyBooking(ctx, testNotification())
		require.NoError(t, err)
		assert.Equal(t, "application/json", gotContentType)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(gotBody, &payload))
		assert.Equal(t, map[string]string{
			"fullName":  "Jonas Jonaitis",
			"email":     "jonas@example.lt",
			"dateTime":  "2025-06-10T14:30:00+02:00",
			"timeZone":  "Europe/Vilnius",
			"cabin":     "sauna-a",
			"cabinName": "Sauna A",
		}, payload)
	})

	t.Run("ErrorStatusIgnored", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "automation burst into flames", http.StatusInternalServerError)
		}))
		defer server.Close()

		err := newTestNotifier(server.URL).NotifyBooking(ctx, testNotification())
		assert.NoError(t, err)
	})

	t.Run("GarbageBodyIgnored", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<<<not json>>>"))
		}))
		defer server.Close()

		err := newTestNotifier(server.URL).NotifyBooking(ctx, testNotification())
		assert.NoError(t, err)
	})

	t.Run("TransportErrorReported", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		err := newTestNotifier(server.URL).NotifyBooking(ctx, testNotification())
		assert.Error(t, err)
	})

	t.Run("DisabledSkipsSend", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		logger := zerolog.Nop()
		notifier := NewNotifier(config.WebhookConfig{Enabled: false, URL: server.URL, Timeout: 2}, &logger)

		err := notifier.NotifyBooking(ctx, testNotification())
		assert.NoError(t, err)
		assert.Equal(t, int32(0), calls.Load())
	})
}
