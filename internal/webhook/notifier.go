package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"namelis/internal/config"
	"namelis/internal/metrics"
	"namelis/internal/models"

	"github.com/rs/zerolog"
)

// Notifier posts confirmed bookings to an external automation endpoint.
// The receiver owns all follow-up processing (mail, CRM rows), so delivery
// is fire-and-forget: the response status and body carry no meaning for
// the booking flow and only a transport failure is reported back.
type Notifier struct {
	url    string
	client *http.Client
	logger *zerolog.Logger
}

// NewNotifier builds a notifier from config. A disabled webhook still
// yields a usable notifier that reports success without sending.
func NewNotifier(cfg config.WebhookConfig, logger *zerolog.Logger) *Notifier {
	url := cfg.URL
	if !cfg.Enabled {
		url = ""
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (n *Notifier) NotifyBooking(ctx context.Context, booking models.BookingNotification) error {
	if n.url == "" {
		metrics.IncWebhook("skipped")
		return nil
	}

	body, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("marshal booking notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.IncWebhook("failed")
		return fmt.Errorf("post booking webhook: %w", err)
	}
	defer resp.Body.Close()

	// Status and body are ignored by contract; drain so the connection
	// can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 8192))

	metrics.IncWebhook("delivered")

	if n.logger != nil {
		n.logger.Debug().
			Int("status", resp.StatusCode).
			Str("cabin", booking.Cabin).
			Str("date_time", booking.DateTime).
			Msg("booking webhook delivered")
	}

	return nil
}
