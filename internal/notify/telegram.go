package notify

import (
	"encoding/json"
	"fmt"

	"namelis/internal/config"
	"namelis/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MessageSender is the slice of the Telegram bot API the notifier needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier forwards booking events to the managers' group chat.
// Delivery is best-effort: failures are logged and never propagate back
// to the booking flow.
type TelegramNotifier struct {
	sender MessageSender
	chatID int64
	logger *zerolog.Logger
}

// NewTelegramNotifier connects to the Telegram API. A disabled config
// yields (nil, nil) and the caller skips the event subscriptions.
func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = cfg.Debug

	return &TelegramNotifier{sender: bot, chatID: cfg.ManagerChatID, logger: logger}, nil
}

// Subscribe registers the notifier's handlers on the bus.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, n.handleBookingCreated)
	bus.Subscribe(events.EventBookingCancelled, n.handleBookingCancelled)
}

func (n *TelegramNotifier) handleBookingCreated(event *events.Event) error {
	payload, err := decodePayload(event)
	if err != nil {
		n.logger.Error().Err(err).Str("event", event.Type).Msg("telegram notify: decode payload")
		return nil
	}

	text := fmt.Sprintf(`Nauja rezervacija #%d

Namelis: %s
Data: %s %s
Klientas: %s
El. paštas: %s`,
		payload.BookingID,
		payload.CabinName,
		payload.Date,
		payload.Time,
		payload.FullName,
		payload.Email)

	n.send(text, payload.BookingID)
	return nil
}

func (n *TelegramNotifier) handleBookingCancelled(event *events.Event) error {
	payload, err := decodePayload(event)
	if err != nil {
		n.logger.Error().Err(err).Str("event", event.Type).Msg("telegram notify: decode payload")
		return nil
	}

	text := fmt.Sprintf("Rezervacija #%d atšaukta: %s, %s %s",
		payload.BookingID, payload.CabinName, payload.Date, payload.Time)

	n.send(text, payload.BookingID)
	return nil
}

func (n *TelegramNotifier) send(text string, bookingID int64) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("telegram notify: send")
	}
}

func decodePayload(event *events.Event) (events.BookingEventPayload, error) {
	var payload events.BookingEventPayload
	err := json.Unmarshal(event.Payload, &payload)
	return payload, err
}
