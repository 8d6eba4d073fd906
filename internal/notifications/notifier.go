package notifications

import (
	"context"
	"log/slog"
	"strings"

	"tivrox-backend/internal/bookings"
	"tivrox-backend/internal/validation"
)

const (
	ChannelAdminEmail  = "admin_email"
	ChannelClientEmail = "client_email"
	ChannelTelegram    = "telegram"
)

type Telegram interface {
	Send(ctx context.Context, text string) error
}

type BookingNotifierConfig struct {
	AdminEmail          string
	ClientConfirmations bool
}

// BookingNotifier fans a stored booking out to the configured channels.
// Every channel is optional; a nil Mailer disables both emails.
type BookingNotifier struct {
	mailer     Mailer
	telegram   Telegram
	dispatcher *Dispatcher
	cfg        BookingNotifierConfig
	log        *slog.Logger
}

func NewBookingNotifier(mailer Mailer, telegram Telegram, dispatcher *Dispatcher, cfg BookingNotifierConfig, log *slog.Logger) *BookingNotifier {
	return &BookingNotifier{
		mailer:     mailer,
		telegram:   telegram,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
	}
}

var _ bookings.Notifier = (*BookingNotifier)(nil)

func (n *BookingNotifier) BookingCreated(booking bookings.Booking) {
	if n.mailer != nil && strings.TrimSpace(n.cfg.AdminEmail) != "" {
		n.dispatcher.Enqueue(Job{
			Channel:   ChannelAdminEmail,
			BookingID: booking.ID,
			Run: func(ctx context.Context) error {
				return n.NotifyAdmin(ctx, booking)
			},
		})
	}

	if n.telegram != nil {
		n.dispatcher.Enqueue(Job{
			Channel:   ChannelTelegram,
			BookingID: booking.ID,
			Run: func(ctx context.Context) error {
				text, err := buildTelegramText(booking)
				if err != nil {
					return err
				}
				return n.telegram.Send(ctx, text)
			},
		})
	}

	if n.mailer == nil || !n.cfg.ClientConfirmations {
		return
	}
	if !validation.IsEmail(booking.Email) {
		n.log.Warn("notify: skipping client confirmation, invalid email", slog.String("booking_id", booking.ID))
		return
	}
	n.dispatcher.Enqueue(Job{
		Channel:   ChannelClientEmail,
		BookingID: booking.ID,
		Run: func(ctx context.Context) error {
			return n.NotifyClient(ctx, booking)
		},
	})
}

func (n *BookingNotifier) NotifyAdmin(ctx context.Context, booking bookings.Booking) error {
	msg, err := buildAdminMessage(n.cfg.AdminEmail, booking)
	if err != nil {
		return err
	}
	_, err = n.mailer.Send(ctx, msg)
	return err
}

func (n *BookingNotifier) NotifyClient(ctx context.Context, booking bookings.Booking) error {
	msg, err := buildClientMessage(booking)
	if err != nil {
		return err
	}
	_, err = n.mailer.Send(ctx, msg)
	return err
}
