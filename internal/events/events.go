// Package events publishes booking lifecycle changes for downstream consumers.
package events

import (
	"context"
	"time"
)

const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusUpdated = "booking.status_updated"
	TypeBookingDeleted       = "booking.deleted"
)

type Event struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id"`
	Service   string    `json:"service,omitempty"`
	Status    string    `json:"status,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
