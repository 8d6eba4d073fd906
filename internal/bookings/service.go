package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tivrox-backend/internal/cache"
	"tivrox-backend/internal/events"
	"tivrox-backend/internal/httpx"
	"tivrox-backend/internal/metrics"
	"tivrox-backend/internal/sanitize"
	"tivrox-backend/internal/validation"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("booking not found")
	ErrInvalidStatus = errors.New("invalid status")
	ErrSpam          = errors.New("invalid submission")
	ErrValidation    = errors.New("validation error")
)

// LevelCritical marks a booking that could not be stored at all.
const LevelCritical = slog.LevelError + 4

const (
	SuccessMessage = "Your consultation request has been submitted successfully. We will contact you within 24 hours."

	ListLimit   = 1000
	ExportLimit = 10000

	statsCacheKey = "bookings:stats"
)

// ValidationError carries per-field tags; errors.Is(err, ErrValidation) matches it.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Details))
	for field := range e.Details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation error: %s", strings.Join(fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Notifier receives every stored booking. Implementations must not block.
type Notifier interface {
	BookingCreated(booking Booking)
}

type Options struct {
	// Strict rejects incomplete submissions; otherwise they are logged and stored.
	Strict           bool
	InsertAttempts int
	// InsertAttemptTimeout bounds each insert attempt on its own.
	InsertAttemptTimeout time.Duration
	InsertRetryDelay     time.Duration
	StatsTTL             time.Duration
}

type Service struct {
	repo      Repository
	notifier  Notifier
	publisher events.Publisher
	cache     cache.Cache
	val       *validation.Validator
	log       *slog.Logger
	opts      Options

	now   func() time.Time
	newID func() string
}

func NewService(repo Repository, notifier Notifier, publisher events.Publisher, cacheStore cache.Cache, val *validation.Validator, log *slog.Logger, opts Options) *Service {
	if opts.InsertAttempts <= 0 {
		opts.InsertAttempts = 3
	}
	if opts.InsertAttemptTimeout <= 0 {
		opts.InsertAttemptTimeout = 5 * time.Second
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if cacheStore == nil {
		cacheStore = cache.NewNoop()
	}
	return &Service{
		repo:      repo,
		notifier:  notifier,
		publisher: publisher,
		cache:     cacheStore,
		val:       val,
		log:       log,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Submit stores a public booking request and returns its id. Once spam and
// validation checks pass it always returns the id, even if the store write
// was lost after every retry.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, clientIP string) (string, error) {
	log := s.log.With(slog.String("ip", clientIP))

	if req.CompanyURL != nil && strings.TrimSpace(*req.CompanyURL) != "" {
		log.Warn("booking create: honeypot triggered")
		metrics.IncBookingSubmitted("spam")
		return "", ErrSpam
	}

	booking := Booking{
		ID:                 s.newID(),
		FullName:           sanitize.Text(req.FullName),
		Email:              sanitize.Text(req.Email),
		Phone:              sanitize.Text(req.Phone),
		Service:            sanitize.Text(req.Service),
		ProjectDeadline:    sanitize.Optional(req.ProjectDeadline),
		ProjectDescription: sanitize.Text(req.ProjectDescription),
		WebsiteType:        sanitize.Optional(req.WebsiteType),
		Platform:           sanitize.Optional(req.Platform),
		VideoType:          sanitize.Optional(req.VideoType),
		DesignType:         sanitize.Optional(req.DesignType),
		Status:             StatusNew,
		CreatedAt:          FormatTimestamp(s.now()),
		IPAddress:          clientIP,
	}
	log = log.With(slog.String("booking_id", booking.ID))

	if err := s.val.Struct(booking); err != nil {
		details := validationDetails(s.val, err)
		if s.opts.Strict {
			log.Warn("booking create: validation error", slog.Any("fields", details))
			metrics.IncBookingSubmitted("invalid")
			return "", &ValidationError{Details: details}
		}
		log.Warn("booking create: incomplete submission, saving anyway", slog.Any("fields", details))
	}

	if err := s.insertWithRetry(ctx, log, booking); err != nil {
		log.Log(ctx, LevelCritical, "booking create: lost after retries",
			slog.String("full_name", booking.FullName),
			slog.String("email", booking.Email),
			slog.String("phone", booking.Phone),
			slog.String("service", booking.Service),
			slog.String("project_description", booking.ProjectDescription),
			slog.String("error", err.Error()),
		)
		metrics.IncBookingSubmitted("lost")
	} else {
		metrics.IncBookingSubmitted("stored")
		log.Info("booking create: stored", slog.String("service", booking.Service))
		s.invalidateStats(ctx)
		s.publish(ctx, events.Event{Type: events.TypeBookingCreated, BookingID: booking.ID, Service: booking.Service, Status: booking.Status})
	}

	// The admin alert carries the full booking, so it goes out even when the write was lost.
	if s.notifier != nil {
		s.notifier.BookingCreated(booking)
	}
	return booking.ID, nil
}

func (s *Service) insertWithRetry(ctx context.Context, log *slog.Logger, booking Booking) error {
	var err error
	for attempt := 1; attempt <= s.opts.InsertAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.InsertAttemptTimeout)
		err = s.repo.Insert(attemptCtx, booking)
		cancel()
		if err == nil {
			if attempt > 1 {
				log.Info("booking create: stored after retry", slog.Int("attempt", attempt))
			}
			return nil
		}
		log.Error("booking create: database error", slog.Int("attempt", attempt), slog.String("error", err.Error()))
		if attempt == s.opts.InsertAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("insert booking: %w", ctx.Err())
		case <-time.After(s.opts.InsertRetryDelay):
		}
	}
	return fmt.Errorf("insert booking after %d attempts: %w", s.opts.InsertAttempts, err)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	filter.Service = strings.TrimSpace(filter.Service)
	filter.Status = strings.TrimSpace(filter.Status)
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, filter, ListLimit)
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	id = strings.TrimSpace(id)
	if !IsValidStatus(status) {
		return ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, status, FormatTimestamp(s.now())); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.publish(ctx, events.Event{Type: events.TypeBookingStatusUpdated, BookingID: id, Status: status})
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.publish(ctx, events.Event{Type: events.TypeBookingDeleted, BookingID: id})
	return nil
}

// Export returns every booking, newest first, without IP addresses.
func (s *Service) Export(ctx context.Context) ([]Booking, error) {
	return s.repo.List(ctx, ListFilter{}, ExportLimit)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if raw, ok, err := s.cache.Get(ctx, statsCacheKey); err == nil && ok {
		var cached Stats
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	byStatus, err := s.repo.CountBy(ctx, "status")
	if err != nil {
		return Stats{}, err
	}
	byService, err := s.repo.CountBy(ctx, "service")
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Total:      total,
		New:        byStatus[StatusNew],
		Contacted:  byStatus[StatusContacted],
		InProgress: byStatus[StatusInProgress],
		Completed:  byStatus[StatusCompleted],
		ByService:  byService,
	}

	if s.opts.StatsTTL > 0 {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, raw, s.opts.StatsTTL); err != nil {
				s.log.Warn("booking stats: cache set failed", slog.String("error", err.Error()))
			}
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		s.log.Warn("booking stats: cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	event.At = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("booking events: publish failed",
			slog.String("type", event.Type),
			slog.String("booking_id", event.BookingID),
			slog.String("error", err.Error()),
		)
	}
}

func validationDetails(val *validation.Validator, err error) map[string]string {
	if details := httpx.ValidationDetails(val.ValidationErrors(err)); details != nil {
		return details
	}
	return map[string]string{"booking": err.Error()}
}
