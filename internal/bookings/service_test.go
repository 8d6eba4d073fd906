package bookings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tivrox-backend/internal/cache"
	"tivrox-backend/internal/events"
	"tivrox-backend/internal/validation"
)

type memoryRepo struct {
	mu         sync.Mutex
	items      []Booking
	failInsert int
	// stallInsert inserts wait for their context to end before failing.
	stallInsert int
	inserts     int
	counts      int
}

func (m *memoryRepo) Insert(ctx context.Context, booking Booking) error {
	m.mu.Lock()
	m.inserts++
	if m.stallInsert > 0 {
		m.stallInsert--
		m.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	defer m.mu.Unlock()
	if m.failInsert > 0 {
		m.failInsert--
		return errors.New("connection reset")
	}
	m.items = append(m.items, booking)
	return nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter, limit int64) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Booking, 0)
	for _, b := range m.items {
		if filter.Service != "" && b.Service != filter.Service {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		b.IPAddress = ""
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id, status, updatedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Status = status
			m.items[i].UpdatedAt = &updatedAt
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts++
	return int64(len(m.items)), nil
}

func (m *memoryRepo) CountBy(ctx context.Context, field string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for _, b := range m.items {
		var key string
		switch field {
		case "status":
			key = b.Status
		case "service":
			key = b.Service
		}
		if key != "" {
			out[key]++
		}
	}
	return out, nil
}

func (m *memoryRepo) get(id string) (Booking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.items {
		if b.ID == id {
			return b, true
		}
	}
	return Booking{}, false
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []Booking
}

func (n *recordingNotifier) BookingCreated(booking Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, booking)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func validRequest() SubmitRequest {
	return SubmitRequest{
		FullName:           "Jane Doe",
		Email:              "jane@example.com",
		Phone:              "555-0100",
		Service:            "Web Development",
		ProjectDescription: "Need a site",
	}
}

type fixture struct {
	svc       *Service
	repo      *memoryRepo
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

func newFixture(opts Options) *fixture {
	repo := &memoryRepo{}
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	svc := NewService(repo, notifier, publisher, cache.NewMemory(), validation.New(), discardLogger(), opts)
	return &fixture{svc: svc, repo: repo, notifier: notifier, publisher: publisher}
}

func TestSubmitStoresBooking(t *testing.T) {
	f := newFixture(Options{Strict: true})
	f.svc.now = func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }

	id, err := f.svc.Submit(context.Background(), validRequest(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected booking id")
	}

	stored, ok := f.repo.get(id)
	if !ok {
		t.Fatalf("booking %s not stored", id)
	}
	if stored.Status != StatusNew {
		t.Fatalf("expected status New, got %q", stored.Status)
	}
	if stored.CreatedAt != "2025-03-04T10:00:00.000000Z" {
		t.Fatalf("unexpected created_at %q", stored.CreatedAt)
	}
	if stored.IPAddress != "203.0.113.7" {
		t.Fatalf("expected ip recorded, got %q", stored.IPAddress)
	}
	if stored.UpdatedAt != nil {
		t.Fatalf("new booking should not carry updated_at")
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0].ID != id {
		t.Fatalf("expected one notification for %s, got %+v", id, f.notifier.calls)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != events.TypeBookingCreated {
		t.Fatalf("expected booking.created event, got %+v", f.publisher.events)
	}
}

func TestSubmitSanitizesFields(t *testing.T) {
	f := newFixture(Options{Strict: true})
	req := validRequest()
	req.FullName = "  <b>Jane</b> Doe "
	req.ProjectDescription = "<script>alert(1)</script>Need a site"
	req.Platform = strPtr("   ")
	req.WebsiteType = strPtr("&lt;script&gt;alert(1)&lt;/script&gt;Shop")

	id, err := f.svc.Submit(context.Background(), req, "ip")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	stored, _ := f.repo.get(id)
	if stored.WebsiteType == nil || strings.ContainsAny(*stored.WebsiteType, "<>") {
		t.Fatalf("website_type must not carry markup, got %v", stored.WebsiteType)
	}
	if stored.FullName != "Jane Doe" {
		t.Fatalf("unexpected full_name %q", stored.FullName)
	}
	if stored.ProjectDescription != "Need a site" {
		t.Fatalf("unexpected project_description %q", stored.ProjectDescription)
	}
	if stored.Platform != nil {
		t.Fatalf("blank optional field should be nil, got %q", *stored.Platform)
	}
}

func TestSubmitHoneypot(t *testing.T) {
	f := newFixture(Options{Strict: true})
	req := validRequest()
	req.CompanyURL = strPtr("http://spam.example")

	if _, err := f.svc.Submit(context.Background(), req, "ip"); !errors.Is(err, ErrSpam) {
		t.Fatalf("expected ErrSpam, got %v", err)
	}
	if f.repo.inserts != 0 || len(f.notifier.calls) != 0 {
		t.Fatalf("spam must not be stored or notified")
	}

	req.CompanyURL = strPtr("   ")
	if _, err := f.svc.Submit(context.Background(), req, "ip"); err != nil {
		t.Fatalf("whitespace honeypot should pass, got %v", err)
	}
}

func TestSubmitValidationPolicy(t *testing.T) {
	req := validRequest()
	req.Email = "not-an-email"
	req.Phone = ""

	strict := newFixture(Options{Strict: true})
	_, err := strict.svc.Submit(context.Background(), req, "ip")
	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Details["email"] != "mail" || verr.Details["phone"] != "required" {
		t.Fatalf("unexpected details %v", verr.Details)
	}
	if strict.repo.inserts != 0 {
		t.Fatalf("strict mode must not store invalid bookings")
	}

	lenient := newFixture(Options{Strict: false})
	id, err := lenient.svc.Submit(context.Background(), req, "ip")
	if err != nil {
		t.Fatalf("lenient mode should accept, got %v", err)
	}
	if _, ok := lenient.repo.get(id); !ok {
		t.Fatalf("lenient mode should store the booking")
	}

	for _, phone := range []string{"555 0100 ext. 12", "+44 20 7946 0958 x3"} {
		req := validRequest()
		req.Phone = phone
		id, err := strict.svc.Submit(context.Background(), req, "ip")
		if err != nil {
			t.Fatalf("strict mode should accept phone %q, got %v", phone, err)
		}
		stored, ok := strict.repo.get(id)
		if !ok || stored.Phone != phone {
			t.Fatalf("expected phone %q to be stored, got %+v", phone, stored)
		}
	}
}

func TestSubmitRetriesInsert(t *testing.T) {
	f := newFixture(Options{Strict: true, InsertRetryDelay: time.Millisecond})
	f.repo.failInsert = 2

	id, err := f.svc.Submit(context.Background(), validRequest(), "ip")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if f.repo.inserts != 3 {
		t.Fatalf("expected 3 insert attempts, got %d", f.repo.inserts)
	}
	if _, ok := f.repo.get(id); !ok {
		t.Fatalf("booking should be stored on third attempt")
	}
}

func TestSubmitRetryGetsFreshDeadline(t *testing.T) {
	f := newFixture(Options{Strict: true, InsertAttemptTimeout: 20 * time.Millisecond, InsertRetryDelay: time.Millisecond})
	f.repo.stallInsert = 1

	// The stalled attempt must time out well before the caller's deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := f.svc.Submit(ctx, validRequest(), "ip")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if f.repo.inserts != 2 {
		t.Fatalf("expected 2 insert attempts, got %d", f.repo.inserts)
	}
	if _, ok := f.repo.get(id); !ok {
		t.Fatalf("booking should be stored after the stalled attempt timed out")
	}
}

func TestSubmitLostStillSucceeds(t *testing.T) {
	f := newFixture(Options{Strict: true, InsertRetryDelay: time.Millisecond})
	f.repo.failInsert = 10

	id, err := f.svc.Submit(context.Background(), validRequest(), "ip")
	if err != nil {
		t.Fatalf("expected success after lost write, got %v", err)
	}
	if id == "" {
		t.Fatalf("expected an id even when the write was lost")
	}
	if f.repo.inserts != 3 {
		t.Fatalf("expected 3 insert attempts, got %d", f.repo.inserts)
	}
	if len(f.notifier.calls) != 1 {
		t.Fatalf("admin notification should still be sent")
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("no created event for a lost booking")
	}
}

func TestSubmitUniqueIDs(t *testing.T) {
	f := newFixture(Options{Strict: true})
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := f.svc.Submit(context.Background(), validRequest(), "ip")
		if err != nil {
			t.Fatalf("Submit error: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(Options{Strict: true})
	id, err := f.svc.Submit(context.Background(), validRequest(), "ip")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	for _, status := range Statuses {
		if err := f.svc.UpdateStatus(context.Background(), id, status); err != nil {
			t.Fatalf("UpdateStatus(%q) error: %v", status, err)
		}
		stored, _ := f.repo.get(id)
		if stored.Status != status {
			t.Fatalf("expected %q, got %q", status, stored.Status)
		}
		if stored.UpdatedAt == nil {
			t.Fatalf("expected updated_at after status change")
		}
	}

	if err := f.svc.UpdateStatus(context.Background(), id, "Archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if err := f.svc.UpdateStatus(context.Background(), "missing", StatusContacted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(Options{Strict: true})
	id, _ := f.svc.Submit(context.Background(), validRequest(), "ip")

	if err := f.svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, ok := f.repo.get(id); ok {
		t.Fatalf("booking should be gone")
	}
	if err := f.svc.Delete(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListFilterAndOrder(t *testing.T) {
	f := newFixture(Options{Strict: true})
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, service := range []string{"Web Development", "Video Editing", "Web Development"} {
		at := base.Add(time.Duration(i) * time.Minute)
		f.svc.now = func() time.Time { return at }
		req := validRequest()
		req.Service = service
		id, err := f.svc.Submit(context.Background(), req, "ip")
		if err != nil {
			t.Fatalf("Submit error: %v", err)
		}
		ids = append(ids, id)
	}

	all, err := f.svc.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Fatalf("expected newest first, got %+v", all)
	}
	for _, b := range all {
		if b.IPAddress != "" {
			t.Fatalf("list must not expose ip addresses")
		}
	}

	web, err := f.svc.List(context.Background(), ListFilter{Service: "Web Development"})
	if err != nil || len(web) != 2 {
		t.Fatalf("expected 2 web bookings, got %d (%v)", len(web), err)
	}

	if _, err := f.svc.List(context.Background(), ListFilter{Status: "Bogus"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for bad filter, got %v", err)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(Options{Strict: false, StatsTTL: time.Minute})
	ctx := context.Background()

	web1, _ := f.svc.Submit(ctx, validRequest(), "ip")
	_, _ = f.svc.Submit(ctx, validRequest(), "ip")
	video := validRequest()
	video.Service = "Video Editing"
	videoID, _ := f.svc.Submit(ctx, video, "ip")
	blank := validRequest()
	blank.Service = ""
	_, _ = f.svc.Submit(ctx, blank, "ip")

	_ = f.svc.UpdateStatus(ctx, web1, StatusContacted)
	_ = f.svc.UpdateStatus(ctx, videoID, StatusInProgress)

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.Total != 4 || stats.New != 2 || stats.Contacted != 1 || stats.InProgress != 1 || stats.Completed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(stats.ByService) != 2 || stats.ByService["Web Development"] != 2 || stats.ByService["Video Editing"] != 1 {
		t.Fatalf("unexpected by_service %v", stats.ByService)
	}
}

func TestStatsCachedUntilWrite(t *testing.T) {
	f := newFixture(Options{Strict: true, StatsTTL: time.Minute})
	ctx := context.Background()
	_, _ = f.svc.Submit(ctx, validRequest(), "ip")

	if _, err := f.svc.Stats(ctx); err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if _, err := f.svc.Stats(ctx); err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if f.repo.counts != 1 {
		t.Fatalf("expected cached stats, repo counted %d times", f.repo.counts)
	}

	id, _ := f.svc.Submit(ctx, validRequest(), "ip")
	stats, _ := f.svc.Stats(ctx)
	if stats.Total != 2 || f.repo.counts != 2 {
		t.Fatalf("submit should invalidate stats, got total=%d counts=%d", stats.Total, f.repo.counts)
	}

	_ = f.svc.Delete(ctx, id)
	stats, _ = f.svc.Stats(ctx)
	if stats.Total != 1 {
		t.Fatalf("delete should invalidate stats, got total=%d", stats.Total)
	}
}
