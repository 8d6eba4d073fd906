package bookings

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tivrox-backend/internal/httpx"
	"tivrox-backend/internal/middleware"
	"tivrox-backend/internal/transport"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	log     *slog.Logger
}

func NewHandler(service *Service, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ip := middleware.ClientIP(r)

	var req SubmitRequest
	// Extra form fields from older or newer clients are ignored, not rejected.
	if err := httpx.DecodeJSONIgnoreUnknown(r.Body, &req); err != nil {
		log.Warn("booking create: invalid json", slog.String("ip", ip))
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	// A client hanging up must not abort the store write. Each insert
	// attempt carries its own deadline.
	id, err := h.service.Submit(context.WithoutCancel(r.Context()), req, ip)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.Is(err, ErrSpam):
			transport.WriteError(w, http.StatusBadRequest, "Invalid submission", nil)
		case errors.As(err, &verr):
			transport.WriteError(w, http.StatusBadRequest, "validation error", verr.Details)
		default:
			log.Error("booking create: unexpected error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		}
		return
	}

	transport.WriteJSON(w, http.StatusOK, SubmitResponse{
		Status:    "success",
		Message:   SuccessMessage,
		BookingID: id,
	})
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	filter := ListFilter{
		Service: r.URL.Query().Get("service"),
		Status:  r.URL.Query().Get("status"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, err := h.service.List(ctx, filter)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("admin bookings list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin bookings list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, ListResponse{Bookings: items, Total: len(items)})
}

func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin bookings status: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req StatusUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin bookings status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.UpdateStatus(ctx, id, req.Status); err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			log.Warn("admin bookings status: invalid status", slog.String("status", req.Status))
			transport.WriteError(w, http.StatusBadRequest, "Invalid status. Must be one of: "+strings.Join(Statuses, ", "), nil)
		case errors.Is(err, ErrNotFound):
			log.Warn("admin bookings status: not found", slog.String("booking_id", id))
			transport.WriteError(w, http.StatusNotFound, "Booking not found", nil)
		default:
			log.Error("admin bookings status: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("admin bookings status: ok",
		slog.String("booking_id", id),
		slog.String("status", req.Status),
		slog.String("admin", middleware.AdminFromContext(r.Context())),
	)
	transport.WriteSuccess(w, "Status updated to "+req.Status)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin bookings delete: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin bookings delete: not found", slog.String("booking_id", id))
			transport.WriteError(w, http.StatusNotFound, "Booking not found", nil)
			return
		}
		log.Error("admin bookings delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin bookings delete: ok",
		slog.String("booking_id", id),
		slog.String("admin", middleware.AdminFromContext(r.Context())),
	)
	transport.WriteSuccess(w, "Booking deleted")
}

func (h *Handler) AdminExport(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"format": "oneof"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	items, err := h.service.Export(ctx)
	if err != nil {
		log.Error("admin bookings export: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = WriteXLSX(&buf, items)
	} else {
		err = WriteCSV(&buf, items)
	}
	if err != nil {
		log.Error("admin bookings export: encode error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "export error", nil)
		return
	}

	log.Info("admin bookings export: ok", slog.Int("count", len(items)), slog.String("format", format))
	httpx.AttachmentHeaders(w, contentType, ExportFilename(time.Now(), format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		log.Error("admin stats: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	transport.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
