package http

import (
	"encoding/json"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"net/http"
	"stall-ticket/allocator"
	"stall-ticket/common"
	"stall-ticket/common/constant"
	"stall-ticket/common/errs"
	"stall-ticket/common/otel"
	"stall-ticket/model"
	"time"
)

type TicketHttp struct {
	Allocator *allocator.Allocator
	Cache     *redis.Client
	Publisher jetstream.Publisher
	Validate  *validator.Validate
}

func RegisterTicketHttp(
	mux *http.ServeMux,
	alloc *allocator.Allocator,
	cache *redis.Client,
	publisher jetstream.Publisher,
	validate *validator.Validate,
) *TicketHttp {
	in := &TicketHttp{
		Allocator: alloc,
		Cache:     cache,
		Publisher: publisher,
		Validate:  validate,
	}

	mux.HandleFunc("POST /api/tickets", in.issue)
	mux.HandleFunc("GET /api/tickets/{id}", in.find)

	return in
}

func (in *TicketHttp) issue(w http.ResponseWriter, r *http.Request) {
	var req model.IssueTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "TicketHttp.issue")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "issue ticket receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	if !in.Allocator.InWindow(req.SlotStart) {
		slog.DebugContext(ctx, "slot outside issuance window", traceIdAttr)
		writeErrorResponse(w, errs.ErrIssuanceSuspended)
		return
	}

	// reject slot keys outside today's plan before they touch the cache,
	// so probing odd dates or off-grid times cannot seed garbage counters
	if !in.Allocator.KnownSlot(req.Date, req.SlotStart, req.SlotEnd) {
		slog.DebugContext(ctx, "unknown slot key", traceIdAttr)
		writeErrorResponse(w, errs.ErrSlotNotFound)
		return
	}

	paused, err := in.Allocator.Paused(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read paused flag", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if paused {
		slog.DebugContext(ctx, "issuance paused", traceIdAttr)
		writeErrorResponse(w, errs.ErrIssuanceSuspended)
		return
	}

	// a blind client retry reuses its token and lands here instead of
	// issuing a second ticket
	if req.RequestToken != "" {
		tokenLock, err := in.Cache.SetNX(ctx, fmt.Sprintf(constant.IssueRequestLock, req.RequestToken), true, constant.IssueRequestLockDefaultTTL).Result()
		if err != nil {
			slog.ErrorContext(ctx, "failed to set request token lock", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}

		if !tokenLock {
			slog.DebugContext(ctx, "duplicate request token", traceIdAttr)
			writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "Duplicate request"})
			return
		}
	}

	remainingKey := fmt.Sprintf(constant.EachSlotRemainingKey, req.Date, req.SlotStart)

	atomicVal, err := in.Cache.Decr(ctx, remainingKey).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrement slot remaining", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if atomicVal < 0 {
		slog.DebugContext(ctx, "slot sold out", traceIdAttr)

		redisErr := in.Cache.Incr(ctx, remainingKey).Err()
		if redisErr != nil {
			slog.ErrorContext(ctx, "failed to restore slot remaining", traceIdAttr, slog.Any(constant.LogFieldErr, redisErr))
		}

		writeErrorResponse(w, errs.ErrSlotFull)
		return
	}

	ticket, slot, err := in.Allocator.Issue(ctx, req.Date, req.SlotStart, req.SlotEnd, req.Method)
	if err != nil {
		// no ticket was created, so give the reserved counter back; after
		// this point a ticket exists and the counter must stay consumed
		redisErr := in.Cache.Incr(ctx, remainingKey).Err()
		if redisErr != nil {
			slog.ErrorContext(ctx, "failed to restore slot remaining", traceIdAttr, slog.Any(constant.LogFieldErr, redisErr))
		}

		slog.ErrorContext(ctx, "failed to issue ticket", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectTicketIssued, model.TicketIssuedEventMessage{
		TicketId:  ticket.Id,
		Date:      ticket.Date,
		SlotStart: ticket.SlotStart,
		SlotEnd:   ticket.SlotEnd,
		Code:      slot.Code,
		Issued:    slot.Issued,
		Cap:       slot.Cap,
		ExpiresAt: ticket.ExpiresAt.Format(time.RFC3339),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish ticket issued message", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "issue ticket success", traceIdAttr, slog.Any(constant.LogFieldResponse, ticket.Id))

	writeJSONResponse(w, http.StatusOK, model.IssueTicketResponse{
		TicketId:    ticket.Id,
		Date:        ticket.Date,
		SlotStart:   ticket.SlotStart,
		SlotEnd:     ticket.SlotEnd,
		ExpiresAt:   ticket.ExpiresAt.Format(time.RFC3339),
		ExpiresTime: ticket.ExpiresAt.Format(constant.ClockLayout),
	})
}

func (in *TicketHttp) find(w http.ResponseWriter, r *http.Request) {
	ticketId := r.PathValue("id")

	date := r.URL.Query().Get("date")
	if date == "" {
		date = in.Allocator.Today()
	}

	if _, err := time.Parse(constant.DateLayout, date); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid date"})
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "TicketHttp.find")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	ticket, err := in.Allocator.Find(ctx, date, ticketId)
	if err != nil {
		slog.DebugContext(ctx, "ticket lookup miss", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, model.TicketResponse{
		TicketId:    ticket.Id,
		IssuedAt:    ticket.IssuedAt.Format(time.RFC3339),
		Date:        ticket.Date,
		SlotStart:   ticket.SlotStart,
		SlotEnd:     ticket.SlotEnd,
		ExpiresAt:   ticket.ExpiresAt.Format(time.RFC3339),
		ExpiresTime: ticket.ExpiresAt.Format(constant.ClockLayout),
		Status:      ticket.Status,
	})
}
