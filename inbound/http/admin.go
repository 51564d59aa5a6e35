package http

import (
	"encoding/json"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/viper"
	"log/slog"
	"net/http"
	"stall-ticket/allocator"
	"stall-ticket/common"
	"stall-ticket/common/constant"
	"stall-ticket/common/errs"
	"stall-ticket/common/otel"
	"stall-ticket/model"
	"strconv"
)

// AdminHttp mutates slot and app state. Every mutation publishes a
// state-changed event; the ticket consumer fans those out to staff
// notifications, so handlers never compose notification bodies themselves.
type AdminHttp struct {
	Allocator *allocator.Allocator
	Publisher jetstream.Publisher
	Validate  *validator.Validate
}

func RegisterAdminHttp(
	mux *http.ServeMux,
	cfg *viper.Viper,
	alloc *allocator.Allocator,
	publisher jetstream.Publisher,
	validate *validator.Validate,
) *AdminHttp {
	in := &AdminHttp{
		Allocator: alloc,
		Publisher: publisher,
		Validate:  validate,
	}

	pin := AdminPinMiddleware(cfg.GetString("admin.pin"))

	mux.Handle("PUT /api/admin/slots/open", pin(http.HandlerFunc(in.setSlotOpen)))
	mux.Handle("PUT /api/admin/paused", pin(http.HandlerFunc(in.setPaused)))
	mux.Handle("PUT /api/admin/banner", pin(http.HandlerFunc(in.setBanner)))
	mux.Handle("PUT /api/admin/current-slot", pin(http.HandlerFunc(in.setCurrentSlot)))

	return in
}

func (in *AdminHttp) setSlotOpen(w http.ResponseWriter, r *http.Request) {
	var req model.SetSlotOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "AdminHttp.setSlotOpen")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "set slot open receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	slot, err := in.Allocator.SetSlotOpen(ctx, req.Date, req.SlotStart, req.SlotEnd, *req.Open)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set slot open", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectSlotStateChanged, model.SlotStateChangedEventMessage{
		Date:      slot.Date,
		SlotStart: slot.SlotStart,
		SlotEnd:   slot.SlotEnd,
		Code:      slot.Code,
		Issued:    slot.Issued,
		Cap:       slot.Cap,
		Open:      slot.Open,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish slot state changed message", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "set slot open success", traceIdAttr)

	writeJSONResponse(w, http.StatusOK, nil)
}

func (in *AdminHttp) setPaused(w http.ResponseWriter, r *http.Request) {
	var req model.SetPausedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "AdminHttp.setPaused")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "set paused receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	if err := in.Allocator.SetPaused(ctx, *req.Paused); err != nil {
		slog.ErrorContext(ctx, "failed to set paused", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	err := common.PublishMessage(ctx, in.Publisher, constant.SubjectStateChanged, model.StateChangedEventMessage{
		Key:   constant.StateKeyPaused,
		Value: strconv.FormatBool(*req.Paused),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish state changed message", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, nil)
}

func (in *AdminHttp) setBanner(w http.ResponseWriter, r *http.Request) {
	var req model.SetBannerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx := r.Context()
	if err := in.Allocator.SetBanner(ctx, req.Banner); err != nil {
		slog.ErrorContext(ctx, "failed to set banner", slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	err := common.PublishMessage(ctx, in.Publisher, constant.SubjectStateChanged, model.StateChangedEventMessage{
		Key:   constant.StateKeyBanner,
		Value: req.Banner,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish state changed message", slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, nil)
}

func (in *AdminHttp) setCurrentSlot(w http.ResponseWriter, r *http.Request) {
	var req model.SetCurrentSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx := r.Context()
	if err := in.Allocator.SetCurrentSlot(ctx, req.CurrentSlot); err != nil {
		slog.ErrorContext(ctx, "failed to set current slot", slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	err := common.PublishMessage(ctx, in.Publisher, constant.SubjectStateChanged, model.StateChangedEventMessage{
		Key:   constant.StateKeyCurrentSlot,
		Value: req.CurrentSlot,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish state changed message", slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, nil)
}
