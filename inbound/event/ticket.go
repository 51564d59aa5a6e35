package event

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/text/message"
	"log/slog"
	"stall-ticket/common"
	"stall-ticket/common/constant"
	"stall-ticket/common/contract"
	"stall-ticket/common/otel"
	"stall-ticket/model"
	"time"
)

type TicketEvent struct {
	State      contract.StateStore
	Publisher  jetstream.Publisher
	Printer    *message.Printer
	StaffEmail string

	Timeout time.Duration
}

// IssuedHandler records the last issued ticket and the now-serving slot for
// the display page and, when the ticket was the slot's final one, notifies
// staff that the slot filled.
func (in TicketEvent) IssuedHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.TicketIssuedEventMessage
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "ticket issued event unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	ctx, span := otel.Tracer.Start(ctx, "TicketEvent.issued")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	slog.InfoContext(ctx, "ticket issued event receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	err = in.State.SetState(ctx, constant.StateKeyLastTicket, req.TicketId)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record last ticket", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	err = in.State.SetState(ctx, constant.StateKeyCurrentSlot, req.Code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record current slot", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	if req.Issued < req.Cap {
		return nil
	}

	notifyReq := model.SendNotificationEventMessage{
		To:      in.StaffEmail,
		Subject: fmt.Sprintf("Slot %s filled", req.Code),
		Body:    in.buildSlotFilledBody(req),
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectSendNotification, notifyReq)
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish slot filled notification", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	slog.InfoContext(ctx, "slot filled notification published", traceIdAttr)

	return nil
}

func (in TicketEvent) buildSlotFilledBody(req model.TicketIssuedEventMessage) string {
	capFormatted := in.Printer.Sprintf("%d", req.Cap)

	return fmt.Sprintf(constant.NotifySlotFilledTemplate,
		req.Code,
		req.SlotStart,
		req.SlotEnd,
		req.Date,
		capFormatted,
		req.ExpiresAt,
	)
}

// SlotStateChangedHandler fans a slot open/close out to staff.
func (in TicketEvent) SlotStateChangedHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.SlotStateChangedEventMessage
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "slot state changed event unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	ctx, span := otel.Tracer.Start(ctx, "TicketEvent.slotStateChanged")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	slog.InfoContext(ctx, "slot state changed event receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	stateWord := "closed"
	if req.Open {
		stateWord = "reopened"
	}

	notifyReq := model.SendNotificationEventMessage{
		To:      in.StaffEmail,
		Subject: fmt.Sprintf("Slot %s %s", req.Code, stateWord),
		Body: fmt.Sprintf(constant.NotifySlotToggledTemplate,
			req.Code, req.SlotStart, req.SlotEnd, req.Date, stateWord,
			in.Printer.Sprintf("%d", req.Issued), in.Printer.Sprintf("%d", req.Cap)),
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectSendNotification, notifyReq)
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish slot toggled notification", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	return nil
}

// StateChangedHandler fans pause flips out to staff. Banner and current-slot
// edits are routine board upkeep and only get a debug line.
func (in TicketEvent) StateChangedHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.StateChangedEventMessage
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "state changed event unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	ctx, span := otel.Tracer.Start(ctx, "TicketEvent.stateChanged")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	slog.InfoContext(ctx, "state changed event receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	if req.Key != constant.StateKeyPaused {
		slog.DebugContext(ctx, "state change needs no notification", traceIdAttr)
		return nil
	}

	stateWord := "resumed"
	if req.Value == "true" {
		stateWord = "paused"
	}

	notifyReq := model.SendNotificationEventMessage{
		To:      in.StaffEmail,
		Subject: fmt.Sprintf("Issuance %s", stateWord),
		Body:    fmt.Sprintf(constant.NotifyPauseToggledTemplate, stateWord),
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectSendNotification, notifyReq)
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish pause toggled notification", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	return nil
}
