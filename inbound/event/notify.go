package event

import (
	"context"
	"encoding/json"
	"github.com/oklog/ulid/v2"
	"log/slog"
	"stall-ticket/common/constant"
	"stall-ticket/model"
	emailOutbound "stall-ticket/outbound/email"
	"time"
)

type NotifyEvent struct {
	EmailOutbound emailOutbound.EmailOutbound
	Timeout       time.Duration
}

func (in NotifyEvent) SendNotificationHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.SendNotificationEventMessage
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "send notification event unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	traceIdAttr := slog.String(constant.LogFieldTraceId, ulid.Make().String())
	reqAttr := slog.Any(constant.LogFieldPayload, string(msg))

	err = in.EmailOutbound.Send([]string{req.To}, req.Subject, req.Body)
	if err != nil {
		slog.ErrorContext(ctx, "send notification event error", slog.Any(constant.LogFieldErr, err), reqAttr, traceIdAttr)
		return err
	}

	return nil
}
