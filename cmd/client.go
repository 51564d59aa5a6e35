package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"stall-ticket/common/constant"
	"stall-ticket/model"
	"time"
)

func runClientCmd(ctx context.Context) {
	cfg := newCfg("env")

	issueTicker := time.NewTicker(cfg.GetDuration("client.issue_interval"))
	defer issueTicker.Stop()

	issueUrl := cfg.GetString("client.issue_url")
	slotStart := cfg.GetString("client.slot_start")
	slotEnd := cfg.GetString("client.slot_end")

	client := &http.Client{
		Timeout: 20 * time.Second,
	}

	slog.InfoContext(ctx, "client started", slog.String("issue_url", issueUrl))

	go func() {
		for {
			select {
			case <-issueTicker.C:
				go func() {
					reqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()

					payload, err := json.Marshal(model.IssueTicketRequest{
						Date:      time.Now().In(constant.JST).Format(constant.DateLayout),
						SlotStart: slotStart,
						SlotEnd:   slotEnd,
						Method:    constant.TicketMethodWeb,
					})
					if err != nil {
						slog.ErrorContext(ctx, "Failed to marshal request", slog.Any("error", err))
						return
					}

					req, err := http.NewRequestWithContext(reqCtx, "POST", issueUrl, bytes.NewReader(payload))
					if err != nil {
						slog.ErrorContext(ctx, "Failed to create request",
							slog.String("url", issueUrl),
							slog.Any("error", err))
						return
					}
					req.Header.Set("Content-Type", "application/json")

					// Fire and forget - ignore response
					resp, _ := client.Do(req)
					if resp != nil {
						resp.Body.Close() // Important to prevent resource leaks
					}
				}()

			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()

	slog.InfoContext(ctx, "client stopped")
}
