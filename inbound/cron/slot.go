package cron

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"log/slog"
	"stall-ticket/allocator"
	"stall-ticket/common"
	"stall-ticket/common/constant"
	"stall-ticket/common/vars"
	"stall-ticket/model"
	"strconv"
	"time"
)

// SlotCron lazily generates the current day's slots, seeds the redis
// remaining counters, and keeps the in-process board snapshot fresh. Day
// rollover falls out of using today's date on every tick.
type SlotCron struct {
	Cfg       *viper.Viper
	Cache     *redis.Client
	Allocator *allocator.Allocator
}

func (in SlotCron) Start(ctx context.Context) {
	refreshTicker := time.NewTicker(in.Cfg.GetDuration("cron.slot.refresh.interval"))
	defer refreshTicker.Stop()

	// Run initial refresh
	in.refresh(ctx)

	slog.Info("slot cron started")

	// Block in the main function, not in a goroutine
	for {
		select {
		case <-refreshTicker.C:
			in.refresh(ctx)
		case <-ctx.Done():
			slog.Info("slot cron stopped")
			return
		}
	}
}

func (in SlotCron) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, in.Cfg.GetDuration("cron.slot.refresh.timeout"))
	defer cancel()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	slog.DebugContext(ctx, "refreshing slot board", traceIdAttr)

	date := in.Allocator.Today()

	if err := in.Allocator.EnsureDaySlots(ctx, date); err != nil {
		slog.ErrorContext(ctx, "failed to ensure day slots", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return
	}

	slots, err := in.Allocator.Slots.ListSlotsByDate(ctx, date)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list slots", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return
	}

	remainingKeys := make([]string, 0, len(slots))
	pipe := in.Cache.TxPipeline()
	for _, slot := range slots {
		key := fmt.Sprintf(constant.EachSlotRemainingKey, slot.Date, slot.SlotStart)
		remainingKeys = append(remainingKeys, key)
		pipe.SetNX(ctx, key, slot.Cap-slot.Issued, constant.SlotRemainingKeyTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to seed slot remaining counters", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return
	}

	remaining, err := in.Cache.MGet(ctx, remainingKeys...).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to get remaining counters from cache", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return
	}

	paused, err := in.Allocator.Paused(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read paused flag", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return
	}

	board := &model.SlotBoardResponse{Date: date, Paused: paused}
	for i, slot := range slots {
		rem := slot.Cap - slot.Issued

		// the cache counter sees in-flight issuance before the store does
		if value, ok := remaining[i].(string); ok && value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				slog.ErrorContext(ctx, "failed to convert remaining to int", traceIdAttr, slog.Any(constant.LogFieldErr, err))
				return
			}
			rem = int32(parsed)
		}

		if rem < 0 {
			rem = 0
		}

		board.Slots = append(board.Slots, model.SlotResponse{
			SlotStart: slot.SlotStart,
			SlotEnd:   slot.SlotEnd,
			Code:      slot.Code,
			Cap:       slot.Cap,
			Remaining: rem,
			Available: slot.Open && rem > 0 && !paused && in.Allocator.InWindow(slot.SlotStart),
		})
	}

	vars.SetBoard(board)

	slog.DebugContext(ctx, "slot board refreshed successfully", traceIdAttr)
}

// EnsureToday generates today's slots and seeds the remaining counters. Run
// once at startup before the HTTP surface starts taking issue requests.
func (in SlotCron) EnsureToday(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	date := in.Allocator.Today()

	if err := in.Allocator.EnsureDaySlots(ctx, date); err != nil {
		slog.ErrorContext(ctx, "failed to ensure day slots", slog.Any(constant.LogFieldErr, err))
		return fmt.Errorf("ensure day slots: %w", err)
	}

	slots, err := in.Allocator.Slots.ListSlotsByDate(ctx, date)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list slots", slog.Any(constant.LogFieldErr, err))
		return fmt.Errorf("list slots: %w", err)
	}

	pipe := in.Cache.TxPipeline()
	for _, slot := range slots {
		pipe.SetNX(ctx, fmt.Sprintf(constant.EachSlotRemainingKey, slot.Date, slot.SlotStart), slot.Cap-slot.Issued, constant.SlotRemainingKeyTTL)
	}

	if _, err = pipe.Exec(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to initialize slot remaining counters in cache", slog.Any(constant.LogFieldErr, err))
		return fmt.Errorf("execute pipeline: %w", err)
	}

	slog.InfoContext(ctx, "slot remaining counters initialized successfully")
	return nil
}
