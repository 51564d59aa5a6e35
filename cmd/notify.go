package cmd

import (
	"context"
	"github.com/nats-io/nats.go/jetstream"
	"log"
	"log/slog"
	"stall-ticket/common/constant"
	jetstreamCommon "stall-ticket/common/jetstream"
	"stall-ticket/inbound/event"
	emailOutbound "stall-ticket/outbound/email"
	"time"
)

func runQueueNotifyCmd(ctx context.Context) {
	cfg := newCfg("env")

	natsConn := newNats(cfg)
	defer natsConn.Close()

	js := newJs(natsConn)
	jetstreamCommon.CreateQueueStream(ctx, js)

	st, err := js.Stream(ctx, constant.QueueStreamName)
	if err != nil {
		log.Fatalln("failed to get stream", err)
	}

	outbound := emailOutbound.EmailOutbound{Cfg: cfg}
	outbound.Init()

	notifyEvent := event.NotifyEvent{
		EmailOutbound: outbound,
		Timeout:       cfg.GetDuration("queue.notify.timeout"),
	}

	cons, err := st.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       "consumer:notify",
		FilterSubject: constant.NotifyWildcard,
		MaxDeliver:    cfg.GetInt("queue.notify.max_deliver"),
		AckWait:       cfg.GetDuration("queue.notify.ack_wait"),
	})
	if err != nil {
		log.Fatalln("failed to create consumer", err)
	}

	iter, err := cons.Messages()
	if err != nil {
		panic(err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := iter.Next()
				if err != nil && err != jetstream.ErrMsgIteratorClosed {
					slog.ErrorContext(ctx, "Error fetching message", slog.Any(constant.LogFieldErr, err))
					continue
				}

				if msg == nil {
					continue
				}

				var eventErr error
				switch msg.Subject() {
				case constant.SubjectSendNotification:
					eventErr = notifyEvent.SendNotificationHandler(ctx, msg.Data())
				}

				if eventErr != nil {
					msg.NakWithDelay(1 * time.Second)
					continue
				}

				if err := msg.Ack(); err != nil {
					slog.ErrorContext(ctx, "Error acknowledging message",
						slog.Any(constant.LogFieldErr, err),
						slog.Any(constant.LogFieldPayload, string(msg.Data())),
						slog.String("subject", msg.Subject()),
					)
					continue
				}
			}
		}
	}()

	slog.InfoContext(ctx, "notify queue consumer started")

	<-ctx.Done()

	iter.Stop()

	slog.InfoContext(ctx, "notify queue consumer stopped")
}
