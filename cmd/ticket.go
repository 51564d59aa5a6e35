package cmd

import (
	"context"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"log"
	"log/slog"
	"os"
	"runtime/pprof"
	"stall-ticket/common/constant"
	jetstreamCommon "stall-ticket/common/jetstream"
	"stall-ticket/inbound/event"
	"stall-ticket/outbound/pgstore"
	"time"
)

func runQueueTicketCmd(ctx context.Context) {
	cfg := newCfg("env")

	if cfg.GetString("env") == "dev" {
		cpu, err := os.Create("ticket-cpu.prof")
		if err != nil {
			log.Fatalf("could not create CPU profile: %v", err)
		}
		defer cpu.Close()

		err = pprof.StartCPUProfile(cpu)
		if err != nil {
			log.Fatalf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()

		mem, err := os.Create("ticket-mem.prof")
		if err != nil {
			log.Fatalf("could not create memory profile: %v", err)
		}
		defer mem.Close()

		err = pprof.WriteHeapProfile(mem)
		if err != nil {
			log.Fatalf("could not write memory profile: %v", err)
		}
		defer mem.Close()
	}

	db := newDb(cfg)
	defer db.Close()

	store := pgstore.New(db)

	natsConn := newNats(cfg)
	defer natsConn.Close()

	js := newJs(natsConn)
	jetstreamCommon.CreateQueueStream(ctx, js)

	st, err := js.Stream(ctx, constant.QueueStreamName)
	if err != nil {
		log.Fatalln("failed to get stream", err)
	}

	ticketEvent := event.TicketEvent{
		State:      store,
		Publisher:  js,
		Printer:    message.NewPrinter(language.Japanese),
		StaffEmail: cfg.GetString("notify.staff_email"),
		Timeout:    cfg.GetDuration("queue.ticket.timeout"),
	}

	cons, err := st.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:        "consumer:ticket",
		FilterSubjects: []string{constant.TicketWildcard, constant.SlotWildcard, constant.StateWildcard},
		MaxDeliver:     cfg.GetInt("queue.ticket.max_deliver"),
		AckWait:        cfg.GetDuration("queue.ticket.ack_wait"),
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
				case constant.SubjectTicketIssued:
					eventErr = ticketEvent.IssuedHandler(ctx, msg.Data())
				case constant.SubjectSlotStateChanged:
					eventErr = ticketEvent.SlotStateChangedHandler(ctx, msg.Data())
				case constant.SubjectStateChanged:
					eventErr = ticketEvent.StateChangedHandler(ctx, msg.Data())
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

	slog.InfoContext(ctx, "ticket queue consumer started")

	<-ctx.Done()

	iter.Stop()

	slog.InfoContext(ctx, "ticket queue consumer stopped")
}
