package cmd

import (
	"context"
	"fmt"
	"github.com/go-playground/validator/v10"
	"log"
	"log/slog"
	"net/http"
	"os"
	"runtime/pprof"
	"stall-ticket/allocator"
	jetstreamCommon "stall-ticket/common/jetstream"
	"stall-ticket/common/otel"
	inboundCron "stall-ticket/inbound/cron"
	inboundHttp "stall-ticket/inbound/http"
	"stall-ticket/outbound/pgstore"
	"time"
)

func runHttpServerCmd(ctx context.Context) {
	cfg := newCfg("env")

	if cfg.GetString("env") == "dev" {
		cpu, err := os.Create("http-cpu.prof")
		if err != nil {
			log.Fatalf("could not create CPU profile: %v", err)
		}
		defer cpu.Close()

		err = pprof.StartCPUProfile(cpu)
		if err != nil {
			log.Fatalf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()

		mem, err := os.Create("http-mem.prof")
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

	if cfg.GetBool("otel.enabled") {
		shutdown, err := otel.InitTracerProvider(ctx, cfg.GetString("otel.endpoint"))
		if err != nil {
			log.Fatalln("unable to init tracer provider", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("unable to shutdown tracer provider", slog.Any("error", err))
			}
		}()
	}

	validate := validator.New()

	db := newDb(cfg)
	defer db.Close()

	cacheClient := newRedis(cfg)
	defer cacheClient.Close()

	natsConn := newNats(cfg)
	defer natsConn.Close()

	js := newJs(natsConn)
	jetstreamCommon.CreateQueueStream(ctx, js)

	store := pgstore.New(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalln("unable to migrate store", err)
	}

	alloc := allocator.New(store, store, store, newAllocatorConfig(cfg))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		slog.DebugContext(r.Context(), "health check")
		w.WriteHeader(http.StatusOK)
	})

	timeoutMiddleware := inboundHttp.TimeoutMiddleware(20 * time.Second)

	inboundHttp.RegisterSlotHttp(mux, store)
	inboundHttp.RegisterTicketHttp(mux, alloc, cacheClient, js, validate)
	inboundHttp.RegisterAdminHttp(mux, cfg, alloc, js, validate)

	slotCron := &inboundCron.SlotCron{
		Cfg:       cfg,
		Cache:     cacheClient,
		Allocator: alloc,
	}

	err := slotCron.EnsureToday(ctx)
	if err != nil {
		log.Fatalln("unable to init slot board", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.GetInt("server.port")),
		Handler:           timeoutMiddleware(inboundHttp.CorsMiddleware(mux)),
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalln("unable to start server", err)
		}
	}()

	slog.Info("http server started")

	go func() {
		slotCron.Start(ctx)
	}()

	<-ctx.Done()

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutDown); err != nil {
		log.Fatalln("unable to shutdown server", err)
	}

	slog.Info("http server stopped")
}
