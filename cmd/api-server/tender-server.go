package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"etender/db"
	"etender/db/migrations"
	"etender/internal/audit"
	"etender/internal/auth"
	"etender/internal/bidding"
	"etender/internal/clock"
	"etender/internal/config"
	"etender/internal/evaluation"
	"etender/internal/handlers"
	"etender/internal/lock"
	"etender/internal/notify"
	"etender/internal/sweep"
	"etender/internal/tender"
	"etender/internal/verify"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting etender", slog.String("env", cfg.Env), slog.String("db_driver", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dbConn, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB, cfg.Database.Driver, log); err != nil {
		return err
	}

	store := db.NewStorage(dbConn)
	clk := clock.System{}

	if cfg.Auth.UsersFile != "" {
		n, err := auth.LoadSeed(ctx, store, cfg.Auth.UsersFile, clk)
		if err != nil {
			return err
		}
		log.Info("users seeded", slog.Int("created", n))
	}

	issuer, err := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.TTL, clk)
	if err != nil {
		return err
	}

	auditLog := audit.New(store, clk, log, cfg.Database.OpTimeout)
	report, err := auditLog.VerifyChain(ctx, 1)
	if err != nil {
		return err
	}
	if !report.Valid {
		// журнал остановлен: чтение работает, запись вернет 503 до POST /audit/resume
		log.Error("audit chain is broken, writes are halted",
			slog.Int64("seq", report.BrokenSeq), slog.String("reason", report.Reason))
	} else {
		log.Info("audit chain verified", slog.Int("entries", report.Checked))
	}

	// один набор блокировок на все сервисы
	locks := lock.NewKeyed()
	tenders := tender.NewService(store, auditLog, clk, locks)
	ledger := bidding.NewLedger(store, auditLog, clk, locks)
	engine := evaluation.NewEngine(store, auditLog, clk, locks)

	dispatcher := notify.NewDispatcher(store, log)
	auditLog.Subscribe(dispatcher.Handle)
	if n, err := dispatcher.CatchUp(ctx); err != nil {
		log.Warn("notification catch-up failed", slog.String("error", err.Error()))
	} else if n > 0 {
		log.Info("notifications caught up", slog.Int("delivered", n))
	}

	sweeper := sweep.New(store, tenders, ledger, dispatcher, clk, cfg.Sweep.ReminderLead, log)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx, cfg.Sweep.Interval)
	}()

	h := &handlers.Handler{
		Tenders:       tenders,
		Bids:          ledger,
		Evaluations:   engine,
		Audit:         auditLog,
		Notifications: dispatcher,
		Verify:        verify.New(store),
		Auth:          auth.NewService(store, issuer),
		Store:         store,
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handlers.NewRouter(h, issuer.Middleware, cfg.HTTP.RequestTimeout),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	err = srv.Shutdown(shutdownCtx)
	cancel()
	<-sweepDone
	return err
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
