package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	api "github.com/mind-engage/mindengage-quiz/internal/api/http"
	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/bank"
	"github.com/mind-engage/mindengage-quiz/internal/config"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/events"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/logging"
	"github.com/mind-engage/mindengage-quiz/internal/practice"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

func main() {
	cfg := config.FromEnv()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("quizd stopped")
	}
}

// run owns every resource, so its deferred closes happen before main exits.
func run(cfg config.Config, log *logrus.Logger) error {
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	users := auth.NewUserStore(dbh, 0)
	created, err := users.EnsureAdmin(context.Background(), cfg.AdminUser, cfg.AdminPassHash)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.WithField("username", cfg.AdminUser).Info("admin account created")
	}

	// --- Events ---
	pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	if err != nil {
		log.WithError(err).Warn("event publisher unavailable, events are only logged to event_log")
		pub = events.Nop{}
	}
	defer pub.Close()
	eventRepo := syncx.NewEventRepo(dbh, cfg.SiteID)
	rec := events.NewRecorder(eventRepo, pub, log)

	// --- Services ---
	banks := bank.NewSQLStore(dbh)
	router := api.NewRouter(api.Deps{
		Auth:               auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL),
		Users:              users,
		Banks:              banks,
		Practice:           practice.NewSQLStore(dbh, driver, banks, rec, log),
		Exams:              exam.NewSQLStore(dbh, banks, rec, log),
		Events:             eventRepo,
		Log:                log,
		CORSOrigins:        cfg.CORSOrigins,
		EnableRegistration: cfg.EnableRegistration,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("listening on %s (db=%s, amqp=%t)", ln.Addr(), driver, cfg.AMQPURL != "")
	return serve(sigCtx, srv, ln, log)
}

// serve runs srv until ctx is done, then drains in-flight requests before
// returning.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, log logrus.FieldLogger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
