// Package server wires the filing service together: database and storage
// backends, the background validation handler, the REST API and the gRPC
// health endpoint, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/filingapi/internal/dbx"
	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/actions"
	"github.com/dmitrijs2005/filingapi/internal/server/api"
	"github.com/dmitrijs2005/filingapi/internal/server/config"
	"github.com/dmitrijs2005/filingapi/internal/server/institutions"
	"github.com/dmitrijs2005/filingapi/internal/server/notify"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filingapi/internal/server/services"
	"github.com/dmitrijs2005/filingapi/internal/server/storage"
	"github.com/dmitrijs2005/filingapi/internal/server/validation"

	gs "github.com/dmitrijs2005/filingapi/internal/server/grpc"
)

const (
	outboundTimeout = 30 * time.Second
	drainTimeout    = 30 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler *services.SubmissionHandler
	http    *api.Server
	grpc    *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository manager: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	st, err := storage.New(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	engine := validation.NewCSVEngine(validation.DefaultRules(), c.ValidationBatchSize, c.ValidationBatchCount)
	processor := services.NewProcessor(rm, st, engine, c, logger)
	handler := services.NewSubmissionHandler(processor, rm, db, dbx.ConnSessions(db),
		c.ExpiredSubmissionCheck, c.MaxConcurrentValidations, logger)

	mailer := notify.New(c.MailAPIURL, outboundTimeout)
	filings := services.NewFilingService(db, rm, processor, handler, mailer, logger)

	inst := institutions.New(c.UserFiAPIURL, outboundTimeout, institutions.DefaultTTL, logger)
	registry := actions.NewDefaultRegistry(filings, logger)
	gate := actions.NewGate(registry, filings, inst, logger)

	router := api.NewRouter(api.Options{
		Filings:           filings,
		Gate:              gate,
		SecretKey:         []byte(c.SecretKey),
		MaxUploadSize:     c.SubmissionFileSize,
		CreateValidations: c.CreateValidations,
		SignValidations:   c.SignValidations,
		ReopenValidations: c.ReopenValidations,
		Health:            db.PingContext,
		Log:               logger,
	})

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		handler: handler,
		http:    api.NewServer(c.EndpointAddrHTTP, router, logger),
		grpc:    gs.NewGRPCServer(c.EndpointAddrGRPC, logger, db.PingContext, 0),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// serve runs one server and cancels the app if it fails.
func (app *App) serve(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "grpc", app.grpc.Run)
	}()

	wg.Wait()

	// let in-flight validations finish their writes before the pool goes away
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := app.handler.Wait(drainCtx); err != nil {
		app.logger.Warn(drainCtx, "Validations still running at shutdown", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error(drainCtx, "db close", "error", err)
	}
	app.logger.Info(drainCtx, "App stopped")
}
