package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	echoapi "github.com/theoremz/black/apps/api/echo"
	"github.com/theoremz/black/apps/shared"
	"github.com/theoremz/black/core"
	authsvc "github.com/theoremz/black/services/auth"
	metricsvc "github.com/theoremz/black/services/metrics"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger, err := shared.NewLogger("API", conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	defer logger.Sync()

	dbLogger, err := shared.NewLogger("DB", conf)
	if err != nil {
		log.Fatalf("setting up db logger: %v", err)
	}

	ctx := context.Background()

	// set up DB
	stores, err := shared.OpenStores(ctx, conf, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = stores.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	studentCache, closeCache := shared.NewStudentCache(ctx, conf, logger)
	defer func() {
		if err = closeCache(); err != nil {
			logger.Error(fmt.Sprintf("closing student cache: %v", err), err)
		}
	}()

	// set up services
	metrics := metricsvc.NewPrometheus()
	svcs := shared.NewServices(stores, studentCache, conf, logger, metrics)
	mailSvc := shared.NewMailService(conf, logger)
	verifier := authsvc.NewFirebaseVerifier(conf.Firebase, nil)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := shared.NewValidator()
	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Scheduler

	scheduler, err := newScheduler(conf, svcs.Readiness, mailSvc, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up scheduler: %v", err), err)
	}
	if scheduler != nil {
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Verifier:       verifier,
			ExamSvc:        svcs.Exam,
			ReadinessSvc:   svcs.Readiness,
			MailSvc:        mailSvc,
			Validate:       validate,
			Translator:     translator,
			MetricsHandler: metrics.Handler(),
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
