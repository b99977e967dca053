package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	dig_container "github.com/trezcool/somo/apps/api/di/dig"
	echoapi "github.com/trezcool/somo/apps/api/echo"
	"github.com/trezcool/somo/core"
	eventsvc "github.com/trezcool/somo/services/events"
	notifysvc "github.com/trezcool/somo/services/notify"
	tracingsvc "github.com/trezcool/somo/services/tracing"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		closeDB dig_container.DBCloser,
		hub *eventsvc.LocalHub,
		rp *eventsvc.RedisPublisher,
		_ *notifysvc.Notifier,
		shutdown chan os.Signal,
		server echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
		defer apiLogger.Info("Application stopped")

		defer func() {
			if err := closeDB(); err != nil {
				apiLogger.Error("failed to close database", err)
			}
		}()

		shutdownTracing, err := tracingsvc.Init(conf)
		if err != nil {
			apiLogger.Fatal(fmt.Sprintf("initializing tracing: %v", err), err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				apiLogger.Error("failed to flush traces", err)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if rp != nil {
			defer func() { _ = rp.Close() }()
			if err = rp.StartForwarder(ctx, hub); err != nil {
				apiLogger.Fatal(fmt.Sprintf("starting event forwarder: %v", err), err)
			}
		}

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		serverErrors := make(chan error, 1)
		go func() {
			apiLogger.Info("API listening on " + conf.Server.Address())
			serverErrors <- server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-serverErrors:
			if err != nil {
				apiLogger.Error(fmt.Sprintf("server error: %v", err), err)
			}

		case sig := <-shutdown:
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Stop(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
