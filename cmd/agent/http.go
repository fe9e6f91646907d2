package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/logstash"
	"github.com/browsermob/agent/pkg/scheduler"
	"github.com/browsermob/agent/pkg/utils"
	"github.com/labstack/echo/v4"
)

// Serve batch progress and test logs until ctx is cancelled.
func serveHttp(ctx context.Context, sched *scheduler.Scheduler, stash logstash.LogStash, uri string) error {
	host, err := utils.ParseHttpUrl(uri)
	if err != nil {
		return err
	}

	r := echo.New()
	r.HideBanner = true
	r.HidePort = true
	r.Logger.SetOutput(log.NewLogWriter(log.DebugLevel))
	r.Use(utils.HttpLogger)
	scheduler.NewHttpHandler(sched, r)
	logstash.NewHttpHandler(stash, r)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.Shutdown(shutdownCtx)
	}()

	log.Info("Listening on http", host)

	if err := r.Start(host); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
