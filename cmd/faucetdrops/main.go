package main

import (
	"context"
	"faucetdrops/cmd/faucetdrops/cmds"
	"faucetdrops/internal/api"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func main() {
	ctx := context.Background()
	app, cfg, err := cmds.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	if app.Scheduler != nil {
		app.Scheduler.Start()
	}
	stop, done := api.RunServerInterruptible(cfg.Port, app.Handler)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.WithField("signal", s.String()).Info("Shutting down")
	case err := <-done:
		if err != nil {
			log.WithError(err).Fatal("Server stopped")
		}
		return
	}

	if app.Scheduler != nil {
		<-app.Scheduler.Stop().Done()
	}
	close(stop)
	if err := <-done; err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	// Let in-flight refreshes finish writing their results.
	app.Runner.Wait()
}
