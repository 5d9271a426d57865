//go:build !unix

package main

import (
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
)

// handleSignals calls shutdown on interrupt. Reload is only reachable
// through the admin listener here.
func handleSignals(shutdown, reload func()) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigs:
			log.Infof("received %s, shutting down", sig)
			shutdown()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
