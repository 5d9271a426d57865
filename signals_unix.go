//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// handleSignals calls shutdown on SIGINT or SIGTERM and reload on SIGUSR1.
// SIGPIPE is ignored. The returned func stops signal delivery.
func handleSignals(shutdown, reload func()) func() {
	signal.Ignore(syscall.SIGPIPE)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				if sig == syscall.SIGUSR1 {
					log.Info("received SIGUSR1, reloading")
					reload()
					continue
				}
				log.Infof("received %s, shutting down", sig)
				shutdown()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
