//go:build !unix

package main

import (
	"os"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

// restart exits and leaves restarting to the service manager.
func restart(log *logging.Logger) {
	log.Infow("exiting for restart")
	log.Sync()
	os.Exit(0)
}
