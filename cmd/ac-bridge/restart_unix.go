//go:build unix

package main

import (
	"os"
	"syscall"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

// restart replaces the process with a fresh copy of the binary. The broker
// sees the connection drop and publishes the will.
func restart(log *logging.Logger) {
	exe, err := os.Executable()
	if err != nil {
		log.Errorw("restart: locate executable", "err", err)
		os.Exit(1)
	}
	log.Infow("restarting", "exe", exe)
	log.Sync()
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		log.Errorw("restart: exec", "err", err)
		os.Exit(1)
	}
}
