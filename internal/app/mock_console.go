// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/headtrack/internal/pose"
	"github.com/relabs-tech/headtrack/internal/tracker"
)

// RunMockConsole runs the pipeline over the mock source and prints the
// published poses, with no broker or web server involved.
func RunMockConsole() error {
	opts := tracker.DefaultOptions()
	loop := tracker.New(pose.NewMockSource(), opts)
	if err := loop.Start(); err != nil {
		return err
	}
	defer loop.Wait()
	defer loop.RequestStop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			return nil
		case <-ticker.C:
		}

		printFrame(os.Stdout, newFrame("", loop.Snapshot()))
	}
}
