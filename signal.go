// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// interruptSignals are the signals that cancel a running command.
var interruptSignals = []os.Signal{os.Interrupt}

// interruptContext returns a context that is cancelled on the first SIGINT
// (Ctrl+C), which aborts a pending key derivation or device call.  A second
// SIGINT exits at once for a device prompt that does not return.  The
// returned function stops listening and must be called when the command is
// done.
func interruptContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, interruptSignals...)

	done := make(chan struct{})
	go func() {
		interrupted := false
		for {
			select {
			case sig := <-sigs:
				if interrupted {
					log.Warnf("Received signal (%s) again.  "+
						"Exiting.", sig)
					os.Exit(1)
				}
				interrupted = true
				log.Infof("Received signal (%s).  Cancelling...",
					sig)
				cancel()

			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
			cancel()
		})
	}
	return ctx, stop
}
