//go:build !windows

package utils

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/browsermob/agent/pkg/log"
	"golang.org/x/sys/unix"
)

func init() {
	ch := make(chan os.Signal, 10)
	signal.Notify(ch, unix.SIGUSR1)

	go func() {
		for range ch {
			buf := make([]byte, 1<<16)
			len := runtime.Stack(buf, true)
			fmt.Printf("%s\n", buf[:len])
		}
	}()
}

// InterruptContext returns a context that is cancelled on the first
// SIGINT or SIGTERM. A second signal terminates the process.
func InterruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)

	go func() {
		defer signal.Stop(ch)

		select {
		case sig := <-ch:
			log.Warnf("Received %v, cancelling outstanding tests", sig)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-ch:
			log.Errorf("Received %v again, terminating", sig)
			os.Exit(130)
		case <-parent.Done():
		}
	}()

	return ctx, cancel
}
