// Main package for the astro-ingester command line tool.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/laav10/astro-ingester/cmd/astro-ingester/commands"
	"github.com/laav10/astro-ingester/internal/constants"
)

func main() {
	slog.SetLogLoggerLevel(constants.DefaultLogLevel)

	a, err := commands.New()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	os.Exit(run(a))
}

type app interface {
	Run() error
	UsageError() bool
	Quit()
}

// run runs a and returns the process exit code: 2 on usage errors, 1 on other errors.
func run(a app) int {
	defer quitOnSignal(a, syscall.SIGINT, syscall.SIGTERM)()

	if err := a.Run(); err != nil {
		slog.Error(err.Error())

		if a.UsageError() {
			return 2
		}
		return 1
	}

	return 0
}

// quitOnSignal calls a.Quit on the first of sigs received, until the returned function is called.
func quitOnSignal(a app, sigs ...os.Signal) (stop func()) {
	ctx, stopNotify := signal.NotifyContext(context.Background(), sigs...)
	stopped := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-stopped:
			return
		case <-ctx.Done():
		}

		// ctx is also done once stopped.
		select {
		case <-stopped:
			slog.Debug("Signal handling stopped")
		default:
			slog.Info("Quitting on signal")
			a.Quit()
		}
	}()

	return func() {
		close(stopped)
		stopNotify()
		wg.Wait()
	}
}
