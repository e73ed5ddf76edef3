package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"tickloop/internal/app"
	logx "tickloop/pkg/logx"
	"tickloop/pkg/systemd"
)

func main() {
	var cfgPath, logLevel string
	var stopTimeout time.Duration
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config (json or yaml)")
	flag.StringVar(&logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	flag.DurationVar(&stopTimeout, "stop-timeout", 5*time.Second, "max time to wait for shutdown")
	flag.Parse()

	var opts []app.Option
	if logLevel != "" {
		opts = append(opts, app.WithLogLevel(logLevel))
	}
	a, err := app.NewApp(cfgPath, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	sd := systemd.New(a.Logger().With(logx.String("comp", "systemd")))
	a.SetReloadNotifier(sd)

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	sd.Ready()
	sd.Status("running %d timers", a.Registry().Len())

	go func() { _ = sd.Watchdog(ctx, framesAdvancing(a)) }()

	reason := app.StopAppStop
	select {
	case s := <-sigs:
		reason = app.StopSIGTERM
		if s == os.Interrupt {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
			a.Logger().Error("fatal", logx.Err(a.Err()))
		}
	}

	sd.Stopping()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	err = a.Stop(stopCtx, reason)
	stopCancel()
	cancel()

	if err != nil || reason == app.StopFatalError {
		os.Exit(1)
	}
}

// framesAdvancing reports healthy only when the host loop ran at least one
// frame since the previous check.
func framesAdvancing(a *app.App) func() bool {
	var last atomic.Uint64
	return func() bool {
		cur := a.Loop().Frames()
		return last.Swap(cur) != cur
	}
}
