package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"stockbot/internal/app"
	"stockbot/internal/config"
)

const defaultEnvFile = ".env"

type options struct {
	Config   string `short:"c" long:"config" env:"STOCKBOT_CONFIG" default:"./config.json" description:"Path to the config file (.json, .yaml or .yml)"`
	EnvFile  string `long:"env-file" default:".env" description:"dotenv file with TOKEN, OWNER_ID and ADMIN_IDS; missing is fine unless set explicitly"`
	LogLevel string `long:"log-level" env:"STOCKBOT_LOG_LEVEL" description:"Override logging.level (trace, debug, info, warn, error)"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	if err := config.LoadDotenv(opts.EnvFile, opts.EnvFile != defaultEnvFile); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, app.Options{
		ConfigPath: opts.Config,
		LogLevel:   opts.LogLevel,
		Env:        config.OSEnv(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.Stop(stopCtx, app.StopFatalError)
		stopCancel()
		os.Exit(1)
	}

	var reason app.StopReason
	select {
	case s := <-sig:
		reason = app.StopSIGINT
		if s == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)

	if reason == app.StopFatalError {
		fmt.Fprintln(os.Stderr, "fatal:", a.Err())
		os.Exit(1)
	}
}
