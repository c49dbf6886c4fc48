// call-console is the staff terminal for advancing the called ticket
// number, pausing the queue and composing mail to upcoming visitors.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"hauntq/internal/client"
	"hauntq/internal/console"
	"hauntq/internal/logging"
	"hauntq/internal/telemetry"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL  string
		password string
		logFile  string
		timeout  time.Duration
		baseline time.Duration
		burst    time.Duration
		upcoming int
	)

	flagSet := pflag.NewFlagSet("call-console", pflag.ContinueOnError)
	flagSet.StringVar(&baseURL, "url", envOr("HAUNTQ_URL", "http://localhost:8080"), "reservation service base URL")
	flagSet.StringVar(&password, "password", "", "admin password (default $HAUNTQ_ADMIN_PASSWORD)")
	flagSet.StringVar(&logFile, "log-file", "", "write JSON logs to this file")
	flagSet.DurationVar(&timeout, "timeout", client.DefaultTimeout, "per-request timeout")
	flagSet.DurationVar(&baseline, "poll", console.DefaultBaseline, "status poll interval")
	flagSet.DurationVar(&burst, "burst-poll", console.DefaultBurst, "poll interval right after a change")
	flagSet.IntVarP(&upcoming, "upcoming", "n", 5, "ticket holders to include in mail links")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if password == "" {
		password = os.Getenv("HAUNTQ_ADMIN_PASSWORD")
	}
	if password == "" {
		return errors.New("admin password required (--password or HAUNTQ_ADMIN_PASSWORD)")
	}

	logger, closeLog, err := openLogger(logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	shutdownTelemetry := telemetry.Setup("call-console", logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	api, err := client.New(client.Options{BaseURL: baseURL, Timeout: timeout})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := api.Login(ctx, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var program *tea.Program
	controller := console.NewController(api, console.Options{
		Poller: console.PollerOptions{Baseline: baseline, Burst: burst},
		Logger: logger,
		// Changes can fire from inside Update, where a blocking Send would
		// deadlock the event loop.
		OnChange: func(console.View) {
			if program != nil {
				go program.Send(refreshMsg{})
			}
		},
	})
	program = tea.NewProgram(newModel(controller, timeout, upcoming), tea.WithAltScreen())

	go func() {
		if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.LogError(logger, "main", "controller.Run", err, nil)
		}
	}()

	_, err = program.Run()
	return err
}

func openLogger(path string) (*logrus.Logger, func(), error) {
	if path == "" {
		return logging.Discard(), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewWithOutput(envOr("LOG_LEVEL", "info"), file), func() { _ = file.Close() }, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `hauntq call console: advance the called number and pause or reset the queue.

Logs in with the admin password, then polls the reservation service. Changes
show immediately and are reverted if the service rejects them.

Usage:
  call-console [flags]

Flags:
%s`, flagSet.FlagUsages())
}
