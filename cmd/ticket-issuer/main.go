// ticket-issuer registers a party for the attraction and follows the call
// counter until their ticket number comes up.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hauntq/internal/client"
	"hauntq/internal/config"
	"hauntq/internal/issuer"
	"hauntq/internal/logging"
	"hauntq/internal/models"
	"hauntq/internal/telemetry"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var (
		baseURL string
		email   string
		count   int
		age     string
		channel string
		timeout time.Duration
		poll    time.Duration
		watch   bool
		showQR  bool
		pdfPath string
	)

	flagSet := pflag.NewFlagSet("ticket-issuer", pflag.ContinueOnError)
	flagSet.StringVar(&baseURL, "url", envOr("HAUNTQ_URL", "http://localhost:8080"), "reservation service base URL")
	flagSet.StringVarP(&email, "email", "e", "", "contact email")
	flagSet.IntVarP(&count, "count", "c", 1, "party size (1-10)")
	flagSet.StringVarP(&age, "age", "a", models.AgeGeneral, "age group: 一般, 大学生, 高校生以下")
	flagSet.StringVar(&channel, "channel", models.ChannelWeb, "issue channel: web, mobile, tablet, admin")
	flagSet.DurationVar(&timeout, "timeout", client.DefaultTimeout, "per-request timeout")
	flagSet.DurationVar(&poll, "poll", issuer.DefaultPollInterval, "progress poll interval")
	flagSet.BoolVarP(&watch, "watch", "w", false, "keep polling until the ticket is called")
	flagSet.BoolVar(&showQR, "qr", false, "print the ticket QR code to the terminal")
	flagSet.StringVar(&pdfPath, "pdf", "", "write a printable ticket PDF to this path")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
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
	if email == "" {
		return errors.New("--email is required")
	}

	logger := logging.Discard()
	shutdownTelemetry := telemetry.Setup("ticket-issuer", logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	api, err := client.New(client.Options{BaseURL: baseURL, Timeout: timeout})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flow := issuer.New(api, issuer.Options{PollInterval: poll, Logger: logger})
	reservation, err := flow.Submit(ctx, client.CreateReservation{Email: email, Count: count, Age: age, Channel: channel})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code != "" {
			return fmt.Errorf("reservation rejected (%s): %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("reservation failed, not retried: %w", err)
	}
	fmt.Fprintf(out, "Ticket #%d issued for %s (party of %d, %s)\n", reservation.TicketNo, reservation.Email, reservation.Count, reservation.Age)
	if showQR {
		code, err := issuer.TerminalQR(reservation)
		if err != nil {
			return err
		}
		fmt.Fprint(out, code)
	}
	if pdfPath != "" {
		if err := writePDF(pdfPath, reservation); err != nil {
			return fmt.Errorf("ticket pdf: %w", err)
		}
		fmt.Fprintf(out, "Printable ticket written to %s\n", pdfPath)
	}

	if !watch {
		progress, err := flow.Check(ctx)
		if err != nil {
			return err
		}
		printProgress(out, progress)
		return nil
	}
	err = flow.Watch(ctx, func(p issuer.Progress) { printProgress(out, p) })
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func writePDF(path string, reservation models.Reservation) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := issuer.WriteTicketPDF(file, reservation, config.Config{EventTimezone: envOr("EVENT_TIMEZONE", "Asia/Tokyo")}.Location()); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func printProgress(out io.Writer, p issuer.Progress) {
	switch {
	case p.Called:
		fmt.Fprintf(out, "Now calling #%d: it's your turn!\n", p.CurrentNumber)
	case p.Paused:
		fmt.Fprintf(out, "Now calling #%d (paused), %d parties ahead of you\n", p.CurrentNumber, p.PartiesAhead)
	default:
		fmt.Fprintf(out, "Now calling #%d, %d parties ahead of you\n", p.CurrentNumber, p.PartiesAhead)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `hauntq ticket issuer: register a party and get a queue ticket.

A failed submission is reported and never retried automatically.

Usage:
  ticket-issuer --email you@example.com [--count N] [--age GROUP] [--watch]

Flags:
%s`, flagSet.FlagUsages())
}
