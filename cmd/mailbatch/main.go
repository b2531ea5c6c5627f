// Package main is the entry point for mailbatch, which sends a JSON list of
// messages through a mail client one at a time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/shineum/mailbatch/internal/compose"
	"github.com/shineum/mailbatch/internal/config"
	"github.com/shineum/mailbatch/internal/dispatch"
	"github.com/shineum/mailbatch/internal/loader"
)

const usage = `usage:
  mailbatch [-config file.yaml] [-env file.env] <emails.json>
  mailbatch compose -template t.yaml -users users.csv [-attachment file] [-hide-password-from-cc] [-o emails.json]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("mailbatch failed", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the send or compose command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "compose" {
		return runCompose(args[1:], stdout, stderr)
	}
	return runSend(ctx, args, stdout, stderr)
}

// runSend loads the record file and sends every record in order.
func runSend(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mailbatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML configuration file (optional)")
	envPath := fs.String("env", "", "path to dotenv file (default .env if present)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, usage)
		return errors.New("expected exactly one input file")
	}
	inputPath := fs.Arg(0)

	if err := config.LoadEnvFile(*envPath); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogger(cfg.Logging.Level, stderr)
	slog.SetDefault(slog.Default().With("batch", uuid.NewString()))

	records, err := loader.Load(inputPath)
	if err != nil {
		return err
	}

	prov, err := selectProvider(ctx, cfg, stdout)
	if err != nil {
		return err
	}
	if c, ok := prov.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close provider", "provider", prov.Name(), "error", err)
			}
		}()
	}

	slog.Info("starting batch",
		"input", inputPath,
		"records", len(records),
		"provider", prov.Name(),
	)

	if err := dispatch.Run(ctx, prov, records); err != nil {
		return err
	}

	slog.Info("batch complete", "sent", len(records))
	return nil
}

// runCompose renders a template for every user and writes the record file.
func runCompose(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("compose", flag.ContinueOnError)
	fs.SetOutput(stderr)
	templatePath := fs.String("template", "", "path to YAML message template")
	usersPath := fs.String("users", "", "path to CSV user list")
	attachment := fs.String("attachment", "", "file to attach to every message")
	hide := fs.Bool("hide-password-from-cc", false, "send cc its own copy with {password} masked")
	outPath := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *templatePath == "" || *usersPath == "" {
		fmt.Fprintln(stderr, usage)
		return errors.New("compose requires -template and -users")
	}

	tmpl, err := compose.LoadTemplate(*templatePath)
	if err != nil {
		return err
	}
	users, err := compose.LoadUsers(*usersPath)
	if err != nil {
		return err
	}

	records, err := compose.Build(tmpl, users, compose.Options{
		Attachment:         *attachment,
		HidePasswordFromCC: *hide,
	})
	if err != nil {
		return err
	}

	if *outPath == "" {
		return compose.Write(stdout, records)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := compose.Write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string, w io.Writer) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
