package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shineum/mailbatch/internal/config"
	"github.com/shineum/mailbatch/internal/provider"
	"github.com/shineum/mailbatch/internal/provider/automation"
	"github.com/shineum/mailbatch/internal/provider/graph"
	"github.com/shineum/mailbatch/internal/provider/resend"
	"github.com/shineum/mailbatch/internal/provider/ses"
	"github.com/shineum/mailbatch/internal/provider/smtp"
	"github.com/shineum/mailbatch/internal/provider/stdout"
)

// selectProvider chooses the mail client based on configuration.
// An explicit PROVIDER must be fully configured. Without one, the desktop
// client for this OS is tried first, then any configured API provider,
// then stdout. The stdout provider prints to out.
func selectProvider(ctx context.Context, cfg *config.Config, out io.Writer) (provider.Provider, error) {
	switch cfg.Provider {
	case "automation":
		return newAutomation(cfg)

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, fmt.Errorf("graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET, and GRAPH_SENDER are required")
		}
		return newGraph(cfg), nil

	case "ses":
		if !cfg.SESConfigured() {
			return nil, fmt.Errorf("ses provider selected but SES_REGION and SES_SENDER are required")
		}
		return newSES(ctx, cfg)

	case "smtp":
		if !cfg.SMTPConfigured() {
			return nil, fmt.Errorf("smtp provider selected but SMTP_HOST and SMTP_FROM are required")
		}
		return newSMTP(cfg), nil

	case "resend":
		if !cfg.ResendConfigured() {
			return nil, fmt.Errorf("resend provider selected but RESEND_API_KEY and RESEND_SENDER are required")
		}
		return newResend(cfg), nil

	case "stdout":
		slog.Info("using stdout provider")
		return stdout.NewWithWriter(out), nil

	case "":
		if cfg.Automation.Client != "" || automation.DefaultClient() != "" {
			p, err := newAutomation(cfg)
			if err == nil {
				return p, nil
			}
			slog.Warn("desktop mail client not available", "error", err)
		}
		switch {
		case cfg.GraphConfigured():
			return newGraph(cfg), nil
		case cfg.SESConfigured():
			return newSES(ctx, cfg)
		case cfg.SMTPConfigured():
			return newSMTP(cfg), nil
		case cfg.ResendConfigured():
			return newResend(cfg), nil
		}
		slog.Info("no provider configured, using stdout provider")
		return stdout.NewWithWriter(out), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newAutomation(cfg *config.Config) (provider.Provider, error) {
	p, err := automation.New(automation.Config{
		Client:  cfg.Automation.Client,
		Command: cfg.Automation.Command,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("using desktop mail client", "provider", p.Name())
	return p, nil
}

func newGraph(cfg *config.Config) provider.Provider {
	slog.Info("using Microsoft Graph provider", "sender", cfg.Graph.Sender)
	return graph.New(graph.Config{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Sender:       cfg.Graph.Sender,
	})
}

func newSES(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	slog.Info("using AWS SES provider", "region", cfg.SES.Region, "sender", cfg.SES.Sender)
	p, err := ses.New(ctx, ses.Config{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
		Sender:          cfg.SES.Sender,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES provider: %w", err)
	}
	return p, nil
}

func newSMTP(cfg *config.Config) provider.Provider {
	slog.Info("using SMTP provider", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
	return smtp.New(smtp.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		TLS:      cfg.SMTP.TLS,
	})
}

func newResend(cfg *config.Config) provider.Provider {
	slog.Info("using Resend provider", "sender", cfg.Resend.Sender)
	return resend.New(resend.Config{
		APIKey: cfg.Resend.APIKey,
		Sender: cfg.Resend.Sender,
	})
}
