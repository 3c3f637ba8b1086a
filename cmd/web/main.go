package main

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"chatrelay/internal/automation"
	"chatrelay/internal/chat"
	"chatrelay/internal/config"
	"chatrelay/internal/handlers"
	"chatrelay/internal/store"
	"chatrelay/internal/viewmodel"
)

const (
	webhookPath = "/functions/v1/webhook-valezap"
	historyPath = "/api/messages"
	streamPath  = "/api/messages/stream"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

func main() {
	if err := setupLogger("info", false); err != nil {
		panic(err)
	}

	var logLevel string

	app := &cli.Command{
		Name:    "relay",
		Usage:   "Webhook chat relay with live message streams",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("RELAY_LOG_LEVEL"),
				Value:       "info",
				Destination: &logLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, setupLogger(logLevel, false)
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply schema migrations and exit",
				Action: migrate,
			},
			{
				Name:  "prune",
				Usage: "delete messages older than a retention window",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "retention window",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: prune,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("relay failed")
		os.Exit(1)
	}
}

func setupLogger(level string, production bool) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if production {
		output = os.Stderr
	}
	log.Logger = log.Output(output).Level(parsedLevel).With().Timestamp().Logger()
	return nil
}

// loadConfig reads the environment and switches the logger to JSON output in
// production.
func loadConfig(logLevel string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := setupLogger(logLevel, cfg.IsProduction()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, c *cli.Command) error {
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")

	cfg, err := loadConfig(c.String("log-level"))
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return err
	}

	broker := chat.NewBroker()
	ingest := chat.NewIngestor(st, broker, cfg.ReplyMode(), responderFor(cfg))
	log.Info().Str("mode", string(ingest.Mode())).Msg("auto reply configured")

	router := handlers.NewRouter(handlers.Deps{
		Store:  st,
		Broker: broker,
		Stream: chat.NewStream(broker, st, cfg.StreamPollInterval),
		Ingest: ingest,
		Keys:   handlers.Keys{Service: cfg.ServiceAPIKey, Client: cfg.ClientAPIKey},
		Page: viewmodel.ChatPage{
			Title:        "ValeZap",
			Welcome:      automation.WelcomeMessage,
			ClientAPIKey: cfg.ClientAPIKey,
			WebhookPath:  webhookPath,
			HistoryPath:  historyPath,
			StreamPath:   streamPath,
		},
		Static:         staticFS,
		RequestTimeout: cfg.RequestTimeout,
	})

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("env", cfg.Env).Msg("starting relay")
	return run(ctx, newServer(cfg.Addr(), router, cfg.RequestTimeout), ln)
}

func responderFor(cfg *config.Config) chat.Responder {
	switch cfg.ReplyMode() {
	case chat.ReplyRules:
		return automation.NewRules()
	case chat.ReplyWebhook, chat.ReplyForward:
		if cfg.AutomationURL == "" {
			log.Warn().Msg("AUTOMATION_URL is empty; messages will not be forwarded")
		}
		return automation.New(cfg.AutomationURL, cfg.AutomationAllowedHosts, cfg.AutomationTimeout)
	default:
		return nil
	}
}

func migrate(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c.String("log-level"))
	if err != nil {
		return err
	}
	driver, _, err := store.Resolve(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", string(driver)).Msg("schema up to date")
	return st.Close()
}

func prune(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c.String("log-level"))
	if err != nil {
		return err
	}
	olderThan := c.Duration("older-than")
	if olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	n, err := st.Prune(ctx, olderThan)
	if err != nil {
		return err
	}
	log.Info().Int64("deleted", n).Dur("older_than", olderThan).Msg("pruned messages")
	return nil
}

//go:embed static/*
var embeddedStatic embed.FS
