package cmd

import (
	"time"

	cli "github.com/urfave/cli/v3"
)

const (
	defaultHTTPTimeout   = 15 * time.Second
	defaultStaleRunAfter = 15 * time.Minute
)

// CommonFlags are shared by the API and the worker.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file://dir or postgres://...)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "kafka:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the run lock, in-memory lock when empty",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:    "telegram-token",
			Usage:   "Telegram bot token used by messaging.telegram",
			Sources: cli.EnvVars("TELEGRAM_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "whatsapp-token",
			Usage:   "WhatsApp Cloud API token used by messaging.whatsapp",
			Sources: cli.EnvVars("WHATSAPP_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "whatsapp-phone-number-id",
			Usage:   "WhatsApp sender phone number ID",
			Sources: cli.EnvVars("WHATSAPP_PHONE_NUMBER_ID"),
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "Timeout of outgoing HTTP calls made by runners",
			Value:   defaultHTTPTimeout,
			Sources: cli.EnvVars("HTTP_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    "stale-run-after",
			Usage:   "Age after which unfinished runs are marked as failed",
			Value:   defaultStaleRunAfter,
			Sources: cli.EnvVars("STALE_RUN_AFTER"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}
