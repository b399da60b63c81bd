package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sandrolain/userkit/pkg/config"
	"github.com/sandrolain/userkit/pkg/gateway"
	"github.com/sandrolain/userkit/pkg/notify"
	"github.com/sandrolain/userkit/pkg/toolutil"
	"github.com/spf13/cobra"
)

// opener returns a gateway for the current settings and a function releasing it.
type opener func(ctx context.Context, a *app, opts ...gateway.Option) (*gateway.Gateway, func(), error)

type app struct {
	cfg *config.Config

	notifyKind    string
	notifyAddress string
	notifyTopic   string
	notifyFormat  string

	open opener
}

func newApp(cfg *config.Config) *app {
	return &app{cfg: cfg, open: openMongo, notifyTopic: "users.events", notifyFormat: "json"}
}

func rootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "usertool",
		Short:         "MongoDB users collection tool",
		Long:          "A CLI tool to create, read, update and delete users in a MongoDB collection. Supports concurrent bulk creation from a JSON or CBOR array.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return toolutil.SetLogLevel(a.cfg.LogLevel)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfg.URI, "uri", a.cfg.URI, "MongoDB connection URI (MONGODB_URI)")
	pf.StringVar(&a.cfg.Database, "database", a.cfg.Database, "Database name (MONGODB_DATABASE)")
	pf.StringVar(&a.cfg.Collection, "collection", a.cfg.Collection, "Collection name (MONGODB_COLLECTION)")
	pf.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "Timeout of each database operation (MONGODB_TIMEOUT)")
	pf.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "Log level: debug, info, warn, error (LOG_LEVEL)")
	pf.StringVar(&a.notifyKind, "notify", "", fmt.Sprintf("Publish change events to a broker: %v", notify.Kinds))
	pf.StringVar(&a.notifyAddress, "notify-address", "", "Broker address (defaults per broker)")
	pf.StringVar(&a.notifyTopic, "notify-topic", a.notifyTopic, "Channel, subject or topic for change events")
	pf.StringVar(&a.notifyFormat, "notify-format", a.notifyFormat, "Change event encoding: json or cbor")

	root.AddCommand(
		readCommand(a),
		createCommand(a),
		updateCommand(a),
		deleteCommand(a),
		watchCommand(a),
		generateCommand(),
	)
	return root
}

var defaultNotifyAddresses = map[string]string{
	"redis": "localhost:6379",
	"nats":  "nats://localhost:4222",
	"kafka": "localhost:9092",
	"mqtt":  "localhost:1883",
}

// notifier opens the configured broker, or returns nil when --notify is unset.
func (a *app) notifier() (*notify.Notifier, error) {
	if a.notifyKind == "" {
		return nil, nil
	}
	mime, err := toolutil.FormatMIME(a.notifyFormat)
	if err != nil || mime == toolutil.CTText {
		return nil, fmt.Errorf("invalid --notify-format %q (want json or cbor)", a.notifyFormat)
	}
	address := a.notifyAddress
	if address == "" {
		address = defaultNotifyAddresses[a.notifyKind]
	}
	n, err := notify.Open(a.notifyKind, address, a.notifyTopic, mime)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s notifier: %w", a.notifyKind, err)
	}
	return n, nil
}

func (a *app) gatewayOptions() []gateway.Option {
	return []gateway.Option{
		gateway.WithTimeout(a.cfg.Timeout),
		gateway.WithLogger(toolutil.Logger()),
	}
}

func openMongo(ctx context.Context, a *app, opts ...gateway.Option) (*gateway.Gateway, func(), error) {
	n, err := a.notifier()
	if err != nil {
		return nil, nil, err
	}

	opts = append(a.gatewayOptions(), opts...)
	if n != nil {
		opts = append(opts, gateway.WithPublisher(n))
	}

	connectCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	g, err := gateway.Open(connectCtx, a.cfg.URI, a.cfg.Database, a.cfg.Collection, opts...)
	if err != nil {
		if n != nil {
			_ = n.Close()
		}
		return nil, nil, err
	}
	toolutil.Logger().Debug("Connected to MongoDB", "uri", a.cfg.URI, "database", a.cfg.Database, "collection", a.cfg.Collection)

	release := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.Close(closeCtx); err != nil {
			toolutil.PrintError("Failed to disconnect: %v", err)
		}
		if n != nil {
			if err := n.Close(); err != nil {
				toolutil.PrintError("Failed to close notifier: %v", err)
			}
		}
	}
	return g, release, nil
}
