package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/pbkit/client"
	"github.com/kbukum/pbkit/component"
	"github.com/kbukum/pbkit/httpclient"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/observability"
	"github.com/kbukum/pbkit/realtime"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <topic>...",
	Short: "Print realtime events as JSON lines",
	Long: "Subscribe to one or more topics and print each event until interrupted.\n" +
		"A topic is a collection name, or collection/recordId for a single record.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Init(cfg.Logging)

		shutdown, err := observability.Init(ctx, cfg.Observability)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()

		path, err := sessionPath(cfg.Session)
		if err != nil {
			return err
		}
		sess, err := loadSession(path)
		if err != nil {
			return err
		}
		return watch(ctx, cfg, sess, args, cmd.OutOrStdout())
	},
}

// eventLine is one printed event.
type eventLine struct {
	Time   string          `json:"time"`
	Topic  string          `json:"topic"`
	Action realtime.Action `json:"action"`
	Record json.RawMessage `json:"record"`
}

// watch subscribes to topics and writes events to out until ctx is done.
func watch(ctx context.Context, cfg *Config, sess *Session, topics []string, out io.Writer) error {
	opts := []client.Option{client.WithAuthStore(sess.authStore(cfg.Client.BaseURL))}
	if cfg.Observability.Enabled {
		metrics, err := observability.NewMetrics(nil)
		if err != nil {
			return err
		}
		opts = append(opts,
			client.WithMetrics(metrics),
			client.WithRealtimeOptions(realtime.WithMeter(observability.Meter())),
		)
	}
	c, err := client.New(cfg.Client, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	rt := c.Realtime()
	registry, err := newRegistry(c)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	enc := json.NewEncoder(out)
	for _, topic := range topics {
		_, err := rt.SubscribeTopic(ctx, topic, func(action realtime.Action, record json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			_ = enc.Encode(eventLine{
				Time:   time.Now().UTC().Format(time.RFC3339Nano),
				Topic:  topic,
				Action: action,
				Record: record,
			})
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	if err := registry.StartAll(ctx); err != nil {
		return err
	}

	log := logger.WithComponent("pbtail")
	for _, d := range registry.Describe() {
		log.Info("Watching", logger.Fields(logger.FieldComponent, d.Name, "details", d.Details))
	}

	<-ctx.Done()
	return registry.StopAll(context.Background())
}

// newRegistry registers the HTTP client ahead of the realtime engine so
// it stops last.
func newRegistry(c *client.Client) (*component.Registry, error) {
	registry := component.NewRegistry()
	if err := registry.Register(httpclient.NewComponent(c.HTTP())); err != nil {
		return nil, err
	}
	if err := registry.Register(c.Realtime()); err != nil {
		return nil, err
	}
	return registry, nil
}
