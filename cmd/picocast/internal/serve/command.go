package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/picocast/cmd/picocast/internal"
	"github.com/sipeed/picocast/pkg/bus"
	"github.com/sipeed/picocast/pkg/gateway"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/session"
)

func NewServeCommand() *cobra.Command {
	var (
		debug bool
		host  string
		port  int
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"gateway"},
		Short:   "Run the HTTP gateway",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, debug, host, port)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides gateway.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides gateway.port)")

	return cmd
}

func serve(ctx context.Context, debug bool, host string, port int) error {
	cfg, err := internal.LoadConfig(debug)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Gateway.Host = host
	}
	if port > 0 {
		cfg.Gateway.Port = port
	}

	events := bus.NewEventBus()
	defer events.Close()

	store, err := internal.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("open session ledger: %w", err)
	}
	opts := []session.BuildOption{session.WithEvents(events)}
	var ledger gateway.Ledger
	if store != nil {
		defer store.Close()
		opts = append(opts, session.WithStore(store))
		ledger = store
	}

	runner, err := session.NewRunnerFromConfig(cfg, opts...)
	if err != nil {
		return err
	}

	gateway.SetVersion(internal.GetVersion())
	srv := gateway.NewServer(cfg.Gateway, runner, ledger, events)
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Printf("%s Gateway listening on http://%s:%d\n", internal.Logo, cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop")

	<-ctx.Done()
	logger.InfoC("gateway", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
