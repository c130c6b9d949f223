// Bluewing CLI entry point.
//
// Runs a relay server, or a client console that talks to one. Launched
// without a subcommand it asks which role to take.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/bluewing/internal/app"
	"github.com/1ureka/bluewing/internal/config"
	"github.com/1ureka/bluewing/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var debug bool
	root := &cobra.Command{
		Use:           "bluewing",
		Short:         "Channel-based message relay",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				util.EnableDebug()
			}
			pterm.Info.Println(fmt.Sprintf("Bluewing v%s", version))
			pterm.Println()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging and session lock tracing")

	root.AddCommand(serverCmd(), clientCmd())

	if err := root.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func serverCmd() *cobra.Command {
	cfg := config.DefaultServer()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run a relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunServer(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP and UDP listen address")
	f.StringVar(&cfg.WSAddr, "ws", cfg.WSAddr, "WebSocket listen address (empty to disable)")
	f.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus listen address (empty to disable)")
	f.StringVar(&cfg.Welcome, "welcome", cfg.Welcome, "Welcome message sent to clients")
	f.IntVar(&cfg.MaxClients, "max-clients", cfg.MaxClients, "Maximum connected clients, 0 for no limit")
	f.IntVar(&cfg.MaxMessageSize, "max-message", cfg.MaxMessageSize, "Largest relayed payload in bytes")
	f.DurationVar(&cfg.PingInterval, "ping", cfg.PingInterval, "Liveness ping interval, 0 to disable")
	f.Float64Var(&cfg.FloodRate, "flood-rate", cfg.FloodRate, "Data messages per second per client, 0 for no limit")
	f.IntVar(&cfg.FloodBurst, "flood-burst", cfg.FloodBurst, "Burst allowed above the flood rate")

	return cmd
}

func clientCmd() *cobra.Command {
	cfg := config.DefaultClient()

	cmd := &cobra.Command{
		Use:   "client [host]",
		Short: "Open a client console, connecting to host when given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.DebugLocks = util.DebugEnabled()
			host := ""
			if len(args) == 1 {
				host = args[0]
			}
			return app.RunClient(cmd.Context(), cfg, host, os.Stdin, os.Stdout)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&cfg.AutomaticClear, "auto-clear", cfg.AutomaticClear, "Clear the binary being built after each binary send")
	f.IntVar(&cfg.MaxMessageSize, "max-message", cfg.MaxMessageSize, "Binary builder and decompression limit in bytes")
	f.IntVar(&cfg.UDPAttempts, "udp-attempts", cfg.UDPAttempts, "UDP hello attempts, 0 to blast over the stream")

	return cmd
}

// runInteractive asks for a role when no subcommand is given.
func runInteractive(ctx context.Context) error {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Server: run a relay", "Client: connect to a relay"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Server") {
		cfg := config.DefaultServer()
		cfg.Addr = askAddress("Listen address", cfg.Addr)
		return app.RunServer(ctx, cfg)
	}

	cfg := config.DefaultClient()
	cfg.DebugLocks = util.DebugEnabled()
	host := askHost()
	return app.RunClient(ctx, cfg, host, os.Stdin, os.Stdout)
}

// askAddress prompts for a listen address, keeping def on empty input.
func askAddress(prompt, def string) string {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText(fmt.Sprintf("%s (default %s)", prompt, def)).
		Show()
	pterm.Println()

	if raw = strings.TrimSpace(raw); raw != "" {
		return raw
	}
	return def
}

// askHost prompts for a relay host until a valid one is entered.
func askHost() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Relay host (e.g. localhost, example.com:6121, ws://example.com/ws)").
			Show()

		if _, err := config.ParseAddress(raw); err == nil {
			pterm.Println()
			return strings.TrimSpace(raw)
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
