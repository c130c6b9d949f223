// Package app contains the top-level orchestration for the server and client
// roles.
package app

import (
	"context"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/bluewing/internal/config"
	"github.com/1ureka/bluewing/internal/message"
	"github.com/1ureka/bluewing/internal/server"
	"github.com/1ureka/bluewing/internal/util"
)

// StatsInterval is how often the traffic line is refreshed.
const StatsInterval = 5 * time.Second

// RunServer runs a relay until ctx is cancelled. Messages addressed to the
// server itself are logged.
func RunServer(ctx context.Context, cfg config.Server) error {
	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	srv.OnMessage(func(from server.Peer, m *message.Message) {
		util.LogInfo("message from %q (%d) on subchannel %d: %s", from.Name, from.ID, m.Subchannel, describe(m))
	})

	go func() {
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		util.LogSuccess("relay is up")
		pterm.DefaultBox.WithTitle("Bluewing relay").Println(banner(srv, cfg))
		util.StartStatsReporter(ctx, StatsInterval)
	}()

	return srv.Serve(ctx)
}

func banner(srv *server.Server, cfg config.Server) string {
	rows := [][]string{{"Relay", srv.Addr().String() + " (TCP, UDP)"}}
	if a := srv.WSAddr(); a != nil {
		rows = append(rows, []string{"WebSocket", "ws://" + a.String() + "/ws"})
	}
	if cfg.MetricsAddr != "" {
		rows = append(rows, []string{"Metrics", "http://" + cfg.MetricsAddr + "/metrics"})
	}
	out := ""
	for i, r := range rows {
		if i > 0 {
			out += "\n"
		}
		out += pterm.Sprintf("%-10s %s", r[0]+":", r[1])
	}
	return out
}
