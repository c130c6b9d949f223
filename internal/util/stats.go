package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide relay traffic counter.
var Stats = &stats{}

type stats struct {
	TotalConns    atomic.Int64 // cumulative count of relay connections since process start
	ClosedConns   atomic.Int64 // cumulative count of closed relay connections
	FramesSent    atomic.Int64 // frames and datagrams written
	FramesRecv    atomic.Int64 // frames and datagrams read
	BytesSent     atomic.Int64 // cumulative bytes written, headers included
	BytesRecv     atomic.Int64 // cumulative bytes read, headers included
	BlastsDropped atomic.Int64 // datagrams that could not be written
}

func (s *stats) AddConn()      { s.TotalConns.Add(1) }
func (s *stats) RemoveConn()   { s.ClosedConns.Add(1) }
func (s *stats) AddSent(n int) { s.FramesSent.Add(1); s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int) { s.FramesRecv.Add(1); s.BytesRecv.Add(int64(n)) }
func (s *stats) DropBlast()    { s.BlastsDropped.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// snapshot is one reading of the counters.
type snapshot struct {
	conns, closed       int64
	framesIn, framesOut int64
	bytesIn, bytesOut   int64
	blastsDropped       int64
}

func (s *stats) snapshot() snapshot {
	return snapshot{
		conns:         s.TotalConns.Load(),
		closed:        s.ClosedConns.Load(),
		framesIn:      s.FramesRecv.Load(),
		framesOut:     s.FramesSent.Load(),
		bytesIn:       s.BytesRecv.Load(),
		bytesOut:      s.BytesSent.Load(),
		blastsDropped: s.BlastsDropped.Load(),
	}
}

// idle reports whether nothing worth logging happened between prev and cur.
func (cur snapshot) idle(prev snapshot) bool {
	return cur.conns == prev.conns && cur.closed == prev.closed &&
		cur.framesIn == prev.framesIn && cur.framesOut == prev.framesOut &&
		cur.blastsDropped == prev.blastsDropped
}

// StartStatsReporter logs relay traffic every interval until ctx is
// cancelled. Idle intervals are not logged.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev := Stats.snapshot()
		for {
			select {
			case <-ticker.C:
				cur := Stats.snapshot()
				if !cur.idle(prev) {
					pterm.DefaultLogger.Info(formatStats(cur, prev, interval.Seconds()))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes renders a byte rate in exactly 8 characters, e.g. "99.0   B"
// or " 1.5 KiB".
func formatBytes(b float64) string {
	unit := 0
	for b > 99 && unit < len(byteUnits)-1 {
		b /= 1024
		unit++
	}
	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unit])
}

func formatStats(cur, prev snapshot, secs float64) string {
	rate := func(a, b int64) float64 { return float64(a-b) / secs }

	line := fmt.Sprintf("In: %s/s %5.0f fr/s | Out: %s/s %5.0f fr/s | Conn: %2d↑ %2d↓",
		formatBytes(rate(cur.bytesIn, prev.bytesIn)), rate(cur.framesIn, prev.framesIn),
		formatBytes(rate(cur.bytesOut, prev.bytesOut)), rate(cur.framesOut, prev.framesOut),
		cur.conns-prev.conns, cur.closed-prev.closed,
	)
	if d := cur.blastsDropped - prev.blastsDropped; d > 0 {
		line += fmt.Sprintf(" | Blasts dropped: %d", d)
	}
	return line
}
