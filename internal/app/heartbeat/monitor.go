// Package heartbeat probes connections on a fixed interval and evicts the
// ones that stayed silent for longer than the timeout.
package heartbeat

import (
	"context"
	"time"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/rs/zerolog/log"
)

// Sweeper acts on connections for the monitor. Ping queues a ping and
// reports whether it was accepted; EvictStale removes the connection through
// the regular disconnection path if it is still silent since before cutoff.
type Sweeper interface {
	Ping(id core.ConnID) bool
	EvictStale(id core.ConnID, cutoff time.Time) bool
}

type Monitor struct {
	Registry *app.Registry
	Sweeper  Sweeper
	Interval time.Duration
	Timeout  time.Duration
	Clock    func() time.Time
}

func (m *Monitor) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

// Run ticks until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	log.Info().Str("module", "heartbeat").Dur("interval", m.Interval).Dur("timeout", m.Timeout).Msg("monitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "heartbeat").Msg("monitor stopped")
			return nil
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick evicts dead connections and probes the live ones. A probe does not
// count as activity; only the client's reply or other traffic does.
func (m *Monitor) Tick() (probed, evicted int) {
	cutoff := m.now().Add(-m.Timeout)
	for _, c := range m.Registry.All() {
		if c.LastLiveness.Before(cutoff) {
			if m.Sweeper.EvictStale(c.ID, cutoff) {
				evicted++
			}
			continue
		}
		if !m.Sweeper.Ping(c.ID) {
			log.Debug().Str("module", "heartbeat").Str("conn", string(c.ID)).Msg("probe not queued")
			continue
		}
		probed++
	}
	if evicted > 0 {
		log.Info().Str("module", "heartbeat").Int("evicted", evicted).Int("probed", probed).Msg("sweep")
	}
	return probed, evicted
}
