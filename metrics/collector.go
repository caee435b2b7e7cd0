// Package metrics implements Redox's optional admin/observability
// surface: a Prometheus collector over the keyspace's per-variant
// counts, plus connection/command counters and a healthz/metrics HTTP
// router, all kept on a separate listener from the line protocol.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// KeyspaceInfo is satisfied by *redox.Keyspace; kept as an interface here
// so this package never needs to import redox just to read Info().
type KeyspaceInfo interface {
	Info() map[string]int
}

var keyVariants = []string{"strings", "lists", "sets", "hashes", "zsets"}

// Collector is a custom prometheus.Collector exposing redox_keys_total as
// one gauge per value variant, refreshed from Keyspace.Info() on every
// scrape — the same Describe/Collect shape conniver's TCPInfoCollector
// uses for its own live, scrape-time-computed gauges.
type Collector struct {
	keyspace KeyspaceInfo
	keysDesc *prometheus.Desc
}

// NewCollector returns a Collector reading from ks on every scrape.
func NewCollector(ks KeyspaceInfo) *Collector {
	return &Collector{
		keyspace: ks,
		keysDesc: prometheus.NewDesc(
			"redox_keys_total",
			"Number of live keys in the keyspace, by value variant.",
			[]string{"type"}, nil,
		),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.keysDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counts := c.keyspace.Info()
	for _, variant := range keyVariants {
		ch <- prometheus.MustNewConstMetric(c.keysDesc, prometheus.GaugeValue, float64(counts[variant]), variant)
	}
}

// Counters holds the process-wide counters incremented by the server as
// connections are accepted and commands dispatched. They are exposed
// alongside Collector's gauges under the same registry.
type Counters struct {
	connections prometheus.Counter
	commands    *prometheus.CounterVec
}

// NewCounters registers its metrics on reg and returns a Counters ready
// to be driven by the server's OnAccept/OnCommand hooks.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redox_connections_total",
			Help: "Total number of accepted TCP connections.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redox_commands_total",
			Help: "Total number of dispatched commands, by opcode.",
		}, []string{"op"}),
	}
	reg.MustRegister(c.connections, c.commands)
	return c
}

// ConnectionAccepted increments the connection counter. Safe to call
// without holding any lock: prometheus counters are themselves
// goroutine-safe.
func (c *Counters) ConnectionAccepted() {
	c.connections.Inc()
}

// CommandDispatched increments the per-opcode command counter.
func (c *Counters) CommandDispatched(op string) {
	c.commands.WithLabelValues(op).Inc()
}
