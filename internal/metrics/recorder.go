// Package metrics turns bus events into Prometheus series.
package metrics

import (
	"context"
	"net/http"

	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/delivery"
	"github.com/matheus3301/courier/internal/presence"
	"github.com/matheus3301/courier/internal/seen"
	"github.com/matheus3301/courier/internal/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "courier"

// Recorder consumes every bus event and updates the matching collectors.
// Counts are best effort: the bus drops events for a full subscriber.
type Recorder struct {
	bus    *bus.Bus
	logger *zap.Logger
	reg    *prometheus.Registry
	cancel context.CancelFunc
	done   chan struct{}

	messagesCreated prometheus.Counter
	messagesSeen    *prometheus.CounterVec
	seenForbidden   prometheus.Counter
	pushes          *prometheus.CounterVec
	online          prometheus.Gauge
	replaced        prometheus.Counter
	underflows      prometheus.Counter
	rebuildDrift    prometheus.Counter
	state           *prometheus.GaugeVec
}

// NewRecorder registers collectors on a private registry.
func NewRecorder(b *bus.Bus, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_events_dropped_total",
		Help:      "Bus deliveries skipped because a subscriber was full.",
	}, func() float64 { return float64(b.Dropped()) })

	return &Recorder{
		bus:    b,
		logger: logger,
		reg:    reg,
		messagesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_created_total",
			Help:      "Messages committed to the store.",
		}),
		messagesSeen: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_seen_total",
			Help:      "Messages flipped to seen, by path.",
		}, []string{"path"}),
		seenForbidden: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seen_forbidden_total",
			Help:      "Seen acknowledgements attempted by someone other than the receiver.",
		}),
		pushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Live pushes by event and outcome.",
		}, []string{"event", "outcome"}),
		online: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users holding a live connection.",
		}),
		replaced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_replaced_total",
			Help:      "Connections closed because the same user reconnected.",
		}),
		underflows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unseen_index_underflows_total",
			Help:      "Unseen counter decrements clamped at zero.",
		}),
		rebuildDrift: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unseen_index_repaired_pairs_total",
			Help:      "Unseen counter pairs corrected by a rebuild.",
		}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daemon_state",
			Help:      "1 for the current daemon state.",
		}, []string{"state"}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Start subscribes to all bus events.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ch, unsub := r.bus.Subscribe("", 1024)

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.observe(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops consuming events and waits for the loop to exit.
func (r *Recorder) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Recorder) observe(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessageCreated:
		r.messagesCreated.Inc()
	case bus.KindMessagesSeen:
		if t, ok := evt.Payload.(seen.Transition); ok {
			path := "single"
			if t.Bulk {
				path = "bulk"
			}
			r.messagesSeen.WithLabelValues(path).Add(float64(len(t.IDs)))
		}
	case bus.KindSeenForbidden:
		r.seenForbidden.Inc()
	case bus.KindDeliveryPushed, bus.KindDeliveryDropped:
		if o, ok := evt.Payload.(delivery.Outcome); ok {
			outcome := "pushed"
			if evt.Kind == bus.KindDeliveryDropped {
				outcome = "dropped"
			}
			r.pushes.WithLabelValues(o.Event, outcome).Inc()
		}
	case bus.KindPresenceOnline, bus.KindPresenceOffline:
		if c, ok := evt.Payload.(presence.Change); ok {
			r.online.Set(float64(c.Online))
		}
	case bus.KindPresenceReplaced:
		r.replaced.Inc()
	case bus.KindIndexUnderflow:
		r.underflows.Inc()
	case bus.KindIndexRebuilt:
		if n, ok := evt.Payload.(int); ok {
			r.rebuildDrift.Add(float64(n))
		}
	case bus.KindDaemonStatus:
		if c, ok := evt.Payload.(status.StatusChange); ok {
			r.state.WithLabelValues(string(c.From)).Set(0)
			r.state.WithLabelValues(string(c.To)).Set(1)
		}
	}
}
