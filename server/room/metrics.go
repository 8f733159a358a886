package room

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"

type metrics struct {
	tickDuration metric.Float64Histogram
	rooms        metric.Int64UpDownCounter
	players      metric.Int64UpDownCounter
	kills        metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) *metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	fallback := noop.Meter{}

	m := &metrics{}
	var err error
	if m.tickDuration, err = meter.Float64Histogram("arena.tick.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of one scheduler pass over all rooms")); err != nil {
		m.tickDuration, _ = fallback.Float64Histogram("arena.tick.duration")
	}
	if m.rooms, err = meter.Int64UpDownCounter("arena.rooms",
		metric.WithDescription("Open rooms")); err != nil {
		m.rooms, _ = fallback.Int64UpDownCounter("arena.rooms")
	}
	if m.players, err = meter.Int64UpDownCounter("arena.players",
		metric.WithDescription("Players seated in rooms")); err != nil {
		m.players, _ = fallback.Int64UpDownCounter("arena.players")
	}
	if m.kills, err = meter.Int64Counter("arena.kills",
		metric.WithDescription("Predation events")); err != nil {
		m.kills, _ = fallback.Int64Counter("arena.kills")
	}
	return m
}

func modeAttr(mode Mode) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("mode", string(mode)))
}

func (m *metrics) observeTick(d time.Duration) {
	m.tickDuration.Record(context.Background(), d.Seconds())
}

func (m *metrics) roomOpened(mode Mode) { m.rooms.Add(context.Background(), 1, modeAttr(mode)) }
func (m *metrics) roomClosed(mode Mode) { m.rooms.Add(context.Background(), -1, modeAttr(mode)) }

func (m *metrics) playerJoined(mode Mode) { m.players.Add(context.Background(), 1, modeAttr(mode)) }
func (m *metrics) playerLeft(mode Mode, n int) {
	m.players.Add(context.Background(), -int64(n), modeAttr(mode))
}

func (m *metrics) killed(mode Mode, n int) {
	if n > 0 {
		m.kills.Add(context.Background(), int64(n), modeAttr(mode))
	}
}
