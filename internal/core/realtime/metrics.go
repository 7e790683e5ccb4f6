package realtime

// Metrics receives counters and gauges from the broadcaster and relay.
type Metrics interface {
	SetActiveConnections(n int)
	SetActiveTopics(n int)
	SetActiveRooms(n int)
	RecordPublish(event string, recipients int)
	RecordDeliveryFailure(event string)
	RecordRelay(kind string, delivered bool)
}

type nopMetrics struct{}

func (nopMetrics) SetActiveConnections(int) {}
func (nopMetrics) SetActiveTopics(int) {}
func (nopMetrics) SetActiveRooms(int) {}
func (nopMetrics) RecordPublish(string, int) {}
func (nopMetrics) RecordDeliveryFailure(string) {}
func (nopMetrics) RecordRelay(string, bool) {}

type options struct {
	metrics Metrics
}

type Option func(*options)

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
