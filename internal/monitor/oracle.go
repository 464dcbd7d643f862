package monitor

import (
	"context"
	"time"

	"github.com/MeKo-Tech/rcnneval/internal/oracle"
)

type instrumentedOracle struct {
	next    oracle.Oracle
	metrics *Metrics
}

// InstrumentOracle wraps o so every call is counted and timed.
func InstrumentOracle(o oracle.Oracle, m *Metrics) oracle.Oracle {
	return &instrumentedOracle{next: o, metrics: m}
}

func (o *instrumentedOracle) Score(ctx context.Context, in oracle.Input) (oracle.Output, error) {
	kind := inputKind(in)
	start := time.Now()
	out, err := o.next.Score(ctx, in)
	o.metrics.oracleDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	o.metrics.oracleCalls.WithLabelValues(kind, status).Inc()
	return out, err
}

func inputKind(in oracle.Input) string {
	switch {
	case in.Grid != nil:
		return "grid"
	case in.Regions != nil:
		return "regions"
	default:
		return "patches"
	}
}
