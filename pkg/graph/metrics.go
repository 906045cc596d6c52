package graph

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "propgraph"

type metrics struct {
	txBegun       *prometheus.CounterVec
	txCommitted   prometheus.Counter
	txAborted     prometheus.Counter
	txConflicts   prometheus.Counter
	beginWait     prometheus.Histogram
	walBytes      prometheus.Counter
	checkpoints   prometheus.Counter
	checkpointErr prometheus.Counter
}

// newMetrics builds the graph collectors and registers them with reg when
// it is not nil. Collectors already registered by another graph handle are
// shared.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{}
	var err error

	begun := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "transactions_begun_total",
		Help:      "Transactions started, by slot mode",
	}, []string{"mode"})
	if m.txBegun, err = register(reg, begun); err != nil {
		return nil, err
	}

	if m.txCommitted, err = newCounter(reg, "transactions_committed_total", "Transactions committed"); err != nil {
		return nil, err
	}
	if m.txAborted, err = newCounter(reg, "transactions_aborted_total", "Transactions aborted, including failed commits"); err != nil {
		return nil, err
	}
	if m.txConflicts, err = newCounter(reg, "transaction_conflicts_total", "Commits rejected because a newer commit changed the same object"); err != nil {
		return nil, err
	}
	if m.walBytes, err = newCounter(reg, "wal_bytes_total", "Serialized commit batch bytes appended to the WAL"); err != nil {
		return nil, err
	}
	if m.checkpoints, err = newCounter(reg, "checkpoints_total", "Checkpoints written"); err != nil {
		return nil, err
	}
	if m.checkpointErr, err = newCounter(reg, "checkpoint_failures_total", "Checkpoints that failed"); err != nil {
		return nil, err
	}

	wait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "begin_wait_seconds",
		Help:      "Time spent waiting for the graph slot at Begin",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	if m.beginWait, err = register(reg, wait); err != nil {
		return nil, err
	}

	return m, nil
}

func newCounter(reg prometheus.Registerer, name, help string) (prometheus.Counter, error) {
	return register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	}))
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if reg == nil {
		return c, nil
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("metric collector already registered with a different type: %w", err)
		}
		return c, err
	}
	return c, nil
}
