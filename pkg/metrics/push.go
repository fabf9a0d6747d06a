package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// Pusher sends the collector's metrics to a Prometheus Pushgateway after a
// one-shot run, where nothing would be around to be scraped
type Pusher struct {
	pusher *push.Pusher
	url    string
	logger *zap.Logger
}

// NewPusher creates a pusher for the given gateway and job
func NewPusher(url, job string, collector *Collector, logger *zap.Logger) *Pusher {
	return &Pusher{
		pusher: push.New(url, job).Gatherer(collector.Registry()),
		url:    url,
		logger: logger,
	}
}

// Grouping adds a grouping label
func (p *Pusher) Grouping(name, value string) *Pusher {
	p.pusher = p.pusher.Grouping(name, value)
	return p
}

// Push replaces the metrics of the job's group on the gateway
func (p *Pusher) Push(ctx context.Context) error {
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", p.url, err)
	}
	p.logger.Debug("Metrics pushed", zap.String("gateway", p.url))
	return nil
}
