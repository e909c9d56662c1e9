package registry

import (
	"go.uber.org/zap"

	"github.com/wuyuepku/ssfscg/internal/domain"
	"github.com/wuyuepku/ssfscg/internal/infra/telemetry"
)

type options[T any] struct {
	name        string
	shards      int
	retainLimit int
	logger      *zap.Logger
	metrics     domain.Metrics
	clone       func(T) T
}

// Option configures a Registry.
type Option[T any] func(*options[T])

// WithName labels the registry in logs and metrics.
func WithName[T any](name string) Option[T] {
	return func(o *options[T]) {
		o.name = name
	}
}

// WithShards sets the number of lock shards. Values below one select one shard.
func WithShards[T any](n int) Option[T] {
	return func(o *options[T]) {
		o.shards = n
	}
}

// WithRetainLimit bounds how many checkpoints of dead clients are kept.
// Zero disables retention.
func WithRetainLimit[T any](n int) Option[T] {
	return func(o *options[T]) {
		o.retainLimit = n
	}
}

// WithLogger sets the logger.
func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(o *options[T]) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics[T any](metrics domain.Metrics) Option[T] {
	return func(o *options[T]) {
		o.metrics = metrics
	}
}

// WithCloner sets how checkpoints copy a payload. The default is plain
// assignment, which shares any slices, maps or pointers inside T.
func WithCloner[T any](clone func(T) T) Option[T] {
	return func(o *options[T]) {
		o.clone = clone
	}
}

func buildOptions[T any](opts []Option[T]) options[T] {
	o := options[T]{
		name:        domain.DefaultRegistryName,
		shards:      domain.DefaultShardCount,
		retainLimit: domain.DefaultRetainLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.name == "" {
		o.name = domain.DefaultRegistryName
	}
	if o.shards < 1 {
		o.shards = 1
	}
	if o.retainLimit < 0 {
		o.retainLimit = 0
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = telemetry.NewNoopMetrics()
	}
	if o.clone == nil {
		o.clone = func(v T) T { return v }
	}
	return o
}
