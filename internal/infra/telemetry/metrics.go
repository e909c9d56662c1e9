package telemetry

import (
	"time"

	"github.com/wuyuepku/ssfscg/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveRegistration(_ string, _ domain.RegistrationResult) {}

func (n *NoopMetrics) ObservePrune(_ string, _ domain.PruneReason, _ int) {}

func (n *NoopMetrics) ObserveSweep(_ string, _ time.Duration) {}

func (n *NoopMetrics) ObserveCheckpoint(_ string, _ domain.CheckpointOp, _ domain.CheckpointOutcome) {
}

func (n *NoopMetrics) ObserveAccess(_ string, _ domain.AccessOutcome) {}

func (n *NoopMetrics) SetEntries(_ string, _ int) {}

func (n *NoopMetrics) SetRetainedCheckpoints(_ string, _ int) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
