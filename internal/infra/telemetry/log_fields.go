package telemetry

import (
	"time"

	"go.uber.org/zap"

	"github.com/wuyuepku/ssfscg/internal/domain"
)

const (
	FieldEvent      = "event"
	FieldClientID   = "clientID"
	FieldClientName = "client"
	FieldRegistry   = "registry"
	FieldRound      = "round"
	FieldRunID      = "run_id"
	FieldDurationMs = "duration_ms"
	FieldLogSource  = "log_source"
)

const (
	EventRegister   = "register"
	EventLazyPrune  = "lazy_prune"
	EventSweep      = "sweep"
	EventClientDied = "client_died"
	EventHotUpgrade = "hot_upgrade"
)

const LogSourceCore = "core"

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ClientIDField(id domain.ClientID) zap.Field {
	return zap.Uint64(FieldClientID, uint64(id))
}

func ClientNameField(name string) zap.Field {
	return zap.String(FieldClientName, name)
}

func RegistryField(name string) zap.Field {
	return zap.String(FieldRegistry, name)
}

func RoundField(round int) zap.Field {
	return zap.Int(FieldRound, round)
}

func RunIDField(value string) zap.Field {
	return zap.String(FieldRunID, value)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}
