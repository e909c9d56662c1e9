package domain

import "time"

// RegistrationResult labels the outcome of a registration attempt.
type RegistrationResult string

const (
	// RegistrationAccepted indicates a new entry was stored.
	RegistrationAccepted RegistrationResult = "accepted"
	// RegistrationReplaced indicates a dead entry was replaced.
	RegistrationReplaced RegistrationResult = "replaced"
	// RegistrationRejected indicates a live entry already existed.
	RegistrationRejected RegistrationResult = "rejected"
	// RegistrationInvalid indicates the handle was unusable.
	RegistrationInvalid RegistrationResult = "invalid"
)

// CheckpointOp names a checkpoint operation.
type CheckpointOp string

const (
	// CheckpointStore records a checkpoint write.
	CheckpointStore CheckpointOp = "store"
	// CheckpointRead records a peek.
	CheckpointRead CheckpointOp = "read"
	// CheckpointTake records a consuming read.
	CheckpointTake CheckpointOp = "take"
	// CheckpointEvict records a retained checkpoint dropped for capacity.
	CheckpointEvict CheckpointOp = "evict"
)

// CheckpointOutcome describes whether a checkpoint operation found its target.
type CheckpointOutcome string

const (
	// CheckpointHit indicates the target existed.
	CheckpointHit CheckpointOutcome = "hit"
	// CheckpointMiss indicates the target was absent or dead.
	CheckpointMiss CheckpointOutcome = "miss"
)

// AccessOutcome describes how a payload access ended.
type AccessOutcome string

const (
	// AccessOK indicates the payload was locked and used.
	AccessOK AccessOutcome = "ok"
	// AccessDead indicates the client was gone.
	AccessDead AccessOutcome = "dead"
	// AccessUnknown indicates no entry was registered.
	AccessUnknown AccessOutcome = "unknown"
)

// PruneReason tells why dead entries were removed.
type PruneReason string

const (
	// PruneSweep indicates removal by an explicit or periodic sweep.
	PruneSweep PruneReason = "sweep"
	// PruneLazy indicates removal during a lookup.
	PruneLazy PruneReason = "lazy"
)

// Metrics records registry activity.
type Metrics interface {
	ObserveRegistration(registry string, result RegistrationResult)
	ObservePrune(registry string, reason PruneReason, removed int)
	ObserveSweep(registry string, duration time.Duration)
	ObserveCheckpoint(registry string, op CheckpointOp, outcome CheckpointOutcome)
	ObserveAccess(registry string, outcome AccessOutcome)
	SetEntries(registry string, count int)
	SetRetainedCheckpoints(registry string, count int)
}
