package domain

import "errors"

// ClientID identifies one shared client payload. Two handles carry the same
// ClientID only when they refer to the same payload.
type ClientID uint64

// EntryInfo describes one registry entry for diagnostics.
type EntryInfo struct {
	ID            ClientID
	Alive         bool
	HasCheckpoint bool
}

// RegistryStats summarizes registry occupancy.
type RegistryStats struct {
	// Entries counts entries held, including dead ones not yet swept.
	Entries int `json:"entries"`
	// Live counts entries whose client was alive when inspected.
	Live int `json:"live"`
	// Retained counts checkpoints kept for clients that are gone.
	Retained int `json:"retained"`
}

// Dead reports entries that are held but no longer alive.
func (s RegistryStats) Dead() int {
	if s.Entries < s.Live {
		return 0
	}
	return s.Entries - s.Live
}

var ErrDead = errors.New("client is dead")
var ErrAlreadyRegistered = errors.New("client already registered")
var ErrNotRegistered = errors.New("client not registered")
var ErrInvalidHandle = errors.New("invalid client handle")
var ErrInvalidConfig = errors.New("invalid config")
