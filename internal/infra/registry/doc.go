// Package registry tracks clients through non-owning handles.
//
// A Registry never keeps a client alive and never holds state the server
// cannot rebuild: each entry is a handle plus an optional checkpoint, a cached
// copy of the client's payload that may be dropped at any time. Dead entries
// are pruned lazily by lookups and in bulk by Sweep.
//
// Entries are spread over shards, each guarded by its own mutex. A shard lock
// is never held while waiting on a client's payload lock, so a client that
// holds its own lock indefinitely stalls only accesses to itself.
package registry
