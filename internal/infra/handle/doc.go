// Package handle provides owning and observing references to a client payload.
//
// A client creates its payload with New and keeps the returned Owner. The
// server only ever sees a Handle, which refers to the payload weakly and must
// be upgraded with TryAccess before use. Once the last Owner is released, or
// collected without being released, every Handle reports the client as dead.
package handle
