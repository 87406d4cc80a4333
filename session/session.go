// Package session implements the S collaborator: access to the UUID
// of the currently active trusted-application session, which the key
// manager uses as salt material when wrapping file encryption keys.
package session

// Accessor reports the UUID identifying the session currently open
// against the engine. Every object's key-wrap derivation is scoped to
// this UUID, so two sessions with different UUIDs can never unwrap
// each other's FEKs even when they share a device root secret.
type Accessor interface {
	CurrentSessionUUID() [16]byte
}

// StaticSession is an Accessor that always reports a single fixed
// UUID, the common case for a process hosting exactly one active TA
// session.
type StaticSession struct {
	uuid [16]byte
}

// NewStatic returns a StaticSession reporting uuid.
func NewStatic(uuid [16]byte) StaticSession {
	return StaticSession{uuid: uuid}
}

func (s StaticSession) CurrentSessionUUID() [16]byte { return s.uuid }
