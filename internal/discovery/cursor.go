package discovery

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// CursorKind distinguishes a cursor pointing at a seen profile from a
// synthetic "poll again later" marker.
type CursorKind int

const (
	// CursorReal is the identifier of the last profile a client saw.
	CursorReal CursorKind = iota
	// CursorFuture is a minted identifier guaranteed to sort after every
	// identifier that exists right now. Handing one out signals "no more
	// data yet, poll again" and doubles as the batch-invalidation trigger.
	CursorFuture
)

// Cursor is opaque to clients; they only ever pass its ID back verbatim.
type Cursor struct {
	Kind CursorKind
	ID   string
}

// RealCursor wraps the identifier of the last returned profile.
func RealCursor(id string) Cursor {
	return Cursor{Kind: CursorReal, ID: id}
}

// futureHorizon is how far ahead the future-cursor timestamp is pushed.
// Any positive offset beats ids minted "now"; a year leaves no doubt.
const futureHorizon = 365 * 24 * time.Hour

// FutureCursor mints the synthetic variant. Profile ids are UUIDv7, which
// sort lexicographically by creation time, so a v7-shaped value stamped with
// a far-future timestamp sorts after all current ids.
func FutureCursor() Cursor {
	return Cursor{Kind: CursorFuture, ID: mintFutureID()}
}

// NewID returns a fresh time-ordered profile identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func mintFutureID() string {
	var u uuid.UUID
	_, _ = rand.Read(u[:])

	ms := uint64(time.Now().Add(futureHorizon).UnixMilli())
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], ms)
	copy(u[0:6], ts[2:8])

	// version 7, RFC 4122 variant
	u[6] = 0x70 | (u[6] & 0x0F)
	u[8] = 0x80 | (u[8] & 0x3F)
	return u.String()
}
