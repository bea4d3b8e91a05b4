// Package session holds the session lookup ladder and the start/stop/delete
// lifecycle with savings accounting.
package session

import (
	"context"
	"errors"
	"log"

	"ecoshower-backend/internal/errs"
	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/store"
)

// activeLookupWindow caps the indexed query; a just-written session is
// expected within the most recent few records even when the index lags.
const activeLookupWindow = 5

// Resolver finds the active session for a device. The secondary index can
// lag behind a just-written record, so lookups run as an ordered ladder:
// strongly consistent fetch by hint, indexed query, full scan backstop.
type Resolver struct {
	sessions store.SessionStore
}

// NewResolver creates a Resolver over the given session store.
func NewResolver(sessions store.SessionStore) *Resolver {
	return &Resolver{sessions: sessions}
}

// lookup is one tier of the ladder: a hit returns the session, a clean miss
// returns nil, and a store error falls through to the next tier.
type lookup struct {
	name string
	fn   func(ctx context.Context, deviceID, hintSessionID string) (*model.Session, error)
}

// FindActive resolves the active session for a device, trying each tier in
// order and stopping at the first hit. Returns nil when every tier misses.
func (r *Resolver) FindActive(ctx context.Context, deviceID, hintSessionID string) *model.Session {
	tiers := []lookup{
		{name: "direct", fn: r.direct},
		{name: "indexed", fn: r.indexed},
		{name: "scan", fn: r.scan},
	}

	for _, tier := range tiers {
		session, err := tier.fn(ctx, deviceID, hintSessionID)
		if err != nil {
			log.Printf("resolver: %s lookup for device %s failed: %v", tier.name, deviceID, err)
			continue
		}
		if session != nil {
			return session
		}
	}
	return nil
}

// FindActiveIndexed runs only the indexed tier. Telemetry accrual uses this:
// it is allowed to skip a beat when the index lags, so neither the hint
// fetch nor the scan backstop apply.
func (r *Resolver) FindActiveIndexed(ctx context.Context, deviceID string) *model.Session {
	session, err := r.indexed(ctx, deviceID, "")
	if err != nil {
		log.Printf("resolver: indexed lookup for device %s failed: %v", deviceID, err)
		return nil
	}
	return session
}

// direct fetches by the caller-supplied id and accepts the result only if it
// exists and is still active.
func (r *Resolver) direct(ctx context.Context, _ string, hintSessionID string) (*model.Session, error) {
	if hintSessionID == "" {
		return nil, nil
	}
	session, err := r.sessions.Get(ctx, hintSessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if session.Status != model.SessionStatusActive {
		return nil, nil
	}
	return session, nil
}

// indexed queries the device's active sessions by recency, bounded by the
// lookup window.
func (r *Resolver) indexed(ctx context.Context, deviceID, _ string) (*model.Session, error) {
	sessions, err := r.sessions.ActiveByDevice(ctx, deviceID, activeLookupWindow)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// scan is the consistency backstop of last resort.
func (r *Resolver) scan(ctx context.Context, deviceID, _ string) (*model.Session, error) {
	sessions, err := r.sessions.ScanActiveByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}
