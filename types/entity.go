// Package types provides the timestamp base shared by tally entities.
package types

import "time"

// Entity carries bookkeeping timestamps. Window queries never read these
// fields; recency comes from the identifier.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity stamped with t in UTC. A zero t means now.
func NewEntity(t time.Time) Entity {
	if t.IsZero() {
		t = time.Now()
	}
	t = t.UTC()
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch sets UpdatedAt to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
