package tally

import (
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/types"
)

// Re-export common types for convenience so users don't have to import the
// leaf packages for everyday calls.

// Entity is re-exported from types package.
type Entity = types.Entity

// Field is re-exported from counter package.
type Field = counter.Field

// Delta is re-exported from counter package.
type Delta = counter.Delta

// Re-export Entity constructor
var NewEntity = types.NewEntity
