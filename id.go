package tally

import "github.com/xraph/tally/id"

// ID is the primary identifier type for all tally entities.
type ID = id.ID

// Kind identifies the entity type an ID was allocated for.
type Kind = id.Kind
