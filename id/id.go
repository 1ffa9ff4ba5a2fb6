// Package id defines the time-encoded identity type shared by all tally entities.
//
// An ID is a 64-bit unsigned integer. The high 48 bits hold milliseconds since
// the Unix epoch, the low 16 bits hold a per-millisecond sequence:
//
//	bits [63:16]  milliseconds since 1970-01-01T00:00:00Z
//	bits [15:0]   sequence within that millisecond
//
// IDs therefore sort by creation time, and the smallest ID created at or after a
// given instant is FromTime(t). The layout is persisted: any stored ID must stay
// decodable by this scheme for the lifetime of its record.
package id

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// Bit layout constants.
const (
	SequenceBits  = 16
	TimestampBits = 64 - SequenceBits

	// MaxSequence is the largest sequence value within one millisecond.
	MaxSequence = 1<<SequenceBits - 1

	// MaxMillis is the largest encodable timestamp component.
	MaxMillis = 1<<TimestampBits - 1
)

// ID is the primary identifier type for all tally entities.
type ID uint64

// Nil is the zero-value ID. No allocator ever returns it.
const Nil ID = 0

// New packs a millisecond timestamp and a sequence into an ID.
func New(millis uint64, seq uint16) ID {
	return ID(millis<<SequenceBits | uint64(seq))
}

// FromTime returns the smallest ID whose timestamp component equals t,
// truncated to millisecond granularity. Times before the epoch map to Nil.
func FromTime(t time.Time) ID {
	ms := t.UnixMilli()
	if ms <= 0 {
		return Nil
	}
	return New(uint64(ms), 0)
}

// Parse parses the decimal string form of an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID(v), nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// Millis returns the timestamp component.
func (i ID) Millis() uint64 {
	return uint64(i) >> SequenceBits
}

// Sequence returns the per-millisecond sequence component.
func (i ID) Sequence() uint16 {
	return uint16(uint64(i) & MaxSequence)
}

// Time returns the embedded creation time in UTC.
func (i ID) Time() time.Time {
	return time.UnixMilli(int64(i.Millis())).UTC()
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return i == Nil
}

// String returns the decimal representation.
func (i ID) String() string {
	return strconv.FormatUint(uint64(i), 10)
}

// Int64 returns the ID as a signed integer for BIGINT columns.
func (i ID) Int64() int64 {
	return int64(i)
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. IDs are stored as BIGINT.
func (i ID) Value() (driver.Value, error) {
	return int64(i), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case int64:
		*i = ID(v)
		return nil
	case []byte:
		return i.UnmarshalText(v)
	case string:
		return i.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
