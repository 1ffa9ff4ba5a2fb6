package id

import "fmt"

// Kind identifies the entity type an ID was allocated for.
type Kind uint8

// Kind constants for all tally entity types.
const (
	KindUnknown      Kind = iota
	KindUser                // Platform user
	KindQuestion            // Asked question
	KindAnswer              // Answer to a question
	KindComment             // Comment on an answer
	KindSmile               // Smile on an answer
	KindCommentSmile        // Smile on a comment
	KindRelationship        // Follow edge between users

	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:      "unknown",
	KindUser:         "user",
	KindQuestion:     "question",
	KindAnswer:       "answer",
	KindComment:      "comment",
	KindSmile:        "smile",
	KindCommentSmile: "comment_smile",
	KindRelationship: "relationship",
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindUser; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k is one of the declared entity kinds.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < kindCount
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// ParseKind parses a kind name as returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindUser; k < kindCount; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(data []byte) error {
	parsed, err := ParseKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
