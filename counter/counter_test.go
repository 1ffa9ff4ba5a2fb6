package counter_test

import (
	"testing"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
)

func TestFieldTable(t *testing.T) {
	tests := []struct {
		kind  id.Kind
		field counter.Field
		valid bool
	}{
		{id.KindQuestion, counter.AnswerCount, true},
		{id.KindAnswer, counter.SmileCount, true},
		{id.KindAnswer, counter.CommentCount, true},
		{id.KindComment, counter.SmileCount, true},
		{id.KindUser, counter.AskedCount, true},
		{id.KindUser, counter.FollowerCount, true},
		{id.KindAnswer, counter.AnswerCount, false},
		{id.KindSmile, counter.SmileCount, false},
		{id.KindUser, "sign_in_count", false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"."+string(tt.field), func(t *testing.T) {
			if got := counter.Valid(tt.kind, tt.field); got != tt.valid {
				t.Errorf("Valid = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestEveryFieldHasSource(t *testing.T) {
	for _, k := range counter.Counted() {
		for _, f := range counter.Fields(k) {
			src, ok := counter.SourceOf(k, f)
			if !ok {
				t.Fatalf("%s.%s has no source", k, f)
			}
			if !src.Child.Valid() || src.ForeignKey == "" {
				t.Errorf("%s.%s has incomplete source %+v", k, f, src)
			}
		}
	}
}

func TestCountedKinds(t *testing.T) {
	got := counter.Counted()
	want := map[id.Kind]bool{id.KindUser: true, id.KindQuestion: true, id.KindAnswer: true, id.KindComment: true}
	if len(got) != len(want) {
		t.Fatalf("Counted() = %v", got)
	}
	for _, k := range got {
		if !want[k] {
			t.Errorf("unexpected counted kind %s", k)
		}
	}
	if counter.Fields(id.KindSmile) != nil {
		t.Error("smiles declare no counters")
	}
}

func TestTargetValidate(t *testing.T) {
	ok := counter.Target{Kind: id.KindAnswer, ID: id.New(1, 0), Field: counter.SmileCount}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := []counter.Target{
		{Kind: id.KindUnknown, ID: id.New(1, 0), Field: counter.SmileCount},
		{Kind: id.KindAnswer, ID: id.Nil, Field: counter.SmileCount},
		{Kind: id.KindAnswer, ID: id.New(1, 0), Field: counter.AskedCount},
	}
	for _, tgt := range bad {
		if err := tgt.Validate(); err == nil {
			t.Errorf("expected error for %+v", tgt)
		}
	}
}

func TestDeltaConstructors(t *testing.T) {
	aid := id.New(5, 1)
	if d := counter.Inc(id.KindAnswer, aid, counter.SmileCount); d.Amount != 1 || d.ID != aid {
		t.Errorf("Inc = %+v", d)
	}
	if d := counter.Dec(id.KindAnswer, aid, counter.SmileCount); d.Amount != -1 {
		t.Errorf("Dec = %+v", d)
	}
	if d := counter.Signed(-1, id.KindUser, aid, counter.SmiledCount); d.Amount != -1 {
		t.Errorf("Signed(-1) = %+v", d)
	}
}
