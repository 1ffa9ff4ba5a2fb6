package model_test

import (
	"testing"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
)

// Every declared counter must be addressable on its entity and nothing else.
func TestCountersMatchFieldTable(t *testing.T) {
	entities := map[id.Kind]model.Counters{
		id.KindUser:     &model.User{},
		id.KindQuestion: &model.Question{},
		id.KindAnswer:   &model.Answer{},
		id.KindComment:  &model.Comment{},
	}

	for kind, e := range entities {
		for i, f := range counter.Fields(kind) {
			want := int64(i + 1)
			if !e.SetCounter(f, want) {
				t.Fatalf("%s: SetCounter(%s) rejected", kind, f)
			}
			got, ok := e.Counter(f)
			if !ok || got != want {
				t.Errorf("%s.%s = %d (%v), want %d", kind, f, got, ok, want)
			}
		}
		if _, ok := e.Counter("bogus"); ok {
			t.Errorf("%s accepted an unknown field", kind)
		}
	}
}

func TestAnswerCounterFields(t *testing.T) {
	a := &model.Answer{}
	a.SetCounter(counter.SmileCount, 3)
	a.SetCounter(counter.CommentCount, 1)
	if a.SmileCount != 3 || a.CommentCount != 1 {
		t.Errorf("unexpected answer counters: %+v", a)
	}
	if a.SetCounter(counter.AnswerCount, 9) {
		t.Error("answers have no answer_count")
	}
}
