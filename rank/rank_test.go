package rank_test

import (
	"testing"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/rank"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		opts []rank.Option
		want rank.Options
	}{
		{"empty", nil, rank.Options{}},
		{
			"answer includes",
			[]rank.Option{rank.WithUser(), rank.WithQuestion(), rank.WithComments(), rank.WithSmiles()},
			rank.Options{IncludeUser: true, IncludeQuestion: true, IncludeComments: true, IncludeSmiles: true},
		},
		{
			"filters",
			[]rank.Option{rank.ExcludeAnonymous(), rank.NonZero(counter.AskedCount)},
			rank.Options{ExcludeAnonymous: true, NonZero: counter.AskedCount},
		},
		{
			"question includes",
			[]rank.Option{rank.WithAnswers()},
			rank.Options{IncludeAnswers: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rank.Apply(tt.opts...); got != tt.want {
				t.Errorf("Apply() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
