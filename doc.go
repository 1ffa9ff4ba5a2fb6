// Package tally provides the identity-and-ranking substrate of a social Q&A
// platform: time-encoded identifiers, denormalized engagement counters and
// windowed top-K rankings.
//
// Tally is designed as a library, not a service. It provides:
//
//   - 64-bit identifiers that embed their creation millisecond (ms<<16 | seq)
//   - Counters kept in step with smiles, comments, answers and follows
//   - Recount and reconciliation that repair drifted counters
//   - Time-windowed rankings that filter on the identifier, never on a
//     timestamp column
//   - The discover page: six popular/new lists computed concurrently
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/tally"
//	    "github.com/xraph/tally/store/memory"
//	)
//
//	t := tally.New(memory.New())
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
// # Identifiers
//
// Every entity gets an ID whose upper 48 bits are Unix milliseconds and lower
// 16 bits a per-millisecond sequence. IDs of one kind are strictly increasing
// in one process, so "created within the last week" is simply
//
//	since := t.IDs().WindowStart(7 * 24 * time.Hour)
//	// ... WHERE id >= since
//
// # Counters
//
// Workflows such as SmileAnswer or DeleteAnswer apply +1/-1 deltas along the
// relation edges. Deltas aimed at rows that no longer exist are dropped
// (ErrTargetGone is absorbed). Recount re-derives a counter from its child
// rows; Reconcile does so for every entity of a kind.
//
// # Rankings
//
//	top, err := t.TopK(ctx, id.KindAnswer, counter.SmileCount, 7*24*time.Hour, 10,
//	    rank.WithUser(), rank.WithQuestion())
//
// Order among equal scores is unspecified.
package tally
