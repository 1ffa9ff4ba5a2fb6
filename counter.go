package tally

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
)

// ──────────────────────────────────────────────────
// Counter Ledger
// ──────────────────────────────────────────────────

// ApplyDelta adjusts one counter by +1 or -1 using the store's atomic
// increment. A delta whose target row is gone is dropped and nil is returned.
func (t *Tally) ApplyDelta(ctx context.Context, kind id.Kind, entityID id.ID, field counter.Field, delta int64) error {
	d := counter.Delta{
		Target: counter.Target{Kind: kind, ID: entityID, Field: field},
		Amount: delta,
	}
	if err := validateDelta(d); err != nil {
		return err
	}
	return t.apply(ctx, d)
}

func validateDelta(d counter.Delta) error {
	if !d.Kind.Valid() {
		return fmt.Errorf("tally: %s: %w", d.Target, ErrUnknownKind)
	}
	if !counter.Valid(d.Kind, d.Field) {
		return fmt.Errorf("tally: %s: %w", d.Target, ErrInvalidCounter)
	}
	if d.ID.IsNil() {
		return fmt.Errorf("tally: %s: nil id: %w", d.Target, ErrInvalidInput)
	}
	if d.Amount != 1 && d.Amount != -1 {
		return fmt.Errorf("tally: %s by %d: %w", d.Target, d.Amount, ErrInvalidDelta)
	}
	return nil
}

func (t *Tally) apply(ctx context.Context, d counter.Delta) error {
	err := t.store.Increment(ctx, d.Target, d.Amount)
	switch {
	case errors.Is(err, ErrTargetGone):
		t.logger.Debug("counter target gone, delta dropped",
			"kind", d.Kind.String(),
			"entity_id", d.ID.String(),
			"field", string(d.Field),
			"delta", d.Amount,
		)
		t.plugins.EmitTargetGone(ctx, d)
		return nil
	case err != nil:
		return fmt.Errorf("tally: apply %s: %w", d.Target, err)
	}

	t.plugins.EmitDeltaApplied(ctx, d)
	return nil
}

// BatchApply applies every delta, concurrently and in no particular order.
// All deltas are validated before any is applied. Failures other than a
// vanished target are collected into a MultiError.
func (t *Tally) BatchApply(ctx context.Context, deltas []counter.Delta) error {
	for _, d := range deltas {
		if err := validateDelta(d); err != nil {
			return err
		}
	}

	var (
		mu   sync.Mutex
		errs MultiError
		g    errgroup.Group
	)
	g.SetLimit(t.batchConcurrency)

	for _, d := range deltas {
		if ctx.Err() != nil {
			errs.Add(ctx.Err())
			break
		}
		g.Go(func() error {
			if err := t.apply(ctx, d); err != nil {
				mu.Lock()
				errs.Add(err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers report through errs

	return errs.ErrOrNil()
}

// ──────────────────────────────────────────────────
// Recount and reconciliation
// ──────────────────────────────────────────────────

// Recount re-derives a counter from a live count of its child rows and
// stores the result. A disagreement with the stored value is logged and
// reported to OnCounterDrift plugins, never returned as an error.
//
// The count is retaken when a delta lands while children are counted. A
// delta applied between the final read and the write is still overwritten
// and stays off until the next recount.
func (t *Tally) Recount(ctx context.Context, kind id.Kind, entityID id.ID, field counter.Field) (int64, error) {
	actual, _, err := t.recount(ctx, counter.Target{Kind: kind, ID: entityID, Field: field})
	return actual, err
}

// RecountEntity recounts every counter field of one entity and returns the
// drifts it corrected.
func (t *Tally) RecountEntity(ctx context.Context, kind id.Kind, entityID id.ID) ([]DriftError, error) {
	fields := counter.Fields(kind)
	if len(fields) == 0 {
		return nil, fmt.Errorf("tally: %s has no counters: %w", kind, ErrInvalidCounter)
	}

	var drifts []DriftError
	for _, f := range fields {
		_, drift, err := t.recount(ctx, counter.Target{Kind: kind, ID: entityID, Field: f})
		if err != nil {
			return drifts, err
		}
		if drift != nil {
			drifts = append(drifts, *drift)
		}
	}
	return drifts, nil
}

func (t *Tally) recount(ctx context.Context, target counter.Target) (int64, *DriftError, error) {
	if !target.Kind.Valid() {
		return 0, nil, fmt.Errorf("tally: recount %s: %w", target, ErrUnknownKind)
	}
	src, ok := counter.SourceOf(target.Kind, target.Field)
	if !ok {
		return 0, nil, fmt.Errorf("tally: recount %s: %w", target, ErrInvalidCounter)
	}

	stored, actual, err := t.settledCount(ctx, target, src)
	if err != nil {
		return 0, nil, err
	}

	if err := t.store.SetCounter(ctx, target, actual); err != nil {
		if errors.Is(err, ErrTargetGone) {
			return 0, nil, NotFoundFor(target.Kind)
		}
		return 0, nil, fmt.Errorf("tally: recount %s: %w", target, err)
	}

	if stored == actual {
		return actual, nil, nil
	}

	drift := &DriftError{Target: target, Stored: stored, Actual: actual}
	t.logger.Warn("counter drift corrected",
		"kind", target.Kind.String(),
		"entity_id", target.ID.String(),
		"field", string(target.Field),
		"stored", stored,
		"actual", actual,
		"delta", drift.Delta(),
	)
	t.plugins.EmitCounterDrift(ctx, target, stored, actual)
	return actual, drift, nil
}

// recountAttempts bounds how often a count is retried while writers keep
// moving the stored value.
const recountAttempts = 3

// settledCount counts the children of target and returns the count along
// with the stored value it replaces. If the stored value moves while the
// children are being counted, a delta landed mid-count and the count is
// taken again.
func (t *Tally) settledCount(ctx context.Context, target counter.Target, src counter.Source) (stored, actual int64, err error) {
	stored, err = t.store.CounterValue(ctx, target)
	if err != nil {
		return 0, 0, err
	}
	for attempt := 1; ; attempt++ {
		actual, err = t.store.CountChildren(ctx, src, target.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("tally: recount %s: %w", target, err)
		}
		var again int64
		again, err = t.store.CounterValue(ctx, target)
		if err != nil {
			return 0, 0, err
		}
		if again == stored || attempt == recountAttempts {
			return again, actual, nil
		}
		stored = again
	}
}

// Reconcile recounts every counter of every entity of kind, paging through
// identifiers in ascending order. Entities deleted mid-pass are skipped.
func (t *Tally) Reconcile(ctx context.Context, kind id.Kind) ([]DriftError, error) {
	if len(counter.Fields(kind)) == 0 {
		return nil, fmt.Errorf("tally: %s has no counters: %w", kind, ErrInvalidCounter)
	}

	var (
		drifts []DriftError
		after  id.ID
	)
	for {
		ids, err := t.store.ListIDs(ctx, kind, after, t.reconcilePage)
		if err != nil {
			return drifts, fmt.Errorf("tally: reconcile %s: %w", kind, err)
		}
		for _, entityID := range ids {
			if err := ctx.Err(); err != nil {
				return drifts, err
			}
			found, err := t.RecountEntity(ctx, kind, entityID)
			if err != nil {
				if IsNotFound(err) {
					continue
				}
				return drifts, err
			}
			drifts = append(drifts, found...)
		}
		if len(ids) < t.reconcilePage {
			return drifts, nil
		}
		after = ids[len(ids)-1]
	}
}
