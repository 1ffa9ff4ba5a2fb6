package memory

import (
	"slices"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
)

// record is one stored row. Counter fields live in atomic cells; the copy in
// val holds everything else and never changes after insert.
type record[T any] struct {
	val   T
	cells map[counter.Field]*atomic.Int64
}

func (r *record[T]) snapshot() *T {
	v := r.val
	if c, ok := any(&v).(model.Counters); ok {
		for f, cell := range r.cells {
			c.SetCounter(f, cell.Load())
		}
	}
	return &v
}

// table keeps rows ordered by identifier, newest first, so a window scan can
// stop as soon as it passes the lower bound.
type table[T any] struct {
	kind id.Kind
	rows *skipmap.FuncMap[id.ID, *record[T]]

	key       func(*T) id.ID
	fk        func(v *T, column string) id.ID
	anonymous func(*T) bool
	onDelete  func(*T)
}

func newTable[T any](kind id.Kind, key func(*T) id.ID, fk func(*T, string) id.ID) *table[T] {
	return &table[T]{
		kind: kind,
		rows: skipmap.NewFunc[id.ID, *record[T]](func(a, b id.ID) bool {
			return a > b
		}),
		key: key,
		fk:  fk,
	}
}

func (t *table[T]) insert(v *T) bool {
	rec := &record[T]{val: *v, cells: make(map[counter.Field]*atomic.Int64)}
	for _, f := range counter.Fields(t.kind) {
		cell := new(atomic.Int64)
		if c, ok := any(v).(model.Counters); ok {
			if n, ok := c.Counter(f); ok {
				cell.Store(n)
			}
		}
		rec.cells[f] = cell
	}
	_, loaded := t.rows.LoadOrStore(t.key(v), rec)
	return !loaded
}

func (t *table[T]) get(entityID id.ID) (*T, bool) {
	rec, ok := t.rows.Load(entityID)
	if !ok {
		return nil, false
	}
	return rec.snapshot(), true
}

func (t *table[T]) remove(entityID id.ID) bool {
	rec, ok := t.rows.LoadAndDelete(entityID)
	if !ok {
		return false
	}
	if t.onDelete != nil {
		t.onDelete(&rec.val)
	}
	return true
}

func (t *table[T]) cell(entityID id.ID, f counter.Field) (*atomic.Int64, bool, bool) {
	rec, ok := t.rows.Load(entityID)
	if !ok {
		return nil, false, false
	}
	c, ok := rec.cells[f]
	return c, true, ok
}

// filter returns matching rows oldest first.
func (t *table[T]) filter(keep func(*T) bool) []*T {
	var out []*T
	t.rows.Range(func(_ id.ID, rec *record[T]) bool {
		if v := rec.snapshot(); keep == nil || keep(v) {
			out = append(out, v)
		}
		return true
	})
	slices.Reverse(out)
	return out
}

// byColumn returns rows whose column matches any of parents, oldest first.
func (t *table[T]) byColumn(column string, parents []id.ID) []*T {
	set := make(map[id.ID]struct{}, len(parents))
	for _, p := range parents {
		set[p] = struct{}{}
	}
	return t.filter(func(v *T) bool {
		_, ok := set[t.fk(v, column)]
		return ok
	})
}

// window returns rows with identifier >= since that pass keep, newest first.
func (t *table[T]) window(since id.ID, keep func(*T) bool) []*T {
	var out []*T
	t.rows.Range(func(k id.ID, rec *record[T]) bool {
		if k < since {
			return false
		}
		if v := rec.snapshot(); keep == nil || keep(v) {
			out = append(out, v)
		}
		return true
	})
	return out
}

func (t *table[T]) count(column string, parent id.ID, excludeAnonymous bool) int64 {
	var n int64
	t.rows.Range(func(_ id.ID, rec *record[T]) bool {
		if t.fk(&rec.val, column) != parent {
			return true
		}
		if excludeAnonymous && t.anonymous != nil && t.anonymous(&rec.val) {
			return true
		}
		n++
		return true
	})
	return n
}

// ids pages identifiers ascending, strictly after the given one.
func (t *table[T]) ids(after id.ID, limit int) []id.ID {
	var out []id.ID
	t.rows.Range(func(k id.ID, _ *record[T]) bool {
		if k <= after {
			return false
		}
		out = append(out, k)
		return true
	})
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (t *table[T]) size() int { return t.rows.Len() }
