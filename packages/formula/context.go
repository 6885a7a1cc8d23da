package formula

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Resolver supplies cell values. ref is "A1" or "Sheet Name!A1" with quotes
// removed. a returned error is reported to the formula as #REF!.
type Resolver interface {
	ResolveCell(ctx context.Context, ref string) (Value, error)
}

// BatchResolver is an optional capability for fetching a whole range in one
// call. the result is positional; missing trailing values count as blank.
type BatchResolver interface {
	Resolver
	ResolveCells(ctx context.Context, refs []string) ([]Value, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ref string) (Value, error)

func (f ResolverFunc) ResolveCell(ctx context.Context, ref string) (Value, error) {
	return f(ctx, ref)
}

type ctxKey int

const (
	inFlightKey ctxKey = iota
	sheetKey
)

// inFlight is one link of the chain of references being resolved. the chain
// is immutable, a marker exists exactly as long as the context that carries
// it.
type inFlight struct {
	key     string
	pending bool // pushed by a resolve, not yet claimed by EvaluateCell
	parent  *inFlight
}

func (n *inFlight) contains(key string) bool {
	for ; n != nil; n = n.parent {
		if n.key == key {
			return true
		}
	}
	return false
}

func chainFrom(ctx context.Context) *inFlight {
	n, _ := ctx.Value(inFlightKey).(*inFlight)
	return n
}

func withInFlight(ctx context.Context, key string, pending bool) context.Context {
	return context.WithValue(ctx, inFlightKey, &inFlight{key: key, pending: pending, parent: chainFrom(ctx)})
}

// WithSheet sets the sheet that unqualified references belong to. providers
// that evaluate formulas of several sheets set it so cycle detection can
// tell Sheet1!A1 from Sheet2!A1.
func WithSheet(ctx context.Context, sheet string) context.Context {
	return context.WithValue(ctx, sheetKey, sheet)
}

// SheetFrom returns the sheet set by WithSheet, or "".
func SheetFrom(ctx context.Context) string {
	s, _ := ctx.Value(sheetKey).(string)
	return s
}

// IsInFlight reports whether the reference is being resolved by an
// enclosing evaluation carried by ctx.
func IsInFlight(ctx context.Context, sheet, ref string) bool {
	return chainFrom(ctx).contains(cycleKey(ctx, sheet, ref))
}

// cycleKey is the canonical identity of a reference: upper-cased sheet
// (falling back to the scope sheet) and upper-cased ref.
func cycleKey(ctx context.Context, sheet, ref string) string {
	if sheet == "" {
		sheet = SheetFrom(ctx)
	}
	return strings.ToUpper(sheet) + "!" + strings.ToUpper(stripAnchors(ref))
}

// evalContext is the state of a single Evaluate call. it is never shared
// between evaluations.
type evalContext struct {
	id       string
	resolver Resolver
	batch    BatchResolver
	engine   *Engine

	mu    sync.Mutex
	cache map[string]Value // ref as passed to the resolver -> value
	group singleflight.Group
}

func newEvalContext(engine *Engine, id string, r Resolver) *evalContext {
	ec := &evalContext{
		id:       id,
		resolver: r,
		engine:   engine,
		cache:    make(map[string]Value),
	}
	if b, ok := r.(BatchResolver); ok {
		ec.batch = b
	}
	return ec
}

func (ec *evalContext) cached(ref string) (Value, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	v, ok := ec.cache[ref]
	return v, ok
}

func (ec *evalContext) store(ref string, v Value) {
	ec.mu.Lock()
	ec.cache[ref] = v
	ec.mu.Unlock()
}

// normalizeResolved applies the provider conventions: text starting with
// "#" is an error value.
func normalizeResolved(v Value) Value {
	if v.kind == KindText && IsErrorText(v.text) {
		return Err(ErrorCode(v.text))
	}
	return v
}

// resolve fetches one reference. an in-flight reference is a cycle, a
// provider error is #REF! and is remembered for the rest of the evaluation.
func (ec *evalContext) resolve(ctx context.Context, sheet, ref string) Value {
	if ec.resolver == nil {
		return Number(0)
	}
	key := cycleKey(ctx, sheet, ref)
	if chainFrom(ctx).contains(key) {
		ec.engine.metrics.resolution("cycle")
		ec.engine.log.Debugw("circular reference", "eval", ec.id, "ref", key)
		return Err(ErrCycle)
	}
	refText := qualify(sheet, ref)
	if v, ok := ec.cached(refText); ok {
		ec.engine.metrics.resolution("cached")
		return v
	}

	v, _, _ := ec.group.Do(refText, func() (any, error) {
		if v, ok := ec.cached(refText); ok {
			return v, nil
		}
		ec.engine.metrics.resolution("single")
		val, err := ec.resolver.ResolveCell(withInFlight(ctx, key, true), refText)
		if err != nil {
			ec.engine.log.Debugw("resolver failed", "eval", ec.id, "ref", refText, "error", err)
			val = Err(ErrRef)
		}
		val = normalizeResolved(val)
		ec.store(refText, val)
		return val, nil
	})
	return v.(Value)
}

// resolveRange fetches every member of a range in row-major order. members
// already known come from the cache, in-flight members are cycles, the rest
// go to the batch capability or to concurrent single resolves.
func (ec *evalContext) resolveRange(ctx context.Context, sheet string, refs []string) []Value {
	values := make([]Value, len(refs))
	if ec.resolver == nil {
		for i := range values {
			values[i] = Number(0)
		}
		return values
	}

	chain := chainFrom(ctx)
	var fetchIdx []int
	for i, ref := range refs {
		if chain.contains(cycleKey(ctx, sheet, ref)) {
			values[i] = Err(ErrCycle)
			continue
		}
		if v, ok := ec.cached(qualify(sheet, ref)); ok {
			values[i] = v
			continue
		}
		fetchIdx = append(fetchIdx, i)
	}
	if len(fetchIdx) == 0 {
		return values
	}

	if ec.batch != nil {
		ec.engine.metrics.resolution("batch")
		fetch := make([]string, len(fetchIdx))
		for j, i := range fetchIdx {
			fetch[j] = qualify(sheet, refs[i])
		}
		got, err := ec.batch.ResolveCells(ctx, fetch)
		if err != nil {
			ec.engine.log.Debugw("batch resolver failed", "eval", ec.id, "refs", len(fetch), "error", err)
		}
		for j, i := range fetchIdx {
			var v Value
			switch {
			case err != nil:
				v = Err(ErrRef)
			case j < len(got):
				v = normalizeResolved(got[j])
			}
			ec.store(fetch[j], v)
			values[i] = v
		}
		return values
	}

	var g errgroup.Group
	g.SetLimit(ec.engine.parallelism)
	for _, i := range fetchIdx {
		g.Go(func() error {
			values[i] = ec.resolve(ctx, sheet, refs[i])
			return nil
		})
	}
	_ = g.Wait()
	return values
}

// logger returns a logger tagged with the evaluation id.
func (ec *evalContext) logger() *zap.SugaredLogger {
	return ec.engine.log.With("eval", ec.id)
}
