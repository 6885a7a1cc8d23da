package formula

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Engine evaluates formulas. it owns the function registry, the token cache
// and the locale map, and is safe for concurrent use.
type Engine struct {
	tokens   *TokenCache
	builtins map[string]Function

	mu     sync.RWMutex
	custom map[string]Function

	locale      map[string]string
	log         *zap.SugaredLogger
	metrics     *metrics
	clock       Clock
	parallelism int
}

type engineConfig struct {
	cacheCapacity int
	locale        map[string]string
	localeTags    []string
	logger        *zap.SugaredLogger
	registerer    prometheus.Registerer
	clock         Clock
	parallelism   int
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLocaleMap adds localized function names, localized name to canonical
// name. entries override the ones loaded by WithLocale.
func WithLocaleMap(m map[string]string) Option {
	return func(c *engineConfig) {
		if c.locale == nil {
			c.locale = make(map[string]string, len(m))
		}
		for k, v := range m {
			c.locale[k] = v
		}
	}
}

// WithLocale loads a bundled locale ("fr", "de") by BCP 47 tag.
func WithLocale(tag string) Option {
	return func(c *engineConfig) {
		c.localeTags = append(c.localeTags, tag)
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *engineConfig) {
		c.logger = log
	}
}

// WithMetrics registers the engine counters on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *engineConfig) {
		c.registerer = reg
	}
}

// WithClock sets the clock TODAY reads.
func WithClock(clock Clock) Option {
	return func(c *engineConfig) {
		c.clock = clock
	}
}

func WithCacheCapacity(capacity int) Option {
	return func(c *engineConfig) {
		c.cacheCapacity = capacity
	}
}

// WithParallelism bounds the concurrent single resolves of one range when
// the resolver has no batch capability.
func WithParallelism(n int) Option {
	return func(c *engineConfig) {
		c.parallelism = n
	}
}

// NewEngine creates an engine. options that fail (unknown locale, metric
// registration conflicts) are logged and skipped.
func NewEngine(opts ...Option) *Engine {
	cfg := engineConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop().Sugar()
	}
	if cfg.parallelism < 1 {
		cfg.parallelism = runtime.GOMAXPROCS(0)
	}

	e := &Engine{
		tokens:      NewTokenCache(cfg.cacheCapacity),
		builtins:    NewBuiltInFunctions(cfg.clock).Table(),
		custom:      make(map[string]Function),
		locale:      make(map[string]string),
		log:         cfg.logger,
		clock:       cfg.clock,
		parallelism: cfg.parallelism,
	}

	for _, tag := range cfg.localeTags {
		names, err := LoadLocale(tag)
		if err != nil {
			e.log.Warnw("locale not loaded", "locale", tag, "error", err)
			continue
		}
		for k, v := range names {
			e.locale[k] = v
		}
	}
	for k, v := range cfg.locale {
		e.locale[k] = v
	}

	if cfg.registerer != nil {
		m := newMetrics()
		if err := m.register(cfg.registerer); err != nil {
			e.log.Warnw("metrics not registered", "error", err)
		} else {
			e.metrics = m
		}
	}
	return e
}

// Evaluate computes the value of a formula. references go to r, which may be
// nil. Evaluate never panics and never returns a Go error: malformed input
// is #VALUE!.
func (e *Engine) Evaluate(ctx context.Context, text string, r Resolver) (result Value) {
	if strings.TrimSpace(text) == "" {
		return Text("")
	}
	id := uuid.NewString()
	defer func() {
		if p := recover(); p != nil {
			e.log.Errorw("formula evaluation panicked", "eval", id, "formula", text, "panic", fmt.Sprint(p))
			result = Err(ErrValue)
		}
		e.metrics.evaluation(result)
	}()

	tokens := e.tokenize(text)
	ec := newEvalContext(e, id, r)
	value, err := newParser(ctx, tokens, ec).Parse()
	if err != nil {
		var evalErr *EvalError
		if errors.As(err, &evalErr) {
			ec.logger().Debugw("formula rejected", "formula", text, "pos", evalErr.Pos, "error", evalErr.Message)
			return Err(evalErr.Code)
		}
		ec.logger().Debugw("formula rejected", "formula", text, "error", err)
		return Err(ErrValue)
	}
	return normalizeResult(value)
}

// EvaluateCell evaluates the formula stored at ref for a provider that
// computes formula cells on demand. ref may be sheet qualified; the formula
// is evaluated with its sheet as the scope of unqualified references. if
// ref is already being evaluated up the chain carried by ctx the result is
// #CYCLE!.
func (e *Engine) EvaluateCell(ctx context.Context, ref, text string, r Resolver) Value {
	sheet, cell := splitRef(ref)
	if sheet == "" {
		sheet = SheetFrom(ctx)
	}
	key := cycleKey(ctx, sheet, cell)
	if head := chainFrom(ctx); head.contains(key) && !(head.key == key && head.pending) {
		e.metrics.resolution("cycle")
		e.log.Debugw("circular reference", "ref", key)
		return Err(ErrCycle)
	}
	ctx = withInFlight(ctx, key, false)
	if sheet != "" {
		ctx = WithSheet(ctx, sheet)
	}
	return e.Evaluate(ctx, text, r)
}

// splitRef separates "Sheet!A1" into sheet and cell. quotes around the
// sheet name are removed.
func splitRef(ref string) (sheet, cell string) {
	i := strings.LastIndexByte(ref, '!')
	if i < 0 {
		return "", ref
	}
	sheet = ref[:i]
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, ref[i+1:]
}

func (e *Engine) tokenize(text string) []Token {
	if tokens, ok := e.tokens.Get(text); ok {
		e.metrics.cache("hit")
		return tokens
	}
	e.metrics.cache("miss")
	tokens := Tokenize(text)
	if evicted, ok := e.tokens.Put(text, tokens); ok {
		e.metrics.cache("evict")
		e.log.Debugw("token cache eviction", "formula", evicted)
	}
	return tokens
}

// RegisterFunction adds or replaces a custom function over the flattened
// argument list. error arguments are returned before fn runs. custom
// functions are consulted before built-ins.
func (e *Engine) RegisterFunction(name string, fn Func) {
	e.register(Function{Name: strings.ToUpper(name), Call: fn})
}

// RegisterArgsFunction adds or replaces a custom function that sees the
// argument structure, range shapes and error arguments included.
func (e *Engine) RegisterArgsFunction(name string, fn ArgsFunc) {
	e.register(Function{Name: strings.ToUpper(name), CallArgs: fn})
}

func (e *Engine) register(fn Function) {
	if fn.Call != nil {
		call := fn.Call
		fn.Call = func(ctx context.Context, args []Value) Value {
			return recoverCall(ctx, fn.Name, e.log, func() Value { return call(ctx, args) })
		}
	}
	if fn.CallArgs != nil {
		call := fn.CallArgs
		fn.CallArgs = func(ctx context.Context, args []Arg) Value {
			return recoverCall(ctx, fn.Name, e.log, func() Value { return call(ctx, args) })
		}
	}
	e.mu.Lock()
	e.custom[fn.Name] = fn
	e.mu.Unlock()
}

// recoverCall turns a panic of a custom function into #VALUE! so one bad
// function does not abort the surrounding formula.
func recoverCall(_ context.Context, name string, log *zap.SugaredLogger, call func() Value) (v Value) {
	defer func() {
		if p := recover(); p != nil {
			log.Warnw("custom function panicked", "function", name, "panic", fmt.Sprint(p))
			v = Err(ErrValue)
		}
	}()
	return call()
}

// ResolveFunctionName maps a possibly localized name to its canonical
// name: the locale map by upper-cased name, then by the name as written,
// else the upper-cased name.
func (e *Engine) ResolveFunctionName(name string) string {
	upper := strings.ToUpper(name)
	if canonical, ok := e.locale[upper]; ok && canonical != "" {
		return strings.ToUpper(canonical)
	}
	if canonical, ok := e.locale[name]; ok && canonical != "" {
		return strings.ToUpper(canonical)
	}
	return upper
}

func (e *Engine) lookup(name string) (Function, bool) {
	e.mu.RLock()
	fn, ok := e.custom[name]
	e.mu.RUnlock()
	if ok {
		return fn, true
	}
	fn, ok = e.builtins[name]
	return fn, ok
}

// Functions lists every callable canonical name, custom ones included.
func (e *Engine) Functions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.builtins)+len(e.custom))
	for name := range e.builtins {
		names = append(names, name)
	}
	for name := range e.custom {
		if _, dup := e.builtins[name]; !dup {
			names = append(names, name)
		}
	}
	return names
}

// ClearCache empties the token cache.
func (e *Engine) ClearCache() {
	e.tokens.Clear()
}

// CacheLen returns the number of tokenized formulas held.
func (e *Engine) CacheLen() int {
	return e.tokens.Len()
}
