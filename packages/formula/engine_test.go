package formula

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cells is a resolver over a map of references to Go values. text starting
// with "=" is a formula and is evaluated through the engine on demand.
type cells struct {
	engine *Engine
	values map[string]any
	calls  atomic.Int64
}

func newCells(engine *Engine, values map[string]any) *cells {
	return &cells{engine: engine, values: values}
}

func (c *cells) ResolveCell(ctx context.Context, ref string) (Value, error) {
	c.calls.Add(1)
	raw, ok := c.values[ref]
	if !ok {
		return Blank(), nil
	}
	if text, isText := raw.(string); isText && strings.HasPrefix(text, "=") {
		return c.engine.EvaluateCell(ctx, ref, text, c), nil
	}
	return FromAny(raw), nil
}

// batchCells adds the batch capability to cells.
type batchCells struct {
	*cells
	batches atomic.Int64
}

func (b *batchCells) ResolveCells(ctx context.Context, refs []string) ([]Value, error) {
	b.batches.Add(1)
	values := make([]Value, len(refs))
	for i, ref := range refs {
		raw, ok := b.values[ref]
		if !ok {
			continue
		}
		if text, isText := raw.(string); isText && strings.HasPrefix(text, "=") {
			values[i] = b.engine.EvaluateCell(ctx, ref, text, b)
			continue
		}
		values[i] = FromAny(raw)
	}
	return values, nil
}

var fruitTable = map[string]any{
	"A1": 1, "B1": "Apple", "C1": 10,
	"A2": 2, "B2": "Banana", "C2": 20,
	"A3": 3, "B3": "Cherry", "C3": 30,
	"A4": 4, "B4": "Date", "C4": 40,
	"A5": 5, "B5": "Elderberry", "C5": 50,
}

var salesTable = map[string]any{
	"A1": "Apple", "B1": "North", "C1": 100,
	"A2": "Banana", "B2": "South", "C2": 200,
	"A3": "Apple", "B3": "South", "C3": 150,
	"A4": "Cherry", "B4": "North", "C4": 300,
	"A5": "Banana", "B5": "North", "C5": 250,
	"A6": "Apple", "B6": "North", "C6": 175,
}

type evalCase struct {
	formula string
	want    Value
}

func runEvalCases(t *testing.T, engine *Engine, data map[string]any, tests []evalCase) {
	t.Helper()
	r := newCells(engine, data)
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got := engine.Evaluate(context.Background(), tt.formula, r)
			assert.Equal(t, tt.want, got, "%s = %#v, want %#v", tt.formula, got, tt.want)
		})
	}
}

func TestEvaluateOperators(t *testing.T) {
	runEvalCases(t, NewEngine(), nil, []evalCase{
		{"=1+2*3", Number(7)},
		{"=(1+2)*3", Number(9)},
		{"=2^3^2", Number(64)},
		{"=-2^2", Number(4)},
		{"=10/4", Number(2.5)},
		{"=1/0", Err(ErrDiv0)},
		{"=0^-1", Err(ErrDiv0)},
		{"=1+1/0", Err(ErrDiv0)},
		{`="a"&1&TRUE`, Text("a1TRUE")},
		{`=1&""`, Text("1")},
		{"=1<2", Bool(true)},
		{"=2>=3", Bool(false)},
		{"=1==1", Bool(true)},
		{`="5"=5`, Bool(true)},
		{`="a"="A"`, Bool(false)},
		{`="abc"<"ABD"`, Bool(true)},
		{`="b"<>"B"`, Bool(true)},
		{`="x"+1`, Err(ErrValue)},
		{"=TRUE+1", Number(2)},
		{`=""+1`, Number(1)},
		{"=+5", Number(5)},
		{"1+1", Number(2)},
		{"=.5*4", Number(2)},
	})
}

func TestEvaluateMalformed(t *testing.T) {
	runEvalCases(t, NewEngine(), nil, []evalCase{
		{"=SUM(1,2", Err(ErrValue)},
		{"=(1+2", Err(ErrValue)},
		{"=1 2", Err(ErrValue)},
		{"=1)", Err(ErrValue)},
		{"={1,2;3}", Err(ErrValue)},
		{"=foo", Err(ErrName)},
		{"=NOPE(1)", Err(ErrName)},
		{"=", Number(0)},
	})
}

func TestEvaluateEmpty(t *testing.T) {
	engine := NewEngine()
	for _, text := range []string{"", "   ", "\t\n"} {
		assert.Equal(t, Text(""), engine.Evaluate(context.Background(), text, nil))
	}
	assert.Equal(t, 0, engine.CacheLen(), "empty text is not tokenized")
}

func TestEvaluateReferences(t *testing.T) {
	data := map[string]any{
		"A1": 10, "A2": 20, "A3": 30,
		"B1": "#N/A",
		"B2": "hello",
		"B3": true,
		"Data!A1":        5,
		"Other Sheet!C3": 7,
	}
	runEvalCases(t, NewEngine(), data, []evalCase{
		{"=SUM(A1:A3)", Number(60)},
		{"=AVERAGE(A1:A3)", Number(20)},
		{"=MEDIAN(A1:A3)", Number(20)},
		{"=SUM(A3:A1)", Number(60)},
		{"=SUM(A1:XFD1048576)", Err(ErrRef)},
		{"=SUM(A1:A9223372036854775807)", Err(ErrRef)},
		{"=SUM(A1:B4611686018427387904)", Err(ErrRef)},
		{"=A1:A3", Err(ErrValue)},
		{"=A1:A1", Number(10)},
		{"=A1:A3+1", Err(ErrValue)},
		{"=$A$1*2", Number(20)},
		{"=a2", Number(20)},
		{"=Z99", Blank()},
		{"=Z99+1", Number(1)},
		{"=ISBLANK(Z99)", Bool(true)},
		{"=B1", Err(ErrNA)},
		{"=ISERROR(B1)", Bool(true)},
		{"=B2&\" world\"", Text("hello world")},
		{"=B3", Bool(true)},
		{"=Data!A1*2", Number(10)},
		{"='Other Sheet'!C3", Number(7)},
		{"=SUM(Data!A1:A2)", Number(5)},
	})
}

func TestEvaluateNilResolver(t *testing.T) {
	engine := NewEngine()
	assert.Equal(t, Number(5), engine.Evaluate(context.Background(), "=A1+5", nil))
	assert.Equal(t, Number(0), engine.Evaluate(context.Background(), "=SUM(A1:B9)", nil))
}

func TestEvaluateResolverError(t *testing.T) {
	engine := NewEngine()
	var calls atomic.Int64
	r := ResolverFunc(func(_ context.Context, ref string) (Value, error) {
		calls.Add(1)
		if ref == "A1" {
			return Value{}, errors.New("backend unavailable")
		}
		return Number(1), nil
	})
	assert.Equal(t, Err(ErrRef), engine.Evaluate(context.Background(), "=A1+1", r))
	assert.Equal(t, Number(2), engine.Evaluate(context.Background(), "=IFERROR(A1,1)+B1", r))

	calls.Store(0)
	assert.Equal(t, Err(ErrRef), engine.Evaluate(context.Background(), "=A1+A1", r))
	assert.EqualValues(t, 1, calls.Load(), "failed resolution is remembered for the evaluation")
}

func TestEvaluateResolveCache(t *testing.T) {
	engine := NewEngine()
	r := newCells(engine, map[string]any{"A1": 2, "A2": 3})
	got := engine.Evaluate(context.Background(), "=A1*A1+A1+SUM(A1:A2)", r)
	assert.Equal(t, Number(11), got)
	assert.EqualValues(t, 2, r.calls.Load(), "each reference is fetched once per evaluation")

	got = engine.Evaluate(context.Background(), "=A1", r)
	assert.Equal(t, Number(2), got)
	assert.EqualValues(t, 3, r.calls.Load(), "the resolve cache does not outlive an evaluation")
}

func TestEvaluateBatchResolver(t *testing.T) {
	engine := NewEngine()
	data := map[string]any{"A1": 10, "A2": "20", "A3": 30, "B1": "=SUM(A1:A3)"}

	single := newCells(engine, data)
	batch := &batchCells{cells: newCells(engine, data)}

	for _, formula := range []string{"=SUM(A1:A3)", "=AVERAGE(A1:A4)", "=B1*2", "=COUNT(A1:B3)"} {
		t.Run(formula, func(t *testing.T) {
			want := engine.Evaluate(context.Background(), formula, single)
			got := engine.Evaluate(context.Background(), formula, batch)
			assert.Equal(t, want, got)
		})
	}
	assert.Positive(t, batch.batches.Load())
}

func TestEvaluateBatchResolverError(t *testing.T) {
	engine := NewEngine()
	r := &failingBatch{}
	assert.Equal(t, Number(0), engine.Evaluate(context.Background(), "=COUNT(A1:A3)", r))
	assert.Equal(t, Err(ErrRef), engine.Evaluate(context.Background(), "=SUM(A1:A3)", r))
}

type failingBatch struct{}

func (failingBatch) ResolveCell(context.Context, string) (Value, error) {
	return Number(1), nil
}

func (failingBatch) ResolveCells(context.Context, []string) ([]Value, error) {
	return nil, errors.New("batch failed")
}

func TestEvaluateCycles(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		formula string
		want    Value
	}{
		{
			name:    "direct self reference",
			data:    map[string]any{"A1": "=A1+1"},
			formula: "=A1",
			want:    Err(ErrCycle),
		},
		{
			name:    "transitive",
			data:    map[string]any{"A1": "=B1", "B1": "=C1*2", "C1": "=A1"},
			formula: "=A1",
			want:    Err(ErrCycle),
		},
		{
			name:    "range containing itself",
			data:    map[string]any{"A1": 1, "A2": 2, "A3": "=SUM(A1:A3)"},
			formula: "=A3",
			want:    Err(ErrCycle),
		},
		{
			name:    "cross sheet",
			data:    map[string]any{"S1!A1": "=S2!A1", "S2!A1": "=S1!A1"},
			formula: "=S1!A1",
			want:    Err(ErrCycle),
		},
		{
			name:    "chain without cycle",
			data:    map[string]any{"A1": "=B1*2", "B1": "=C1+1", "C1": 4},
			formula: "=A1",
			want:    Number(10),
		},
		{
			name:    "diamond without cycle",
			data:    map[string]any{"A1": "=B1+C1", "B1": "=D1", "C1": "=D1", "D1": 3},
			formula: "=A1",
			want:    Number(6),
		},
		{
			name:    "range over formulas without cycle",
			data:    map[string]any{"A1": 1, "A2": "=A1*2", "B1": "=SUM(A1:A2)"},
			formula: "=B1",
			want:    Number(3),
		},
		{
			name:    "same ref on another sheet",
			data:    map[string]any{"Data!A1": 5, "A1": "=Data!A1+1"},
			formula: "=A1",
			want:    Number(6),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine()
			single := newCells(engine, tt.data)
			assert.Equal(t, tt.want, engine.Evaluate(context.Background(), tt.formula, single), "single resolves")

			batch := &batchCells{cells: newCells(engine, tt.data)}
			assert.Equal(t, tt.want, engine.Evaluate(context.Background(), tt.formula, batch), "batch resolves")
		})
	}
}

func TestEvaluateCell(t *testing.T) {
	engine := NewEngine()
	r := newCells(engine, map[string]any{"A1": 2})

	ctx := context.Background()
	assert.Equal(t, Number(4), engine.EvaluateCell(ctx, "B1", "=A1*2", r))
	assert.Equal(t, Err(ErrCycle), engine.EvaluateCell(ctx, "B1", "=B1", r))

	inner := withInFlight(ctx, cycleKey(ctx, "", "C1"), false)
	assert.True(t, IsInFlight(inner, "", "c1"))
	assert.False(t, IsInFlight(inner, "Other", "C1"))
	assert.Equal(t, Err(ErrCycle), engine.EvaluateCell(inner, "C1", "=1", r))
}

func TestEvaluateCellSheetScope(t *testing.T) {
	engine := NewEngine()
	var seen []string
	var mu sync.Mutex
	r := ResolverFunc(func(ctx context.Context, ref string) (Value, error) {
		mu.Lock()
		seen = append(seen, SheetFrom(ctx)+"|"+ref)
		mu.Unlock()
		return Number(1), nil
	})
	got := engine.EvaluateCell(context.Background(), "'Q1 Data'!B2", "=A1+1", r)
	assert.Equal(t, Number(2), got)
	assert.Equal(t, []string{"Q1 Data|A1"}, seen)
}

func TestMathFunctions(t *testing.T) {
	runEvalCases(t, NewEngine(), nil, []evalCase{
		{"=SUM(1,2,3)", Number(6)},
		{`=SUM(1,"2","x",TRUE)`, Number(4)},
		{"=SUM(1,1/0)", Number(1)},
		{"=AVERAGE(2,1/0,4)", Number(3)},
		{"=MIN(5,1/0,3)", Number(3)},
		{"=MEDIAN(1/0,1,3)", Number(2)},
		{"=SUM()", Number(0)},
		{"=AVERAGE()", Err(ErrDiv0)},
		{"=MIN(4,2,8)", Number(2)},
		{"=MAX(4,2,8)", Number(8)},
		{"=MAX()", Number(0)},
		{`=COUNT(1,"2","x",TRUE,1/0)`, Number(3)},
		{"=MEDIAN(3,1,4,2)", Number(2.5)},
		{"=MEDIAN()", Err(ErrNum)},
		{"=STDEV(1)", Err(ErrDiv0)},
		{"=ABS(-3)", Number(3)},
		{"=ROUND(3.567,2)", Number(3.57)},
		{"=ROUND(-2.5,0)", Number(-3)},
		{"=ROUND(1234,-2)", Number(1200)},
		{"=SQRT(16)", Number(4)},
		{"=SQRT(-1)", Err(ErrNum)},
		{"=LN(1)", Number(0)},
		{"=LN(0)", Err(ErrNum)},
		{"=LN(-1)", Err(ErrNum)},
		{`=LN("abc")`, Err(ErrValue)},
		{`=LN("abc")+6`, Err(ErrValue)},
		{"=POWER(2,10)", Number(1024)},
		{"=POWER(0,-1)", Err(ErrDiv0)},
		{"=MOD(7,3)", Number(1)},
		{"=MOD(-7,3)", Number(-1)},
		{"=MOD(1,0)", Err(ErrDiv0)},
		{"=POWER(10,400)", Err(ErrNum)},
	})
}

func TestAggregatesSkipErrorCells(t *testing.T) {
	runEvalCases(t, NewEngine(), map[string]any{"A1": 10, "A2": "#N/A", "A3": 30}, []evalCase{
		{"=SUM(A1:A3)", Number(40)},
		{"=AVERAGE(A1:A3)", Number(20)},
		{"=MAX(A1:A3)", Number(30)},
		{"=MIN(A1:A3)", Number(10)},
		{"=COUNT(A1:A3)", Number(2)},
		{"=AND(1,A2)", Bool(true)},
		{"=A2", Err(ErrNA)},
	})
}

func TestStdev(t *testing.T) {
	got := NewEngine().Evaluate(context.Background(), "=STDEV(2,4,4,4,5,5,7,9)", nil)
	require.True(t, got.IsNumber(), "%#v", got)
	assert.InDelta(t, 2.13808993529939, got.Num(), 1e-12)
}

func TestLogicalFunctions(t *testing.T) {
	runEvalCases(t, NewEngine(), map[string]any{"A1": "FALSE", "A2": ""}, []evalCase{
		{`=IF(1>0,"yes","no")`, Text("yes")},
		{`=IF(0,"yes","no")`, Text("no")},
		{"=IF(1)", Bool(true)},
		{"=IF(0)", Bool(false)},
		{"=IF(1/0,1,2)", Number(1)},
		{"=IF(TRUE,1,1/0)", Number(1)},
		{"=IF(FALSE,1/0,2)", Number(2)},
		{"=IF(A1,1,2)", Number(2)},
		{"=IF(A2,1,2)", Number(2)},
		{"=AND(1,1)", Bool(true)},
		{"=AND(1,0)", Bool(false)},
		{"=AND(1,1/0)", Bool(true)},
		{"=OR(0,1/0)", Bool(true)},
		{"=NOT(1/0)", Bool(false)},
		{"=OR(0,1)", Bool(true)},
		{"=OR(0,0)", Bool(false)},
		{"=NOT(0)", Bool(true)},
		{"=TRUE()", Bool(true)},
		{"=FALSE()", Bool(false)},
		{`=IFERROR(1/0,"fallback")`, Text("fallback")},
		{"=IFERROR(1/0)", Text("")},
		{"=IFERROR(5,0)", Number(5)},
		{"=ISERROR(NOPE())", Bool(true)},
		{"=ISERROR(1)", Bool(false)},
		{"=ISBLANK(A2)", Bool(true)},
		{"=ISNUMBER(1)", Bool(true)},
		{`=ISNUMBER("1")`, Bool(false)},
		{`=ISTEXT("1")`, Bool(true)},
		{"=ISTEXT(1/0)", Bool(false)},
	})
}

func TestDateFunctions(t *testing.T) {
	clock := ClockFunc(func() time.Time {
		return time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	})
	runEvalCases(t, NewEngine(WithClock(clock)), nil, []evalCase{
		{"=DATE(1900,1,1)", Number(1)},
		{"=DATE(1900,2,28)", Number(59)},
		{"=DATE(1900,2,29)", Number(60)},
		{"=DATE(1900,3,1)", Number(61)},
		{"=DATE(2024,1,1)", Number(45292)},
		{"=DATE(2024,13,1)", Number(45658)},
		{"=DATE(124,1,1)", Number(45292)},
		{"=DATE(24,1,1)", Number(8767)},
		{"=DATE(2024,1)", Err(ErrValue)},
		{"=DATE(-1,1,1)", Err(ErrValue)},
		{"=YEAR(60)", Number(1900)},
		{"=MONTH(60)", Number(2)},
		{"=DAY(60)", Number(29)},
		{"=YEAR(61)", Number(1900)},
		{"=MONTH(61)", Number(3)},
		{"=DAY(61)", Number(1)},
		{"=YEAR(45292.75)", Number(2024)},
		{"=YEAR(-1)", Err(ErrValue)},
		{"=TODAY()", Number(45306)},
		{"=TODAY()=DATE(2024,1,15)", Bool(true)},
	})
}

func TestTextFunctions(t *testing.T) {
	runEvalCases(t, NewEngine(), nil, []evalCase{
		{`=CONCAT("a","b",1)`, Text("ab1")},
		{`=CONCATENATE("Hello ","世界")`, Text("Hello 世界")},
		{`=LEFT("Bonjour",3)`, Text("Bon")},
		{`=LEFT("Bonjour")`, Text("B")},
		{`=LEFT("abc",10)`, Text("abc")},
		{`=LEFT("abc",-1)`, Err(ErrValue)},
		{`=RIGHT("hello",2)`, Text("lo")},
		{`=MID("spreadsheet",3,4)`, Text("read")},
		{`=MID("abc",10,2)`, Text("")},
		{`=MID("abc",0,2)`, Err(ErrValue)},
		{`=LEN("héllo")`, Number(5)},
		{`=LEN(12.5)`, Number(4)},
		{`=UPPER("straße")`, Text("STRASSE")},
		{`=LOWER("ABC")`, Text("abc")},
		{`=TRIM("  hi  ")`, Text("hi")},
		{"=TEXT(1.5)", Text("1.5")},
		{`=VALUE("42")`, Number(42)},
		{`=VALUE(" 1e3 ")`, Number(1000)},
		{`=VALUE("x")`, Err(ErrValue)},
		{`=SUBSTITUTE("a-b-c","-","+")`, Text("a+b+c")},
		{`=SUBSTITUTE("a-b-c","-","+",2)`, Text("a-b+c")},
		{`=SUBSTITUTE("a-b-c","-","+",5)`, Text("a-b-c")},
		{`=FIND("b","abcb")`, Number(2)},
		{`=FIND("b","abcb",3)`, Number(4)},
		{`=FIND("B","abc")`, Err(ErrValue)},
		{`=FIND("é","héllo")`, Number(2)},
	})
}

func TestConditionalFunctions(t *testing.T) {
	runEvalCases(t, NewEngine(), salesTable, []evalCase{
		{`=SUMIF(A1:A6,"Apple",C1:C6)`, Number(425)},
		{`=SUMIF(A1:A6,"apple",C1:C6)`, Number(425)},
		{`=SUMIF(C1:C6,">150")`, Number(925)},
		{`=SUMIF(A1:A6,"B*",C1:C6)`, Number(450)},
		{`=SUMIF(A1:A6,"?pple",C1:C6)`, Number(425)},
		{`=SUMIF(A1:A6,"<>Apple",C1:C6)`, Number(750)},
		{`=SUMIF(C1:C6,200)`, Number(200)},
		{`=SUMIFS(C1:C6,A1:A6,"Apple",B1:B6,"North")`, Number(275)},
		{`=SUMIFS(C1:C6,A1:A6,"Apple",B1:B5,"North")`, Err(ErrValue)},
		{`=SUMIFS(C1:C6,A1:A6)`, Err(ErrValue)},
		{`=AVERAGEIF(A1:A6,"Orange",C1:C6)`, Err(ErrDiv0)},
		{`=AVERAGEIF(A1:A6,"Banana",C1:C6)`, Number(225)},
		{`=AVERAGEIFS(C1:C6,B1:B6,"North",C1:C6,">=175")`, Number(725.0 / 3)},
		{`=COUNTIFS(A1:A6,"Apple",C1:C6,">=150")`, Number(2)},
		{`=COUNTIFS(B1:B6,"South")`, Number(2)},
		{`=COUNTIFS(A1:A6,"")`, Number(0)},
		{`=COUNTIFS(D1:D3,"")`, Number(3)},
		{`=COUNTIFS(A1:A6)`, Err(ErrValue)},
	})
}

func TestLookupFunctions(t *testing.T) {
	runEvalCases(t, NewEngine(), fruitTable, []evalCase{
		{"=VLOOKUP(3,A1:C5,2,FALSE)", Text("Cherry")},
		{"=VLOOKUP(2.5,A1:C5,2)", Text("Banana")},
		{"=VLOOKUP(99,A1:C5,2,FALSE)", Err(ErrNA)},
		{`=VLOOKUP(3,A1:C5,3,"false")`, Number(30)},
		{"=VLOOKUP(0,A1:C5,2)", Err(ErrNA)},
		{"=VLOOKUP(3,A1:C5,4,FALSE)", Err(ErrRef)},
		{"=VLOOKUP(3,A1:C5,0,FALSE)", Err(ErrValue)},
		{"=VLOOKUP(3,7,1)", Err(ErrNA)},
		{"=VLOOKUP(1/0,A1:C5,2)", Err(ErrDiv0)},
		{`=HLOOKUP("b",{"a","b","c";1,2,3},2,FALSE)`, Number(2)},
		{`=HLOOKUP("b",{"a","b","c";1,2,3},3,FALSE)`, Err(ErrRef)},
		{"=MATCH(25,{10,20,30,40,50},1)", Number(2)},
		{"=MATCH(25,{10,20,30,40,50})", Number(2)},
		{"=MATCH(30,{10,20,30,40,50},0)", Number(3)},
		{"=MATCH(5,{10,20,30},1)", Err(ErrNA)},
		{"=MATCH(35,{50,40,30,20,10},-1)", Number(2)},
		{`=MATCH("cherry",B1:B5,0)`, Number(3)},
		{"=MATCH(1,A1:C5,0)", Err(ErrNA)},
		{"=INDEX(A1:C5,2,2)", Text("Banana")},
		{"=INDEX(A1:C5,3)", Number(3)},
		{"=INDEX(A1:C5,0,3)", Number(10)},
		{"=INDEX(A1:C5,6,1)", Err(ErrRef)},
		{"=INDEX(A1:C5,1,4)", Err(ErrRef)},
		{"=INDEX(A1:C5,-1,1)", Err(ErrValue)},
		{"=INDEX(A1:C5,0,0)", Err(ErrRef)},
		{"=INDEX(5,1,1)", Number(5)},
		{"=INDEX(5,2,1)", Err(ErrRef)},
		{"=INDEX(B1:B5,MATCH(4,A1:A5,0))", Text("Date")},
	})
}

func TestCustomFunctions(t *testing.T) {
	engine := NewEngine()
	engine.RegisterFunction("double", func(_ context.Context, args []Value) Value {
		n, _ := arithNumber(args[0])
		return Number(n * 2)
	})
	engine.RegisterFunction("SUM", func(context.Context, []Value) Value {
		return Text("overridden")
	})
	engine.RegisterFunction("boom", func(context.Context, []Value) Value {
		panic("custom function failure")
	})
	engine.RegisterArgsFunction("cells", func(_ context.Context, args []Arg) Value {
		if len(args) == 0 {
			return Err(ErrValue)
		}
		return Number(float64(args[0].Shape.Size()))
	})
	engine.RegisterArgsFunction("firsterror", func(_ context.Context, args []Arg) Value {
		for _, arg := range args {
			if v := arg.Scalar(); IsError(v) {
				return Text(string(v.Code()))
			}
		}
		return Text("none")
	})

	runEvalCases(t, engine, nil, []evalCase{
		{"=DOUBLE(21)", Number(42)},
		{"=double(2)+1", Number(5)},
		{"=DOUBLE(1/0)", Err(ErrDiv0)},
		{"=SUM(1,2)", Text("overridden")},
		{"=BOOM()", Err(ErrValue)},
		{"=BOOM()+1", Err(ErrValue)},
		{"=CELLS(A1:C4)", Number(12)},
		{"=CELLS({1,2,3})", Number(3)},
		{"=FIRSTERROR(1,1/0)", Text("#DIV/0!")},
		{"=FIRSTERROR(1)", Text("none")},
	})

	assert.Contains(t, engine.Functions(), "DOUBLE")
	assert.Contains(t, engine.Functions(), "VLOOKUP")
}

func TestCustomFunctionNonFiniteResult(t *testing.T) {
	engine := NewEngine()
	engine.RegisterFunction("INF", func(context.Context, []Value) Value {
		return Number(math.Inf(1))
	})
	assert.Equal(t, Err(ErrNum), engine.Evaluate(context.Background(), "=INF()", nil))
}

func TestResolveFunctionName(t *testing.T) {
	engine := NewEngine(WithLocaleMap(map[string]string{
		"SOMME": "sum",
		"Moy":   "average",
	}))
	tests := []struct {
		name string
		want string
	}{
		{"SOMME", "SUM"},
		{"somme", "SUM"},
		{"Moy", "AVERAGE"},
		{"MOY", "MOY"},
		{"vlookup", "VLOOKUP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.ResolveFunctionName(tt.name))
		})
	}
	assert.Equal(t, Number(6), engine.Evaluate(context.Background(), "=SOMME(1,2,3)", nil))
}

func TestTokenCache(t *testing.T) {
	engine := NewEngine(WithCacheCapacity(2))
	r := newCells(engine, map[string]any{"A1": 4})

	cold := engine.Evaluate(context.Background(), "=A1*2", r)
	warm := engine.Evaluate(context.Background(), "=A1*2", r)
	assert.Equal(t, cold, warm)
	assert.Equal(t, 1, engine.CacheLen())

	engine.Evaluate(context.Background(), "=A1*3", r)
	engine.Evaluate(context.Background(), "=A1*4", r)
	assert.Equal(t, 2, engine.CacheLen())

	engine.ClearCache()
	assert.Equal(t, 0, engine.CacheLen())
	assert.Equal(t, cold, engine.Evaluate(context.Background(), "=A1*2", r))
}

func TestEvaluateConcurrent(t *testing.T) {
	engine := NewEngine(WithCacheCapacity(8))
	r := newCells(engine, fruitTable)

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			formula := fmt.Sprintf("=SUM(C1:C5)+%d", i%16)
			got := engine.Evaluate(context.Background(), formula, r)
			if want := Number(float64(150 + i%16)); !got.Equal(want) {
				errs <- fmt.Sprintf("%s = %#v, want %#v", formula, got, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
	assert.LessOrEqual(t, engine.CacheLen(), 8)
}

func TestEvaluateIdempotent(t *testing.T) {
	engine := NewEngine()
	r := newCells(engine, salesTable)
	formula := `=SUMIFS(C1:C6,A1:A6,"Apple",B1:B6,"North")/COUNTIFS(A1:A6,"Apple")`
	first := engine.Evaluate(context.Background(), formula, r)
	second := engine.Evaluate(context.Background(), formula, r)
	assert.Equal(t, first, second)
}
