package formula

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Blank()},
		{"int", 42, Number(42)},
		{"uint8", uint8(7), Number(7)},
		{"float32", float32(0.5), Number(0.5)},
		{"string", "hello", Text("hello")},
		{"error text", "#REF!", Err(ErrRef)},
		{"error code", ErrNA, Err(ErrNA)},
		{"bool", true, Bool(true)},
		{"value", Number(3), Number(3)},
		{"nil value pointer", (*Value)(nil), Blank()},
		{"time", time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC), Number(61)},
		{"stringer", time.Second, Text("1s")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromAny(tt.in))
		})
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{Number(1), "1"},
		{Number(-0.25), "-0.25"},
		{Number(0.1 + 0.2), "0.30000000000000004"},
		{Number(1e21), "1e+21"},
		{Number(1.5e-7), "1.5e-7"},
		{Number(123456789012), "123456789012"},
		{Text("x"), "x"},
		{Bool(true), "TRUE"},
		{Bool(false), "FALSE"},
		{Blank(), ""},
		{Err(ErrDiv0), "#DIV/0!"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.String())
		})
	}
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Number(math.NaN()).Equal(Number(math.NaN())))
	assert.True(t, Blank().Equal(Value{}))
	assert.False(t, Number(1).Equal(Text("1")))
	assert.False(t, Err(ErrNA).Equal(Err(ErrRef)))
	assert.Equal(t, ErrorCode(""), Number(1).Code())
	assert.Equal(t, ErrNA, Err(ErrNA).Any())
	assert.Nil(t, Blank().Any())
}

func TestCoercions(t *testing.T) {
	type numeric struct {
		n  float64
		ok bool
	}
	tests := []struct {
		name      string
		value     Value
		arith     numeric
		aggregate numeric
		truthy    bool
	}{
		{"blank", Blank(), numeric{0, true}, numeric{0, false}, false},
		{"empty text", Text(""), numeric{0, true}, numeric{0, false}, false},
		{"numeric text", Text(" 12.5 "), numeric{12.5, true}, numeric{12.5, true}, true},
		{"other text", Text("abc"), numeric{0, false}, numeric{0, false}, true},
		{"FALSE text", Text("FALSE"), numeric{0, false}, numeric{0, false}, false},
		{"hex text", Text("0x10"), numeric{0, false}, numeric{0, false}, true},
		{"true", Bool(true), numeric{1, true}, numeric{1, true}, true},
		{"false", Bool(false), numeric{0, true}, numeric{0, true}, false},
		{"zero", Number(0), numeric{0, true}, numeric{0, true}, false},
		{"nan", Number(math.NaN()), numeric{math.NaN(), true}, numeric{0, false}, false},
		{"error", Err(ErrNA), numeric{0, false}, numeric{0, false}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := arithNumber(tt.value)
			assert.Equal(t, tt.arith.ok, ok, "arithNumber ok")
			if ok && !math.IsNaN(tt.arith.n) {
				assert.Equal(t, tt.arith.n, n, "arithNumber")
			}
			n, ok = aggregateNumber(tt.value)
			assert.Equal(t, tt.aggregate.ok, ok, "aggregateNumber ok")
			if ok {
				assert.Equal(t, tt.aggregate.n, n, "aggregateNumber")
			}
			assert.Equal(t, tt.truthy, truthy(tt.value), "truthy")
		})
	}
}

func TestIsErrorText(t *testing.T) {
	for _, code := range ErrorCodes {
		assert.True(t, IsErrorText(string(code)), code)
		assert.True(t, IsError(FromAny(string(code))), code)
	}
	assert.False(t, IsErrorText("ok"))
	assert.False(t, IsError(Text("#literal")), "literal text keeps its kind")
}

func TestCompareText(t *testing.T) {
	assert.Equal(t, 0, compareText("apple", "APPLE"))
	assert.Equal(t, -1, compareText("apple", "Banana"))
	assert.Equal(t, 1, compareText("cherry", "banana"))
	assert.True(t, equalFold("Straße", "STRASSE"))
	assert.False(t, equalFold("a", "b"))
}
