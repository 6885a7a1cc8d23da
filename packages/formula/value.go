package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the variant tag of a Value.
type Kind uint8

const (
	KindBlank Kind = iota
	KindNumber
	KindText
	KindBoolean
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a spreadsheet value: blank, number, text, boolean or error. the
// zero Value is blank.
type Value struct {
	kind Kind
	num  float64
	text string // text payload, or the error literal for KindError
	b    bool
}

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text returns a text value. text starting with "#" is still text here, use
// FromAny to apply the error-literal convention.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Blank returns the empty value.
func Blank() Value { return Value{} }

// Err returns an error value.
func Err(code ErrorCode) Value { return Value{kind: KindError, text: string(code)} }

// FromAny converts a provider value into a Value. nil is blank, strings that
// start with "#" become errors, numeric Go types become numbers and
// time.Time becomes a day serial.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Blank()
	case Value:
		return t
	case *Value:
		if t == nil {
			return Blank()
		}
		return *t
	case ErrorCode:
		return Err(t)
	case string:
		if IsErrorText(t) {
			return Err(ErrorCode(t))
		}
		return Text(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case time.Time:
		serial, ok := YMDToSerial(float64(t.Year()), float64(t.Month()), float64(t.Day()))
		if !ok {
			return Err(ErrValue)
		}
		return Number(serial)
	case fmt.Stringer:
		return FromAny(t.String())
	default:
		return FromAny(fmt.Sprint(t))
	}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsBlank() bool   { return v.kind == KindBlank }
func (v Value) IsNumber() bool  { return v.kind == KindNumber }
func (v Value) IsText() bool    { return v.kind == KindText }
func (v Value) IsBoolean() bool { return v.kind == KindBoolean }

// Num returns the number payload, 0 for other kinds.
func (v Value) Num() float64 { return v.num }

// Str returns the text payload (the literal for errors).
func (v Value) Str() string { return v.text }

// Boolean returns the boolean payload.
func (v Value) Boolean() bool { return v.b }

// Code returns the error literal, or "" when v is not an error.
func (v Value) Code() ErrorCode {
	if v.kind != KindError {
		return ""
	}
	return ErrorCode(v.text)
}

// Equal reports whether two values have the same kind and payload. NaN
// numbers are equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
	case KindText, KindError:
		return v.text == o.text
	case KindBoolean:
		return v.b == o.b
	default:
		return true
	}
}

// String returns the display text used for concatenation and output.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return formatNumber(v.num)
	case KindText, KindError:
		return v.text
	case KindBoolean:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// Any returns the Go representation: nil, float64, string, bool or ErrorCode.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.text
	case KindBoolean:
		return v.b
	case KindError:
		return ErrorCode(v.text)
	default:
		return nil
	}
}

// GoString makes test failures readable.
func (v Value) GoString() string {
	switch v.kind {
	case KindText:
		return fmt.Sprintf("Text(%q)", v.text)
	case KindError:
		return fmt.Sprintf("Err(%s)", v.text)
	case KindBlank:
		return "Blank()"
	default:
		return fmt.Sprintf("%s(%s)", v.kind, v.String())
	}
}

// formatNumber renders a float the way a script runtime would: shortest
// round-trip digits, plain notation between 1e-6 and 1e21.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// 1e-07 -> 1e-7
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		return mant + "e" + string(sign) + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseNumber parses trimmed decimal text. the empty string, hex, infinity and
// nan spellings are not numbers.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '+', r == '-', r == 'e', r == 'E':
		default:
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// arithNumber coerces an operand of + - * / ^ and unary signs. blank and
// empty text are 0, booleans 1 or 0. ok is false for non-numeric text and
// errors.
func arithNumber(v Value) (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindBlank:
		return 0, true
	case KindBoolean:
		return boolNumber(v.b), true
	case KindText:
		if strings.TrimSpace(v.text) == "" {
			return 0, true
		}
		return parseNumber(v.text)
	default:
		return 0, false
	}
}

// compareNumber is the numeric view used by comparison operators.
func compareNumber(v Value) (float64, bool) {
	if v.kind == KindError {
		return 0, false
	}
	return arithNumber(v)
}

// aggregateNumber is the numeric view used by SUM and friends: blanks, empty
// text and non-numeric text are skipped.
func aggregateNumber(v Value) (float64, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) {
			return 0, false
		}
		return v.num, true
	case KindBoolean:
		return boolNumber(v.b), true
	case KindText:
		return parseNumber(v.text)
	default:
		return 0, false
	}
}

// truthy implements the logical-function rule: 0, NaN, "", blank, false and
// the text FALSE are false.
func truthy(v Value) bool {
	switch v.kind {
	case KindBlank:
		return false
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindBoolean:
		return v.b
	case KindText:
		return v.text != "" && v.text != "FALSE"
	default:
		return true
	}
}

// isBlankLike is true for blank and empty text.
func isBlankLike(v Value) bool {
	return v.kind == KindBlank || (v.kind == KindText && v.text == "")
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// numberResult turns non-finite arithmetic into #NUM!.
func numberResult(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Err(ErrNum)
	}
	return Number(f)
}
