package formula

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"
)

func (bf *BuiltInFunctions) CONCAT(_ context.Context, args []Value) Value {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(arg.String())
	}
	return Text(sb.String())
}

// LEFT returns the first n characters, one when n is omitted.
func (bf *BuiltInFunctions) LEFT(_ context.Context, args []Value) Value {
	runes := []rune(textArg(args, 0))
	n, errv, ok := countArg(args, 1, 1)
	if !ok {
		return errv
	}
	return Text(string(runes[:min(n, len(runes))]))
}

// RIGHT returns the last n characters, one when n is omitted.
func (bf *BuiltInFunctions) RIGHT(_ context.Context, args []Value) Value {
	runes := []rune(textArg(args, 0))
	n, errv, ok := countArg(args, 1, 1)
	if !ok {
		return errv
	}
	return Text(string(runes[len(runes)-min(n, len(runes)):]))
}

// MID returns length characters from the 1-based start.
func (bf *BuiltInFunctions) MID(_ context.Context, args []Value) Value {
	runes := []rune(textArg(args, 0))
	start, errv, ok := numberArg(args, 1, 1)
	if !ok {
		return errv
	}
	length, errv, ok := countArg(args, 2, 1)
	if !ok {
		return errv
	}
	if start < 1 {
		return Err(ErrValue)
	}
	if start > float64(len(runes)) {
		return Text("")
	}
	from := int(math.Trunc(start)) - 1
	to := min(from+length, len(runes))
	return Text(string(runes[from:to]))
}

func (bf *BuiltInFunctions) LEN(_ context.Context, args []Value) Value {
	return Number(float64(utf8.RuneCountInString(textArg(args, 0))))
}

func (bf *BuiltInFunctions) LOWER(_ context.Context, args []Value) Value {
	return Text(toLower(textArg(args, 0)))
}

func (bf *BuiltInFunctions) UPPER(_ context.Context, args []Value) Value {
	return Text(toUpper(textArg(args, 0)))
}

// TRIM removes leading and trailing whitespace.
func (bf *BuiltInFunctions) TRIM(_ context.Context, args []Value) Value {
	return Text(strings.TrimSpace(textArg(args, 0)))
}

// TEXT returns the display text of its argument. format codes are not
// applied.
func (bf *BuiltInFunctions) TEXT(_ context.Context, args []Value) Value {
	return Text(textArg(args, 0))
}

func (bf *BuiltInFunctions) VALUE(_ context.Context, args []Value) Value {
	v, _ := argAt(args, 0)
	if v.IsNumber() {
		return v
	}
	num, ok := parseNumber(v.String())
	if !ok {
		return Err(ErrValue)
	}
	return Number(num)
}

// SUBSTITUTE replaces every occurrence of old, or only the n-th one when
// an instance number above zero is given. an empty old text changes
// nothing.
func (bf *BuiltInFunctions) SUBSTITUTE(_ context.Context, args []Value) Value {
	text := textArg(args, 0)
	oldText := textArg(args, 1)
	newText := textArg(args, 2)
	instance, errv, ok := numberArg(args, 3, 0)
	if !ok {
		return errv
	}
	if oldText == "" {
		return Text(text)
	}
	if instance <= 0 {
		return Text(strings.ReplaceAll(text, oldText, newText))
	}

	n := int(math.Trunc(instance))
	pos := 0
	for count := 1; ; count++ {
		idx := strings.Index(text[pos:], oldText)
		if idx < 0 {
			return Text(text)
		}
		idx += pos
		if count == n {
			return Text(text[:idx] + newText + text[idx+len(oldText):])
		}
		pos = idx + len(oldText)
	}
}

// FIND is a case-sensitive search returning the 1-based character
// position, starting at the optional 1-based start.
func (bf *BuiltInFunctions) FIND(_ context.Context, args []Value) Value {
	findText := textArg(args, 0)
	within := []rune(textArg(args, 1))
	start, errv, ok := numberArg(args, 2, 1)
	if !ok {
		return errv
	}
	if start < 1 {
		return Err(ErrValue)
	}
	if start-1 > float64(len(within)) {
		return Err(ErrValue)
	}
	from := int(math.Trunc(start)) - 1
	idx := strings.Index(string(within[from:]), findText)
	if idx < 0 {
		return Err(ErrValue)
	}
	offset := utf8.RuneCountInString(string(within[from:])[:idx])
	return Number(float64(from + offset + 1))
}

// countArg reads a character count: omitted is def, negative is #VALUE!.
func countArg(args []Value, i, def int) (int, Value, bool) {
	num, errv, ok := numberArg(args, i, float64(def))
	if !ok {
		return 0, errv, false
	}
	if num < 0 {
		return 0, Err(ErrValue), false
	}
	if num > math.MaxInt32 {
		return math.MaxInt32, Value{}, true
	}
	return int(math.Trunc(num)), Value{}, true
}
