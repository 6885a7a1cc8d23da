package formula

import (
	"context"
	"math"
	"strings"
)

// lookupKey is the value a lookup searches for, read once.
type lookupKey struct {
	value   Value
	num     float64
	numeric bool
}

func newLookupKey(v Value) lookupKey {
	n, ok := compareNumber(v)
	return lookupKey{value: v, num: n, numeric: ok}
}

// equals is the exact-match rule: numeric keys match numeric cells, text
// keys match case-insensitively. first match wins at the call sites.
func (k lookupKey) equals(v Value) bool {
	if IsError(v) {
		return false
	}
	if k.numeric {
		n, ok := aggregateNumber(v)
		return ok && n == k.num
	}
	return equalFold(v.String(), k.value.String())
}

// lookupCompare orders two cells: numerically when both read as numbers,
// otherwise as collated case-insensitive text.
func lookupCompare(a, b Value) int {
	an, aok := aggregateNumber(a)
	bn, bok := aggregateNumber(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	return compareText(a.String(), b.String())
}

// approximateIndex finds the largest cell <= key (descending=false) or the
// smallest cell >= key (descending=true), skipping blanks and errors.
// returns -1 when nothing qualifies.
func approximateIndex(cells []Value, key Value, descending bool) int {
	best := -1
	for i, v := range cells {
		if isBlankLike(v) || IsError(v) {
			continue
		}
		cmp := lookupCompare(v, key)
		if !descending && cmp <= 0 {
			if best == -1 || lookupCompare(v, cells[best]) > 0 {
				best = i
			}
		}
		if descending && cmp >= 0 {
			if best == -1 || lookupCompare(v, cells[best]) < 0 {
				best = i
			}
		}
	}
	return best
}

func exactIndex(cells []Value, key lookupKey) int {
	for i, v := range cells {
		if key.equals(v) {
			return i
		}
	}
	return -1
}

// indexArg reads a 1-based position argument. omitted is def.
func indexArg(args []Arg, i int, def float64) (float64, Value, bool) {
	v, present := scalarArg(args, i)
	if !present {
		return def, Value{}, true
	}
	if IsError(v) {
		return 0, v, false
	}
	n, ok := arithNumber(v)
	if !ok || math.IsNaN(n) {
		return 0, Err(ErrValue), false
	}
	return math.Trunc(n), Value{}, true
}

// exactMatchRequested reads the range_lookup flag of VLOOKUP/HLOOKUP:
// FALSE, 0 and the text "FALSE" ask for an exact match.
func exactMatchRequested(args []Arg, i int) bool {
	v, present := scalarArg(args, i)
	if !present {
		return false
	}
	switch v.Kind() {
	case KindBoolean:
		return !v.Boolean()
	case KindNumber:
		return v.Num() == 0
	case KindText:
		return strings.EqualFold(v.Str(), "FALSE")
	}
	return false
}

// MATCH(lookup_value, lookup_array, [match_type]) returns a 1-based
// position. match_type 1 (default) finds the largest value <= lookup in an
// ascending list, 0 an exact match, -1 the smallest value >= lookup in a
// descending list.
func (bf *BuiltInFunctions) MATCH(_ context.Context, args []Arg) Value {
	lookup, _ := scalarArg(args, 0)
	if IsError(lookup) {
		return lookup
	}
	if len(args) < 2 || !args[1].IsRange || len(args[1].Values) == 0 {
		return Err(ErrNA)
	}
	matchType, errv, ok := indexArg(args, 2, 1)
	if !ok {
		return errv
	}
	shape := args[1].Shape
	if shape.Rows > 1 && shape.Cols > 1 {
		return Err(ErrNA)
	}

	cells := args[1].Values
	var idx int
	switch {
	case matchType == 0:
		idx = exactIndex(cells, newLookupKey(lookup))
	case matchType > 0:
		idx = approximateIndex(cells, lookup, false)
	default:
		idx = approximateIndex(cells, lookup, true)
	}
	if idx < 0 {
		return Err(ErrNA)
	}
	return Number(float64(idx + 1))
}

// INDEX(array, [row_num], [col_num]) picks a cell of a row-major range.
// a zero row or column means the first one.
func (bf *BuiltInFunctions) INDEX(_ context.Context, args []Arg) Value {
	if len(args) == 0 {
		return Err(ErrValue)
	}
	rowNum, errv, ok := indexArg(args, 1, 1)
	if !ok {
		return errv
	}
	colNum, errv, ok := indexArg(args, 2, 1)
	if !ok {
		return errv
	}

	array := args[0]
	if !array.IsRange || len(array.Values) == 0 {
		if rowNum == 1 && colNum == 1 {
			return array.Scalar()
		}
		return Err(ErrRef)
	}

	shape := array.Shape
	if rowNum < 0 || colNum < 0 {
		return Err(ErrValue)
	}
	if rowNum > float64(shape.Rows) || colNum > float64(shape.Cols) {
		return Err(ErrRef)
	}
	if rowNum == 0 && colNum == 0 {
		return Err(ErrRef)
	}
	r := max(int(rowNum), 1)
	c := max(int(colNum), 1)
	idx := (r-1)*shape.Cols + (c - 1)
	if idx < 0 || idx >= len(array.Values) {
		return Err(ErrRef)
	}
	return array.Values[idx]
}

// VLOOKUP(lookup_value, table, col_index, [range_lookup]) searches the
// first column of table and returns the cell col_index columns in.
func (bf *BuiltInFunctions) VLOOKUP(_ context.Context, args []Arg) Value {
	return bf.tableLookup(args, false)
}

// HLOOKUP(lookup_value, table, row_index, [range_lookup]) searches the
// first row of table and returns the cell row_index rows down.
func (bf *BuiltInFunctions) HLOOKUP(_ context.Context, args []Arg) Value {
	return bf.tableLookup(args, true)
}

func (bf *BuiltInFunctions) tableLookup(args []Arg, horizontal bool) Value {
	lookup, _ := scalarArg(args, 0)
	if IsError(lookup) {
		return lookup
	}
	if len(args) < 2 || !args[1].IsRange || len(args[1].Values) == 0 {
		return Err(ErrNA)
	}
	offset, errv, ok := indexArg(args, 2, math.NaN())
	if !ok {
		return errv
	}
	if math.IsNaN(offset) || offset < 1 {
		return Err(ErrValue)
	}

	table := args[1].Values
	shape := args[1].Shape
	limit := shape.Cols
	if horizontal {
		limit = shape.Rows
	}
	if offset > float64(limit) {
		return Err(ErrRef)
	}

	var keys []Value
	if horizontal {
		keys = table[:min(shape.Cols, len(table))]
	} else {
		keys = make([]Value, 0, shape.Rows)
		for r := 0; r < shape.Rows && r*shape.Cols < len(table); r++ {
			keys = append(keys, table[r*shape.Cols])
		}
	}

	var found int
	if exactMatchRequested(args, 3) {
		found = exactIndex(keys, newLookupKey(lookup))
	} else {
		found = approximateIndex(keys, lookup, false)
	}
	if found < 0 {
		return Err(ErrNA)
	}

	var idx int
	if horizontal {
		idx = (int(offset)-1)*shape.Cols + found
	} else {
		idx = found*shape.Cols + int(offset) - 1
	}
	if idx < 0 || idx >= len(table) {
		return Err(ErrRef)
	}
	return table[idx]
}
