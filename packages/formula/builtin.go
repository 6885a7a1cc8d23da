package formula

import "math"

// BuiltInFunctions contains all spreadsheet built-in functions
type BuiltInFunctions struct {
	clock Clock
}

// NewBuiltInFunctions creates the built-ins with the given clock. a nil
// clock means wall time.
func NewBuiltInFunctions(clock Clock) *BuiltInFunctions {
	if clock == nil {
		clock = WallClock{}
	}
	return &BuiltInFunctions{clock: clock}
}

// Table returns the registry entries keyed by canonical name.
func (bf *BuiltInFunctions) Table() map[string]Function {
	table := make(map[string]Function, 64)
	plain := func(name string, fn Func) {
		table[name] = Function{Name: name, Call: fn}
	}
	passing := func(name string, fn Func) {
		table[name] = Function{Name: name, Call: fn, PassErrors: true}
	}
	structured := func(name string, fn ArgsFunc) {
		table[name] = Function{Name: name, CallArgs: fn}
	}

	// math and statistics. aggregates skip what is not a number, errors included
	passing("SUM", bf.SUM)
	passing("AVERAGE", bf.AVERAGE)
	passing("MIN", bf.MIN)
	passing("MAX", bf.MAX)
	passing("COUNT", bf.COUNT)
	passing("MEDIAN", bf.MEDIAN)
	passing("STDEV", bf.STDEV)
	plain("ABS", bf.ABS)
	plain("ROUND", bf.ROUND)
	plain("SQRT", bf.SQRT)
	plain("LN", bf.LN)
	plain("POWER", bf.POWER)
	plain("MOD", bf.MOD)

	// conditional aggregates see the argument structure
	structured("SUMIF", bf.SUMIF)
	structured("SUMIFS", bf.SUMIFS)
	structured("AVERAGEIF", bf.AVERAGEIF)
	structured("AVERAGEIFS", bf.AVERAGEIFS)
	structured("COUNTIFS", bf.COUNTIFS)

	// logical. an error argument is truthy
	passing("IF", bf.IF)
	passing("AND", bf.AND)
	passing("OR", bf.OR)
	passing("NOT", bf.NOT)
	plain("TRUE", bf.TRUE)
	plain("FALSE", bf.FALSE)
	passing("IFERROR", bf.IFERROR)
	passing("ISERROR", bf.ISERROR)
	passing("ISBLANK", bf.ISBLANK)
	passing("ISNUMBER", bf.ISNUMBER)
	passing("ISTEXT", bf.ISTEXT)

	// dates
	plain("DATE", bf.DATE)
	plain("YEAR", bf.YEAR)
	plain("MONTH", bf.MONTH)
	plain("DAY", bf.DAY)
	plain("TODAY", bf.TODAY)

	// text
	plain("CONCAT", bf.CONCAT)
	plain("CONCATENATE", bf.CONCAT)
	plain("LEFT", bf.LEFT)
	plain("RIGHT", bf.RIGHT)
	plain("MID", bf.MID)
	plain("LEN", bf.LEN)
	plain("LOWER", bf.LOWER)
	plain("UPPER", bf.UPPER)
	plain("TRIM", bf.TRIM)
	plain("TEXT", bf.TEXT)
	plain("VALUE", bf.VALUE)
	plain("SUBSTITUTE", bf.SUBSTITUTE)
	plain("FIND", bf.FIND)

	// lookups need range shapes
	structured("MATCH", bf.MATCH)
	structured("INDEX", bf.INDEX)
	structured("VLOOKUP", bf.VLOOKUP)
	structured("HLOOKUP", bf.HLOOKUP)

	return table
}

// Names lists the canonical built-in names.
func (bf *BuiltInFunctions) Names() []string {
	table := bf.Table()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	return names
}

// numberArg reads argument i with arithmetic coercion. an omitted argument
// yields def. ok is false when the value is not numeric, in which case the
// returned Value is the error to report.
func numberArg(args []Value, i int, def float64) (float64, Value, bool) {
	v, present := argAt(args, i)
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
	return n, Value{}, true
}

// textArg reads argument i as display text, "" when omitted.
func textArg(args []Value, i int) string {
	v, _ := argAt(args, i)
	return v.String()
}

// scalarArg reads structured argument i, blank when omitted.
func scalarArg(args []Arg, i int) (Value, bool) {
	if i >= len(args) {
		return Blank(), false
	}
	return args[i].Scalar(), true
}

// aggregate collects the numbers of the argument list, skipping anything
// that does not read as a number.
func aggregate(args []Value) []float64 {
	nums := make([]float64, 0, len(args))
	for _, v := range args {
		if n, ok := aggregateNumber(v); ok {
			nums = append(nums, n)
		}
	}
	return nums
}
