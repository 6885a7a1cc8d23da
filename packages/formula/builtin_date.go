package formula

import "context"

// DATE builds a day serial from year, month and day. years below 1900 are
// read as offsets from 1900.
func (bf *BuiltInFunctions) DATE(_ context.Context, args []Value) Value {
	if len(args) < 3 {
		return Err(ErrValue)
	}
	var parts [3]float64
	for i := range parts {
		num, errv, ok := numberArg(args, i, 0)
		if !ok {
			return errv
		}
		parts[i] = num
	}
	serial, ok := YMDToSerial(parts[0], parts[1], parts[2])
	if !ok {
		return Err(ErrValue)
	}
	return Number(serial)
}

func (bf *BuiltInFunctions) YEAR(_ context.Context, args []Value) Value {
	return bf.datePart(args, func(y, _, _ int) int { return y })
}

func (bf *BuiltInFunctions) MONTH(_ context.Context, args []Value) Value {
	return bf.datePart(args, func(_, m, _ int) int { return m })
}

func (bf *BuiltInFunctions) DAY(_ context.Context, args []Value) Value {
	return bf.datePart(args, func(_, _, d int) int { return d })
}

func (bf *BuiltInFunctions) TODAY(context.Context, []Value) Value {
	return Number(TodaySerial(bf.clock))
}

func (bf *BuiltInFunctions) datePart(args []Value, pick func(y, m, d int) int) Value {
	serial, errv, ok := numberArg(args, 0, 0)
	if !ok {
		return errv
	}
	y, m, d, ok := SerialToParts(serial)
	if !ok {
		return Err(ErrValue)
	}
	return Number(float64(pick(y, m, d)))
}
