package formula

import (
	"context"
	"math"
	"slices"
)

func (bf *BuiltInFunctions) SUM(_ context.Context, args []Value) Value {
	sum := 0.0
	for _, num := range aggregate(args) {
		sum += num
	}
	return Number(sum)
}

func (bf *BuiltInFunctions) AVERAGE(_ context.Context, args []Value) Value {
	nums := aggregate(args)
	if len(nums) == 0 {
		return Err(ErrDiv0)
	}
	sum := 0.0
	for _, num := range nums {
		sum += num
	}
	return Number(sum / float64(len(nums)))
}

func (bf *BuiltInFunctions) MIN(_ context.Context, args []Value) Value {
	nums := aggregate(args)
	if len(nums) == 0 {
		return Number(0)
	}
	return Number(slices.Min(nums))
}

func (bf *BuiltInFunctions) MAX(_ context.Context, args []Value) Value {
	nums := aggregate(args)
	if len(nums) == 0 {
		return Number(0)
	}
	return Number(slices.Max(nums))
}

// COUNT counts arguments that read as numbers. errors are not counted and
// do not propagate.
func (bf *BuiltInFunctions) COUNT(_ context.Context, args []Value) Value {
	return Number(float64(len(aggregate(args))))
}

func (bf *BuiltInFunctions) MEDIAN(_ context.Context, args []Value) Value {
	values := aggregate(args)
	if len(values) == 0 {
		return Err(ErrNum)
	}
	slices.Sort(values)

	mid := len(values) / 2
	if len(values)%2 == 0 {
		// even count: average of two middle values
		return Number((values[mid-1] + values[mid]) / 2)
	}
	return Number(values[mid])
}

// STDEV is the sample standard deviation (n-1 denominator).
func (bf *BuiltInFunctions) STDEV(_ context.Context, args []Value) Value {
	nums := aggregate(args)
	n := len(nums)
	if n < 2 {
		return Err(ErrDiv0)
	}
	mean := 0.0
	for _, v := range nums {
		mean += v
	}
	mean /= float64(n)
	sumSq := 0.0
	for _, v := range nums {
		sumSq += (v - mean) * (v - mean)
	}
	return Number(math.Sqrt(sumSq / float64(n-1)))
}

func (bf *BuiltInFunctions) ABS(_ context.Context, args []Value) Value {
	num, errv, ok := numberArg(args, 0, 0)
	if !ok {
		return errv
	}
	return Number(math.Abs(num))
}

// ROUND rounds half away from zero to the given number of decimals, which
// may be negative.
func (bf *BuiltInFunctions) ROUND(_ context.Context, args []Value) Value {
	num, errv, ok := numberArg(args, 0, 0)
	if !ok {
		return errv
	}
	places, errv, ok := numberArg(args, 1, 0)
	if !ok {
		return errv
	}
	multiplier := math.Pow(10, math.Trunc(places))
	return Number(math.Round(num*multiplier) / multiplier)
}

func (bf *BuiltInFunctions) SQRT(_ context.Context, args []Value) Value {
	num, errv, ok := numberArg(args, 0, 0)
	if !ok {
		return errv
	}
	if num < 0 {
		return Err(ErrNum)
	}
	return Number(math.Sqrt(num))
}

// LN is the natural logarithm. non-numeric input is #VALUE!, zero and
// negative input #NUM!.
func (bf *BuiltInFunctions) LN(_ context.Context, args []Value) Value {
	num, errv, ok := numberArg(args, 0, math.NaN())
	if !ok {
		return errv
	}
	if !isFinite(num) {
		return Err(ErrValue)
	}
	if num <= 0 {
		return Err(ErrNum)
	}
	return Number(math.Log(num))
}

func (bf *BuiltInFunctions) POWER(_ context.Context, args []Value) Value {
	base, errv, ok := numberArg(args, 0, 0)
	if !ok {
		return errv
	}
	exp, errv, ok := numberArg(args, 1, 0)
	if !ok {
		return errv
	}
	return applyBinary(BinOpPower, Number(base), Number(exp))
}

// MOD keeps the sign of the dividend.
func (bf *BuiltInFunctions) MOD(_ context.Context, args []Value) Value {
	dividend, errv, ok := numberArg(args, 0, 0)
	if !ok {
		return errv
	}
	divisor, errv, ok := numberArg(args, 1, 0)
	if !ok {
		return errv
	}
	if divisor == 0 {
		return Err(ErrDiv0)
	}
	return Number(math.Mod(dividend, divisor))
}
