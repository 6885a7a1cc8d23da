package formula

import "context"

// Arg is an evaluated function argument. scalar arguments use Value, range
// references and array constants use Values in row-major order with Shape.
type Arg struct {
	Value   Value
	Values  []Value
	Shape   Shape
	IsRange bool
}

// ScalarArg wraps a single value.
func ScalarArg(v Value) Arg {
	return Arg{Value: v, Shape: Shape{Rows: 1, Cols: 1}}
}

// RangeArg wraps a shaped list of values.
func RangeArg(values []Value, shape Shape) Arg {
	return Arg{Values: values, Shape: shape, IsRange: true}
}

// Scalar collapses the argument to one value: a 1x1 range acts as its only
// cell, larger ranges are #VALUE!.
func (a Arg) Scalar() Value {
	if !a.IsRange {
		return a.Value
	}
	if len(a.Values) == 1 {
		return a.Values[0]
	}
	return Err(ErrValue)
}

// Flat returns the values of the argument as a list.
func (a Arg) Flat() []Value {
	if a.IsRange {
		return a.Values
	}
	return []Value{a.Value}
}

// Func is a function over the flattened argument list.
type Func func(ctx context.Context, args []Value) Value

// ArgsFunc is a function over the argument structure, used where the
// row/column layout of a range matters.
type ArgsFunc func(ctx context.Context, args []Arg) Value

// Function is an entry of the function registry. exactly one of Call and
// CallArgs is set.
type Function struct {
	Name     string
	Call     Func
	CallArgs ArgsFunc
	// PassErrors hands error arguments to Call instead of returning the
	// first one. ignored for CallArgs, which always sees raw arguments.
	PassErrors bool
}

func (f Function) invoke(ctx context.Context, args []Arg) Value {
	if f.CallArgs != nil {
		return f.CallArgs(ctx, args)
	}
	flat := flatten(args)
	if !f.PassErrors {
		for _, v := range flat {
			if IsError(v) {
				return v
			}
		}
	}
	return f.Call(ctx, flat)
}

func flatten(args []Arg) []Value {
	n := 0
	for _, a := range args {
		if a.IsRange {
			n += len(a.Values)
		} else {
			n++
		}
	}
	flat := make([]Value, 0, n)
	for _, a := range args {
		if a.IsRange {
			flat = append(flat, a.Values...)
		} else {
			flat = append(flat, a.Value)
		}
	}
	return flat
}

// argAt returns the i-th value or blank with ok=false when it was omitted.
func argAt(args []Value, i int) (Value, bool) {
	if i >= len(args) {
		return Blank(), false
	}
	return args[i], true
}
