package formula

import (
	"context"
	"math"
)

// IF returns the selected branch unchanged, so an error in the branch that
// is not taken has no effect. a missing branch yields TRUE or FALSE. an
// error condition counts as true.
func (bf *BuiltInFunctions) IF(_ context.Context, args []Value) Value {
	cond, _ := argAt(args, 0)
	if truthy(cond) {
		if v, ok := argAt(args, 1); ok {
			return v
		}
		return Bool(true)
	}
	if v, ok := argAt(args, 2); ok {
		return v
	}
	return Bool(false)
}

func (bf *BuiltInFunctions) AND(_ context.Context, args []Value) Value {
	for _, arg := range args {
		if !truthy(arg) {
			return Bool(false)
		}
	}
	return Bool(true)
}

func (bf *BuiltInFunctions) OR(_ context.Context, args []Value) Value {
	for _, arg := range args {
		if truthy(arg) {
			return Bool(true)
		}
	}
	return Bool(false)
}

func (bf *BuiltInFunctions) NOT(_ context.Context, args []Value) Value {
	v, _ := argAt(args, 0)
	return Bool(!truthy(v))
}

func (bf *BuiltInFunctions) TRUE(context.Context, []Value) Value {
	return Bool(true)
}

func (bf *BuiltInFunctions) FALSE(context.Context, []Value) Value {
	return Bool(false)
}

func (bf *BuiltInFunctions) IFERROR(_ context.Context, args []Value) Value {
	v, _ := argAt(args, 0)
	if !IsError(v) {
		return v
	}
	if fallback, ok := argAt(args, 1); ok {
		return fallback
	}
	return Text("")
}

func (bf *BuiltInFunctions) ISERROR(_ context.Context, args []Value) Value {
	v, _ := argAt(args, 0)
	return Bool(IsError(v))
}

func (bf *BuiltInFunctions) ISBLANK(_ context.Context, args []Value) Value {
	v, _ := argAt(args, 0)
	return Bool(isBlankLike(v))
}

func (bf *BuiltInFunctions) ISNUMBER(_ context.Context, args []Value) Value {
	v, _ := argAt(args, 0)
	return Bool(v.IsNumber() && !math.IsNaN(v.Num()))
}

func (bf *BuiltInFunctions) ISTEXT(_ context.Context, args []Value) Value {
	v, _ := argAt(args, 0)
	return Bool(v.IsText())
}
