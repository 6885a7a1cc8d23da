package formula

import "context"

// criteriaPair is one range/condition pair of a *IFS call.
type criteriaPair struct {
	values []Value
	crit   criterion
}

// readPairs parses args[from:] as range, criterion pairs. every range must
// hold length cells.
func readPairs(args []Arg, from, length int) ([]criteriaPair, bool) {
	if (len(args)-from)%2 != 0 {
		return nil, false
	}
	pairs := make([]criteriaPair, 0, (len(args)-from)/2)
	for i := from; i < len(args); i += 2 {
		if !args[i].IsRange || len(args[i].Values) != length {
			return nil, false
		}
		pairs = append(pairs, criteriaPair{
			values: args[i].Values,
			crit:   parseCriterion(args[i+1].Scalar()),
		})
	}
	return pairs, true
}

func matchesAll(pairs []criteriaPair, row int) bool {
	for _, p := range pairs {
		if !p.crit.match(p.values[row]) {
			return false
		}
	}
	return true
}

// conditionalTotal sums the numeric target cells of matching rows. an error
// in a matching target cell is returned.
func conditionalTotal(target []Value, rows int, match func(row int) bool) (sum float64, count int, errv Value) {
	for i := 0; i < rows; i++ {
		if !match(i) {
			continue
		}
		if IsError(target[i]) {
			return 0, 0, target[i]
		}
		if n, ok := aggregateNumber(target[i]); ok {
			sum += n
			count++
		}
	}
	return sum, count, Value{}
}

// singleCondition reads the SUMIF/AVERAGEIF shape: criteria range,
// criterion and an optional target range defaulting to the criteria range.
func singleCondition(args []Arg) (criteriaRange, target []Value, crit criterion, ok bool) {
	if len(args) < 1 || !args[0].IsRange {
		return nil, nil, criterion{}, false
	}
	critValue, _ := scalarArg(args, 1)
	targetArg := args[0]
	if len(args) > 2 {
		targetArg = args[2]
	}
	if !targetArg.IsRange {
		return nil, nil, criterion{}, false
	}
	return args[0].Values, targetArg.Values, parseCriterion(critValue), true
}

// SUMIF(criteria_range, criterion, [sum_range])
func (bf *BuiltInFunctions) SUMIF(_ context.Context, args []Arg) Value {
	criteriaRange, target, crit, ok := singleCondition(args)
	if !ok {
		return Err(ErrValue)
	}
	rows := min(len(criteriaRange), len(target))
	sum, _, errv := conditionalTotal(target, rows, func(i int) bool {
		return crit.match(criteriaRange[i])
	})
	if IsError(errv) {
		return errv
	}
	return Number(sum)
}

// SUMIFS(sum_range, criteria_range1, criterion1, ...)
func (bf *BuiltInFunctions) SUMIFS(_ context.Context, args []Arg) Value {
	if len(args) < 3 || !args[0].IsRange {
		return Err(ErrValue)
	}
	target := args[0].Values
	pairs, ok := readPairs(args, 1, len(target))
	if !ok {
		return Err(ErrValue)
	}
	sum, _, errv := conditionalTotal(target, len(target), func(i int) bool {
		return matchesAll(pairs, i)
	})
	if IsError(errv) {
		return errv
	}
	return Number(sum)
}

// AVERAGEIF(criteria_range, criterion, [average_range])
func (bf *BuiltInFunctions) AVERAGEIF(_ context.Context, args []Arg) Value {
	criteriaRange, target, crit, ok := singleCondition(args)
	if !ok {
		return Err(ErrValue)
	}
	rows := min(len(criteriaRange), len(target))
	sum, count, errv := conditionalTotal(target, rows, func(i int) bool {
		return crit.match(criteriaRange[i])
	})
	if IsError(errv) {
		return errv
	}
	if count == 0 {
		return Err(ErrDiv0)
	}
	return Number(sum / float64(count))
}

// AVERAGEIFS(average_range, criteria_range1, criterion1, ...)
func (bf *BuiltInFunctions) AVERAGEIFS(_ context.Context, args []Arg) Value {
	if len(args) < 3 || !args[0].IsRange {
		return Err(ErrValue)
	}
	target := args[0].Values
	pairs, ok := readPairs(args, 1, len(target))
	if !ok {
		return Err(ErrValue)
	}
	sum, count, errv := conditionalTotal(target, len(target), func(i int) bool {
		return matchesAll(pairs, i)
	})
	if IsError(errv) {
		return errv
	}
	if count == 0 {
		return Err(ErrDiv0)
	}
	return Number(sum / float64(count))
}

// COUNTIFS(criteria_range1, criterion1, ...) counts rows matching every
// pair. no arguments count nothing.
func (bf *BuiltInFunctions) COUNTIFS(_ context.Context, args []Arg) Value {
	if len(args) == 0 {
		return Number(0)
	}
	if !args[0].IsRange {
		return Err(ErrValue)
	}
	rows := len(args[0].Values)
	pairs, ok := readPairs(args, 0, rows)
	if !ok {
		return Err(ErrValue)
	}
	count := 0
	for i := 0; i < rows; i++ {
		if matchesAll(pairs, i) {
			count++
		}
	}
	return Number(float64(count))
}
