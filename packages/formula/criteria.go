package formula

import (
	"regexp"
	"strings"
)

var criteriaOperator = regexp.MustCompile(`(?s)^(<>|[<>]=?|=)\s*(.*)$`)

type criterionKind int

const (
	criterionBlank criterionKind = iota
	criterionCompare
	criterionWildcard
	criterionText
	criterionValue
)

// criterion is a parsed *IF/*IFS condition.
type criterion struct {
	kind     criterionKind
	op       string
	rhs      string
	rhsNum   float64
	rhsIsNum bool
	pattern  *regexp.Regexp
	value    Value
}

// parseCriterion reads a condition:
//   - blank or "" matches blank cells only
//   - "<op>rhs" compares numerically when rhs is a number, as text otherwise
//   - text with * or ? is an anchored case-insensitive wildcard
//   - other text is a case-insensitive equality
//   - numbers and booleans compare by value
func parseCriterion(c Value) criterion {
	if isBlankLike(c) {
		return criterion{kind: criterionBlank}
	}
	if !c.IsText() {
		return criterion{kind: criterionValue, value: c}
	}
	text := c.Str()
	if m := criteriaOperator.FindStringSubmatch(text); m != nil {
		crit := criterion{kind: criterionCompare, op: m[1], rhs: m[2]}
		crit.rhsNum, crit.rhsIsNum = parseNumber(m[2])
		return crit
	}
	if strings.ContainsAny(text, "*?") {
		return criterion{kind: criterionWildcard, pattern: wildcardPattern(text)}
	}
	return criterion{kind: criterionText, rhs: text}
}

func wildcardPattern(text string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, r := range text {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}

func (c criterion) match(v Value) bool {
	switch c.kind {
	case criterionBlank:
		return isBlankLike(v)
	case criterionCompare:
		return c.compare(v)
	case criterionWildcard:
		return c.pattern.MatchString(v.String())
	case criterionText:
		return equalFold(v.String(), c.rhs)
	default:
		return looseEqual(v, c.value)
	}
}

func (c criterion) compare(v Value) bool {
	if c.rhsIsNum {
		// numeric criteria only ever match numeric cells
		vn, ok := aggregateNumber(v)
		if !ok {
			return false
		}
		switch c.op {
		case ">":
			return vn > c.rhsNum
		case "<":
			return vn < c.rhsNum
		case ">=":
			return vn >= c.rhsNum
		case "<=":
			return vn <= c.rhsNum
		case "=":
			return vn == c.rhsNum
		case "<>":
			return vn != c.rhsNum
		}
		return false
	}
	vs := v.String()
	switch c.op {
	case ">":
		return compareText(vs, c.rhs) > 0
	case "<":
		return compareText(vs, c.rhs) < 0
	case ">=":
		return compareText(vs, c.rhs) >= 0
	case "<=":
		return compareText(vs, c.rhs) <= 0
	case "=":
		return equalFold(vs, c.rhs)
	case "<>":
		return !equalFold(vs, c.rhs)
	}
	return false
}

// looseEqual compares a cell against a number, boolean or error criterion.
// numeric text matches an equal number, booleans match 1 and 0.
func looseEqual(v, crit Value) bool {
	if IsError(crit) {
		return IsError(v) && v.Code() == crit.Code()
	}
	if v.Equal(crit) {
		return true
	}
	a, aok := aggregateNumber(v)
	b, bok := aggregateNumber(crit)
	return aok && bok && a == b
}
