package formula

import (
	"iter"
	"math"
	"strconv"
	"strings"
)

// maxRangeCells bounds how many cells a single range reference may expand to.
const maxRangeCells = 1 << 20

// Address is a 1-based cell coordinate.
type Address struct {
	Col int
	Row int
}

// Valid reports whether both coordinates are positive.
func (a Address) Valid() bool {
	return a.Col >= 1 && a.Row >= 1
}

func (a Address) String() string {
	return NumberToColumn(a.Col) + strconv.Itoa(a.Row)
}

// Shape is the rectangular extent of a range.
type Shape struct {
	Rows int
	Cols int
}

// Size is the number of cells covered, saturating at math.MaxInt.
func (s Shape) Size() int {
	if s.Rows <= 0 || s.Cols <= 0 {
		return 0
	}
	if s.Rows > math.MaxInt/s.Cols {
		return math.MaxInt
	}
	return s.Rows * s.Cols
}

// RangeAddress is a normalised rectangle, Start top-left and End bottom-right.
type RangeAddress struct {
	Start Address
	End   Address
}

// Shape returns the extent of the rectangle.
func (r RangeAddress) Shape() Shape {
	return Shape{
		Rows: r.End.Row - r.Start.Row + 1,
		Cols: r.End.Col - r.Start.Col + 1,
	}
}

// Contains checks if a cell falls inside the rectangle
func (r RangeAddress) Contains(a Address) bool {
	return a.Row >= r.Start.Row && a.Row <= r.End.Row &&
		a.Col >= r.Start.Col && a.Col <= r.End.Col
}

// Cells returns an iterator over the addresses in row-major order
func (r RangeAddress) Cells() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		if r.Start.Row > r.End.Row || r.Start.Col > r.End.Col {
			return
		}
		// the loops stop on equality so End may be math.MaxInt
		for row := r.Start.Row; ; row++ {
			for col := r.Start.Col; ; col++ {
				if !yield(Address{Col: col, Row: row}) {
					return
				}
				if col == r.End.Col {
					break
				}
			}
			if row == r.End.Row {
				return
			}
		}
	}
}

func (r RangeAddress) String() string {
	return r.Start.String() + ":" + r.End.String()
}

// ColumnToNumber converts column letters to a number in bijective base 26,
// A=1, Z=26, AA=27. returns 0 for anything that is not all letters or
// that does not fit in an int.
func ColumnToNumber(letters string) int {
	if letters == "" {
		return 0
	}
	n := 0
	for i := 0; i < len(letters); i++ {
		if n > (math.MaxInt-26)/26 {
			return 0
		}
		c := letters[i]
		switch {
		case c >= 'A' && c <= 'Z':
			n = n*26 + int(c-'A') + 1
		case c >= 'a' && c <= 'z':
			n = n*26 + int(c-'a') + 1
		default:
			return 0
		}
	}
	return n
}

// NumberToColumn converts a 1-based column number to letters. returns "" for
// n < 1.
func NumberToColumn(n int) string {
	if n < 1 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		rem := (n - 1) % 26
		i--
		buf[i] = byte('A' + rem)
		n = (n - 1) / 26
	}
	return string(buf[i:])
}

// ParseCell parses an "A1" style reference (case-insensitive, no anchors).
func ParseCell(ref string) (Address, bool) {
	split := 0
	for split < len(ref) && isASCIILetter(ref[split]) {
		split++
	}
	if split == 0 || split == len(ref) {
		return Address{}, false
	}
	for i := split; i < len(ref); i++ {
		if !isDigit(ref[i]) {
			return Address{}, false
		}
	}
	row, err := strconv.Atoi(ref[split:])
	if err != nil {
		return Address{}, false
	}
	addr := Address{Col: ColumnToNumber(ref[:split]), Row: row}
	if !addr.Valid() {
		return Address{}, false
	}
	return addr, true
}

// ParseRange parses "A1:B3" into a normalised rectangle. a single cell
// reference parses as a 1x1 range.
func ParseRange(text string) (RangeAddress, bool) {
	first, second, isRange := strings.Cut(text, ":")
	start, ok := ParseCell(first)
	if !ok {
		return RangeAddress{}, false
	}
	if !isRange {
		return RangeAddress{Start: start, End: start}, true
	}
	end, ok := ParseCell(second)
	if !ok {
		return RangeAddress{}, false
	}
	if end.Row < start.Row {
		start.Row, end.Row = end.Row, start.Row
	}
	if end.Col < start.Col {
		start.Col, end.Col = end.Col, start.Col
	}
	return RangeAddress{Start: start, End: end}, true
}

// ExpandRange lists every reference of a range in row-major order. a range
// that does not parse expands to its start text. a range of more than
// maxRangeCells cells expands to nothing.
func ExpandRange(text string) []string {
	if text == "" {
		return nil
	}
	r, ok := ParseRange(text)
	if !ok {
		first, _, _ := strings.Cut(text, ":")
		return []string{first}
	}
	if r.Shape().Size() > maxRangeCells {
		return nil
	}
	refs := make([]string, 0, r.Shape().Size())
	for addr := range r.Cells() {
		refs = append(refs, addr.String())
	}
	return refs
}

// RangeShape returns the extent of a range text, 1x1 when it does not parse.
func RangeShape(text string) Shape {
	r, ok := ParseRange(text)
	if !ok {
		return Shape{Rows: 1, Cols: 1}
	}
	return r.Shape()
}

func isASCIILetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
