package formula

import (
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collators are not safe for concurrent use, so each comparison borrows one
var collators = sync.Pool{
	New: func() any {
		return collate.New(language.Und, collate.IgnoreCase)
	},
}

// compareText orders two strings case-insensitively using the root locale
// collation. returns -1, 0 or 1.
func compareText(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// toUpper and toLower use full Unicode case mapping. a Caser keeps state,
// so every call gets its own.
func toUpper(s string) string {
	return cases.Upper(language.Und).String(s)
}

func toLower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// equalFold compares case-insensitively after Unicode case folding.
func equalFold(a, b string) bool {
	if a == b {
		return true
	}
	return cases.Fold().String(a) == cases.Fold().String(b)
}
