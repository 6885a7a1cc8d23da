package formula

import (
	"strconv"
	"strings"
	"unicode"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenBoolean
	TokenCell
	TokenRange
	TokenFunction
	TokenIdentifier
	TokenOperator
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return "NUMBER"
	case TokenString:
		return "STRING"
	case TokenBoolean:
		return "BOOL"
	case TokenCell:
		return "CELL"
	case TokenRange:
		return "RANGE"
	case TokenFunction:
		return "FUNC"
	case TokenIdentifier:
		return "IDENT"
	case TokenOperator:
		return "OP"
	default:
		return "UNKNOWN"
	}
}

// character classification constants. slightly easier to read.
const (
	charQuote      = '"'
	charApostrophe = '\''
	charPeriod     = '.'
	charColon      = ':'
	charExclaim    = '!'
	charDollar     = '$'
	charUnderscore = '_'
	charLParen     = '('
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
)

// single character operators and punctuation
const operatorChars = "+-*/^(),:;&<>=!{}"

// Token represents a lexical token. tokens are shared through the token
// cache and must never be modified after Tokenize returns.
type Token struct {
	Type  TokenType
	Value string  // operator, upper-cased reference or function name, string literal
	Num   float64 // TokenNumber only
	Bool  bool    // TokenBoolean only
	Sheet string  // sheet qualifier of a cell or range, quotes removed
	Pos   int     // rune offset in the formula body
}

// Ref returns the reference as handed to resolvers: "A1" or "Sheet!A1".
func (t Token) Ref() string {
	return qualify(t.Sheet, t.Value)
}

func (t Token) is(op string) bool {
	return t.Type == TokenOperator && t.Value == op
}

func qualify(sheet, ref string) string {
	if sheet == "" {
		return ref
	}
	return sheet + "!" + ref
}

// Lexer tokenizes spreadsheet formula expressions. it never fails: unknown
// characters are skipped and an EOF token always terminates the output.
type Lexer struct {
	runes  []rune // UTF-8 aware representation
	pos    int
	tokens []Token
}

// NewLexer creates a lexer for a formula with or without its leading '='
func NewLexer(input string) *Lexer {
	body := strings.TrimSpace(input)
	body = strings.TrimPrefix(body, "=")
	return &Lexer{
		runes:  []rune(body),
		tokens: make([]Token, 0, len(body)/2+1),
	}
}

// Tokenize converts a formula into its token sequence.
func Tokenize(input string) []Token {
	return NewLexer(input).Tokenize()
}

// Tokenize scans the whole input.
func (l *Lexer) Tokenize() []Token {
	for l.pos < len(l.runes) {
		l.next()
	}
	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens
}

func (l *Lexer) next() {
	ch := l.current()
	switch {
	case unicode.IsSpace(ch):
		l.pos++
	case ch == charQuote:
		l.scanString()
	case isDigitRune(ch) || (ch == charPeriod && isDigitRune(l.peek(1))):
		l.scanNumber()
	case ch == charApostrophe:
		l.scanQuotedWorksheetRef()
	case isIdentStart(ch):
		l.scanIdentifierOrCell()
	case strings.ContainsRune(operatorChars, ch):
		l.scanOperator()
	default:
		// skip unknown
		l.pos++
	}
}

func (l *Lexer) current() rune {
	return l.peek(0)
}

func (l *Lexer) peek(offset int) rune {
	if l.pos+offset >= len(l.runes) {
		return 0
	}
	return l.runes[l.pos+offset]
}

func (l *Lexer) emit(tok Token) {
	l.tokens = append(l.tokens, tok)
}

// scanString reads a double-quoted literal. there are no escapes, an
// unterminated literal runs to the end of input.
func (l *Lexer) scanString() {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.runes) && l.runes[l.pos] != charQuote {
		sb.WriteRune(l.runes[l.pos])
		l.pos++
	}
	l.pos++ // closing quote
	l.emit(Token{Type: TokenString, Value: sb.String(), Pos: start})
}

// scanNumber reads digits with at most one decimal point.
func (l *Lexer) scanNumber() {
	start := l.pos
	seenPeriod := false
	for l.pos < len(l.runes) {
		ch := l.runes[l.pos]
		if ch == charPeriod {
			if seenPeriod {
				break
			}
			seenPeriod = true
		} else if !isDigitRune(ch) {
			break
		}
		l.pos++
	}
	text := string(l.runes[start:l.pos])
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// a lone trailing period such as "1." still parses, so this only
		// guards against out of range literals
		num = 0
	}
	l.emit(Token{Type: TokenNumber, Value: text, Num: num, Pos: start})
}

// scanQuotedWorksheetRef reads 'Sheet Name'!A1. a doubled quote inside the
// name is a literal quote. without a following '!' the quoted text is a
// string literal.
func (l *Lexer) scanQuotedWorksheetRef() {
	start := l.pos
	l.pos++ // opening quote
	var sheet strings.Builder
	for l.pos < len(l.runes) {
		ch := l.runes[l.pos]
		if ch == charApostrophe && l.peek(1) == charApostrophe {
			sheet.WriteRune(charApostrophe)
			l.pos += 2
			continue
		}
		if ch == charApostrophe {
			break
		}
		sheet.WriteRune(ch)
		l.pos++
	}
	if l.current() == charApostrophe {
		l.pos++
	}

	if l.current() != charExclaim {
		l.emit(Token{Type: TokenString, Value: sheet.String(), Pos: start})
		return
	}
	l.pos++
	l.emitSheetRef(sheet.String(), start)
	// tolerate a stray quote right after the reference
	if l.current() == charApostrophe {
		l.pos++
	}
}

// emitSheetRef reads the cell or range after "Sheet!".
func (l *Lexer) emitSheetRef(sheet string, start int) {
	refStart := l.pos
	for l.pos < len(l.runes) && (isIdentPart(l.runes[l.pos]) || l.runes[l.pos] == charColon) {
		l.pos++
	}
	ref := stripAnchors(string(l.runes[refStart:l.pos]))
	if first, second, ok := strings.Cut(ref, ":"); ok {
		// anything after a second colon is dropped
		second, _, _ = strings.Cut(second, ":")
		l.emit(Token{
			Type:  TokenRange,
			Value: strings.ToUpper(first) + ":" + strings.ToUpper(second),
			Sheet: sheet,
			Pos:   start,
		})
		return
	}
	if isCellPattern(ref) {
		l.emit(Token{Type: TokenCell, Value: strings.ToUpper(ref), Sheet: sheet, Pos: start})
		return
	}
	l.emit(Token{Type: TokenIdentifier, Value: strings.ToUpper(ref), Pos: start})
}

// scanIdentifierOrCell classifies a bare word: sheet prefix, range, function
// name, cell, boolean or identifier.
func (l *Lexer) scanIdentifierOrCell() {
	start := l.pos
	id := l.scanWord()

	switch l.current() {
	case charExclaim:
		l.pos++
		l.emitSheetRef(id, start)
		return
	case charColon:
		l.pos++
		id2 := l.scanWord()
		l.emit(Token{
			Type:  TokenRange,
			Value: strings.ToUpper(stripAnchors(id)) + ":" + strings.ToUpper(stripAnchors(id2)),
			Pos:   start,
		})
		return
	}

	// a function name may be separated from its parenthesis by whitespace
	j := l.pos
	for j < len(l.runes) && unicode.IsSpace(l.runes[j]) {
		j++
	}
	if j < len(l.runes) && l.runes[j] == charLParen {
		l.emit(Token{Type: TokenFunction, Value: strings.ToUpper(id), Pos: start})
		return
	}

	clean := stripAnchors(id)
	upper := strings.ToUpper(id)
	switch {
	case isCellPattern(clean):
		l.emit(Token{Type: TokenCell, Value: strings.ToUpper(clean), Pos: start})
	case upper == "TRUE":
		l.emit(Token{Type: TokenBoolean, Value: upper, Bool: true, Pos: start})
	case upper == "FALSE":
		l.emit(Token{Type: TokenBoolean, Value: upper, Bool: false, Pos: start})
	default:
		l.emit(Token{Type: TokenIdentifier, Value: upper, Pos: start})
	}
}

func (l *Lexer) scanWord() string {
	start := l.pos
	for l.pos < len(l.runes) && isIdentPart(l.runes[l.pos]) {
		l.pos++
	}
	return string(l.runes[start:l.pos])
}

func (l *Lexer) scanOperator() {
	start := l.pos
	ch := l.current()
	next := l.peek(1)
	var op string
	switch {
	case ch == charLess && next == charEqual:
		op = "<="
	case ch == charGreater && next == charEqual:
		op = ">="
	case ch == charLess && next == charGreater:
		op = "<>"
	case ch == charEqual && next == charEqual:
		op = "=="
	default:
		op = string(ch)
	}
	l.pos += len(op)
	l.emit(Token{Type: TokenOperator, Value: op, Pos: start})
}

// stripAnchors removes '$' absolute-reference markers.
func stripAnchors(ref string) string {
	return strings.ReplaceAll(ref, "$", "")
}

// isCellPattern matches letters followed by digits, like A1 or ab12.
func isCellPattern(s string) bool {
	i := 0
	for i < len(s) && isASCIILetter(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigitRune(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || r == charUnderscore || r == charDollar
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigitRune(r)
}
