package formula

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLexerTokenTypes(t *testing.T) {
	tests := []struct {
		formula string
		want    []TokenType
	}{
		{"=1+2", []TokenType{TokenNumber, TokenOperator, TokenNumber, TokenEOF}},
		{"=A1", []TokenType{TokenCell, TokenEOF}},
		{"=$A$1", []TokenType{TokenCell, TokenEOF}},
		{"=SUM(A1:A10)", []TokenType{TokenFunction, TokenOperator, TokenRange, TokenOperator, TokenEOF}},
		{"=SUM (1)", []TokenType{TokenFunction, TokenOperator, TokenNumber, TokenOperator, TokenEOF}},
		{"=Sheet2!A1", []TokenType{TokenCell, TokenEOF}},
		{"=Sheet2!A1:B2", []TokenType{TokenRange, TokenEOF}},
		{"='My Sheet'!B3", []TokenType{TokenCell, TokenEOF}},
		{"='not a ref'", []TokenType{TokenString, TokenEOF}},
		{`="hello"&"world"`, []TokenType{TokenString, TokenOperator, TokenString, TokenEOF}},
		{"=TRUE", []TokenType{TokenBoolean, TokenEOF}},
		{"=foo", []TokenType{TokenIdentifier, TokenEOF}},
		{"=A1<=B1", []TokenType{TokenCell, TokenOperator, TokenCell, TokenEOF}},
		{"={1,2;3,4}", []TokenType{
			TokenOperator, TokenNumber, TokenOperator, TokenNumber, TokenOperator,
			TokenNumber, TokenOperator, TokenNumber, TokenOperator, TokenEOF,
		}},
		{"=1 # 2", []TokenType{TokenNumber, TokenNumber, TokenEOF}},
		{"", []TokenType{TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got := tokenTypes(Tokenize(tt.formula))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) types mismatch (-want +got):\n%s", tt.formula, diff)
			}
		})
	}
}

func TestLexerTokenValues(t *testing.T) {
	ignorePos := cmpopts.IgnoreFields(Token{}, "Pos")
	tests := []struct {
		formula string
		want    []Token
	}{
		{
			formula: "=sum($a$1:b2)",
			want: []Token{
				{Type: TokenFunction, Value: "SUM"},
				{Type: TokenOperator, Value: "("},
				{Type: TokenRange, Value: "A1:B2"},
				{Type: TokenOperator, Value: ")"},
				{Type: TokenEOF},
			},
		},
		{
			formula: "='Bob''s Sheet'!c4",
			want: []Token{
				{Type: TokenCell, Value: "C4", Sheet: "Bob's Sheet"},
				{Type: TokenEOF},
			},
		},
		{
			formula: "=Data!A1:B2:C3",
			want: []Token{
				{Type: TokenRange, Value: "A1:B2", Sheet: "Data"},
				{Type: TokenEOF},
			},
		},
		{
			formula: "=.5+1.25",
			want: []Token{
				{Type: TokenNumber, Value: ".5", Num: 0.5},
				{Type: TokenOperator, Value: "+"},
				{Type: TokenNumber, Value: "1.25", Num: 1.25},
				{Type: TokenEOF},
			},
		},
		{
			formula: "=1.2.3",
			want: []Token{
				{Type: TokenNumber, Value: "1.2", Num: 1.2},
				{Type: TokenNumber, Value: ".3", Num: 0.3},
				{Type: TokenEOF},
			},
		},
		{
			formula: "=a<>b",
			want: []Token{
				{Type: TokenIdentifier, Value: "A"},
				{Type: TokenOperator, Value: "<>"},
				{Type: TokenIdentifier, Value: "B"},
				{Type: TokenEOF},
			},
		},
		{
			formula: "=false",
			want: []Token{
				{Type: TokenBoolean, Value: "FALSE"},
				{Type: TokenEOF},
			},
		},
		{
			formula: `="unterminated`,
			want: []Token{
				{Type: TokenString, Value: "unterminated"},
				{Type: TokenEOF},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got := Tokenize(tt.formula)
			if diff := cmp.Diff(tt.want, got, ignorePos); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.formula, diff)
			}
		})
	}
}

func TestLexerTokenRef(t *testing.T) {
	tokens := Tokenize("='Q1 Data'!B7")
	if got := tokens[0].Ref(); got != "Q1 Data!B7" {
		t.Errorf("Ref() = %q, want %q", got, "Q1 Data!B7")
	}
}

func TestLexerAlwaysTerminates(t *testing.T) {
	inputs := []string{"=", "=(((", "='", "=A1:", "=!!!", "=\"", "={", "=Sheet1!"}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			tokens := Tokenize(input)
			if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEOF {
				t.Errorf("Tokenize(%q) does not end with EOF: %v", input, tokens)
			}
		})
	}
}
