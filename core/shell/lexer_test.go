package shell

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleTokenize() {
	tokens, err := Tokenize(`echo "a b" c`)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%q\n", Words(tokens))

	// Output: ["echo" "a b" "c"]
}

func TestTokenize(t *testing.T) {
	word := func(s string) Token { return Token{Text: s} }
	op := func(s string) Token { return Token{Text: s, Op: true} }

	cases := map[string]struct {
		line string
		want []Token
	}{
		"empty": {
			line: "   ",
			want: []Token{},
		},
		"quoted words": {
			line: `echo "a b" c`,
			want: []Token{word("echo"), word("a b"), word("c")},
		},
		"single quotes": {
			line: `echo 'it''s' "x"`,
			want: []Token{word("echo"), word("its"), word("x")},
		},
		"spaced pipe": {
			line: "ls | wc -l",
			want: []Token{word("ls"), op("|"), word("wc"), word("-l")},
		},
		"attached operators": {
			line: "cat<in|sort>out&",
			want: []Token{word("cat"), op("<"), word("in"), op("|"), word("sort"), op(">"), word("out"), op("&")},
		},
		"quoted operators are words": {
			line: `echo "|" '<' ">&"`,
			want: []Token{word("echo"), word("|"), word("<"), word(">&")},
		},
		"escaped operator is a word": {
			line: `echo \| done`,
			want: []Token{word("echo"), word("|"), word("done")},
		},
		"operator inside a quoted word": {
			line: `grep "a|b" file`,
			want: []Token{word("grep"), word("a|b"), word("file")},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got, err := Tokenize(tc.line)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	_, err := Tokenize(`echo "oops`)
	assert.Error(t, err)
}

func TestTokenIs(t *testing.T) {
	assert.True(t, Token{Text: "|", Op: true}.Is(OpPipe))
	assert.False(t, Token{Text: "|"}.Is(OpPipe))
	assert.False(t, Token{Text: "&", Op: true}.Is(OpPipe))
}
