package shell

import (
	"strings"

	"github.com/anmitsu/go-shlex"
)

// Operators recognized outside of quotes.
const (
	OpPipe       = "|"
	OpRedirIn    = "<"
	OpRedirOut   = ">"
	OpBackground = "&"
)

// opMarker surrounds operators found by the pre-scan so they survive word
// splitting distinguishable from the same characters typed inside quotes.
const opMarker = "\x1f"

// Token is a single word or operator of an entered line.
type Token struct {
	// Text is the word with quotes removed, or the operator.
	Text string
	// Op is set for unquoted operators.
	Op bool
}

// Is reports whether the token is the unquoted operator op.
func (t Token) Is(op string) bool {
	return t.Op && t.Text == op
}

func (t Token) String() string {
	return t.Text
}

// Tokenize splits a line into words and operators with POSIX quoting rules.
// Operators don't need surrounding blanks, "ls|wc" is three tokens.
func Tokenize(line string) ([]Token, error) {
	words, err := shlex.Split(markOperators(line), true)
	if err != nil {
		return nil, err
	}

	out := make([]Token, 0, len(words))
	for _, w := range words {
		if len(w) == 3 && strings.HasPrefix(w, opMarker) && strings.HasSuffix(w, opMarker) {
			out = append(out, Token{Text: w[1:2], Op: true})
			continue
		}
		out = append(out, Token{Text: w})
	}
	return out, nil
}

// Words returns the text of each token.
func Words(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

// markOperators pads every unquoted, unescaped operator character with blanks
// and markers.
func markOperators(line string) string {
	var sb strings.Builder
	var quote rune
	escaped := false

	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case strings.ContainsRune("|<>&", r):
			sb.WriteString(" " + opMarker)
			sb.WriteRune(r)
			sb.WriteString(opMarker + " ")
			continue
		}
		sb.WriteRune(r)
	}

	return sb.String()
}
