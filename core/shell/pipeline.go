package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrExpectedCommand is returned when a `|` isn't followed by a command.
	ErrExpectedCommand = errors.New("expected command after `|`")
	// ErrMissingCommand is returned when a line only holds redirections.
	ErrMissingCommand = errors.New("missing command")
	// ErrExpectedFile is returned when a redirection has no file name.
	ErrExpectedFile = errors.New("expected file name")
	// ErrUnexpectedToken is returned for operators in invalid positions.
	ErrUnexpectedToken = errors.New("syntax error near unexpected token")
)

// Pipeline is a parsed command line.
type Pipeline struct {
	// Stages holds the argument vector of each command in order.
	Stages [][]string
	// Stdin is the file the last stage reads from, empty for none.
	Stdin string
	// Stdout is the file the last stage writes to, empty for none.
	Stdout string
	// Background is set by a trailing `&`.
	Background bool
}

// Empty reports whether the line held no command.
func (p *Pipeline) Empty() bool {
	return len(p.Stages) == 0
}

// Parse tokenizes and builds a line.
func Parse(line string) (*Pipeline, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	return Build(tokens)
}

// Build splits tokens into stages at each `|`, then extracts a trailing `&`
// and the `<` and `>` redirections of the last stage. When a redirection is
// repeated the last one wins. An empty token list gives an empty pipeline.
func Build(tokens []Token) (*Pipeline, error) {
	p := &Pipeline{}
	if len(tokens) == 0 {
		return p, nil
	}

	if last := tokens[len(tokens)-1]; last.Is(OpBackground) {
		p.Background = true
		tokens = tokens[:len(tokens)-1]
		if len(tokens) == 0 {
			return nil, unexpected(last)
		}
	}

	var stage []Token
	for i, tok := range tokens {
		switch {
		case tok.Is(OpPipe):
			if len(stage) == 0 {
				if i == 0 {
					return nil, unexpected(tok)
				}
				return nil, ErrExpectedCommand
			}
			if i == len(tokens)-1 {
				return nil, ErrExpectedCommand
			}
			p.Stages = append(p.Stages, Words(stage))
			stage = nil

		case tok.Is(OpBackground):
			return nil, unexpected(tok)

		default:
			stage = append(stage, tok)
		}
	}

	if len(stage) == 0 {
		return nil, ErrExpectedCommand
	}
	if err := checkEarlyRedirects(tokens); err != nil {
		return nil, err
	}

	argv, err := p.extractRedirects(stage)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		if len(p.Stages) > 0 {
			return nil, ErrExpectedCommand
		}
		return nil, ErrMissingCommand
	}
	p.Stages = append(p.Stages, argv)

	return p, nil
}

// extractRedirects removes redirections from the last stage and records them.
func (p *Pipeline) extractRedirects(stage []Token) ([]string, error) {
	var argv []string
	for i := 0; i < len(stage); i++ {
		tok := stage[i]
		if !tok.Is(OpRedirIn) && !tok.Is(OpRedirOut) {
			argv = append(argv, tok.Text)
			continue
		}

		if i+1 >= len(stage) || stage[i+1].Op {
			return nil, fmt.Errorf("%w after `%s`", ErrExpectedFile, tok.Text)
		}
		i++
		if tok.Text == OpRedirIn {
			p.Stdin = stage[i].Text
		} else {
			p.Stdout = stage[i].Text
		}
	}
	return argv, nil
}

// checkEarlyRedirects rejects redirections before the last `|`; only the
// last stage may redirect.
func checkEarlyRedirects(tokens []Token) error {
	lastPipe := -1
	for i, tok := range tokens {
		if tok.Is(OpPipe) {
			lastPipe = i
		}
	}
	for _, tok := range tokens[:lastPipe+1] {
		if tok.Is(OpRedirIn) || tok.Is(OpRedirOut) {
			return unexpected(tok)
		}
	}
	return nil
}

func unexpected(tok Token) error {
	return fmt.Errorf("%w `%s`", ErrUnexpectedToken, tok.Text)
}
