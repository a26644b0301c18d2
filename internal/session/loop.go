package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/txrepl/internal/command"
)

// ContinuationPrompt is shown while a fragment is incomplete.
const ContinuationPrompt = "... "

// Run reads inputs from in until end of input or ".q", writing each outcome
// to out. A prompt is written before each input when prompt is non-empty.
// Source lines accumulate until brackets balance, so a fragment may span
// several lines; dot-commands are always one line.
//
// Run returns nil on end of input or ".q", and a *FatalError when strict
// mode escalates a condition.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer, prompt string) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var pending strings.Builder
	for {
		if prompt != "" {
			p := prompt
			if pending.Len() > 0 {
				p = ContinuationPrompt
			}
			fmt.Fprint(out, p)
		}
		if !sc.Scan() {
			break
		}
		line := sc.Text()

		var input string
		if pending.Len() == 0 && command.IsCommand(line) {
			input = line
		} else {
			pending.WriteString(line)
			pending.WriteByte('\n')
			if !Complete(pending.String()) {
				continue
			}
			input = pending.String()
			pending.Reset()
		}

		if done, err := s.step(ctx, input, out); done {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if pending.Len() > 0 {
		if done, err := s.step(ctx, pending.String(), out); done {
			return err
		}
	}
	return nil
}

// step processes one input and reports whether the loop must stop.
func (s *Session) step(ctx context.Context, input string, out io.Writer) (bool, error) {
	o, err := s.Process(ctx, input)
	io.WriteString(out, s.Render(o))
	switch {
	case errors.Is(err, ErrQuit):
		return true, nil
	case err != nil:
		return true, err
	}
	return false, nil
}

// Complete reports whether text is a complete fragment: every bracket
// opened outside literals and comments is closed, no block comment is open,
// and the last line does not end in a backslash.
func Complete(text string) bool {
	trimmed := strings.TrimRight(text, " \t\r\n")
	if strings.HasSuffix(trimmed, "\\") {
		return false
	}

	depth := 0
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '/':
			if i+1 >= len(text) {
				continue
			}
			switch text[i+1] {
			case '/':
				for i < len(text) && text[i] != '\n' {
					i++
				}
			case '*':
				end := strings.Index(text[i+2:], "*/")
				if end < 0 {
					return false
				}
				i += end + 3
			}
		case '"', '\'':
			for i++; i < len(text) && text[i] != c && text[i] != '\n'; i++ {
				if text[i] == '\\' {
					i++
				}
			}
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
		}
	}
	return depth <= 0
}
