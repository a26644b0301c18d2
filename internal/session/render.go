package session

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/txrepl/internal/diag"
)

var (
	errorLabel   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warningLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// FormatDiag renders a reported condition as "error [CODE]: message". Codes
// marked as warnings render as "warning [CODE]: message"; conditions without
// a code omit the bracket.
func FormatDiag(err error, styled bool) string {
	code := diag.CodeOf(err)
	label, style := "error", errorLabel
	if code.IsWarning() || code == "" && isPlainWarning(err) {
		label, style = "warning", warningLabel
	}
	if styled {
		label = style.Render(label)
	}
	if code == "" {
		return label + ": " + err.Error()
	}
	return label + " [" + string(code) + "]: " + err.Error()
}

// plainWarning marks frontend warnings, which carry no code.
type plainWarning struct{ msg string }

func (w plainWarning) Error() string { return w.msg }

func isPlainWarning(err error) bool {
	_, ok := err.(plainWarning)
	return ok
}

// Render formats an outcome for display: warnings, then output, then the
// reported condition, one per line. The result ends with a newline unless it
// is empty.
func (s *Session) Render(o Outcome) string {
	var lines []string
	for _, w := range o.Warnings {
		lines = append(lines, FormatDiag(w, s.styled))
	}
	if o.Output != "" {
		lines = append(lines, o.Output)
	}
	if o.Err != nil {
		lines = append(lines, FormatDiag(o.Err, s.styled))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
