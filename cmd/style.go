package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	colorGreen  = lipgloss.Color("10")
	colorRed    = lipgloss.Color("9")
	colorGray   = lipgloss.Color("8")
	colorYellow = lipgloss.Color("11")

	symbolSuccess = "✓"
	symbolError   = "✗"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(colorGreen)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	dimStyle     = lipgloss.NewStyle().Foreground(colorGray)
	nameStyle    = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
)

// printer writes status lines, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) printer {
	return printer{w: w, styled: isTerminal(w)}
}

func (p printer) render(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return style.Render(text)
}

func (p printer) success(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(successStyle, symbolSuccess+" "+fmt.Sprintf(format, args...)))
}

func (p printer) failure(err error) {
	fmt.Fprintln(p.w, p.render(errorStyle, symbolError+" "+err.Error()))
}

func (p printer) dim(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(dimStyle, "  "+fmt.Sprintf(format, args...)))
}

func (p printer) name(text string) string {
	return p.render(nameStyle, text)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// choiceUsage renders "`<a|B|c>` description" with the default upper-cased.
func choiceUsage(defaultChoice string, choices []string, description string) string {
	shown := make([]string, 0, len(choices))
	for _, choice := range choices {
		if strings.EqualFold(choice, defaultChoice) {
			choice = strings.ToUpper(choice)
		}
		shown = append(shown, choice)
	}
	return fmt.Sprintf("`<%s>` %s", strings.Join(shown, "|"), description)
}
