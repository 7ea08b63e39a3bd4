package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"
)

// MarkupStyles decorates the inline elements bot messages use.
type MarkupStyles struct {
	Bold   func(...string) string
	Italic func(...string) string
	Faint  func(...string) string
}

func DefaultMarkupStyles() MarkupStyles {
	return MarkupStyles{
		Bold:   lipgloss.NewStyle().Bold(true).Render,
		Italic: lipgloss.NewStyle().Italic(true).Render,
		Faint:  lipgloss.NewStyle().Faint(true).Render,
	}
}

type markupWriter struct {
	styles MarkupStyles
	lines  []string
	cur    strings.Builder
	cells  int

	bold, italic, faint int
}

func (w *markupWriter) newline() {
	w.lines = append(w.lines, strings.TrimRight(w.cur.String(), " "))
	w.cur.Reset()
}

// breakLine ends the current line unless it is already empty.
func (w *markupWriter) breakLine() {
	if strings.TrimSpace(w.cur.String()) != "" {
		w.newline()
	}
}

func (w *markupWriter) text(s string) {
	s = collapseSpace(s)
	if w.cur.Len() == 0 {
		s = strings.TrimLeft(s, " ")
	}
	if s == "" {
		return
	}
	if w.bold > 0 {
		s = w.styles.Bold(s)
	}
	if w.italic > 0 {
		s = w.styles.Italic(s)
	}
	if w.faint > 0 {
		s = w.styles.Faint(s)
	}
	w.cur.WriteString(s)
}

func (w *markupWriter) start(tag string) {
	switch tag {
	case "br":
		w.newline()
	case "b", "strong":
		w.bold++
	case "i", "em":
		w.italic++
	case "small":
		w.faint++
	case "tr":
		w.breakLine()
		w.cells = 0
	case "td", "th":
		if w.cells > 0 {
			w.cur.WriteString(" ")
		}
		w.cells++
	case "div", "p", "table":
		w.breakLine()
	}
}

func (w *markupWriter) end(tag string) {
	switch tag {
	case "b", "strong":
		w.bold = max(0, w.bold-1)
	case "i", "em":
		w.italic = max(0, w.italic-1)
	case "small":
		w.faint = max(0, w.faint-1)
	case "tr", "div", "p", "table":
		w.breakLine()
	}
}

// RenderMarkup turns the small HTML subset the bot emits into terminal text.
// Unknown tags are dropped and their text kept.
func RenderMarkup(markup string, styles MarkupStyles) string {
	w := &markupWriter{styles: styles}
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF, or a reader error; either way keep what was rendered.
			w.newline()
			return strings.Trim(strings.Join(w.lines, "\n"), "\n")
		case html.TextToken:
			w.text(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			w.start(string(name))
		case html.EndTagToken:
			name, _ := z.TagName()
			w.end(string(name))
		}
	}
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
