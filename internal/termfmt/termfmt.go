// Package termfmt styles text for terminals using ANSI escapes: bold, the 16 basic colours and
// OSC 8 hyperlinks.  Styling can be switched off globally for pipes and NO_COLOR.
package termfmt

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type Escape interface {
	Wrap(out string) string
}

func Bold() Style               { return (Style{}).Bold() }
func Fg(c Color) Style          { return (Style{}).Fg(c) }
func Linked(link string) Style  { return (Style{}).Linked(link) }
func With(escs ...Escape) Style { return (Style{}).With(escs...) }

// Style is a value plus the escapes to wrap it in.  It implements fmt.Formatter, so the usual
// verbs and widths apply to the value before styling.
type Style struct {
	escapes []Escape
	v       any
}

var _ fmt.Formatter = Style{}

func (s Style) With(escs ...Escape) Style {
	s.escapes = append(append([]Escape(nil), s.escapes...), escs...)
	return s
}

func (s Style) Bold() Style              { return s.With(BoldEscape{}) }
func (s Style) Fg(c Color) Style         { return s.With(c) }
func (s Style) Linked(link string) Style { return s.With(Link{link}) }

func (s Style) V(v any) Style {
	s.v = v
	return s
}

func (s Style) Format(f fmt.State, verb rune) {
	v := printable(fmt.Sprintf(valueFormat(f, verb), s.v))
	if enabled {
		for i := len(s.escapes) - 1; i >= 0; i-- {
			v = s.escapes[i].Wrap(v)
		}
	}
	_, _ = f.Write([]byte(v))
}

func valueFormat(f fmt.State, verb rune) string {
	s := "%"
	for _, flag := range " +-0#" {
		if f.Flag(int(flag)) {
			s += string(flag)
		}
	}
	if width, ok := f.Width(); ok {
		s += strconv.Itoa(width)
	}
	if prec, ok := f.Precision(); ok {
		s += "." + strconv.Itoa(prec)
	}
	return s + string(verb)
}

type BoldEscape struct{}

func (BoldEscape) Wrap(v string) string { return "\x1b[1m" + v + "\x1b[0m" }

// Link makes the text a clickable hyperlink in terminals that support OSC 8.
type Link struct {
	URL string
}

func (l Link) Wrap(out string) string {
	return "\x1b]8;;" + printable(l.URL) + "\x1b\\" + out + "\x1b]8;;\x1b\\"
}

// Color is one of the 16 basic terminal colours.
type Color uint8

const (
	DefaultColor Color = iota

	Black
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	LightGrey

	DarkGrey
	LightRed
	LightGreen
	LightYellow
	LightBlue
	LightMagenta
	LightCyan
	White
)

func (c Color) Wrap(out string) string {
	code := 39
	if c != DefaultColor {
		// the lower 8 colours run from 30 to 37, the upper 8 from 90 to 97
		code = int(c) - 1 + 30
		if c >= DarkGrey {
			code = int(c) - int(DarkGrey) + 90
		}
	}
	return "\x1b[" + strconv.Itoa(code) + "m" + out + "\x1b[0m"
}

var enabled = true

// SetEnabled turns escapes on or off for every Style.
func SetEnabled(on bool) { enabled = on }

func Enabled() bool { return enabled }

func printable(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) || r == '\n' {
			return r
		}
		return -1
	}, v)
}
