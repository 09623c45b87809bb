package termfmt_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/toothbrush/confluence-markdown/internal/termfmt"
)

func TestStyle(t *testing.T) {
	termfmt.SetEnabled(true)

	assert.Equal(t, "\x1b[1mhi\x1b[0m", fmt.Sprint(termfmt.Bold().V("hi")))
	assert.Equal(t, "\x1b[32mok\x1b[0m", fmt.Sprint(termfmt.Fg(termfmt.Green).V("ok")))
	assert.Equal(t, "\x1b[91mx\x1b[0m", fmt.Sprint(termfmt.Fg(termfmt.LightRed).V("x")))
	assert.Equal(t, "\x1b[39mx\x1b[0m", fmt.Sprint(termfmt.Fg(termfmt.DefaultColor).V("x")))

	// outermost escape first
	assert.Equal(t, "\x1b[1m\x1b[33mwarn\x1b[0m\x1b[0m", fmt.Sprint(termfmt.Bold().Fg(termfmt.Yellow).V("warn")))

	// width applies to the value, not the escapes
	assert.Equal(t, "\x1b[1mab   \x1b[0m", fmt.Sprintf("%-5s", termfmt.Bold().V("ab")))

	assert.Equal(t, "\x1b]8;;https://example.com\x1b\\page\x1b]8;;\x1b\\", fmt.Sprint(termfmt.Linked("https://example.com").V("page")))

	// control characters in values are dropped
	assert.Equal(t, "\x1b[1mab\x1b[0m", fmt.Sprint(termfmt.Bold().V("a\x1bb")))
}

func TestStyle_Disabled(t *testing.T) {
	termfmt.SetEnabled(false)
	defer termfmt.SetEnabled(true)

	assert.False(t, termfmt.Enabled())
	assert.Equal(t, "created  ", fmt.Sprintf("%-9s", termfmt.Bold().Fg(termfmt.Green).V("created")))
}
