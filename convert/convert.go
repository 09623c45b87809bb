// Package convert turns a small Markdown dialect into Confluence storage format.
//
// Supported: fenced code blocks, inline code, ATX headings of level 1-3, flat "-" and "1." lists,
// **strong**, *emphasis* and [links](url).  Everything else is passed through as escaped text.
// Conversion never fails and is not idempotent: don't feed its output back in.
package convert

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder and sentinel tokens are delimited by NUL, which normalisation strips from the input,
// so they can never collide with document text.
const (
	placeholderPrefix = "\x00codeblock:"
	placeholderSuffix = "\x00"
	listStart         = "\x00list\x00"
	listEnd           = "\x00/list\x00"
)

var (
	fencedCode   = regexp.MustCompile("(?s)```(\\w+)?\n(.*?)\n```")
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	heading3     = regexp.MustCompile(`(?m)^### (.*)$`)
	heading2     = regexp.MustCompile(`(?m)^## (.*)$`)
	heading1     = regexp.MustCompile(`(?m)^# (.*)$`)
	bulletItem   = regexp.MustCompile(`^- `)
	orderedItem  = regexp.MustCompile(`^\d+\. `)
	strongRe     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	emphasisRe   = regexp.MustCompile(`\*([^*\n]+)\*`)
	linkRe       = regexp.MustCompile(`\[([^\]\n]+)\]\(((?:[^()\n]|\([^()\n]*\))+)\)`)
	placeholder  = regexp.MustCompile(`\x00codeblock:(\d+)\x00`)
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Lowercase; url.Parse normalises the scheme.
var safeSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
}

type codeBlock struct {
	language string
	body     string
}

// conversion carries the code block side table through one Convert call.
type conversion struct {
	blocks []codeBlock
}

// Convert renders markdown as storage-format markup.
func Convert(markdown string) string {
	c := &conversion{}

	stages := []func(string) string{
		normalize,
		c.extractCodeBlocks,
		escapeHTML,
		inlineCode,
		headings,
		lists,
		emphasis,
		links,
		paragraphs,
		removeSentinels,
		c.restoreCodeBlocks,
	}

	out := markdown
	for _, stage := range stages {
		out = stage(out)
	}
	return out
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\x00", "")
}

func (c *conversion) extractCodeBlocks(s string) string {
	return fencedCode.ReplaceAllStringFunc(s, func(match string) string {
		groups := fencedCode.FindStringSubmatch(match)
		lang := groups[1]
		if lang == "" {
			lang = "text"
		}
		c.blocks = append(c.blocks, codeBlock{language: lang, body: groups[2]})
		return placeholderPrefix + strconv.Itoa(len(c.blocks)-1) + placeholderSuffix
	})
}

func escapeHTML(s string) string {
	return escaper.Replace(s)
}

func inlineCode(s string) string {
	return inlineCodeRe.ReplaceAllString(s, "<code>$1</code>")
}

// Deepest first, so "### x" isn't read as a level-1 heading of "## x".
func headings(s string) string {
	s = heading3.ReplaceAllString(s, "<h3>$1</h3>")
	s = heading2.ReplaceAllString(s, "<h2>$1</h2>")
	return heading1.ReplaceAllString(s, "<h1>$1</h1>")
}

// lists groups runs of list lines into one sentinel-wrapped block each.  All lines come out
// trimmed, and blank lines are dropped.
func lists(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])

		var marker *regexp.Regexp
		var tag string
		switch {
		case bulletItem.MatchString(line):
			marker, tag = bulletItem, "ul"
		case orderedItem.MatchString(line):
			marker, tag = orderedItem, "ol"
		default:
			if line != "" {
				out = append(out, line)
			}
			i++
			continue
		}

		var items []string
		for ; i < len(lines); i++ {
			item := strings.TrimSpace(lines[i])
			if !marker.MatchString(item) {
				break
			}
			items = append(items, "<li>"+marker.ReplaceAllString(item, "")+"</li>")
		}

		out = append(out, fmt.Sprintf("%s<%s>%s\n</%s>%s", listStart, tag, strings.Join(items, "\n"), tag, listEnd))
	}

	return strings.Join(out, "\n")
}

// Strong before emphasis, or the single-asterisk rule eats half of every "**".
func emphasis(s string) string {
	s = strongRe.ReplaceAllString(s, "<strong>$1</strong>")
	return emphasisRe.ReplaceAllString(s, "<em>$1</em>")
}

// links turns [text](url) into anchors when the target is safe.  Anything else keeps only its
// text.  A link never spans lines, and the URL may hold one level of balanced parentheses.  Both parts were escaped already, so the URL is unescaped, checked and escaped exactly
// once more.
func links(s string) string {
	return linkRe.ReplaceAllStringFunc(s, func(match string) string {
		groups := linkRe.FindStringSubmatch(match)
		text := groups[1]
		target := strings.TrimSpace(html.UnescapeString(groups[2]))

		if !safeURL(target) {
			return text
		}
		return `<a href="` + escaper.Replace(target) + `">` + text + `</a>`
	})
}

func safeURL(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme == "" || strings.HasPrefix(target, "/") || strings.HasPrefix(target, "#") {
		return true
	}
	return safeSchemes[strings.ToLower(u.Scheme)]
}

// paragraphs wraps plain lines in <p>.  Top-level blocks are separated by a blank line, while the
// lines of a list stay together.
func paragraphs(s string) string {
	var blocks []string
	var list []string
	inList := false

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, listStart) {
			inList = true
		}
		if inList {
			list = append(list, line)
			if strings.HasSuffix(line, listEnd) {
				blocks = append(blocks, strings.Join(list, "\n"))
				list = nil
				inList = false
			}
			continue
		}

		if !isBlock(line) {
			line = "<p>" + line + "</p>"
		}
		blocks = append(blocks, line)
	}

	// an unclosed region can't happen with lists() output, but don't lose it.
	if len(list) > 0 {
		blocks = append(blocks, strings.Join(list, "\n"))
	}

	return strings.Join(blocks, "\n\n")
}

// isBlock reports lines that are markup already: anything starting with a tag, and code block
// placeholders.  Escaping guarantees user text never starts with "<".
func isBlock(line string) bool {
	return strings.HasPrefix(line, "<") || strings.HasPrefix(line, placeholderPrefix)
}

func removeSentinels(s string) string {
	s = strings.ReplaceAll(s, listStart, "")
	return strings.ReplaceAll(s, listEnd, "")
}

func (c *conversion) restoreCodeBlocks(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		n, err := strconv.Atoi(placeholder.FindStringSubmatch(match)[1])
		if err != nil || n >= len(c.blocks) {
			return ""
		}
		return codeMacro(c.blocks[n])
	})
}

func codeMacro(b codeBlock) string {
	return `<ac:structured-macro ac:name="code" ac:schema-version="1">` +
		`<ac:parameter ac:name="language">` + b.language + `</ac:parameter>` +
		`<ac:plain-text-body><![CDATA[` + cdata(b.body) + `]]></ac:plain-text-body>` +
		`</ac:structured-macro>`
}

// cdata splits any "]]>" so the body can't terminate its own section early.
func cdata(body string) string {
	return strings.ReplaceAll(body, "]]>", "]]]]><![CDATA[>")
}
