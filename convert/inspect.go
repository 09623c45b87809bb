package convert

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Finding is a construct Convert will not render as markup.  It still ends up in the page, as
// literal text.
type Finding struct {
	Line      int    // 1-based
	Construct string // e.g. "table", "blockquote"
	Detail    string
}

func (f Finding) String() string {
	if f.Detail == "" {
		return fmt.Sprintf("line %d: %s", f.Line, f.Construct)
	}
	return fmt.Sprintf("line %d: %s (%s)", f.Line, f.Construct, f.Detail)
}

// Convert only knows a bare word as a fence's info string.
var fenceInfo = regexp.MustCompile(`^\w*$`)

var inspector = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))

// Inspect parses markdown as GFM and reports the constructs outside the supported subset, in
// document order.  It has no influence on Convert.
func Inspect(markdown string) []Finding {
	source := []byte(normalize(markdown))
	doc := inspector.Parser().Parse(text.NewReader(source))

	var findings []Finding
	add := func(n ast.Node, construct, detail string) {
		findings = append(findings, Finding{
			Line:      lineOf(source, n),
			Construct: construct,
			Detail:    detail,
		})
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *east.Table:
			add(n, "table", "")
			return ast.WalkSkipChildren, nil
		case *ast.Blockquote:
			add(n, "blockquote", "")
		case *ast.ThematicBreak:
			add(n, "thematic break", "")
		case *ast.HTMLBlock:
			add(n, "raw HTML", "block")
		case *ast.RawHTML:
			add(n, "raw HTML", "inline")
		case *ast.CodeBlock:
			add(n, "indented code block", "")
		case *ast.FencedCodeBlock:
			// "~~~" fences and unterminated fences aren't recognised by Convert.
			if !isBacktickFence(source, node) {
				start, _ := blockStart(source, node)
				findings = append(findings, Finding{
					Line:      lineAt(source, start),
					Construct: "code block",
					Detail:    "only ``` fences are converted",
				})
			}
		case *ast.Heading:
			if node.Level > 3 {
				add(n, "heading", fmt.Sprintf("level %d", node.Level))
			} else if isSetext(source, node) {
				add(n, "setext heading", "use #")
			}
		case *ast.List:
			if isNested(node) {
				add(n, "nested list", "")
			}
			if !node.IsOrdered() && node.Marker != '-' {
				add(n, "list", fmt.Sprintf("bullet %q, use -", node.Marker))
			}
		case *ast.Image:
			add(n, "image", string(node.Destination))
		case *ast.AutoLink:
			findings = append(findings, Finding{
				Line:      inlineLine(source, n, node.Label(source)),
				Construct: "autolink",
				Detail:    string(node.URL(source)),
			})
		case *east.Strikethrough:
			add(n, "strikethrough", "")
		}

		return ast.WalkContinue, nil
	})

	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Line < findings[j].Line })
	return findings
}

func isSetext(source []byte, heading *ast.Heading) bool {
	off, ok := firstOffset(heading)
	if !ok {
		return false
	}
	start := bytes.LastIndexByte(source[:off], '\n') + 1
	return !bytes.HasPrefix(bytes.TrimLeft(source[start:], " "), []byte("#"))
}

func isNested(list *ast.List) bool {
	for p := list.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.ListItem); ok {
			return true
		}
	}
	return false
}

// isBacktickFence checks that the block opens with a backtick fence Convert would match, and is
// closed.
func isBacktickFence(source []byte, block *ast.FencedCodeBlock) bool {
	start, ok := blockStart(source, block)
	if !ok {
		return true
	}
	rest := bytes.TrimLeft(source[start:], " ")
	if !bytes.HasPrefix(rest, []byte("```")) {
		return false
	}
	info, _, _ := bytes.Cut(rest[3:], []byte("\n"))
	if !fenceInfo.Match(info) {
		return false
	}
	return bytes.Contains(rest[3:], []byte("\n```"))
}

// blockStart returns the offset of the first character on the block's opening line.  Fenced code
// blocks store only their content lines, so the fence is found by scanning back.
func blockStart(source []byte, block *ast.FencedCodeBlock) (int, bool) {
	var off int
	switch {
	case block.Info != nil:
		off = block.Info.Segment.Start
	case block.Lines().Len() > 0:
		off = block.Lines().At(0).Start
		// step back over the newline ending the fence line
		if off > 0 {
			off--
		}
	default:
		return 0, false
	}
	return bytes.LastIndexByte(source[:off], '\n') + 1, true
}

// lineOf finds a 1-based line number for n: from its own segments, its descendants' or, for
// nodes that keep none (thematic breaks), the first non-blank line after its previous sibling.
func lineOf(source []byte, n ast.Node) int {
	if off, ok := firstOffset(n); ok {
		return lineAt(source, off)
	}

	after := 0
	for p := n; p != nil; p = p.Parent() {
		if prev := p.PreviousSibling(); prev != nil {
			if off, ok := lastOffset(prev); ok {
				after = off
				break
			}
		}
	}

	line := lineAt(source, after)
	if after > 0 {
		line++
	}
	lines := bytes.Split(source, []byte("\n"))
	for line <= len(lines) && len(bytes.TrimSpace(lines[line-1])) == 0 {
		line++
	}
	return line
}

// inlineLine locates an inline node that keeps no segment by searching for its text, starting
// from the closest known position before it.
func inlineLine(source []byte, n ast.Node, needle []byte) int {
	from := 0
	if prev := n.PreviousSibling(); prev != nil {
		if off, ok := lastOffset(prev); ok {
			from = off
		}
	} else if parent := n.Parent(); parent != nil {
		if off, ok := firstOffset(parent); ok {
			from = off
		}
	}
	if idx := bytes.Index(source[from:], needle); idx >= 0 {
		return lineAt(source, from+idx)
	}
	return lineAt(source, from)
}

func firstOffset(n ast.Node) (int, bool) {
	switch node := n.(type) {
	case *ast.Text:
		return node.Segment.Start, true
	case *ast.RawHTML:
		if node.Segments.Len() > 0 {
			return node.Segments.At(0).Start, true
		}
	case *ast.FencedCodeBlock:
		if node.Info != nil {
			return node.Info.Segment.Start, true
		}
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(0).Start, true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if off, ok := firstOffset(c); ok {
			return off, true
		}
	}
	return 0, false
}

func lastOffset(n ast.Node) (int, bool) {
	for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
		if off, ok := lastOffset(c); ok {
			return off, true
		}
	}
	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Start, true
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(n.Lines().Len() - 1).Start, true
	}
	return 0, false
}

func lineAt(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte("\n")) + 1
}
