package relay

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const bullet = "• "

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown

	blankLines = regexp.MustCompile(`\n{3,}`)
)

func markdownParser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdown
}

// StripMarkup renders markdown as plain chat text: emphasis, code spans,
// headings and fences lose their markers, unordered items get a bullet,
// links keep their label and images become "[image]".
func StripMarkup(input string) string {
	if strings.TrimSpace(input) == "" {
		return input
	}

	source := []byte(input)
	doc := markdownParser().Parser().Parse(text.NewReader(source))

	p := &plainRenderer{source: source}
	if err := ast.Walk(doc, p.walk); err != nil {
		return input
	}

	out := blankLines.ReplaceAllString(p.out.String(), "\n\n")
	return strings.TrimSpace(out)
}

type plainRenderer struct {
	source []byte
	out    strings.Builder
}

func (p *plainRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Text:
		if entering {
			value := node.Segment.Value(p.source)
			if !node.IsRaw() {
				value = util.UnescapePunctuations(value)
			}
			p.out.Write(value)
			if node.SoftLineBreak() || node.HardLineBreak() {
				p.out.WriteByte('\n')
			}
		}

	case *ast.String:
		if entering {
			p.out.Write(node.Value)
		}

	case *ast.AutoLink:
		if entering {
			p.out.Write(node.Label(p.source))
		}
		return ast.WalkSkipChildren, nil

	case *ast.Image:
		if entering {
			p.out.WriteString("[image]")
		}
		return ast.WalkSkipChildren, nil

	case *ast.RawHTML:
		if entering {
			p.writeSegments(node.Segments)
		}

	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		if entering {
			p.writeSegments(n.Lines())
			p.out.WriteByte('\n')
		}
		return ast.WalkSkipChildren, nil

	case *ast.ListItem:
		if entering {
			p.out.WriteString(listMarker(node))
		}

	case *ast.List:
		if !entering && !isInListItem(node) {
			p.out.WriteByte('\n')
		}

	case *ast.TextBlock:
		if !entering {
			p.out.WriteByte('\n')
		}

	case *ast.Paragraph:
		if !entering {
			if isInListItem(node) {
				p.out.WriteByte('\n')
			} else {
				p.out.WriteString("\n\n")
			}
		}

	case *ast.Heading:
		if !entering {
			p.out.WriteString("\n\n")
		}

	case *ast.ThematicBreak:
		if entering {
			p.out.WriteByte('\n')
		}

	case *extast.TableCell:
		if !entering && node.NextSibling() != nil {
			p.out.WriteString(" | ")
		}

	case *extast.TableRow, *extast.TableHeader:
		if !entering {
			p.out.WriteByte('\n')
		}
	}

	return ast.WalkContinue, nil
}

func (p *plainRenderer) writeSegments(lines *text.Segments) {
	if lines == nil {
		return
	}
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		p.out.Write(seg.Value(p.source))
	}
}

// listMarker returns the item's bullet or number, indented two spaces per
// enclosing list.
func listMarker(item *ast.ListItem) string {
	depth := 0
	for n := item.Parent(); n != nil; n = n.Parent() {
		if _, ok := n.(*ast.List); ok {
			depth++
		}
	}
	indent := ""
	if depth > 1 {
		indent = strings.Repeat("  ", depth-1)
	}

	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return indent + bullet
	}

	index := 0
	for prev := item.PreviousSibling(); prev != nil; prev = prev.PreviousSibling() {
		index++
	}
	return indent + strconv.Itoa(list.Start+index) + ". "
}

func isInListItem(n ast.Node) bool {
	_, ok := n.Parent().(*ast.ListItem)
	return ok
}
