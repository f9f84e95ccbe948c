package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var tableParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// NormalizeTables rewrites every GFM table in content into a space-aligned
// monospace block. Non-table content passes through unchanged.
func NormalizeTables(content string) string {
	src := []byte(content)
	doc := tableParser.Parser().Parse(text.NewReader(src))

	var out strings.Builder
	var cursor int

	var walk func(n ast.Node) ast.WalkStatus
	walk = func(n ast.Node) ast.WalkStatus {
		if table, ok := n.(*east.Table); ok {
			start, end := nodeByteRange(table, src)
			out.Write(src[cursor:start])
			out.WriteString(renderTable(table, src))
			cursor = end
			return ast.WalkSkipChildren
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
		return ast.WalkContinue
	}
	walk(doc)
	out.Write(src[cursor:])
	return out.String()
}

// nodeByteRange returns the [start,end) byte offsets a table node spans in
// src, derived from its row/cell segments since Table itself carries no
// direct segment.
func nodeByteRange(table *east.Table, src []byte) (int, int) {
	var start, end = -1, 0
	var scan func(n ast.Node)
	scan = func(n ast.Node) {
		if seg, ok := segmentOf(n); ok {
			if start == -1 || seg.Start < start {
				start = seg.Start
			}
			if seg.Stop > end {
				end = seg.Stop
			}
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			scan(c)
		}
	}
	scan(table)
	if start == -1 {
		return 0, 0
	}
	// extend start back to the beginning of its line so a leading pipe is consumed
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	// extend end to the following newline so the whole table line is consumed
	for end < len(src) && src[end] != '\n' {
		end++
	}
	return start, end
}

func segmentOf(n ast.Node) (text.Segment, bool) {
	switch v := n.(type) {
	case *ast.Text:
		return v.Segment, true
	}
	return text.Segment{}, false
}

// renderTable builds the monospace block for one table.
func renderTable(table *east.Table, src []byte) string {
	var rows [][]string
	var header []string

	for c := table.FirstChild(); c != nil; c = c.NextSibling() {
		switch row := c.(type) {
		case *east.TableHeader:
			header = extractRow(row, src)
		case *east.TableRow:
			rows = append(rows, extractRow(row, src))
		}
	}

	widths := columnWidths(header, rows)

	var b strings.Builder
	b.WriteString("```\n")
	if header != nil {
		b.WriteString(padRow(header, widths))
		b.WriteByte('\n')
		b.WriteString(separatorRow(widths))
		b.WriteByte('\n')
	}
	for _, r := range rows {
		b.WriteString(padRow(r, widths))
		b.WriteByte('\n')
	}
	b.WriteString("```\n")
	return b.String()
}

func extractRow(row ast.Node, src []byte) []string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		if cell, ok := c.(*east.TableCell); ok {
			cells = append(cells, cellText(cell, src))
		}
	}
	return cells
}

// cellText joins the text content of a cell's inline children, stripping
// emphasis/codespan/strikethrough markup and replacing links/images with
// their destination URL.
func cellText(cell *east.TableCell, src []byte) string {
	var b strings.Builder
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		switch v := n.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
		case *ast.CodeSpan:
			for c := v.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c)
			}
		case *ast.Link:
			b.Write(v.Destination)
		case *ast.Image:
			b.Write(v.Destination)
		default:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c)
			}
		}
	}
	walk(cell)
	return strings.TrimSpace(b.String())
}

func columnWidths(header []string, rows [][]string) []int {
	n := len(header)
	for _, r := range rows {
		if len(r) > n {
			n = len(r)
		}
	}
	widths := make([]int, n)
	for i, h := range header {
		if len(h) > widths[i] {
			widths[i] = len(h)
		}
	}
	for _, r := range rows {
		for i, c := range r {
			if len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}
	return widths
}

func padRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i := range widths {
		var c string
		if i < len(cells) {
			c = cells[i]
		}
		parts[i] = c + strings.Repeat(" ", widths[i]-len(c))
	}
	return strings.Join(parts, " ")
}

func separatorRow(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w)
	}
	return strings.Join(parts, " ")
}
