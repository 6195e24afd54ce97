// Package markdown renders Markdown index documents to HTML pages using
// Goldmark with GFM extensions and syntax highlighting.
package markdown

import (
	"bytes"
	stdhtml "html"
	"html/template"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// ParseResult contains the rendered body and the document title
type ParseResult struct {
	HTML  string
	Title string
}

// Parser handles markdown parsing with goldmark
type Parser struct {
	md goldmark.Markdown
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}</body>
</html>
`))

// NewParser creates a new markdown parser with extensions
func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
			html.WithUnsafe(),
		),
	)

	return &Parser{md: md}
}

// Parse converts markdown source to HTML and takes the first heading as title
func (p *Parser) Parse(source []byte) (*ParseResult, error) {
	doc := p.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, source, doc); err != nil {
		return nil, err
	}

	return &ParseResult{
		HTML:  buf.String(),
		Title: firstHeading(doc, source),
	}, nil
}

// RenderPage converts markdown source to a complete HTML document
func (p *Parser) RenderPage(source []byte) ([]byte, error) {
	result, err := p.Parse(source)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: result.Title,
		Body:  template.HTML(result.HTML),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func firstHeading(doc ast.Node, source []byte) string {
	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			title = extractText(heading, source)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

// extractText collects the text of a node and its inline descendants
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
		case *ast.String:
			// Typographer replacements are stored as HTML entities
			buf.WriteString(stdhtml.UnescapeString(string(t.Value)))
		default:
			buf.WriteString(extractText(child, source))
		}
	}
	return buf.String()
}
