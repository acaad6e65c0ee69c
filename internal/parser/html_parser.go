// Package parser builds navigable documents from raw HTML markup.
// It never fails on malformed markup: the HTML5 parser recovers from broken
// input and the result is a best-effort tree, possibly empty.
package parser

import (
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Attribute is a single name/value pair of an element, in source order
type Attribute struct {
	Name  string
	Value string
}

// Element is a single element node of a parsed document
type Element struct {
	sel *goquery.Selection
}

// Document is the parsed form of one markup string. Extraction only reads it.
type Document struct {
	doc *goquery.Document
}

// Parse builds a document from markup text
func Parse(markup string) *Document {
	return ParseReader(strings.NewReader(markup))
}

// ParseReader builds a document from a reader. A failing reader yields an
// empty document rather than an error.
func ParseReader(r io.Reader) *Document {
	root, err := html.Parse(r)
	if err != nil {
		slog.Warn("Failed to read markup, using empty document", "error", err)
		root = &html.Node{Type: html.DocumentNode}
	}

	return &Document{doc: goquery.NewDocumentFromNode(root)}
}

// FindByTag returns every element with the given tag name in document order.
// Tag names are compared case-insensitively.
func (d *Document) FindByTag(tag string) []Element {
	return elementsByTag(d.doc.Selection, tag)
}

// FindByClass returns every element carrying the given CSS class, either as
// one of its whitespace-separated class tokens or as the whole attribute value.
func (d *Document) FindByClass(class string) []Element {
	matches := d.doc.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		value, _ := s.Attr("class")
		if value == class {
			return true
		}
		for _, token := range strings.Fields(value) {
			if token == class {
				return true
			}
		}
		return false
	})

	return toElements(matches)
}

// FindByID returns the first element whose id attribute equals id.
func (d *Document) FindByID(id string) (Element, bool) {
	match := d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		value, _ := s.Attr("id")
		return value == id
	}).First()

	if match.Length() == 0 {
		return Element{}, false
	}
	return Element{sel: match}, true
}

// Tag returns the tag name as parsed: lower-case for HTML elements, the
// canonical mixed case for SVG and MathML ones such as linearGradient
func (e Element) Tag() string {
	if e.sel == nil {
		return ""
	}
	return goquery.NodeName(e.sel)
}

// Attr returns the value of the named attribute and whether it is present.
// Names match case-insensitively.
func (e Element) Attr(name string) (string, bool) {
	if e.sel == nil || len(e.sel.Nodes) == 0 {
		return "", false
	}
	for _, a := range e.sel.Nodes[0].Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// Attributes returns all attributes in source order
func (e Element) Attributes() []Attribute {
	if e.sel == nil || len(e.sel.Nodes) == 0 {
		return nil
	}

	attrs := make([]Attribute, 0, len(e.sel.Nodes[0].Attr))
	for _, a := range e.sel.Nodes[0].Attr {
		attrs = append(attrs, Attribute{Name: a.Key, Value: a.Val})
	}
	return attrs
}

// Text returns the concatenated text of all descendant text nodes with
// leading and trailing whitespace removed
func (e Element) Text() string {
	if e.sel == nil {
		return ""
	}
	return strings.TrimSpace(e.sel.Text())
}

// Children returns the direct child elements in order
func (e Element) Children() []Element {
	if e.sel == nil {
		return nil
	}
	return toElements(e.sel.Children())
}

// Descendants returns all nested elements with the given tag name
func (e Element) Descendants(tag string) []Element {
	if e.sel == nil {
		return nil
	}
	return elementsByTag(e.sel, tag)
}

func elementsByTag(sel *goquery.Selection, tag string) []Element {
	matches := sel.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.EqualFold(goquery.NodeName(s), tag)
	})
	return toElements(matches)
}

func toElements(sel *goquery.Selection) []Element {
	elements := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, Element{sel: s})
	})
	return elements
}
