package parser

import (
	"errors"
	"testing"
)

const testPage = `
<!DOCTYPE html>
<html>
<head>
	<title>Test Page Title</title>
</head>
<body>
	<h1 id="top" class="headline main">Test Page</h1>
	<p class="intro">Some <b>bold</b> content</p>
	<P CLASS="intro">  Second paragraph  </P>
	<a href="/relative-link" data-value="1">Relative Link</a>
	<div class="a b"><span>nested</span></div>
	<p id="top">duplicate id</p>
</body>
</html>
`

func TestFindByTag(t *testing.T) {
	doc := Parse(testPage)

	paragraphs := doc.FindByTag("p")
	if len(paragraphs) != 3 {
		t.Fatalf("Expected 3 paragraphs, got %d", len(paragraphs))
	}

	expected := []string{"Some bold content", "Second paragraph", "duplicate id"}
	for i, p := range paragraphs {
		if p.Text() != expected[i] {
			t.Errorf("Paragraph %d: expected text '%s', got '%s'", i, expected[i], p.Text())
		}
		if p.Tag() != "p" {
			t.Errorf("Paragraph %d: expected tag 'p', got '%s'", i, p.Tag())
		}
	}

	if upper := doc.FindByTag("P"); len(upper) != 3 {
		t.Errorf("Expected case-insensitive tag match, got %d elements", len(upper))
	}
}

func TestFindByTagForeignElements(t *testing.T) {
	doc := Parse(`<svg viewBox="0 0 10 10"><linearGradient id="g"><stop offset="0"/></linearGradient></svg>`)

	for _, query := range []string{"linearGradient", "lineargradient", "LINEARGRADIENT"} {
		found := doc.FindByTag(query)
		if len(found) != 1 {
			t.Errorf("FindByTag(%q): expected 1 element, got %d", query, len(found))
		}
	}

	svg := doc.FindByTag("SVG")
	if len(svg) != 1 {
		t.Fatalf("Expected 1 svg element, got %d", len(svg))
	}
	for _, name := range []string{"viewBox", "viewbox", "VIEWBOX"} {
		if v, ok := svg[0].Attr(name); !ok || v != "0 0 10 10" {
			t.Errorf("Attr(%q): expected '0 0 10 10', got '%s' (present %v)", name, v, ok)
		}
	}
}

func TestFindByClass(t *testing.T) {
	doc := Parse(testPage)

	tests := []struct {
		class string
		count int
	}{
		{"intro", 2},
		{"headline", 1},
		{"main", 1},
		{"a b", 1}, // whole attribute value
		{"b", 1},
		{"missing", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := len(doc.FindByClass(tt.class)); got != tt.count {
			t.Errorf("FindByClass(%q): expected %d elements, got %d", tt.class, tt.count, got)
		}
	}
}

func TestFindByID(t *testing.T) {
	doc := Parse(testPage)

	el, ok := doc.FindByID("top")
	if !ok {
		t.Fatal("Expected element with id 'top'")
	}
	if el.Tag() != "h1" {
		t.Errorf("Expected first match in document order (h1), got '%s'", el.Tag())
	}

	if _, ok := doc.FindByID("missing"); ok {
		t.Error("Expected no element for id 'missing'")
	}

	// Selector metacharacters are compared literally
	if _, ok := doc.FindByID("top, p"); ok {
		t.Error("Expected id lookup not to be interpreted as a selector")
	}
}

func TestElementAttributes(t *testing.T) {
	doc := Parse(testPage)

	links := doc.FindByTag("a")
	if len(links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(links))
	}

	href, ok := links[0].Attr("href")
	if !ok || href != "/relative-link" {
		t.Errorf("Expected href '/relative-link', got '%s' (present=%v)", href, ok)
	}

	if _, ok := links[0].Attr("title"); ok {
		t.Error("Expected title attribute to be absent")
	}

	attrs := links[0].Attributes()
	if len(attrs) != 2 || attrs[0].Name != "href" || attrs[1].Name != "data-value" {
		t.Errorf("Expected attributes in source order, got %+v", attrs)
	}
}

func TestElementChildren(t *testing.T) {
	doc := Parse(`<ul><li>one</li><li>two<ul><li>three</li></ul></li></ul>`)

	lists := doc.FindByTag("ul")
	if len(lists) != 2 {
		t.Fatalf("Expected 2 lists, got %d", len(lists))
	}

	children := lists[0].Children()
	if len(children) != 2 {
		t.Errorf("Expected 2 direct children, got %d", len(children))
	}

	if items := lists[0].Descendants("li"); len(items) != 3 {
		t.Errorf("Expected 3 nested items, got %d", len(items))
	}
}

func TestParseMalformedMarkup(t *testing.T) {
	inputs := []string{
		"",
		"<<<>>>",
		"<div><p>unclosed",
		"</p></div>text only",
		"<a href='x'",
	}

	for _, input := range inputs {
		doc := Parse(input)
		if doc == nil {
			t.Fatalf("Parse(%q) returned nil document", input)
		}
		// Must be navigable without panicking
		_ = doc.FindByTag("p")
		_ = doc.FindByClass("x")
		_, _ = doc.FindByID("x")
	}

	doc := Parse("<div><p>unclosed")
	if p := doc.FindByTag("p"); len(p) != 1 || p[0].Text() != "unclosed" {
		t.Errorf("Expected best-effort paragraph, got %d elements", len(p))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestParseReaderError(t *testing.T) {
	doc := ParseReader(failingReader{})
	if doc == nil {
		t.Fatal("Expected empty document, got nil")
	}
	if n := len(doc.FindByTag("p")); n != 0 {
		t.Errorf("Expected empty document, got %d paragraphs", n)
	}
}

func TestZeroElement(t *testing.T) {
	var el Element
	if el.Tag() != "" || el.Text() != "" {
		t.Error("Expected zero element to be empty")
	}
	if _, ok := el.Attr("href"); ok {
		t.Error("Expected zero element to have no attributes")
	}
	if el.Children() != nil || el.Descendants("p") != nil || el.Attributes() != nil {
		t.Error("Expected zero element to have no children")
	}
}
