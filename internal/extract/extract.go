// Package extract implements the extraction rules: pure functions mapping a
// parsed document and a selector to attribute values, text, links, images
// and video references.
//
// No rule panics or mutates the document. A rule that cannot produce a value
// returns its empty result (an empty slice or "") together with an *Error
// whose kind is KindInvalidInput or KindNotFound. Rules returning a slice
// never report KindNotFound: no match is simply an empty slice.
package extract

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/masahif/falconeye/internal/parser"
)

// DefaultVideoProviders are the marker substrings that qualify an iframe
// source as a video. Matching is a plain substring test on the whole URL.
var DefaultVideoProviders = []string{"youtube.com", "vimeo.com"}

// Attribute returns the non-empty values of attr on every tag element, in
// document order. Elements where the attribute is absent or empty are skipped.
func Attribute(doc *parser.Document, tag, attr string) ([]string, error) {
	const op = "attribute"
	if err := firstErr(checkDocument(op, doc), checkTag(op, tag), checkAttribute(op, attr)); err != nil {
		return rejectList(err)
	}

	return attributeValues(doc.FindByTag(tag), attr), nil
}

// TextByTag returns the trimmed text of every tag element in document order.
// Repeated text is kept.
func TextByTag(doc *parser.Document, tag string) ([]string, error) {
	const op = "text_by_tag"
	if err := firstErr(checkDocument(op, doc), checkTag(op, tag)); err != nil {
		return rejectList(err)
	}

	return texts(doc.FindByTag(tag)), nil
}

// TextByClass returns the trimmed text of every element with the CSS class
func TextByClass(doc *parser.Document, class string) ([]string, error) {
	const op = "text_by_class"
	if err := firstErr(checkDocument(op, doc), checkNonBlank(op, "class name", class)); err != nil {
		return rejectList(err)
	}

	return texts(doc.FindByClass(class)), nil
}

// TextByID returns the trimmed text of the element with the given id. An
// element with no text yields "" and a nil error; a missing id yields
// ErrNotFound.
func TextByID(doc *parser.Document, id string) (string, error) {
	const op = "text_by_id"
	if err := firstErr(checkDocument(op, doc), checkNonBlank(op, "id", id)); err != nil {
		return rejectValue(err)
	}

	el, ok := doc.FindByID(id)
	if !ok {
		err := notFound(op, "no element with id %q", id)
		slog.Warn("Couldn't find element by id", "id", id)
		return "", err
	}

	return el.Text(), nil
}

// Links returns the non-empty href of every anchor in document order.
// Duplicates are kept.
func Links(doc *parser.Document) ([]string, error) {
	const op = "links"
	if err := checkDocument(op, doc); err != nil {
		return rejectList(err)
	}

	return attributeValues(doc.FindByTag(atom.A.String()), "href"), nil
}

// LinkByID returns the href of the anchor with the given id. A missing id,
// an element that is not an anchor, and an anchor without href all yield
// ErrNotFound; only the error detail tells them apart.
func LinkByID(doc *parser.Document, id string) (string, error) {
	const op = "link_by_id"
	if err := firstErr(checkDocument(op, doc), checkNonBlank(op, "id", id)); err != nil {
		return rejectValue(err)
	}

	el, ok := doc.FindByID(id)
	if !ok {
		slog.Warn("Couldn't find element by id", "id", id)
		return "", notFound(op, "no element with id %q", id)
	}

	if el.Tag() != atom.A.String() {
		slog.Warn("Element is not an anchor", "id", id, "tag", el.Tag())
		return "", notFound(op, "element with id %q is <%s>, not <a>", id, el.Tag())
	}

	href, _ := el.Attr("href")
	if href == "" {
		slog.Warn("Anchor has no href attribute", "id", id)
		return "", notFound(op, "anchor with id %q has no href", id)
	}

	return href, nil
}

// Images returns the unique src values of all img elements, in order of
// first appearance.
func Images(doc *parser.Document) ([]string, error) {
	const op = "images"
	if err := checkDocument(op, doc); err != nil {
		return rejectList(err)
	}

	return unique(attributeValues(doc.FindByTag(atom.Img.String()), "src")), nil
}

// Videos returns the unique video URLs referenced by the document, collected
// from source elements nested in video elements, from src on video elements,
// and from iframes whose src contains one of the provider markers.
// With no providers given, DefaultVideoProviders is used.
func Videos(doc *parser.Document, providers ...string) ([]string, error) {
	const op = "videos"
	if err := checkDocument(op, doc); err != nil {
		return rejectList(err)
	}
	if len(providers) == 0 {
		providers = DefaultVideoProviders
	}
	for _, p := range providers {
		if err := checkNonBlank(op, "video provider", p); err != nil {
			return rejectList(err)
		}
	}

	var links []string
	for _, video := range doc.FindByTag(atom.Video.String()) {
		links = append(links, attributeValues(video.Descendants(atom.Source.String()), "src")...)
		if src, _ := video.Attr("src"); src != "" {
			links = append(links, src)
		}
	}

	for _, src := range attributeValues(doc.FindByTag(atom.Iframe.String()), "src") {
		if isVideoProvider(src, providers) {
			links = append(links, src)
		}
	}

	return unique(links), nil
}

func isVideoProvider(src string, providers []string) bool {
	for _, p := range providers {
		if strings.Contains(src, p) {
			return true
		}
	}
	return false
}

func attributeValues(elements []parser.Element, attr string) []string {
	values := []string{}
	for _, el := range elements {
		if v, _ := el.Attr(attr); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func texts(elements []parser.Element) []string {
	values := make([]string, 0, len(elements))
	for _, el := range elements {
		values = append(values, el.Text())
	}
	return values
}

// unique drops repeated values, keeping the first occurrence
func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func rejectList(err error) ([]string, error) {
	slog.Error("Rejected extraction input", "error", err)
	return []string{}, err
}

func rejectValue(err error) (string, error) {
	slog.Error("Rejected extraction input", "error", err)
	return "", err
}
