package extract

import (
	"regexp"
	"strings"

	"github.com/masahif/falconeye/internal/parser"
)

var (
	tagNamePattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9:_-]*$`)
	attrNamePattern = regexp.MustCompile(`^[^\s"'>/=]+$`)
)

func checkDocument(op string, doc *parser.Document) error {
	if doc == nil {
		return invalidInput(op, "document is nil")
	}
	return nil
}

func checkTag(op, tag string) error {
	if !tagNamePattern.MatchString(tag) {
		return invalidInput(op, "invalid tag name %q", tag)
	}
	return nil
}

func checkAttribute(op, attr string) error {
	if !attrNamePattern.MatchString(attr) {
		return invalidInput(op, "invalid attribute name %q", attr)
	}
	return nil
}

func checkNonBlank(op, what, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidInput(op, "%s must not be empty", what)
	}
	return nil
}
