package scraper

import (
	"fmt"
	"time"

	"github.com/masahif/falconeye/internal/asset"
)

// RuleKind names an extraction rule
type RuleKind string

const (
	RuleAttribute   RuleKind = "attr"
	RuleTextByTag   RuleKind = "text-tag"
	RuleTextByClass RuleKind = "text-class"
	RuleTextByID    RuleKind = "text-id"
	RuleLinks       RuleKind = "links"
	RuleLinkByID    RuleKind = "link-id"
	RuleImages      RuleKind = "images"
	RuleVideos      RuleKind = "videos"
)

// Run statuses stored in the journal
const (
	StatusCompleted = "completed"
	StatusNotFound  = "not_found"
	StatusFailed    = "failed"
)

// Asset statuses stored in the journal
const (
	AssetSaved  = "saved"
	AssetFailed = "failed"
)

// Rule selects which extractor runs and with which selector
type Rule struct {
	Kind        RuleKind
	Tag         string   // attr, text-tag
	Attr        string   // attr
	Class       string   // text-class
	ID          string   // text-id, link-id
	Providers   []string // videos; empty means the defaults
	DownloadDir string   // images, videos; empty disables downloading
}

// Selector renders the rule's selector for reporting
func (r Rule) Selector() string {
	switch r.Kind {
	case RuleAttribute:
		return fmt.Sprintf("%s@%s", r.Tag, r.Attr)
	case RuleTextByTag:
		return r.Tag
	case RuleTextByClass:
		return "." + r.Class
	case RuleTextByID, RuleLinkByID:
		return "#" + r.ID
	default:
		return ""
	}
}

// FieldName is the record field name used when results are exported
func (r Rule) FieldName() string {
	switch r.Kind {
	case RuleAttribute:
		return r.Attr
	case RuleLinks, RuleLinkByID:
		return "href"
	case RuleImages, RuleVideos:
		return "src"
	default:
		return "text"
	}
}

// Result is the outcome of processing one source with one rule
type Result struct {
	RunID       string
	Source      string
	Rule        Rule
	Values      []string // document order; unique for images and videos
	NotFound    bool     // set by id rules when nothing matched
	Assets      []asset.Outcome
	DownloadErr error // download directory could not be used
}

// RunRecord is one journal entry
type RunRecord struct {
	ID           string
	Source       string
	Rule         string
	Selector     string
	Status       string
	ResultCount  int
	ErrorType    string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// AssetRecord is the journal entry for one download attempt
type AssetRecord struct {
	RunID        string
	URL          string
	FileName     string
	Path         string
	Bytes        int64
	Status       string
	ErrorType    string
	ErrorMessage string
	DownloadedAt time.Time
}

// ErrorRecord is the journal entry for a failed page load
type ErrorRecord struct {
	RunID        string
	Source       string
	ErrorType    string
	ErrorMessage string
	OccurredAt   time.Time
}
