package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a category label is not one of the known values.
var ErrUnknownCategory = errors.New("unknown category")

// Category is the granularity of an indexed documentation unit.
type Category string

// Known category labels emitted by the documentation generator.
const (
	CategoryPage    Category = "page"
	CategorySection Category = "section"
	CategoryMethod  Category = "method"
	CategoryType    Category = "type"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryPage, CategorySection, CategoryMethod, CategoryType}

// ParseCategory converts a label into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPage, CategorySection, CategoryMethod, CategoryType:
		return true
	}
	return false
}

// Entry is a single record of a documentation search index.
// The first five fields mirror the generator output; the rest are derived on load.
type Entry struct {
	// Location is a relative URL fragment of a page or anchor.
	// Example: "generated/slack_load/#Slack-Bus"
	Location string `json:"location"`

	// Page is the human-readable page name.
	Page string `json:"page"`

	// Title is the anchor title. May be empty.
	Title string `json:"title"`

	// Text is the indexed snippet, prose or a quoted source excerpt.
	Text string `json:"text"`

	// Category is the granularity of the indexed unit.
	Category Category `json:"category"`

	// Ordinal is the zero-based position of the record in the source array.
	Ordinal int `json:"ordinal"`
}

// ID returns the document identifier used in the search index.
func (e Entry) ID() string {
	return EntryID(e.Ordinal)
}

// EntryID formats an ordinal as a document identifier.
func EntryID(ordinal int) string {
	return fmt.Sprintf("entry-%06d", ordinal)
}

// Path returns the location without its anchor.
func (e Entry) Path() string {
	path, _, _ := strings.Cut(e.Location, "#")
	return path
}

// Anchor returns the part of the location after '#', or "" for page-level records.
func (e Entry) Anchor() string {
	_, anchor, _ := strings.Cut(e.Location, "#")
	return anchor
}

// IsDocstring reports whether the entry documents a method or a type.
func (e Entry) IsDocstring() bool {
	return e.Category == CategoryMethod || e.Category == CategoryType
}

// URL joins a site base URL and the entry location.
// An empty base returns the location unchanged.
func (e Entry) URL(base string) string {
	if base == "" {
		return e.Location
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(e.Location, "/")
}

// Document returns the representation stored in the Bleve index.
func (e Entry) Document() Document {
	return Document{
		Location: e.Location,
		Path:     e.Path(),
		Anchor:   e.Anchor(),
		Page:     e.Page,
		Title:    e.Title,
		Text:     e.Text,
		Category: string(e.Category),
		Ordinal:  float64(e.Ordinal),
	}
}

// Document is the structure stored in the Bleve search index.
type Document struct {
	Location string  `json:"location"`
	Path     string  `json:"path"`
	Anchor   string  `json:"anchor"`
	Page     string  `json:"page"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Category string  `json:"category"`
	Ordinal  float64 `json:"ordinal"`
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	FieldLocation = "location"
	FieldPath     = "path"
	FieldAnchor   = "anchor"
	FieldPage     = "page"
	FieldTitle    = "title"
	FieldText     = "text"
	FieldCategory = "category"
	FieldOrdinal  = "ordinal"
)

// StoredFields lists the fields requested back from search hits.
var StoredFields = []string{FieldLocation, FieldPage, FieldTitle, FieldText, FieldCategory, FieldOrdinal}
