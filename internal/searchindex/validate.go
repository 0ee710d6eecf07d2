package searchindex

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const entrySchemaURL = "https://docsearch-mcp.local/entry.schema.json"

//go:embed entry.schema.json
var entrySchema []byte

// Issue is a single validation finding about one record.
type Issue struct {
	Index   int    `json:"index"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("record %d at %s: %s", i.Index, i.Path, i.Message)
}

// Report summarises the structural validation of a search index.
type Report struct {
	Total      int                     `json:"total"`
	Valid      int                     `json:"valid"`
	Errors     []Issue                 `json:"errors"`
	Warnings   []Issue                 `json:"warnings"`
	Categories map[domain.Category]int `json:"categories"`
}

// OK reports whether no record failed validation.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

// Summary returns a one-line description of the report.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d records, %d valid, %d errors, %d warnings", r.Total, r.Valid, len(r.Errors), len(r.Warnings))
}

// Validator checks raw records against the entry schema.
type Validator struct {
	schema  *jsonschema.Schema
	printer *message.Printer
}

var defaultValidator = sync.OnceValues(NewValidator)

// NewValidator compiles the embedded entry schema.
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(entrySchema))
	if err != nil {
		return nil, fmt.Errorf("invalid entry schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(entrySchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add entry schema: %w", err)
	}

	schema, err := compiler.Compile(entrySchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile entry schema: %w", err)
	}

	return &Validator{
		schema:  schema,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Validate checks every record and returns the report together with the
// typed entries of the records that passed. Ordinals are source positions,
// so skipped records leave gaps.
func (v *Validator) Validate(records []json.RawMessage) (*Report, []domain.Entry) {
	report := &Report{
		Total:      len(records),
		Errors:     []Issue{},
		Warnings:   []Issue{},
		Categories: make(map[domain.Category]int),
	}
	entries := make([]domain.Entry, 0, len(records))
	anchors := make(map[string]int)

	for i, raw := range records {
		issues := v.validateRecord(i, raw)
		if len(issues) > 0 {
			report.Errors = append(report.Errors, issues...)
			continue
		}

		var entry domain.Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			report.Errors = append(report.Errors, Issue{Index: i, Path: "$", Message: err.Error()})
			continue
		}
		entry.Ordinal = i

		report.Warnings = append(report.Warnings, entryWarnings(entry, anchors)...)
		report.Categories[entry.Category]++
		entries = append(entries, entry)
	}

	report.Valid = len(entries)
	return report, entries
}

func (v *Validator) validateRecord(index int, raw json.RawMessage) []Issue {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return []Issue{{Index: index, Path: "$", Message: err.Error()}}
	}

	err = v.schema.Validate(inst)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Issue{{Index: index, Path: "$", Message: err.Error()}}
	}
	return v.flatten(index, verr)
}

// flatten collects the leaf causes of a validation error.
func (v *Validator) flatten(index int, verr *jsonschema.ValidationError) []Issue {
	if len(verr.Causes) == 0 {
		return []Issue{{
			Index:   index,
			Path:    instancePath(verr.InstanceLocation),
			Message: verr.ErrorKind.LocalizedString(v.printer),
		}}
	}

	var issues []Issue
	for _, cause := range verr.Causes {
		issues = append(issues, v.flatten(index, cause)...)
	}
	return issues
}

func instancePath(location []string) string {
	if len(location) == 0 {
		return "$"
	}
	return "$." + strings.Join(location, ".")
}

// entryWarnings reports anchor collisions and malformed locations. Page-level
// records repeat location and title once per text chunk, so they are exempt.
func entryWarnings(entry domain.Entry, anchors map[string]int) []Issue {
	var warnings []Issue

	if strings.Count(entry.Location, "#") > 1 {
		warnings = append(warnings, Issue{
			Index:   entry.Ordinal,
			Path:    "$.location",
			Message: fmt.Sprintf("location %q has more than one anchor", entry.Location),
		})
	}

	if entry.Category == domain.CategoryPage {
		return warnings
	}

	key := entry.Location + "\x00" + entry.Title
	if first, seen := anchors[key]; seen {
		warnings = append(warnings, Issue{
			Index:   entry.Ordinal,
			Path:    "$",
			Message: fmt.Sprintf("location %q with title %q duplicates record %d", entry.Location, entry.Title, first),
		})
	} else {
		anchors[key] = entry.Ordinal
	}

	return warnings
}
