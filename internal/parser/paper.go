package parser

import (
	"fmt"
	"strings"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// Paper field names.
const (
	FieldTitle    = "title"
	FieldAuthors  = "authors"
	FieldAbstract = "abstract"
	FieldYear     = "year"
	FieldJournal  = "journal"
	FieldPages    = "pages"
)

// PaperRules returns the extraction rules for a paper detail page.
func PaperRules(sel config.FieldSelectors) []FieldRule {
	return []FieldRule{
		{Name: FieldTitle, Structured: ldString("headline"), Selectors: sel.Title, Sentinel: types.NoTitle},
		{Name: FieldAuthors, Structured: ldAuthors, Selectors: sel.Authors, Sentinel: types.NoAuthors},
		// description is often a generic page summary, so it only beats the sentinel.
		{Name: FieldAbstract, Structured: ldString("abstract"), Selectors: sel.Abstract, Fallback: ldString("description"), Sentinel: types.NoAbstract},
		{Name: FieldYear, Structured: ldYear, Selectors: sel.Year, Sentinel: types.NoYear},
		{Name: FieldJournal, Structured: ldNamed("isPartOf"), Selectors: sel.Journal, Sentinel: types.NoJournal},
		{Name: FieldPages, Structured: ldPagination, Selectors: sel.Pages, Sentinel: types.NoPages},
	}
}

// ldString returns the first non-empty scalar among keys.
func ldString(keys ...string) StructuredFunc {
	return func(ld map[string]any) (string, bool) {
		for _, k := range keys {
			if s := scalar(ld[k]); s != "" {
				return s, true
			}
		}
		return "", false
	}
}

// ldNamed reads key as either an object with a name or a plain value.
func ldNamed(key string) StructuredFunc {
	return func(ld map[string]any) (string, bool) {
		s := name(ld[key])
		return s, s != ""
	}
}

func ldAuthors(ld map[string]any) (string, bool) {
	v, ok := ld["author"]
	if !ok {
		return "", false
	}
	var names []string
	if list, ok := v.([]any); ok {
		for _, a := range list {
			if n := name(a); n != "" {
				names = append(names, n)
			}
		}
	} else if n := name(v); n != "" {
		names = append(names, n)
	}
	s := strings.Join(names, ", ")
	return s, s != ""
}

func ldYear(ld map[string]any) (string, bool) {
	s := scalar(ld["datePublished"])
	if s == "" {
		return "", false
	}
	r := []rune(s)
	if len(r) > 4 {
		r = r[:4]
	}
	return string(r), true
}

// ldPagination renders {pageStart, pageEnd} as "start-end", or a plain
// value as is.
func ldPagination(ld map[string]any) (string, bool) {
	v, ok := ld["pagination"]
	if !ok {
		return "", false
	}
	if m, ok := v.(map[string]any); ok {
		start := scalar(m["pageStart"])
		if start == "" {
			return "", false
		}
		if end := scalar(m["pageEnd"]); end != "" {
			return start + "-" + end, true
		}
		return start, true
	}
	s := scalar(v)
	return s, s != ""
}

func name(v any) string {
	if m, ok := v.(map[string]any); ok {
		return scalar(m["name"])
	}
	return scalar(v)
}

func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	case bool, map[string]any, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
