package pipeline

import (
	"fmt"
	"html"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/IshaanNene/PaperStalk/internal/types"
)

// StageError reports a middleware that panicked.
type StageError struct {
	Stage string
	Panic any
}

func (e *StageError) Error() string {
	return fmt.Sprintf("middleware %s panicked: %v", e.Stage, e.Panic)
}

// textFields returns the free-text fields of rec. Index, Link and the
// timestamp are never rewritten.
func textFields(rec *types.Record) []*string {
	return []*string{&rec.Title, &rec.Authors, &rec.Journal, &rec.Year, &rec.Pages, &rec.Abstract}
}

// TextCleanMiddleware decodes leftover character references and collapses
// whitespace runs. Values are already plain text, so a '<' or '>' is kept
// as written.
type TextCleanMiddleware struct{}

func (m *TextCleanMiddleware) Name() string { return "text_clean" }

func (m *TextCleanMiddleware) Process(rec *types.Record) error {
	for _, f := range textFields(rec) {
		*f = strings.Join(strings.Fields(html.UnescapeString(*f)), " ")
	}
	return nil
}

// UnicodeNormalizeMiddleware converts text to NFC. Korean pages sometimes
// serve decomposed Hangul jamo, which breaks grouping in spreadsheets.
type UnicodeNormalizeMiddleware struct{}

func (m *UnicodeNormalizeMiddleware) Name() string { return "unicode_nfc" }

func (m *UnicodeNormalizeMiddleware) Process(rec *types.Record) error {
	for _, f := range textFields(rec) {
		*f = norm.NFC.String(*f)
	}
	return nil
}

// SentinelMiddleware restores the "not found" sentinel of any field that
// cleaning left empty.
type SentinelMiddleware struct{}

func (m *SentinelMiddleware) Name() string { return "sentinel" }

func (m *SentinelMiddleware) Process(rec *types.Record) error {
	defaults := []struct {
		field    *string
		sentinel string
	}{
		{&rec.Title, types.NoTitle},
		{&rec.Authors, types.NoAuthors},
		{&rec.Journal, types.NoJournal},
		{&rec.Year, types.NoYear},
		{&rec.Pages, types.NoPages},
		{&rec.Abstract, types.NoAbstract},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = d.sentinel
		}
	}
	return nil
}

// AbstractCapMiddleware cuts the abstract to MaxLen runes.
type AbstractCapMiddleware struct {
	MaxLen int
}

func (m *AbstractCapMiddleware) Name() string { return "abstract_cap" }

func (m *AbstractCapMiddleware) Process(rec *types.Record) error {
	if m.MaxLen <= 0 {
		return fmt.Errorf("invalid max length %d", m.MaxLen)
	}
	r := []rune(rec.Abstract)
	if len(r) > m.MaxLen {
		rec.Abstract = string(r[:m.MaxLen]) + "..."
	}
	return nil
}
