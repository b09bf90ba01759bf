package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"golang.org/x/text/unicode/norm"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testRecord() types.Record {
	rec := types.NewRecord(types.Locator{URL: "https://dbpia.test/p/1", Index: 1})
	rec.Title = "  딥러닝\n\t기반   분류  "
	rec.Authors = "김철수 &amp; 이영희"
	rec.Abstract = "초록&#x20;본문"
	return rec
}

func TestPipelineStandardChain(t *testing.T) {
	p := FromConfig(config.PipelineConfig{Normalize: true}, testLogger)
	if p.Len() != 3 {
		t.Fatalf("expected 3 middleware, got %d", p.Len())
	}

	got := p.Process(testRecord())
	if got.Title != "딥러닝 기반 분류" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Authors != "김철수 & 이영희" {
		t.Errorf("authors = %q", got.Authors)
	}
	if got.Abstract != "초록 본문" {
		t.Errorf("abstract = %q", got.Abstract)
	}
	if got.Link != "https://dbpia.test/p/1" || got.Index != 1 {
		t.Errorf("identity fields changed: %+v", got)
	}
}

func TestSentinelRestoredAfterCleaning(t *testing.T) {
	p := FromConfig(config.PipelineConfig{Normalize: true}, testLogger)
	rec := testRecord()
	rec.Journal = " \n\t "

	got := p.Process(rec)
	if got.Journal != types.NoJournal {
		t.Errorf("expected journal sentinel, got %q", got.Journal)
	}
}

func TestComparisonsSurviveCleaning(t *testing.T) {
	p := FromConfig(config.DefaultConfig().Pipeline, testLogger)
	rec := testRecord()
	rec.Title = "x<y and y>z"
	rec.Abstract = "Effects were significant (p < 0.05) for groups with n > 30 participants."

	got := p.Process(rec)
	if got.Title != "x<y and y>z" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Abstract != rec.Abstract {
		t.Errorf("abstract = %q", got.Abstract)
	}
}

func TestUnicodeNormalize(t *testing.T) {
	decomposed := norm.NFD.String("한국어")
	rec := testRecord()
	rec.Title = decomposed

	m := &UnicodeNormalizeMiddleware{}
	if err := m.Process(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.Title != "한국어" {
		t.Errorf("expected composed form, got %q", rec.Title)
	}
}

func TestAbstractCap(t *testing.T) {
	p := FromConfig(config.PipelineConfig{MaxAbstractLen: 3}, testLogger)
	rec := testRecord()
	rec.Abstract = "가나다라마"

	got := p.Process(rec)
	if got.Abstract != "가나다..." {
		t.Errorf("abstract = %q", got.Abstract)
	}
}

func TestFailedRecordUntouched(t *testing.T) {
	p := FromConfig(config.PipelineConfig{Normalize: true, MaxAbstractLen: 1}, testLogger)
	rec := types.NewFailedRecord(types.Locator{URL: "https://dbpia.test/p/3", Index: 3})

	if got := p.Process(rec); got != rec {
		t.Errorf("failed record was modified: %+v", got)
	}
}

type failingMiddleware struct{ panics bool }

func (m *failingMiddleware) Name() string { return "failing" }

func (m *failingMiddleware) Process(rec *types.Record) error {
	rec.Title = "half-written"
	if m.panics {
		panic("boom")
	}
	return errors.New("broken")
}

func TestMiddlewareErrorKeepsRecord(t *testing.T) {
	for _, panics := range []bool{false, true} {
		p := New(testLogger)
		p.Use(&failingMiddleware{panics: panics})
		p.Use(&TextCleanMiddleware{})

		got := p.Process(testRecord())
		if got.Title != "딥러닝 기반 분류" {
			t.Errorf("panics=%v: expected failed stage rolled back then cleaned, got %q", panics, got.Title)
		}
	}
}
