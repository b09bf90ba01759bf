package parser

import (
	"testing"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

const ldPage = `<html><head>
<script type="application/ld+json">{"@type":"BreadcrumbList","itemListElement":[]}</script>
<script type="application/ld+json">
{"@type":"ScholarlyArticle","headline":"구조화 제목",
 "author":[{"name":"김철수"},{"name":"이영희"},"박민수"],
 "datePublished":"2021-03-15",
 "isPartOf":{"name":"한국정보과학회 논문지"},
 "pagination":{"pageStart":"12","pageEnd":"24"}}
</script></head>
<body>
<h1 class="thesis__title">DOM 제목</h1>
<div class="thesis__author">DOM 저자</div>
<div class="abstractTxt">  본 연구는 ...  </div>
</body></html>`

const domPage = `<html><body>
<h1 class="thesis__title">  DOM 제목  </h1>
<div class="thesis__author">홍길동</div>
<span class="thesis__year">2019</span>
<span class="thesis__page">   </span>
<span class="page-info">pp. 101-110</span>
</body></html>`

func resolveAll(t *testing.T, markup string) map[string]struct {
	value  string
	source Source
} {
	t.Helper()
	doc, err := NewDocument("https://example.com/p/1", markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := make(map[string]struct {
		value  string
		source Source
	})
	for _, rule := range PaperRules(config.DefaultConfig().Extractor.Fields) {
		v, src := doc.Resolve(rule)
		out[rule.Name] = struct {
			value  string
			source Source
		}{v, src}
	}
	return out
}

func TestStructuredDataWins(t *testing.T) {
	got := resolveAll(t, ldPage)

	tests := []struct {
		field  string
		value  string
		source Source
	}{
		{FieldTitle, "구조화 제목", SourceStructured},
		{FieldAuthors, "김철수, 이영희, 박민수", SourceStructured},
		{FieldYear, "2021", SourceStructured},
		{FieldJournal, "한국정보과학회 논문지", SourceStructured},
		{FieldPages, "12-24", SourceStructured},
		{FieldAbstract, "본 연구는 ...", SourceSelector},
	}
	for _, tt := range tests {
		g := got[tt.field]
		if g.value != tt.value || g.source != tt.source {
			t.Errorf("%s: expected %q (%s), got %q (%s)", tt.field, tt.value, tt.source, g.value, g.source)
		}
	}
}

func TestSelectorCascadeAndSentinels(t *testing.T) {
	got := resolveAll(t, domPage)

	tests := []struct {
		field  string
		value  string
		source Source
	}{
		{FieldTitle, "DOM 제목", SourceSelector},
		{FieldAuthors, "홍길동", SourceSelector},
		{FieldYear, "2019", SourceSelector},
		// .thesis__page is blank so the cascade moves on to .page-info
		{FieldPages, "pp. 101-110", SourceSelector},
		{FieldJournal, types.NoJournal, SourceSentinel},
		{FieldAbstract, types.NoAbstract, SourceSentinel},
	}
	for _, tt := range tests {
		g := got[tt.field]
		if g.value != tt.value || g.source != tt.source {
			t.Errorf("%s: expected %q (%s), got %q (%s)", tt.field, tt.value, tt.source, g.value, g.source)
		}
	}
}

func TestEmptyStructuredValueFallsThrough(t *testing.T) {
	markup := `<html><head><script type="application/ld+json">{"headline":"  ","author":{"name":""}}</script></head>
<body><h1 class="thesis__title">Fallback</h1></body></html>`
	got := resolveAll(t, markup)
	if got[FieldTitle].value != "Fallback" {
		t.Errorf("blank headline should fall through to selectors, got %q", got[FieldTitle].value)
	}
	if got[FieldAuthors].value != types.NoAuthors {
		t.Errorf("expected authors sentinel, got %q", got[FieldAuthors].value)
	}
}

func TestJSONLDArrayAndMalformed(t *testing.T) {
	markup := `<html><head>
<script type="application/ld+json">{not json</script>
<script type="application/ld+json">[{"headline":"From array","pagination":"33"}]</script>
</head><body></body></html>`
	doc, err := NewDocument("https://example.com", markup)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Structured() == nil {
		t.Fatal("expected structured data from array form")
	}
	got := resolveAll(t, markup)
	if got[FieldTitle].value != "From array" {
		t.Errorf("unexpected title %q", got[FieldTitle].value)
	}
	if got[FieldPages].value != "33" {
		t.Errorf("unexpected pages %q", got[FieldPages].value)
	}
}

func TestJSONLDArrayWithNonObjectElement(t *testing.T) {
	markup := `<html><head><script type="application/ld+json">["stray", 3, {"headline":"Kept"}]</script></head></html>`
	got := resolveAll(t, markup)
	if got[FieldTitle].value != "Kept" || got[FieldTitle].source != SourceStructured {
		t.Errorf("expected object element to survive, got %q (%s)", got[FieldTitle].value, got[FieldTitle].source)
	}
}

func TestAbstractPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		ld     string
		body   string
		value  string
		source Source
	}{
		{"page abstract beats description", `{"description":"DBpia 논문 상세"}`, `<div class="abstractTxt">실제 초록</div>`, "실제 초록", SourceSelector},
		{"structured abstract first", `{"abstract":"구조화 초록","description":"요약"}`, `<div class="abstractTxt">실제 초록</div>`, "구조화 초록", SourceStructured},
		{"description as last resort", `{"description":"요약"}`, ``, "요약", SourceStructured},
		{"nothing", `{}`, ``, types.NoAbstract, SourceSentinel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := `<html><head><script type="application/ld+json">` + tt.ld + `</script></head><body>` + tt.body + `</body></html>`
			g := resolveAll(t, markup)[FieldAbstract]
			if g.value != tt.value || g.source != tt.source {
				t.Errorf("expected %q (%s), got %q (%s)", tt.value, tt.source, g.value, g.source)
			}
		})
	}
}

func TestNoStructuredData(t *testing.T) {
	doc, err := NewDocument("https://example.com", "<html><body>검색결과가 없습니다</body></html>")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Structured() != nil {
		t.Error("expected no structured data")
	}
	if !doc.Contains("검색결과가 없습니다") {
		t.Error("expected page text to contain marker")
	}
}
