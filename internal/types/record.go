package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the layout of the crawl timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// Field sentinels written when a single field cannot be found.
const (
	NoTitle    = "제목 없음"
	NoAuthors  = "저자 없음"
	NoAbstract = "초록 없음"
	NoYear     = "년도 없음"
	NoJournal  = "학술지 없음"
	NoPages    = "수록면 정보 없음"
)

// FailedValue fills every content field of a record whose extraction failed
// entirely.
const FailedValue = "처리 실패"

// Columns is the fixed column order of the output table.
var Columns = []string{
	"번호",
	"제목",
	"저자",
	"학술지",
	"발행년도",
	"수록면",
	"초록",
	"링크",
	"크롤링날짜",
}

// Record is the extraction result for one Locator.
type Record struct {
	Index     int       `json:"index"      bson:"index"`
	Title     string    `json:"title"      bson:"title"`
	Authors   string    `json:"authors"    bson:"authors"`
	Journal   string    `json:"journal"    bson:"journal"`
	Year      string    `json:"year"       bson:"year"`
	Pages     string    `json:"pages"      bson:"pages"`
	Abstract  string    `json:"abstract"   bson:"abstract"`
	Link      string    `json:"link"       bson:"link"`
	CrawledAt time.Time `json:"crawled_at" bson:"crawled_at"`

	// Failed marks the failure variant. It is not a table column; a failed
	// row is recognised by its FailedValue fields when read back.
	Failed bool `json:"failed" bson:"failed"`
}

// NewRecord returns a record for loc with every field set to its
// "not found" sentinel.
func NewRecord(loc Locator) Record {
	return Record{
		Index:     loc.Index,
		Title:     NoTitle,
		Authors:   NoAuthors,
		Journal:   NoJournal,
		Year:      NoYear,
		Pages:     NoPages,
		Abstract:  NoAbstract,
		Link:      loc.URL,
		CrawledAt: time.Now(),
	}
}

// NewFailedRecord returns the failure variant for loc. The index and link
// are kept so the item still shows up in the output.
func NewFailedRecord(loc Locator) Record {
	return Record{
		Index:     loc.Index,
		Title:     FailedValue,
		Authors:   FailedValue,
		Journal:   FailedValue,
		Year:      FailedValue,
		Pages:     FailedValue,
		Abstract:  FailedValue,
		Link:      loc.URL,
		CrawledAt: time.Now(),
		Failed:    true,
	}
}

// Row renders the record in Columns order.
func (r Record) Row() []string {
	return []string{
		strconv.Itoa(r.Index),
		r.Title,
		r.Authors,
		r.Journal,
		r.Year,
		r.Pages,
		r.Abstract,
		r.Link,
		r.CrawledAt.Format(TimestampLayout),
	}
}

// RecordFromRow parses a row written by Row.
func RecordFromRow(row []string) (Record, error) {
	if len(row) != len(Columns) {
		return Record{}, fmt.Errorf("expected %d columns, got %d", len(Columns), len(row))
	}
	idx, err := strconv.Atoi(row[0])
	if err != nil {
		return Record{}, fmt.Errorf("parse index %q: %w", row[0], err)
	}
	ts, err := time.ParseInLocation(TimestampLayout, row[8], time.Local)
	if err != nil {
		return Record{}, fmt.Errorf("parse timestamp %q: %w", row[8], err)
	}
	r := Record{
		Index:     idx,
		Title:     row[1],
		Authors:   row[2],
		Journal:   row[3],
		Year:      row[4],
		Pages:     row[5],
		Abstract:  row[6],
		Link:      row[7],
		CrawledAt: ts,
	}
	r.Failed = r.Title == FailedValue && r.Authors == FailedValue && r.Abstract == FailedValue
	return r, nil
}

// ToJSON serializes the record.
func (r Record) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
