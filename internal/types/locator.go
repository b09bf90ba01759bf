package types

import "fmt"

// Locator identifies one crawlable paper. Index is the 1-based position in
// discovery order and never changes once assigned.
type Locator struct {
	URL   string
	Index int
}

// NewLocators numbers links in the given order starting at 1.
func NewLocators(links []string) []Locator {
	locs := make([]Locator, len(links))
	for i, link := range links {
		locs[i] = Locator{URL: link, Index: i + 1}
	}
	return locs
}

func (l Locator) String() string {
	return fmt.Sprintf("#%d %s", l.Index, l.URL)
}
