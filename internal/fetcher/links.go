package fetcher

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"

	"github.com/IshaanNene/PaperStalk/internal/types"
)

// ResolveXPathLink finds the anchor matched by expr in markup and returns
// its href resolved against base.
func ResolveXPathLink(markup, base, expr string) (string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	node, err := htmlquery.Query(doc, expr)
	if err != nil {
		return "", fmt.Errorf("xpath %q: %w", expr, err)
	}
	if node == nil {
		return "", fmt.Errorf("%w: %s", types.ErrNoPaginationLink, expr)
	}

	href := strings.TrimSpace(htmlquery.SelectAttr(node, "href"))
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", fmt.Errorf("%w: anchor %s has no navigable href", types.ErrNoPaginationLink, expr)
	}

	return ResolveURL(base, href)
}

// ResolveURL resolves ref against base.
func ResolveURL(base, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", ref, err)
	}
	if base == "" {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	return b.ResolveReference(r).String(), nil
}
