// Package parser turns page markup into field values using structured
// data first and CSS selector cascades second.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

const jsonLDXPath = `//script[@type='application/ld+json']`

// Document is a parsed page. The goquery document and the XPath queries
// share one node tree.
type Document struct {
	URL        string
	root       *html.Node
	doc        *goquery.Document
	structured map[string]any
}

// NewDocument parses markup fetched from url.
func NewDocument(url, markup string) (*Document, error) {
	root, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := &Document{
		URL:  url,
		root: root,
		doc:  goquery.NewDocumentFromNode(root),
	}
	d.structured = d.findJSONLD()
	return d, nil
}

// Structured returns the page's JSON-LD object, or nil if it has none.
func (d *Document) Structured() map[string]any {
	return d.structured
}

// Selection returns the goquery selection for a CSS selector.
func (d *Document) Selection(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Contains reports whether the page text contains s, ignoring case.
func (d *Document) Contains(s string) bool {
	return strings.Contains(strings.ToLower(d.doc.Text()), strings.ToLower(s))
}

// FirstText returns the trimmed text of the first selector in the list
// that yields non-empty text.
func (d *Document) FirstText(selectors []string) (string, bool) {
	for _, sel := range selectors {
		text := strings.TrimSpace(d.doc.Find(sel).First().Text())
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// findJSONLD returns the first article-like JSON-LD object, falling back to
// the first object that decodes at all.
func (d *Document) findJSONLD() map[string]any {
	nodes, err := htmlquery.QueryAll(d.root, jsonLDXPath)
	if err != nil {
		return nil
	}

	var first map[string]any
	for _, n := range nodes {
		raw := strings.TrimSpace(htmlquery.InnerText(n))
		if raw == "" {
			continue
		}
		for _, obj := range decodeJSONLD(raw) {
			if first == nil {
				first = obj
			}
			if isArticle(obj) {
				return obj
			}
		}
	}
	return first
}

// decodeJSONLD accepts a single object or an array. Array elements that
// are not objects are skipped.
func decodeJSONLD(raw string) []map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return []map[string]any{obj}
	}
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil
	}
	var objs []map[string]any
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			objs = append(objs, m)
		}
	}
	return objs
}

func isArticle(obj map[string]any) bool {
	if _, ok := obj["headline"]; ok {
		return true
	}
	t, _ := obj["@type"].(string)
	return strings.Contains(strings.ToLower(t), "article")
}
