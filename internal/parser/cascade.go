package parser

// Source records where a field value came from.
type Source int

const (
	SourceSentinel Source = iota
	SourceStructured
	SourceSelector
)

func (s Source) String() string {
	switch s {
	case SourceStructured:
		return "structured"
	case SourceSelector:
		return "selector"
	default:
		return "sentinel"
	}
}

// StructuredFunc reads a field from a JSON-LD object. It reports false when
// the object has no usable value for the field.
type StructuredFunc func(ld map[string]any) (string, bool)

// FieldRule is the extraction policy for one field: structured data first,
// then Selectors in order, then the Fallback structured reader, then
// Sentinel.
type FieldRule struct {
	Name       string
	Structured StructuredFunc
	Selectors  []string
	Fallback   StructuredFunc
	Sentinel   string
}

// Resolve applies rule to the document. A structured value always wins over
// a selector match.
func (d *Document) Resolve(rule FieldRule) (string, Source) {
	if rule.Structured != nil && d.structured != nil {
		if v, ok := rule.Structured(d.structured); ok {
			return v, SourceStructured
		}
	}
	if v, ok := d.FirstText(rule.Selectors); ok {
		return v, SourceSelector
	}
	if rule.Fallback != nil && d.structured != nil {
		if v, ok := rule.Fallback(d.structured); ok {
			return v, SourceStructured
		}
	}
	return rule.Sentinel, SourceSentinel
}
