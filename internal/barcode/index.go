package barcode

import "strings"

// Entry is the slice of a product the matcher looks at.
type Entry struct {
	ID      string `json:"id"`
	SKU     string `json:"sku,omitempty"`
	Barcode string `json:"barcode,omitempty"`
	GTIN    string `json:"gtin,omitempty"`
}

// Rule names the matching rule that produced a hit.
type Rule string

const (
	RuleGTINExact    Rule = "gtin_exact"
	RuleGTINPartial  Rule = "gtin_partial"
	RuleBarcodeExact Rule = "barcode_exact"
	RuleSKUExact     Rule = "sku_exact"
	RuleSKUPartial   Rule = "sku_partial"
)

var rules = []Rule{RuleGTINExact, RuleGTINPartial, RuleBarcodeExact, RuleSKUExact, RuleSKUPartial}

// Result is the outcome of matching a scan. Matched is false for a NoMatch.
type Result struct {
	Matched   bool   `json:"matched"`
	Entry     Entry  `json:"entry"`
	Candidate string `json:"candidate,omitempty"`
	Rule      Rule   `json:"rule,omitempty"`
}

// Index is a read-only list of match targets, consulted in order.
type Index struct {
	entries []Entry
	lowered []Entry
}

// NewIndex builds an Index. The entries slice is copied.
func NewIndex(entries []Entry) *Index {
	idx := &Index{
		entries: append([]Entry(nil), entries...),
		lowered: make([]Entry, len(entries)),
	}
	for i, e := range entries {
		idx.lowered[i] = Entry{
			ID:      e.ID,
			SKU:     strings.ToLower(strings.TrimSpace(e.SKU)),
			Barcode: strings.ToLower(strings.TrimSpace(e.Barcode)),
			GTIN:    strings.ToLower(strings.TrimSpace(e.GTIN)),
		}
	}
	return idx
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Match applies the rules in priority order; each rule is tried against every
// candidate in order before the next rule is considered. The first entry
// satisfying a rule wins.
func (idx *Index) Match(candidates []string) Result {
	if idx == nil {
		return Result{}
	}
	lowered := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if c := strings.ToLower(candidate); c != "" {
			lowered = append(lowered, c)
		}
	}
	for _, rule := range rules {
		for _, c := range lowered {
			for i, e := range idx.lowered {
				if satisfies(rule, c, e) {
					return Result{Matched: true, Entry: idx.entries[i], Candidate: c, Rule: rule}
				}
			}
		}
	}
	return Result{}
}

// Lookup normalizes raw and matches it.
func (idx *Index) Lookup(raw string) Result {
	return idx.Match(Candidates(raw))
}

func satisfies(rule Rule, c string, e Entry) bool {
	switch rule {
	case RuleGTINExact:
		return e.GTIN != "" && e.GTIN == c
	case RuleGTINPartial:
		return overlaps(e.GTIN, c)
	case RuleBarcodeExact:
		return e.Barcode != "" && e.Barcode == c
	case RuleSKUExact:
		return e.SKU != "" && e.SKU == c
	case RuleSKUPartial:
		return overlaps(e.SKU, c)
	}
	return false
}

// overlaps reports whether either non-empty string contains the other.
func overlaps(field, candidate string) bool {
	if field == "" {
		return false
	}
	return strings.Contains(field, candidate) || strings.Contains(candidate, field)
}
