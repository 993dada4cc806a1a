package csvrecovery

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// rebuildSearchIndex rebuilds the inverted search index from scratch after
// entities and associations have loaded (§4.2), tokenising every string
// field of each entity's payload into hot-store postings keyed by term.
func (r *Recoverer) rebuildSearchIndex(ctx context.Context, entities []entityRow) error {
	if r.hot == nil {
		return nil
	}
	for _, e := range entities {
		var payload map[string]interface{}
		if len(e.payload) == 0 {
			continue
		}
		if err := json.Unmarshal(e.payload, &payload); err != nil {
			continue
		}
		for _, term := range tokenize(payload) {
			if err := r.hot.IncrementPosting(ctx, term, e.id); err != nil {
				return err
			}
		}
	}
	return nil
}

// tokenize collects lowercase alphanumeric tokens from every string-typed
// value in payload, deduplicated so a repeated word in one entity counts as
// a single posting hit rather than inflating the term's weight for that doc.
func tokenize(payload map[string]interface{}) []string {
	seen := map[string]struct{}{}
	for _, v := range payload {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, tok := range tokenPattern.FindAllString(strings.ToLower(s), -1) {
			if len(tok) < 2 {
				continue
			}
			seen[tok] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	return out
}
