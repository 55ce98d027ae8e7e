package extract

// Dedupe collapses records sharing the same (Text, SourceName) identity to
// the first occurrence, preserving input order. The same ad shows up in
// several paginated payloads, so this runs over the concatenation of all
// per-payload extractions. Stable and idempotent.
func Dedupe(records []Record) []Record {
	seen := make(map[identity]struct{}, len(records))
	out := make([]Record, 0, len(records))

	for _, rec := range records {
		key := identity{text: rec.Text, source: rec.SourceName}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// identity keys deduplication. Missing fields compare as empty strings.
type identity struct {
	text   string
	source string
}
