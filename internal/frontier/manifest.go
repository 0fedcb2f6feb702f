package frontier

import "sort"

// Corpus selects what the indexer consumes: completed, topic-relevant
// records ordered by discovery time, keeping only the first record per URL
// (redirects can land several doc ids on one final URL).
func Corpus(records []Record) []Record {
	var out []Record
	for _, rec := range records {
		if rec.Status == StatusCompleted && rec.FeaturesTubingen {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	seen := make(map[string]struct{}, len(out))
	kept := out[:0]
	for _, rec := range out {
		if _, dup := seen[rec.URL]; dup {
			continue
		}
		seen[rec.URL] = struct{}{}
		kept = append(kept, rec)
	}
	return kept
}
