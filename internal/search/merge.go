package search

// Fixed merge scores for hits that do not come from lexical scoring.
const (
	EntityScore = 999
	TopicScore  = 998
	ApproxScore = 50
)

// Merge combines ranked lists into one. For an id present in several lists
// the highest-scoring hit wins; ties keep the first seen. The result is
// ordered by score descending then id ascending and truncated to topK
// (topK <= 0 keeps everything).
func Merge(topK int, lists ...[]Hit) []Hit {
	best := make(map[string]Hit)
	for _, l := range lists {
		for _, h := range l {
			if cur, seen := best[h.ID]; !seen || h.Score > cur.Score {
				best[h.ID] = h
			}
		}
	}

	out := make([]Hit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sortHits(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// WithScore returns a copy of hs with every score replaced by s, used to
// place approximate hits on the merge scale.
func WithScore(hs []Hit, s float64) []Hit {
	out := make([]Hit, len(hs))
	for i, h := range hs {
		h.Score = s
		out[i] = h
	}
	return out
}
