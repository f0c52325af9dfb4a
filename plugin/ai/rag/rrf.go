package rag

// DefaultRRFConstant is the default k of Reciprocal Rank Fusion.
const DefaultRRFConstant = 60

// Fuse fuses the semantic and keyword lists with Reciprocal Rank Fusion.
// RRF(d) = Σ 1 / (k + rank_i(d)) with 1-based ranks. A k <= 0 uses
// DefaultRRFConstant. Inputs are not modified.
func Fuse(semantic, keyword []*Candidate, k int) []*Candidate {
	return FuseMultiple([][]*Candidate{semantic, keyword}, []string{MethodSemantic, MethodKeyword}, k)
}

// FuseMultiple fuses any number of ranked lists. methods names the method
// of each list and must have the same length as lists. The output is sorted
// by RRF score descending, then app id ascending. RetrievalScore is the RRF
// score divided by the best score reachable over len(lists) lists, so it
// lies in (0, 1].
func FuseMultiple(lists [][]*Candidate, methods []string, k int) []*Candidate {
	if len(lists) == 0 || len(lists) != len(methods) {
		return nil
	}
	if k <= 0 {
		k = DefaultRRFConstant
	}

	fused := make(map[string]*Candidate)
	var order []*Candidate

	for listIdx, list := range lists {
		seen := make(map[string]bool, len(list))
		for rank, c := range list {
			if c == nil || seen[c.AppID] {
				continue
			}
			seen[c.AppID] = true

			out, ok := fused[c.AppID]
			if !ok {
				out = &Candidate{AppID: c.AppID, App: c.App}
				fused[c.AppID] = out
				order = append(order, out)
			}
			out.RRFScore += 1.0 / float64(k+rank+1)
			merge(out, c, methods[listIdx])
		}
	}

	best := float64(len(lists)) / float64(k+1)
	for _, c := range order {
		c.RetrievalScore = c.RRFScore / best
		c.FinalScore = c.RetrievalScore
	}

	sortByScore(order, func(c *Candidate) float64 { return c.RRFScore })
	return order
}

// merge folds the per-method fields of src into dst.
func merge(dst, src *Candidate, method string) {
	if dst.App == nil {
		dst.App = src.App
	}
	if !dst.HasMethod(method) {
		dst.Methods = append(dst.Methods, method)
	}
	if src.SemanticScore != 0 {
		dst.SemanticScore = src.SemanticScore
	}
	if src.Similarity != 0 {
		dst.Similarity = src.Similarity
	}
	if src.KeywordScore != 0 {
		dst.KeywordScore = src.KeywordScore
	}
	dst.MatchedKeywords = mergeKeywords(dst.MatchedKeywords, src.MatchedKeywords)
}
