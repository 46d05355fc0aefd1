package filter

import (
	"strings"

	"github.com/kailas-cloud/tenderfilter/internal/domain/tender"
)

// Score returns the fraction of keywords found as substrings of content.
// Keywords must already be lowercase. An empty keyword list scores 0.
func Score(content string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	content = strings.ToLower(content)

	matches := 0
	for _, k := range keywords {
		if strings.Contains(content, k) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// Select keeps tenders scoring at least threshold, in dataset order.
// It returns at most limit tenders and the size of the full kept set.
// With no keywords nothing matches, regardless of threshold.
func Select(
	tenders []tender.Tender, keywords []string, threshold float64, limit int,
) ([]tender.Tender, int) {
	kept := make([]tender.Tender, 0, min(limit, len(tenders)))
	if len(keywords) == 0 {
		return kept, 0
	}

	total := 0
	for i := range tenders {
		if Score(tenders[i].Content(), keywords) < threshold {
			continue
		}
		total++
		if len(kept) < limit {
			kept = append(kept, tenders[i])
		}
	}
	return kept, total
}
