package source

import (
	"strings"

	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/model"
)

// Filter removes items whose title, company, or description contains any
// of the exclusion keywords. Matching is a case-insensitive substring
// check; order of the surviving items is preserved.
func Filter(items []model.Item, exclude []string) []model.Item {
	if len(exclude) == 0 {
		return items
	}

	kept := make([]model.Item, 0, len(items))
	dropped := 0
	for _, it := range items {
		if kw, hit := matchKeyword(it, exclude); hit {
			dropped++
			zap.L().Debug("source: item excluded by keyword",
				zap.String("source", string(it.Source)),
				zap.String("item", it.Identifier()),
				zap.String("keyword", kw),
			)
			continue
		}
		kept = append(kept, it)
	}

	if dropped > 0 {
		zap.L().Info("source: keyword filter applied",
			zap.Int("in", len(items)),
			zap.Int("out", len(kept)),
			zap.Int("dropped", dropped),
		)
	}
	return kept
}

// matchKeyword returns the first exclusion keyword found in the item's
// title, company, or description.
func matchKeyword(it model.Item, exclude []string) (string, bool) {
	title := strings.ToLower(it.Title)
	company := strings.ToLower(it.Company)
	desc := strings.ToLower(it.Description)

	for _, kw := range exclude {
		k := strings.ToLower(kw)
		if k == "" {
			continue
		}
		if strings.Contains(title, k) || strings.Contains(company, k) || strings.Contains(desc, k) {
			return kw, true
		}
	}
	return "", false
}
