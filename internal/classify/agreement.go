package classify

import "plumage/internal/model"

const agreementDimensions = 5

// Agreement scores two classifications as matching dimensions over total.
func Agreement(a, b model.Classification) float64 {
	matches := 0
	if a.HumorType == b.HumorType {
		matches++
	}
	if a.TopicCategory == b.TopicCategory {
		matches++
	}
	if a.HasDataReference == b.HasDataReference {
		matches++
	}
	if a.ShowsVulnerability == b.ShowsVulnerability {
		matches++
	}
	if a.CritiqueType == b.CritiqueType {
		matches++
	}
	return float64(matches) / float64(agreementDimensions)
}
