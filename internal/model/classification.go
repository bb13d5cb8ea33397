package model

// Classification is the label set attached to one tweet by an LLM.
type Classification struct {
	HumorType          string `json:"humor_type"`
	TopicCategory      string `json:"topic_category"`
	HasDataReference   bool   `json:"has_data_reference"`
	ShowsVulnerability bool   `json:"shows_vulnerability"`
	CritiqueType       string `json:"critique_type"`
}

var humorTypes = map[string]bool{
	"absurdist": true, "self_deprecating": true, "observational": true, "none": true,
}

var topicCategories = map[string]bool{
	"tech": true, "housing": true, "religion": true, "politics": true,
	"social_commentary": true, "personal": true, "general": true,
}

var critiqueTypes = map[string]bool{
	"systemic": true, "institutional": true, "personal": true, "none": true,
}

// Neutral is the fallback classification used when a model call fails or
// returns labels outside the known enumerations.
func Neutral() Classification {
	return Classification{
		HumorType:     "none",
		TopicCategory: "general",
		CritiqueType:  "none",
	}
}

// Valid reports whether every label is within its enumeration.
func (c Classification) Valid() bool {
	return humorTypes[c.HumorType] && topicCategories[c.TopicCategory] && critiqueTypes[c.CritiqueType]
}
