package domain

// Recommendation is a suggested book computed against a source book.
// Recommendations are never persisted.
type Recommendation struct {
	Book       Book     `json:"book"`
	Reason     string   `json:"reason,omitempty"`
	SharedTags []string `json:"sharedTags,omitempty"`
}

// RecommendationSet is a normalized recommendation response.
type RecommendationSet struct {
	Source Book             `json:"source"`
	Items  []Recommendation `json:"items"`
}
