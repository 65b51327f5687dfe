package domain

// MaxSummaryInput is the longest text accepted for summarization.
const MaxSummaryInput = 5000

// Summary is a generated text summary for a book. Summaries are append-only.
type Summary struct {
	ID           ID     `json:"id"`
	BookID       ID     `json:"bookId"`
	OriginalText string `json:"originalText"`
	SummaryText  string `json:"summaryText"`
	AIProvider   string `json:"aiProvider,omitempty"`
	CreatedAt    Time   `json:"createdAt,omitzero"`
}

// NewSummary is the payload for generating a summary.
type NewSummary struct {
	OriginalText string `json:"originalText" validate:"notblank,max=5000"`
}
