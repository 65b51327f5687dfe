// Package recommend normalizes recommendation payloads and scores how well
// each suggestion matches its source book.
package recommend

import (
	"bytes"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/recoread/recoread-client/internal/domain"
)

// Score bounds for each rule.
const (
	minScore       = 60
	maxTagScore    = 98
	authorScore    = 88
	maxTitleScore  = 92
	titleSpread    = 32
	minTitleLength = 4
)

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// Score estimates how well rec matches source. The first applicable rule wins:
// shared tags, then an identical author, then title token overlap.
// It returns false when no rule applies.
func Score(rec domain.Recommendation, source domain.Book) (int, bool) {
	if distinct := distinctCount(source.Tags); distinct > 0 && len(rec.SharedTags) > 0 {
		pct := round(float64(len(rec.SharedTags)) / float64(distinct) * 100)
		return clamp(pct, minScore, maxTagScore), true
	}

	a := strings.ToLower(strings.TrimSpace(rec.Book.Author))
	b := strings.ToLower(strings.TrimSpace(source.Author))
	if a != "" && b != "" && a == b {
		return authorScore, true
	}

	j := jaccard(titleTokens(rec.Book.Title), titleTokens(source.Title))
	if pct := round(minScore + j*titleSpread); pct > minScore {
		return clamp(pct, minScore, maxTitleScore), true
	}
	return 0, false
}

// Scored pairs a recommendation with its match score.
type Scored struct {
	domain.Recommendation `json:",inline"`

	Score    int  `json:"score,omitzero"`
	HasScore bool `json:"-"`
}

// Ranking is a recommendation set with per-item scores.
type Ranking struct {
	Source      domain.Book `json:"source"`
	Items       []Scored    `json:"items"`
	Average     int         `json:"averageScore,omitzero"`
	ScoredCount int         `json:"scoredCount"`
}

// Rank scores every item of set against its source. Average is the rounded
// mean of the items that have a score.
func Rank(set *domain.RecommendationSet) Ranking {
	r := Ranking{Items: []Scored{}}
	if set == nil {
		return r
	}
	r.Source = set.Source

	sum := 0
	for _, rec := range set.Items {
		score, ok := Score(rec, set.Source)
		r.Items = append(r.Items, Scored{Recommendation: rec, Score: score, HasScore: ok})
		if ok {
			sum += score
			r.ScoredCount++
		}
	}
	if r.ScoredCount > 0 {
		r.Average = round(float64(sum) / float64(r.ScoredCount))
	}
	return r
}

// Normalize accepts any of the recommendation payload shapes the backend
// has produced:
//
//	{"recommendations": [...], "sourceBook": {...}}
//	{"items": [...], "source": {...}}   (or "context" for the source)
//	[...]
//
// Items are either {"book": {...}, "reason": ..., "sharedTags": [...]} or a
// flattened book. Unknown shapes normalize to an empty set; only malformed
// JSON is an error.
func Normalize(raw []byte) (*domain.RecommendationSet, error) {
	set := &domain.RecommendationSet{Items: []domain.Recommendation{}}

	v := jsontext.Value(bytes.TrimSpace(raw))
	if len(v) == 0 {
		return set, nil
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("recommendations: malformed JSON")
	}

	var items []jsontext.Value
	switch v.Kind() {
	case '[':
		if err := json.Unmarshal(v, &items); err != nil {
			return nil, fmt.Errorf("recommendations: %w", err)
		}
	case '{':
		var obj map[string]jsontext.Value
		if err := json.Unmarshal(v, &obj); err != nil {
			return nil, fmt.Errorf("recommendations: %w", err)
		}
		for _, key := range []string{"sourceBook", "source", "context"} {
			if src, ok := obj[key]; ok && src.Kind() == '{' {
				var book domain.Book
				if json.Unmarshal(src, &book) == nil {
					set.Source = book
					break
				}
			}
		}
		for _, key := range []string{"recommendations", "items"} {
			if list, ok := obj[key]; ok && list.Kind() == '[' {
				_ = json.Unmarshal(list, &items)
				break
			}
		}
	default:
		return set, nil
	}

	for _, item := range items {
		if rec, ok := normalizeItem(item); ok {
			set.Items = append(set.Items, rec)
		}
	}
	if set.Source.Tags == nil {
		set.Source.Tags = []string{}
	}
	return set, nil
}

// flatItem is a recommendation whose book fields sit at the top level.
type flatItem struct {
	domain.Book `json:",inline"`

	Reason     string   `json:"reason"`
	SharedTags []string `json:"sharedTags"`
}

func normalizeItem(item jsontext.Value) (domain.Recommendation, bool) {
	if item.Kind() != '{' {
		return domain.Recommendation{}, false
	}

	var shape struct {
		Book jsontext.Value `json:"book"`
	}
	if json.Unmarshal(item, &shape) != nil {
		return domain.Recommendation{}, false
	}

	var rec domain.Recommendation
	if shape.Book.Kind() == '{' {
		if json.Unmarshal(item, &rec) != nil {
			return domain.Recommendation{}, false
		}
	} else {
		var flat flatItem
		if json.Unmarshal(item, &flat) != nil {
			return domain.Recommendation{}, false
		}
		rec = domain.Recommendation{Book: flat.Book, Reason: flat.Reason, SharedTags: flat.SharedTags}
	}

	if rec.Book.Tags == nil {
		rec.Book.Tags = []string{}
	}
	return rec, true
}

func titleTokens(title string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range tokenSplit.Split(strings.ToLower(title), -1) {
		if len(tok) >= minTitleLength {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func distinctCount(tags []string) int {
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		seen[t] = struct{}{}
	}
	return len(seen)
}

func round(f float64) int {
	return int(math.Floor(f + 0.5))
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
