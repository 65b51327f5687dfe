package catalog

import (
	"strings"

	"github.com/recoread/recoread-client/internal/domain"
)

const untitled = "Untitled"

// Item is a catalog hit shaped for display.
type Item struct {
	ID      string               `json:"id"`
	Title   string               `json:"title"`
	Authors string               `json:"authors"`
	Cover   string               `json:"cover,omitempty"`
	Raw     domain.CatalogVolume `json:"raw"`
}

// NewItem flattens a catalog volume for display.
func NewItem(v domain.CatalogVolume) Item {
	title := strings.TrimSpace(v.VolumeInfo.Title)
	if title == "" {
		title = untitled
	}
	return Item{
		ID:      v.ID,
		Title:   title,
		Authors: v.VolumeInfo.Authors.Join(),
		Cover:   v.VolumeInfo.CoverURL(),
		Raw:     v,
	}
}

// Snippet returns the first n runes of the volume's description as plain
// text, with an ellipsis when it was cut.
func (it Item) Snippet(n int) string {
	text := PlainText(it.Raw.VolumeInfo.Description)
	r := []rune(text)
	if n <= 0 || len(r) <= n {
		return text
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
