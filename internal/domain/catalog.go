package domain

import (
	"encoding/json/v2"
	"strings"
)

// CatalogSearchResponse is the backend's passthrough of an external catalog search.
type CatalogSearchResponse struct {
	TotalItems int             `json:"totalItems"`
	Items      []CatalogVolume `json:"items"`
}

// CatalogVolume is a single catalog search hit.
type CatalogVolume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

// VolumeInfo holds the bibliographic fields of a catalog volume.
type VolumeInfo struct {
	Title               string               `json:"title,omitempty"`
	Authors             StringList           `json:"authors,omitempty"`
	Publisher           string               `json:"publisher,omitempty"`
	PublishedDate       string               `json:"publishedDate,omitempty"`
	Description         string               `json:"description,omitempty"`
	IndustryIdentifiers []IndustryIdentifier `json:"industryIdentifiers,omitempty"`
	PageCount           int                  `json:"pageCount,omitzero"`
	Categories          []string             `json:"categories,omitempty"`
	ImageLinks          *ImageLinks          `json:"imageLinks,omitempty"`
}

// IndustryIdentifier is an ISBN or other catalog identifier.
type IndustryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// ImageLinks are cover image references of a catalog volume.
type ImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail,omitempty"`
	Thumbnail      string `json:"thumbnail,omitempty"`
}

// CoverURL returns the best cover reference, upgraded to https.
func (v VolumeInfo) CoverURL() string {
	if v.ImageLinks == nil {
		return ""
	}
	for _, u := range []string{v.ImageLinks.Thumbnail, v.ImageLinks.SmallThumbnail} {
		if u != "" {
			return strings.Replace(u, "http://", "https://", 1)
		}
	}
	return ""
}

// StringList decodes from either a JSON array of strings or a single string.
type StringList []string

// UnmarshalJSON accepts "a" as well as ["a", "b"].
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = StringList{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// Join renders the list for display.
func (l StringList) Join() string {
	return strings.Join(l, ", ")
}
