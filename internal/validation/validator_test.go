package validation_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
	"github.com/recoread/recoread-client/internal/validation"
)

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	book := domain.NewBook{
		Title:         "The Left Hand of Darkness",
		PublishedDate: "1969-03-01",
		PageCount:     304,
		Tags:          []string{"sci-fi", "classic"},
	}

	assert.NoError(t, v.Validate(book))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       any
		wantField string
	}{
		{
			name:      "blank title",
			req:       domain.NewBook{Title: "   "},
			wantField: "title",
		},
		{
			name:      "title too long",
			req:       domain.NewBook{Title: strings.Repeat("x", 501)},
			wantField: "title",
		},
		{
			name:      "bad published date",
			req:       domain.NewBook{Title: "Dune", PublishedDate: "1965"},
			wantField: "publishedDate",
		},
		{
			name:      "too many tags",
			req:       domain.NewBook{Title: "Dune", Tags: []string{"a", "b", "c", "d"}},
			wantField: "tags",
		},
		{
			name:      "empty tag",
			req:       domain.NewBook{Title: "Dune", Tags: []string{"a", ""}},
			wantField: "tags[1]",
		},
		{
			name:      "unknown event type",
			req:       domain.NewReadingEvent{EventType: "CLOSED"},
			wantField: "eventType",
		},
		{
			name:      "percent over 100",
			req:       domain.NewReadingEvent{EventType: domain.ReadingProgress, ProgressPercent: domain.Int(101)},
			wantField: "progressPercent",
		},
		{
			name:      "short password",
			req:       domain.Registration{Username: "reader", Email: "r@example.com", Password: "123"},
			wantField: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			assert.Contains(t, domainErr.Message, tt.wantField)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.wantField)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(domain.NewSummary{})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "originalText")
	assert.NotContains(t, err.Error(), "OriginalText")
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Var("limit", 50, "gte=1,lte=200"))

	err := v.Var("limit", 0, "gte=1,lte=200")
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
	assert.Equal(t, "limit must be greater than or equal to 1", domainerrors.Message(err))
}
