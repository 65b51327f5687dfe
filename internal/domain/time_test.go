package domain

import (
	"encoding/json/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTime_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "RFC3339",
			input: `"2024-01-15T10:30:00Z"`,
			want:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "RFC3339 with fraction and offset",
			input: `"2024-01-15T12:30:00.5+02:00"`,
			want:  time.Date(2024, 1, 15, 10, 30, 0, 500000000, time.UTC),
		},
		{
			name:  "zone-less local date-time",
			input: `"2024-01-15T10:30:00"`,
			want:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "zone-less with micros",
			input: `"2024-01-15T10:30:00.123456"`,
			want:  time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC),
		},
		{
			name:  "epoch millis number",
			input: `1705314600000`,
			want:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "epoch millis string",
			input: `"1705314600000"`,
			want:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Time
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.True(t, tt.want.Equal(got.Time), "got %s", got.Time)
		})
	}
}

func TestTime_UnmarshalJSON_Invalid(t *testing.T) {
	var got Time
	assert.Error(t, json.Unmarshal([]byte(`"last tuesday"`), &got))
}

func TestTime_ZeroIsOmitted(t *testing.T) {
	data, err := json.Marshal(ReadingState{BookID: "b1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bookId":"b1"}`, string(data))
}

func TestStringList_UnmarshalJSON(t *testing.T) {
	var info VolumeInfo
	require.NoError(t, json.Unmarshal([]byte(`{"authors":"Ursula K. Le Guin"}`), &info))
	assert.Equal(t, "Ursula K. Le Guin", info.Authors.Join())

	require.NoError(t, json.Unmarshal([]byte(`{"authors":["Terry Pratchett","Neil Gaiman"]}`), &info))
	assert.Equal(t, "Terry Pratchett, Neil Gaiman", info.Authors.Join())
}

func TestVolumeInfo_CoverURL(t *testing.T) {
	info := VolumeInfo{ImageLinks: &ImageLinks{SmallThumbnail: "http://books.example/s.jpg"}}
	assert.Equal(t, "https://books.example/s.jpg", info.CoverURL())

	info.ImageLinks.Thumbnail = "http://books.example/t.jpg"
	assert.Equal(t, "https://books.example/t.jpg", info.CoverURL())

	assert.Empty(t, VolumeInfo{}.CoverURL())
}
