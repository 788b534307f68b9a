package period_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/period"
)

func TestExtractWeek(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"week 7", 7, true},
		{"Week7", 7, true},
		{"WEEK   12", 12, true},
		{"W07", 7, true},
		{"w3", 3, true},
		{"2025/01/06", 2, true},           // Monday of ISO week 2
		{"2025/01/05", 1, true},           // Sunday still in ISO week 1
		{"2024/12/30", 1, true},           // belongs to ISO week 1 of 2025
		{"2021/01/03", 53, true},          // belongs to ISO week 53 of 2020
		{"Periode 2025/03/10 s/d", 11, true},
		{"week 4 (2025/03/10)", 4, true},  // explicit week beats embedded date
		{"2025/02/30", 0, false},          // impossible date
		{"2025-01-06", 0, false},          // dashes are not a period key format
		{"", 0, false},
		{"unknown", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := period.ExtractWeek(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractWeekIdempotentOnCanonicalForms(t *testing.T) {
	a, _ := period.ExtractWeek("week 7")
	b, _ := period.ExtractWeek("W07")
	assert.Equal(t, 7, a)
	assert.Equal(t, a, b)
}

func TestOverallLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2025/01/06 to 2025/01/12", "2025-01-12"},
		{"2025/01/06 TO 2025/01/12", "2025-01-12"},
		{"2025/01/06 - 2025/01/12", "2025-01-12"},
		{"Minggu 2025/01/06", "2025-01-06"},
		{"2025/1/6", "2025-01-06"},
		{"week 3", "week 3"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, period.OverallLabel(tt.in))
		})
	}
}

func TestClassify(t *testing.T) {
	k, ok := period.Classify("W05", false)
	assert.True(t, ok)
	assert.Equal(t, model.WeekKey(5), k)
	assert.Equal(t, "week 5", k.Label())

	_, ok = period.Classify("garbage", false)
	assert.False(t, ok)

	k, ok = period.Classify("2025/01/06 to 2025/01/12", true)
	assert.True(t, ok)
	assert.Equal(t, model.DateKey("2025-01-12"), k)

	// Overall rows are never dropped; the raw key is the label.
	k, ok = period.Classify("garbage", true)
	assert.True(t, ok)
	assert.Equal(t, "garbage", k.Label())
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"2025-01-01", "2025-01-01", true},
		{"2025-01-01T17:00:00Z", "2025-01-01", true},
		{"2025-01-01T17:00:00.123+07:00", "2025-01-01", true},
		{"2025-01-01 08:30:00", "2025-01-01", true},
		{"2025/01/02", "2025-01-02", true},
		{"  ", "", false},
		{"yesterday", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := period.NormalizeDate(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsOverall(t *testing.T) {
	assert.True(t, period.IsOverall("Overall", ""))
	assert.True(t, period.IsOverall("", "ALL"))
	assert.True(t, period.IsOverall(" semua ", "x"))
	assert.False(t, period.IsOverall("GH 1", "GH1"))
}
