package util_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kebunops/opsreport/internal/util"
)

func TestValidateRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantErr    bool
	}{
		{"both empty", "", "", false},
		{"start only", "2025-01-01", "", false},
		{"ordered", "2025-01-01", "2025-01-31", false},
		{"same day", "2025-01-01", "2025-01-01", false},
		{"reversed", "2025-02-01", "2025-01-31", true},
		{"bad start", "2025/01/01", "", true},
		{"bad end", "", "31-01-2025", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := util.ValidateRange(tt.start, tt.end)
			assert.Equal(t, tt.wantErr, err != nil, "err=%v", err)
		})
	}
}

func TestDefaultRange(t *testing.T) {
	start, end := util.DefaultRange(time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-03-01", start)
	assert.Equal(t, "2025-03-17", end)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, util.SplitList(""))
	assert.Nil(t, util.SplitList("   "))
	assert.Equal(t, []string{"GH 1", "GH 2"}, util.SplitList(" GH 1 , ,GH 2"))
}

func TestMultiError(t *testing.T) {
	var m util.MultiError
	assert.NoError(t, m.Err())

	sentinel := errors.New("boom")
	m.Add(nil)
	m.Add(errors.New("first"))
	m.Add(sentinel)

	err := m.Err()
	assert.EqualError(t, err, "first; boom")
	assert.ErrorIs(t, err, sentinel)
}
