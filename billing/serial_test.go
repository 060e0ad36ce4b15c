package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextSerial(t *testing.T) {
	day := time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		existing    []string
		want        string
		wantSkipped []string
	}{
		{name: "first of the day", want: "20250314001"},
		{name: "after gaps", existing: []string{"20250314001", "20250314007"}, want: "20250314008"},
		{name: "unordered input", existing: []string{"20250314010", "20250314002"}, want: "20250314011"},
		{name: "other days ignored", existing: []string{"20250313099"}, want: "20250314001"},
		{name: "past 999", existing: []string{"20250314999"}, want: "202503141000"},
		{name: "four digit counter", existing: []string{"202503141000", "20250314999"}, want: "202503141001"},
		{
			name:        "non-numeric suffix skipped",
			existing:    []string{"20250314003", "20250314-A", "20250314"},
			want:        "20250314004",
			wantSkipped: []string{"20250314-A", "20250314"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, skipped := NextSerial(day, tt.existing)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSkipped, skipped)
		})
	}
}

func TestFormatSerial(t *testing.T) {
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "20250102", SerialPrefix(day))
	assert.Equal(t, "20250102001", FormatSerial(day, 1))
	assert.Equal(t, "20250102042", FormatSerial(day, 42))
	assert.Equal(t, "202501021234", FormatSerial(day, 1234))
}
