package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByType(t *testing.T) {
	cause := errors.New("xref table not found")
	err := fmt.Errorf("Extract: %w", NewDocumentUnreadable("opening statement.pdf", cause))

	assert.True(t, errors.Is(err, ErrDocumentUnreadable))
	assert.False(t, errors.Is(err, ErrMalformedResponse))
	assert.True(t, errors.Is(err, cause), "cause should stay reachable through Unwrap")
	assert.Equal(t, ErrorTypeDocumentUnreadable, TypeOf(err))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  NewCredentialMissing("GOOGLE_GEMINI_API_KEY is not set"),
			want: "CREDENTIAL_MISSING: GOOGLE_GEMINI_API_KEY is not set",
		},
		{
			name: "with cause",
			err:  NewServiceUnavailable("generate content", errors.New("503")),
			want: "SERVICE_UNAVAILABLE: generate content: 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestTypeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection("credit")
	assert.True(t, ok)
	assert.Equal(t, DirectionCredit, d)

	d, ok = ParseDirection("CR")
	assert.False(t, ok)
	assert.Equal(t, DirectionDebit, d)
}

func TestTextRow(t *testing.T) {
	row := TextRow("01-04-2024", "", "500.00")
	assert.Equal(t, Row{Text("01-04-2024"), Absent(), Text("500.00")}, row)
	assert.Equal(t, "", row[1].String())
}

func TestTruncateMessage(t *testing.T) {
	assert.Equal(t, "short", TruncateMessage("short", 10))
	assert.Equal(t, "₹₹₹", TruncateMessage("₹₹₹₹₹", 3))
	assert.Len(t, []rune(TruncateMessage(strings.Repeat("x", 1500), MaxErrorMessageLength)), 1000)
	assert.Equal(t, "unbounded", TruncateMessage("unbounded", 0))
}
