package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		answer  string
		success bool
	}{
		{"substantive answer", "## Hand Hygiene\n\nWash hands before patient contact.", true},
		{"unavailable response", UnavailableResponse, false},
		{"system error response", SystemErrorResponse, false},
		{"initializing response", InitializingResponse, false},
		{"mixed-case signature", "Sorry, the INFORMATION NOT AVAILABLE right now", false},
		{"generic error heading", "## Error\n\nBad things.", false},
		{"something went wrong", "Something went wrong while answering.", false},
		{"empty", "", false},
		{"whitespace only", "   \n ", false},
		{"error heading flagged even as topic", "## Error Handling Policy\n\nReport incidents within 24 hours.", false},
		{"prose about mistakes is fine", "## Reporting\n\nClinical mistakes must be reported.", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.success, Classify(tc.answer))
		})
	}
}
