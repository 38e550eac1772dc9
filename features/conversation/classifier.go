package conversation

import "strings"

// failureSignatures are phrases that mark an answer as a non-answer. The
// comparison is case-insensitive against the final answer text.
var failureSignatures = []string{
	"information not available",
	"system is initializing",
	"## system error",
	"## error",
	"encountered an error",
	"something went wrong",
}

// Classify reports whether an answer is a substantive success. Failure is
// detected by phrase signature, not by model self-assessment, so fixed
// fallback responses classify consistently.
func Classify(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, sig := range failureSignatures {
		if strings.Contains(lowered, sig) {
			return false
		}
	}
	return strings.TrimSpace(answer) != ""
}
