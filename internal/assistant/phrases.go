package assistant

import "strings"

// Phrase sets are matched by substring containment on the lowercased,
// trimmed input, not whole words. That means "ok" anywhere in a message
// counts as confirmation ("I do not confirm, please wait" also matches on
// "confirm"). This mirrors the behavior the front end was built against;
// swap in stricter matching only with product sign-off.
var confirmationPhrases = []string{
	"yes", "y", "yeah", "yep", "correct", "that's right", "ready to submit",
	"looks good", "that works", "submit", "confirm", "ok", "okay", "alright",
	"all good", "do it", "go ahead", "please submit", "proceed",
}

var previewPhrases = []string{
	"see the request", "show the request", "show me the request",
	"preview", "can i see", "finalized request", "final request",
}

// IsConfirmation reports whether the message reads as a confirmation.
func IsConfirmation(text string) bool {
	return containsAny(text, confirmationPhrases)
}

// WantsPreview reports whether the message asks to see the finalized request.
func WantsPreview(text string) bool {
	return containsAny(text, previewPhrases)
}

func containsAny(text string, phrases []string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, p := range phrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
