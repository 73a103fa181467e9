package assistant

import (
	"fmt"
	"strings"
)

// MakePreviewMessage formats the finalized sentence as the preview reply
// the front end parses: fixed lead line, bold-wrapped sentence, fixed
// call-to-action. Wrapping is idempotent; an already-bold sentence is
// not wrapped again.
func MakePreviewMessage(finalSentence string) string {
	sentence := strings.TrimSpace(finalSentence)
	if !(strings.HasPrefix(sentence, "**") && strings.HasSuffix(sentence, "**")) {
		sentence = "**" + sentence + "**"
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", FinalizationLead, sentence, confirmCTA)
}
