package assistant

import (
	"fmt"
	"regexp"
	"strings"
)

// FinalizationLead is the fixed first line of a finalized reply. The front
// end detects finalization by matching this exact text, so it must never
// change without a coordinated UI release.
const FinalizationLead = "✅ Got it! Here’s your finalized request:"

// confirmCTA is the fixed call-to-action line that closes every preview.
const confirmCTA = "Please click Confirm & Submit below to finalize your request."

// systemPrompt steers the model through the whole conversation: gather
// who/what, metrics, and time range with at most one question per turn,
// then finalize in the exact format the UI detects.
const systemPrompt = "You are a Senior Data Analyst for the Charlotte Fire Department Planning Division.\n\n" +
	"Your purpose:\n" +
	"- Turn rough/vague requests from staff into a single, clear, professional “finalized request” that the Planning team can act on without guessing.\n" +
	"- Ask at most ONE short clarification at a time, and ONLY when essential details are missing.\n" +
	"- Never re-ask something the user already answered. Never change topics. Never add requirements the user didn’t mention.\n" +
	"- When the user’s request is sufficiently clear, STOP and present the final version for confirmation.\n\n" +
	"Sufficiently clear = we have WHO/WHAT, METRICS/DATA, and TIME RANGE. OPTIONAL if provided: output type (CSV/report/table/chart) and breakdowns (shift/month/department). Do NOT force nonessential details.\n\n" +
	"STRICT rules:\n" +
	"1) One concise follow-up ONLY when truly essential info is missing.\n" +
	"2) Do NOT repeat questions the user answered.\n" +
	"3) Do NOT ask about systems/data sources/approvals unless the user brings them up.\n" +
	"4) Do NOT drift scope or invent categories; reflect the user’s exact entities/timeframes/outputs.\n" +
	"5) If the user is vague (e.g., “the data I asked for”), paraphrase what you have and ask ONE precise confirmation.\n" +
	"6) As soon as the request is clear, finalize.\n\n" +
	"Finalization format (MUST follow EXACTLY so the UI detects it):\n" +
	"- Start with:  " + FinalizationLead + "\n" +
	"- NEXT line: ONE sentence wrapped in **bold** that includes WHO/WHAT, METRICS, TIME RANGE, and any user-specified OUTPUT/BREAKDOWNS.\n" +
	"- Then:  " + confirmCTA + "\n" +
	"Final sentence: single sentence; 25–40 words preferred; no emojis/quotes/fillers; NEVER say “past year” or generic ranges—always use the user’s explicit timeframe.\n\n" +
	"Confirmation & stop: If the user confirms (e.g., “yes”, “correct”, “ready to submit”), your ONLY response is:\n" +
	"  Perfect! " + confirmCTA + "\n\n" +
	"Loop prevention: If the user provided a timeframe, do NOT ask again; if metrics were given (e.g., response times, shifts), do NOT ask what columns; if user corrects timeframe, use the LATEST correction.\n\n" +
	"Your mission: Guide → Gather missing essentials (at most one question) → Finalize in the exact format → Stop after confirmation."

// packageInstruction asks the model for the three tagged sections of an
// email package in one call.
const packageInstruction = "Finalize a Planning Division request. Review the ENTIRE conversation; use ALL specific details and the latest corrections. " +
	"Do NOT generalize or say 'details later'. Produce three outputs:\n" +
	"<final> ONE complete, single-sentence request (no extra text). </final>\n" +
	"<subject> concise email subject (<=70 chars). </subject>\n" +
	"<body> 3–6 short lines summarizing who/what/when/metrics/output, using the explicit timeframe and entities. </body>\n" +
	"No commentary outside those tags."

// finalizeInstruction builds the single-sentence finalization directive,
// demanding verbatim inclusion of the required terms when there are any.
func finalizeInstruction(terms map[string]struct{}) string {
	instruction := "From the entire conversation, produce ONE polished final request sentence that includes WHO/WHAT, METRICS/DATA, TIME RANGE, " +
		"and any user-specified OUTPUT/BREAKDOWNS. Use the latest corrections. " +
		"Never say 'past year'; always use the explicit timeframe. " +
		"Output ONLY that sentence between <final> and </final>. No extra words."
	if len(terms) > 0 {
		needed := strings.Join(sortedTerms(terms), "; ")
		instruction += fmt.Sprintf(" The sentence MUST include these exact terms if present in the chat: %s.", needed)
	}
	return instruction
}

var tagPatterns = map[string]*regexp.Regexp{
	"final":   regexp.MustCompile(`(?is)<final>(.*?)</final>`),
	"subject": regexp.MustCompile(`(?is)<subject>(.*?)</subject>`),
	"body":    regexp.MustCompile(`(?is)<body>(.*?)</body>`),
}

// extractTag returns the first occurrence of <tag>…</tag> in text,
// case-insensitive and spanning newlines, with surrounding whitespace and
// quote characters stripped. Returns "" when the tag is absent.
func extractTag(text, tag string) string {
	pattern, ok := tagPatterns[tag]
	if !ok {
		return ""
	}
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return stripQuotes(m[1])
}

// stripQuotes trims whitespace and surrounding quote characters.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, `'`)
	return s
}
