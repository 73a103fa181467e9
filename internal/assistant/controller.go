// Package assistant implements the conversational intake core: phrase
// matching, required-term extraction, finalization, and the per-turn
// decision logic that ties them to the model gateway.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cfpd-planning/intake-assistant/internal/domain"
)

// Temperatures match the behavior the prompts were tuned against:
// slightly creative clarifications, deterministic finalization.
const (
	turnTemperature     = 0.2
	finalizeTemperature = 0.0
)

// ResetReply is the fixed acknowledgment returned after a reset.
const ResetReply = "Chat history has been reset. You can start a new request."

// EmptyMessageReply is returned for blank input without touching the
// session or the model.
const EmptyMessageReply = "Could you share your request?"

const defaultEmailSubject = "New Planning Request"

// Completer is the model gateway: one ordered message list in, one text
// blob out. No retry logic of its own; errors propagate to the caller.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message, temperature float64) (string, error)
}

// Controller drives one conversation turn at a time. It mutates the
// session it is handed; persistence is the caller's concern.
type Controller struct {
	llm    Completer
	logger *slog.Logger
}

// NewController creates a turn controller backed by the given completer.
func NewController(llm Completer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{llm: llm, logger: logger}
}

// HandleTurn processes one inbound user message and returns the reply.
// The message is assumed non-blank (the HTTP layer short-circuits blank
// input). Confirmation and preview turns do not append to history; a
// normal turn appends the user message and the assistant reply.
func (c *Controller) HandleTurn(ctx context.Context, sess *domain.Session, message string) (string, error) {
	// Confirmation: build the email package and read back the preview.
	if IsConfirmation(message) {
		if err := c.BuildEmailPackage(ctx, sess); err != nil {
			return "", err
		}
		if sess.FinalRequest == "" {
			terms := CollectRequiredTerms(sess.Messages)
			sentence, err := c.BuildFinalSentence(ctx, sess, terms)
			if err != nil {
				return "", err
			}
			sess.FinalRequest = sentence
		}
		return MakePreviewMessage(sess.FinalRequest), nil
	}

	// Explicit preview request: force a fresh server-side finalization.
	if WantsPreview(message) {
		terms := CollectRequiredTerms(sess.Messages)
		sentence, err := c.BuildFinalSentence(ctx, sess, terms)
		if err != nil {
			return "", err
		}
		sess.FinalRequest = sentence
		return MakePreviewMessage(sentence), nil
	}

	// Normal conversational turn.
	c.ensureHistory(sess)
	sess.Append(domain.RoleUser, message)

	reply, err := c.llm.Complete(ctx, sess.Messages, turnTemperature)
	if err != nil {
		return "", fmt.Errorf("model turn: %w", err)
	}
	sess.Append(domain.RoleAssistant, reply)

	// If the model finalized on its own, override its sentence with a
	// validated one. The raw reply stays in history; only the returned
	// text is replaced.
	if strings.Contains(strings.ToLower(reply), strings.ToLower(FinalizationLead)) {
		sentence, err := c.finalizeWithRetry(ctx, sess)
		if err != nil {
			return "", err
		}
		sess.FinalRequest = sentence
		reply = MakePreviewMessage(sentence)
	}

	return reply, nil
}

// finalizeWithRetry builds a final sentence and, when required terms are
// missing, retries exactly once with the same instruction. A shortfall
// after the retry is accepted with a warning; validation is best-effort,
// not a guarantee.
func (c *Controller) finalizeWithRetry(ctx context.Context, sess *domain.Session) (string, error) {
	terms := CollectRequiredTerms(sess.Messages)
	sentence, err := c.BuildFinalSentence(ctx, sess, terms)
	if err != nil {
		return "", err
	}
	if !SentenceHasRequiredTerms(sentence, terms) {
		c.logger.Debug("final sentence missing required terms, retrying once",
			"missing_from", sentence, "terms", sortedTerms(terms))
		sentence, err = c.BuildFinalSentence(ctx, sess, terms)
		if err != nil {
			return "", err
		}
		if !SentenceHasRequiredTerms(sentence, terms) {
			c.logger.Warn("final sentence still missing required terms after retry",
				"terms", sortedTerms(terms))
		}
	}
	return sentence, nil
}

// BuildFinalSentence asks the model for exactly one finalized sentence,
// derived from the full history plus a finalization directive.
func (c *Controller) BuildFinalSentence(ctx context.Context, sess *domain.Session, terms map[string]struct{}) (string, error) {
	c.ensureHistory(sess)

	msgs := make([]domain.Message, len(sess.Messages), len(sess.Messages)+1)
	copy(msgs, sess.Messages)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: finalizeInstruction(terms)})

	out, err := c.llm.Complete(ctx, msgs, finalizeTemperature)
	if err != nil {
		return "", fmt.Errorf("finalize request: %w", err)
	}

	sentence := extractTag(out, "final")
	if sentence == "" {
		sentence = strings.TrimSpace(out)
	}
	return stripQuotes(sentence), nil
}

// BuildEmailPackage makes a single model call for the three tagged
// sections and stores them on the session. Missing tags fall back:
// subject to a fixed default, body to the final sentence, final to the
// whole trimmed output.
func (c *Controller) BuildEmailPackage(ctx context.Context, sess *domain.Session) error {
	c.ensureHistory(sess)

	msgs := make([]domain.Message, len(sess.Messages), len(sess.Messages)+1)
	copy(msgs, sess.Messages)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: packageInstruction})

	out, err := c.llm.Complete(ctx, msgs, finalizeTemperature)
	if err != nil {
		return fmt.Errorf("build email package: %w", err)
	}

	finalRequest := extractTag(out, "final")
	if finalRequest == "" {
		finalRequest = strings.TrimSpace(out)
	}
	subject := extractTag(out, "subject")
	if subject == "" {
		subject = defaultEmailSubject
	}
	body := extractTag(out, "body")
	if body == "" {
		body = finalRequest
	}

	sess.FinalRequest = stripQuotes(finalRequest)
	sess.EmailSubject = stripQuotes(subject)
	sess.EmailBody = stripQuotes(body)
	return nil
}

// EnsurePackage builds the email package only when any piece is missing.
// Used by submit, where the user may have skipped confirmation entirely.
func (c *Controller) EnsurePackage(ctx context.Context, sess *domain.Session) error {
	if sess.HasPackage() {
		return nil
	}
	return c.BuildEmailPackage(ctx, sess)
}

// ensureHistory lazily seeds the session with the system prompt.
func (c *Controller) ensureHistory(sess *domain.Session) {
	if len(sess.Messages) == 0 {
		sess.Append(domain.RoleSystem, systemPrompt)
	}
}
