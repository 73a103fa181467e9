// Package domain contains core domain types for the intake assistant.
package domain

import (
	"time"
)

// Message roles. The order of messages in a session is semantically
// significant: later corrections override earlier statements.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session holds the conversation state for one (user, tab) pair. It is
// created on first interaction and deleted on reset or successful
// submission; nothing outlives that lifecycle.
type Session struct {
	UserID       string
	SessionID    string
	Messages     []Message
	FinalRequest string
	EmailSubject string
	EmailBody    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession creates an empty session for the given user and tab.
func NewSession(userID, sessionID string) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message to the conversation history.
func (s *Session) Append(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// HasPackage reports whether all three email package fields are present.
func (s *Session) HasPackage() bool {
	return s.FinalRequest != "" && s.EmailSubject != "" && s.EmailBody != ""
}
