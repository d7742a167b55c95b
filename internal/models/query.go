package models

import (
	"fmt"
	"strings"
)

// UserProfile carries the caller's access attributes, already authenticated upstream.
type UserProfile struct {
	Department string `json:"department"`
	Role       string `json:"role"`
}

// IsAdmin reports whether the role is the highest privilege tier, which
// bypasses department filtering.
func (u UserProfile) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(u.Role), "admin")
}

// HistoryTurn is one prior turn of the conversation.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is one question against the corpus.
type QueryRequest struct {
	Query   string        `json:"query"`
	User    UserProfile   `json:"user"`
	History []HistoryTurn `json:"history,omitempty"`
}

// Validate checks the request for required fields.
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query must not be empty")
	}
	return nil
}
