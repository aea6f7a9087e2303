package assistant

import (
	"context"
	"errors"
	"strings"
)

const chatSystemPrompt = `You are the virtual assistant of a Nigerian microfinance bank.
You help customers with questions about solar loan bundles, repayment terms of 9 or 12 months,
the loan application steps, guarantor requirements, required documents (passport photo, valid ID,
utility bill, bank statement), and opening savings or current accounts.
Never ask for or repeat BVN, NIN, card numbers, PINs or passwords.
Do not promise approval; decisions are made by the bank's credit, audit and COO teams.
Keep answers short, friendly and in plain English. Amounts are in Naira.`

// maxHistory bounds how many client-supplied turns are forwarded.
const maxHistory = 20

var ErrNoMessages = errors.New("messages_required")

type Streamer interface {
	Stream(ctx context.Context, messages []Message, onData func(chunk []byte) error) error
}

type Chat struct {
	llm Streamer
}

func NewChat(llm Streamer) *Chat {
	return &Chat{llm: llm}
}

// Stream forwards the conversation behind the fixed system prompt. Client
// supplied system messages are dropped.
func (c *Chat) Stream(ctx context.Context, history []Message, onData func(chunk []byte) error) error {
	turns := make([]Message, 0, len(history))
	for _, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		turns = append(turns, Message{Role: role, Content: m.Content})
	}
	if len(turns) == 0 {
		return ErrNoMessages
	}
	if len(turns) > maxHistory {
		turns = turns[len(turns)-maxHistory:]
	}
	messages := append([]Message{{Role: "system", Content: chatSystemPrompt}}, turns...)
	return c.llm.Stream(ctx, messages, onData)
}
