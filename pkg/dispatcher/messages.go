package dispatcher

import (
	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/llm"
	"github.com/jllopis/campusdesk/pkg/tools"
)

// Message is one entry of a conversation history.
type Message interface {
	toLLM() llm.Message
}

// ContextMessage carries the role prompt and identity note.
type ContextMessage struct{ Text string }

// UserMessage is the end user's request.
type UserMessage struct{ Text string }

// AssistantMessage is an oracle turn, with or without tool calls.
type AssistantMessage struct {
	Text      string
	ToolCalls []llm.ToolCall
}

// ToolResultMessage is the outcome of one tool call.
type ToolResultMessage struct {
	CallID   string
	ToolName string
	Result   tools.Result
}

func (m ContextMessage) toLLM() llm.Message {
	return llm.Message{Role: llm.RoleSystem, Content: m.Text}
}

func (m UserMessage) toLLM() llm.Message {
	return llm.Message{Role: llm.RoleUser, Content: m.Text}
}

func (m AssistantMessage) toLLM() llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: m.Text, ToolCalls: m.ToolCalls}
}

func (m ToolResultMessage) toLLM() llm.Message {
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    m.Result.Render(),
		ToolCallID: m.CallID,
		Name:       m.ToolName,
	}
}

// Conversation is the history of a single turn. It is discarded when the
// turn ends.
type Conversation struct {
	session *core.SessionContext
	history []Message
}

func newConversation(sc *core.SessionContext, text string) *Conversation {
	return &Conversation{session: sc, history: []Message{UserMessage{Text: text}}}
}

// Append adds messages in order.
func (c *Conversation) Append(msgs ...Message) {
	c.history = append(c.history, msgs...)
}

// prependContext inserts the context message when the history holds only
// the opening user message.
func (c *Conversation) prependContext(prompt string) bool {
	if len(c.history) != 1 {
		return false
	}
	if _, ok := c.history[0].(UserMessage); !ok {
		return false
	}
	text := prompt + "\n\n" + contextNote(c.session)
	c.history = append([]Message{ContextMessage{Text: text}}, c.history...)
	return true
}

// History returns a copy of the messages.
func (c *Conversation) History() []Message {
	return append([]Message(nil), c.history...)
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.history) }

// LLMMessages renders the history for the oracle.
func (c *Conversation) LLMMessages() []llm.Message {
	out := make([]llm.Message, len(c.history))
	for i, m := range c.history {
		out[i] = m.toLLM()
	}
	return out
}
