package entities

import "fmt"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one turn of the conversation log. Order in the log is
// conversation order.
type Message struct {
	Role    Role   `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ValidateMessages reports the first message whose role is outside the closed set.
func ValidateMessages(messages []Message) error {
	for i, m := range messages {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
	}
	return nil
}
