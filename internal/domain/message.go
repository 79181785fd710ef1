package domain

import "errors"

var (
	ErrChatMissing      = errors.New("message has no chat")
	ErrChatUsersMissing = errors.New("chat users not defined")
	ErrSenderMissing    = errors.New("message has no sender")
)

type Message struct {
	ID      ID     `json:"_id,omitempty"`
	Sender  *User  `json:"sender"`
	Content string `json:"content,omitempty"`
	Chat    *Chat  `json:"chat"`
}

// Recipients returns the distinct user ids of the chat members other than the
// sender, in the order the chat lists them. Members without an id are skipped.
func (m *Message) Recipients() ([]string, error) {
	if m.Chat == nil {
		return nil, ErrChatMissing
	}
	if len(m.Chat.Users) == 0 {
		return nil, ErrChatUsersMissing
	}
	if m.Sender == nil || m.Sender.ID == "" {
		return nil, ErrSenderMissing
	}

	seen := make(map[string]struct{}, len(m.Chat.Users))
	recipients := make([]string, 0, len(m.Chat.Users)-1)
	for _, u := range m.Chat.Users {
		if u.ID == "" || u.ID == m.Sender.ID {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		recipients = append(recipients, u.ID)
	}

	return recipients, nil
}
