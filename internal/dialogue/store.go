package dialogue

import (
	"github.com/tekkistudio/tekki-chat/internal/clock"
	"github.com/tekkistudio/tekki-chat/internal/domain"
)

// MessageStore is the append-only message list of one session. Ids are
// millisecond timestamps made strictly increasing by the IDSource.
type MessageStore struct {
	ids      *clock.IDSource
	clock    clock.Clock
	messages *[]domain.Message
}

// NewMessageStore appends to *messages, which may already hold restored
// messages.
func NewMessageStore(messages *[]domain.Message, ids *clock.IDSource, c clock.Clock) *MessageStore {
	if c == nil {
		c = clock.New()
	}
	if ids == nil {
		ids = clock.NewIDSource(c)
	}
	return &MessageStore{ids: ids, clock: c, messages: messages}
}

// Append stores msg with a fresh id and timestamp and returns the stored copy.
func (s *MessageStore) Append(msg domain.Message) domain.Message {
	var floor int64
	if n := len(*s.messages); n > 0 {
		floor = (*s.messages)[n-1].ID
	}
	msg.ID = s.ids.Next(floor)
	msg.CreatedAt = s.clock.Now()
	if msg.Suggestions != nil {
		msg.Suggestions = append([]domain.Suggestion(nil), msg.Suggestions...)
	}
	*s.messages = append(*s.messages, msg)
	return msg
}

// All returns a copy of every message in append order.
func (s *MessageStore) All() []domain.Message {
	return append([]domain.Message(nil), *s.messages...)
}

// After returns the messages with an id greater than id.
func (s *MessageStore) After(id int64) []domain.Message {
	return MessagesAfter(*s.messages, id)
}

// Len returns the number of messages.
func (s *MessageStore) Len() int {
	return len(*s.messages)
}

// Recent returns up to n of the newest messages, oldest first.
func (s *MessageStore) Recent(n int) []domain.Message {
	all := *s.messages
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]domain.Message(nil), all...)
}

// MessagesAfter returns the messages of an id-ordered list with an id
// greater than id.
func MessagesAfter(messages []domain.Message, id int64) []domain.Message {
	for i, m := range messages {
		if m.ID > id {
			return append([]domain.Message(nil), messages[i:]...)
		}
	}
	return []domain.Message{}
}
