// Package memory holds short lived conversation state: the recent chat
// history of each channel and small per-user notes.
package memory

import (
	"sync"
	"time"
)

const (
	DefaultHistoryLimit = 12
	MinHistoryLimit     = 4
)

// ChatMessage is one remembered turn.
type ChatMessage struct {
	Role    string
	Content string
	At      time.Time
}

// UserState is what the bot remembers about a user between messages.
type UserState struct {
	// ActiveItem is the last item the user asked about.
	ActiveItem string
	// LastImageURL is the last image the bot produced for the user, used as
	// the default source for follow up edits.
	LastImageURL string
	// LastReply is the last message the user asked the bot about, kept for
	// follow ups like "resume eso".
	LastReply *ReplyContext
}

// ReplyContext is a remembered replied-to message.
type ReplyContext struct {
	Author   string
	Content  string
	HasImage bool
	At       time.Time
}

type key struct{ guild, id string }

// Store is safe for concurrent use.
type Store struct {
	limit int
	now   func() time.Time

	mu       sync.Mutex
	channels map[key][]ChatMessage
	users    map[key]UserState
}

// New returns a store keeping at most historyLimit messages per channel.
// Limits below MinHistoryLimit are raised to it; zero means the default.
func New(historyLimit int) *Store {
	if historyLimit == 0 {
		historyLimit = DefaultHistoryLimit
	}
	if historyLimit < MinHistoryLimit {
		historyLimit = MinHistoryLimit
	}
	return &Store{
		limit:    historyLimit,
		now:      time.Now,
		channels: make(map[key][]ChatMessage),
		users:    make(map[key]UserState),
	}
}

func (s *Store) Limit() int { return s.limit }

// Append adds a message to the channel history, dropping the oldest ones
// beyond the limit.
func (s *Store) Append(guildID, channelID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{guildID, channelID}
	h := append(s.channels[k], ChatMessage{Role: role, Content: content, At: s.now()})
	if over := len(h) - s.limit; over > 0 {
		h = append([]ChatMessage(nil), h[over:]...)
	}
	s.channels[k] = h
}

// History returns a copy of the channel history, oldest first.
func (s *Store) History(guildID, channelID string) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.channels[key{guildID, channelID}]...)
}

func (s *Store) ResetChannel(guildID, channelID string) {
	s.mu.Lock()
	delete(s.channels, key{guildID, channelID})
	s.mu.Unlock()
}

func (s *Store) ResetUser(guildID, userID string) {
	s.mu.Lock()
	delete(s.users, key{guildID, userID})
	s.mu.Unlock()
}

func (s *Store) User(guildID, userID string) UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[key{guildID, userID}]
}

// UpdateUser applies fn to the user's state under the store lock.
func (s *Store) UpdateUser(guildID, userID string, fn func(*UserState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{guildID, userID}
	st := s.users[k]
	fn(&st)
	s.users[k] = st
}
