// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sort"
	"sync"

	"github.com/polychat/polychat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// StoreError represents a conversation store error.
// Use errors.Is with the sentinel values below.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// ErrConversationNotFound is returned when a conversation ID does not exist.
var ErrConversationNotFound = &StoreError{Message: "conversation not found"}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable copy of the store state. Conversations are
// deep copies; callers may read them freely without holding any lock.
type Snapshot struct {
	Conversations []*model.Conversation
	SelectedID    string
}

// Selected returns the selected conversation in this snapshot, or nil.
func (s Snapshot) Selected() *model.Conversation {
	for _, c := range s.Conversations {
		if c.ID == s.SelectedID {
			return c
		}
	}
	return nil
}

// =============================================================================
// STORE
// =============================================================================

// Listener is notified after every committed mutation. It runs on the
// mutating goroutine, so implementations must be fast and must not call
// back into the store.
type Listener func(Snapshot)

// Store owns all conversation state. The zero value is not usable;
// construct with New.
type Store struct {
	mu            sync.Mutex
	conversations []*model.Conversation // most recently updated first after sortLocked
	selectedID    string
	listeners     []Listener
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// OnChange registers a listener invoked after each mutation.
func (s *Store) OnChange(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	out := make([]*model.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return Snapshot{Conversations: out, SelectedID: s.selectedID}
}

// notifyLocked snapshots and notifies listeners. Must be called with the
// lock held; the snapshot is taken before release so listeners see the
// state the mutation produced.
func (s *Store) notifyLocked() {
	if len(s.listeners) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, fn := range s.listeners {
		fn(snap)
	}
}

func (s *Store) findLocked(id string) *model.Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].UpdatedAt.After(s.conversations[j].UpdatedAt)
	})
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// CreateConversation creates a new conversation for the given provider
// and model, selects it, and returns its ID.
func (s *Store) CreateConversation(provider, modelName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := model.NewConversation(provider, modelName)
	s.conversations = append(s.conversations, conv)
	s.selectedID = conv.ID
	s.sortLocked()
	s.notifyLocked()
	return conv.ID
}

// SelectConversation makes the given conversation the selected one.
func (s *Store) SelectConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return ErrConversationNotFound
	}
	s.selectedID = id
	s.notifyLocked()
	return nil
}

// SelectedID returns the ID of the selected conversation ("" if none).
func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// DeleteConversation removes a conversation. If it was selected, the
// most recently updated remaining conversation becomes selected.
func (s *Store) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.conversations {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrConversationNotFound
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if s.selectedID == id {
		s.selectedID = ""
		s.sortLocked()
		if len(s.conversations) > 0 {
			s.selectedID = s.conversations[0].ID
		}
	}
	s.notifyLocked()
	return nil
}

// Conversation returns a deep copy of one conversation.
func (s *Store) Conversation(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(id)
	if c == nil {
		return nil, ErrConversationNotFound
	}
	return c.Clone(), nil
}

// RenameConversation sets a conversation title explicitly.
func (s *Store) RenameConversation(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(id)
	if c == nil {
		return ErrConversationNotFound
	}
	c.SetTitle(title)
	s.notifyLocked()
	return nil
}

// SetConversationModel switches the provider/model pair used for
// subsequent turns in a conversation.
func (s *Store) SetConversationModel(id, provider, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(id)
	if c == nil {
		return ErrConversationNotFound
	}
	c.ModelProvider = provider
	c.ModelName = modelName
	s.notifyLocked()
	return nil
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AppendMessages atomically appends messages to a conversation. The
// user message and assistant placeholder of a turn go in together so no
// snapshot shows one without the other.
func (s *Store) AppendMessages(convID string, msgs ...*model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(convID)
	if c == nil {
		return ErrConversationNotFound
	}
	for _, m := range msgs {
		c.AddMessage(m)
	}
	s.sortLocked()
	s.notifyLocked()
	return nil
}

// MutateMessageByID applies fn to the message with the given ID. If the
// conversation or message no longer exists (deleted mid-stream) the
// call is a silent no-op: late deltas for a dead target are dropped.
func (s *Store) MutateMessageByID(convID, msgID string, fn func(*model.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(convID)
	if c == nil {
		return
	}
	m := c.MessageByID(msgID)
	if m == nil {
		return
	}
	fn(m)
	s.notifyLocked()
}

// TruncateFrom removes the message with the given ID and everything
// after it, for regeneration flows.
func (s *Store) TruncateFrom(convID, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(convID)
	if c == nil {
		return ErrConversationNotFound
	}
	if !c.TruncateFrom(msgID) {
		return ErrConversationNotFound
	}
	s.notifyLocked()
	return nil
}

// SetConversationLoading flips the loading flag shown while a turn is
// in flight. Unknown IDs are ignored so a finishing turn racing a
// deletion cannot fail.
func (s *Store) SetConversationLoading(convID string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(convID)
	if c == nil {
		return
	}
	c.IsLoading = loading
	s.notifyLocked()
}

// IsLoading reports whether a conversation has a turn in flight.
func (s *Store) IsLoading(convID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(convID)
	return c != nil && c.IsLoading
}

// ImportConversation inserts a conversation, replacing any existing one
// with the same ID. Used by archive restore.
func (s *Store) ImportConversation(conv *model.Conversation) {
	if conv == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := conv.Clone()
	replaced := false
	for i, c := range s.conversations {
		if c.ID == clone.ID {
			s.conversations[i] = clone
			replaced = true
			break
		}
	}
	if !replaced {
		s.conversations = append(s.conversations, clone)
	}
	s.sortLocked()
	if s.selectedID == "" {
		s.selectedID = clone.ID
	}
	s.notifyLocked()
}

// ReplaceAll swaps the entire state, used by cloud sync download. The
// selection falls back to the most recently updated conversation when
// selectedID is unknown.
func (s *Store) ReplaceAll(convs []*model.Conversation, selectedID string) {
	s.replaceAll(convs, selectedID)
}

// replaceAll swaps the entire state, used by persistence reload.
func (s *Store) replaceAll(convs []*model.Conversation, selectedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = convs
	s.selectedID = selectedID
	if s.findLocked(selectedID) == nil {
		s.selectedID = ""
		s.sortLocked()
		if len(s.conversations) > 0 {
			s.selectedID = s.conversations[0].ID
		}
	} else {
		s.sortLocked()
	}
	s.notifyLocked()
}
