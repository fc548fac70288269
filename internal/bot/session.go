package bot

import (
	"sync"

	"github.com/ivanoskov/ibadah_bot/internal/service"
)

// step is where a chat is in the add/edit form.
type step int

const (
	stepIdle step = iota
	stepName
	stepCategory
	stepDate
	stepConfirm
)

// session is one chat's screen: its own store, the form step and the
// list page being shown.
type session struct {
	store *service.IbadahStore
	step  step
	page  int
}

// chatLock returns the lock serializing updates of one chat.
func (b *Bot) chatLock(chatID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[chatID] = l
	}
	return l
}

// session returns the chat's session, creating it on first use.
func (b *Bot) session(chatID int64) (*session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[chatID]; ok {
		return s, false
	}
	s := &session{store: b.newStore()}
	b.sessions[chatID] = s
	return s, true
}

// endSession closes the chat's store. Responses still on their way are dropped.
func (b *Bot) endSession(chatID int64) bool {
	b.mu.Lock()
	s, ok := b.sessions[chatID]
	delete(b.sessions, chatID)
	b.mu.Unlock()
	if !ok {
		return false
	}
	s.store.Close()
	return true
}
