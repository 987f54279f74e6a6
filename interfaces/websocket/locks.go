package websocket

import "sync"

// boardLocks serializes event processing per board. Holding a board's
// lock for the full duration of an event, storage calls included, is what
// gives every room member the same event order.
type boardLocks struct {
	mu    sync.Mutex
	locks map[string]*boardLock
}

type boardLock struct {
	mu   sync.Mutex
	refs int
}

func newBoardLocks() *boardLocks {
	return &boardLocks{locks: make(map[string]*boardLock)}
}

// acquire locks the board and returns the matching release func. Lock
// entries are refcounted so idle boards hold no memory.
func (l *boardLocks) acquire(boardID string) func() {
	l.mu.Lock()
	bl, ok := l.locks[boardID]
	if !ok {
		bl = &boardLock{}
		l.locks[boardID] = bl
	}
	bl.refs++
	l.mu.Unlock()

	bl.mu.Lock()

	return func() {
		bl.mu.Unlock()

		l.mu.Lock()
		bl.refs--
		if bl.refs == 0 {
			delete(l.locks, boardID)
		}
		l.mu.Unlock()
	}
}
