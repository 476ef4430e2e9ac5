package engine

import (
	"strings"
	"sync"
)

// lockTable serializes load-mutate-save spans per (run, strategy) pair.
// Two concurrent invocations that both load then save the same portfolio
// would silently lose one of the updates; the version stamp in the store
// catches cross-process races, this table prevents in-process ones.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the key and returns the unlock function.
func (t *lockTable) acquire(runID, strategyID string) func() {
	key := runID + "|" + strategyID

	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// releaseRun drops the run's entries. Called once the run is completed and
// mutating operations are rejected before they reach the table.
func (t *lockTable) releaseRun(runID string) {
	prefix := runID + "|"

	t.mu.Lock()
	for key := range t.locks {
		if strings.HasPrefix(key, prefix) {
			delete(t.locks, key)
		}
	}
	t.mu.Unlock()
}
