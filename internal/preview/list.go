package preview

import (
	"fmt"
	"sort"
	"sync"
)

// Notifier is told about every list change. Orchestrator satisfies it.
type Notifier interface {
	Update(paths []string)
}

// List is the user-editable, ordered merge list. Order defines output page
// order and the same path may appear more than once.
type List struct {
	mu     sync.Mutex
	paths  []string
	notify Notifier
}

// NewList returns an empty list that reports changes to n (may be nil).
func NewList(n Notifier) *List {
	return &List{notify: n}
}

// Add appends paths.
func (l *List) Add(paths ...string) {
	if len(paths) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, paths...)
	l.changedLocked()
}

// Remove drops the entries at the given indices. Out-of-range indices are
// an error and nothing is removed.
func (l *List) Remove(indices ...int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, i := range indices {
		if i < 0 || i >= len(l.paths) {
			return fmt.Errorf("index %d out of range [0,%d)", i, len(l.paths))
		}
	}
	drop := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(drop)))
	last := -1
	for _, i := range drop {
		if i == last {
			continue
		}
		l.paths = append(l.paths[:i], l.paths[i+1:]...)
		last = i
	}
	l.changedLocked()
	return nil
}

// Move relocates the entry at from so that it ends up at index to.
func (l *List) Move(from, to int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.paths)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d->%d out of range [0,%d)", from, to, n)
	}
	if from == to {
		return nil
	}
	p := l.paths[from]
	l.paths = append(l.paths[:from], l.paths[from+1:]...)
	l.paths = append(l.paths[:to], append([]string{p}, l.paths[to:]...)...)
	l.changedLocked()
	return nil
}

// Clear removes every entry.
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = nil
	l.changedLocked()
}

// Paths returns a copy of the entries in order.
func (l *List) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

// Len returns the number of entries.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.paths)
}

// changedLocked notifies with a snapshot while l.mu is held so notifications
// arrive in mutation order. Notifier must not call back into the list.
func (l *List) changedLocked() {
	if l.notify != nil {
		l.notify.Update(append([]string(nil), l.paths...))
	}
}
