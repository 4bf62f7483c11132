package preview

import (
	"reflect"
	"testing"
)

type captured struct{ updates [][]string }

func (c *captured) Update(paths []string) { c.updates = append(c.updates, paths) }

func TestListMutations(t *testing.T) {
	c := &captured{}
	l := NewList(c)

	l.Add("a", "b", "c")
	l.Add("a")
	if got := l.Paths(); !reflect.DeepEqual(got, []string{"a", "b", "c", "a"}) {
		t.Fatalf("after add: %v", got)
	}

	if err := l.Move(3, 1); err != nil {
		t.Fatal(err)
	}
	if got := l.Paths(); !reflect.DeepEqual(got, []string{"a", "a", "b", "c"}) {
		t.Fatalf("after move: %v", got)
	}
	if err := l.Move(0, 3); err != nil {
		t.Fatal(err)
	}
	if got := l.Paths(); !reflect.DeepEqual(got, []string{"a", "b", "c", "a"}) {
		t.Fatalf("after move to end: %v", got)
	}

	if err := l.Remove(2, 0, 2); err != nil {
		t.Fatal(err)
	}
	if got := l.Paths(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("after remove: %v", got)
	}

	if err := l.Remove(5); err == nil {
		t.Fatal("expected range error")
	}
	if err := l.Move(0, 9); err == nil {
		t.Fatal("expected range error")
	}

	l.Clear()
	if l.Len() != 0 {
		t.Fatal("clear left entries")
	}

	// add, add, move, move, remove, clear; failed calls do not notify
	if len(c.updates) != 6 {
		t.Fatalf("notifications = %d, want 6", len(c.updates))
	}
	if last := c.updates[len(c.updates)-1]; len(last) != 0 {
		t.Fatalf("last notification = %v", last)
	}
	// snapshots must not alias the list's storage
	c.updates[0][0] = "mutated"
	l.Add("z")
	if l.Paths()[0] != "z" {
		t.Fatal("snapshot aliases list storage")
	}
}

func TestListWithoutNotifier(t *testing.T) {
	l := NewList(nil)
	l.Add("x")
	l.Clear()
	if l.Len() != 0 {
		t.Fatal("expected empty list")
	}
}
