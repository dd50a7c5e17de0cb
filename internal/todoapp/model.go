package todoapp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Item is one todo.
type Item struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Route is the filter encoded in the URL fragment.
type Route string

const (
	RouteAll       Route = "#/"
	RouteActive    Route = "#/active"
	RouteCompleted Route = "#/completed"
)

// ParseRoute extracts the route from a path such as "/", "/#/active" or "#/completed".
// Unknown fragments select RouteAll.
func ParseRoute(path string) Route {
	i := strings.IndexByte(path, '#')
	if i < 0 {
		return RouteAll
	}
	switch r := Route(path[i:]); r {
	case RouteActive, RouteCompleted:
		return r
	}
	return RouteAll
}

// Includes reports whether the route shows it.
func (r Route) Includes(it Item) bool {
	switch r {
	case RouteActive:
		return !it.Completed
	case RouteCompleted:
		return it.Completed
	}
	return true
}

// list is the todo collection with TodoMVC semantics.
type list struct {
	items  []Item
	nextID int64
}

func newList(items []Item) *list {
	l := &list{items: items, nextID: 1}
	for _, it := range items {
		if it.ID >= l.nextID {
			l.nextID = it.ID + 1
		}
	}
	return l
}

// add appends a trimmed title. Blank titles are ignored.
func (l *list) add(title string) (Item, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Item{}, false
	}
	it := Item{ID: l.nextID, Title: title}
	l.nextID++
	l.items = append(l.items, it)
	return it, true
}

func (l *list) index(id int64) int {
	for i, it := range l.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (l *list) get(id int64) (Item, bool) {
	if i := l.index(id); i >= 0 {
		return l.items[i], true
	}
	return Item{}, false
}

func (l *list) setCompleted(id int64, done bool) bool {
	i := l.index(id)
	if i < 0 || l.items[i].Completed == done {
		return false
	}
	l.items[i].Completed = done
	return true
}

func (l *list) setAll(done bool) bool {
	changed := false
	for i := range l.items {
		if l.items[i].Completed != done {
			l.items[i].Completed = done
			changed = true
		}
	}
	return changed
}

// rename sets a trimmed title; a blank title removes the item.
func (l *list) rename(id int64, title string) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return l.remove(id)
	}
	if l.items[i].Title == title {
		return false
	}
	l.items[i].Title = title
	return true
}

func (l *list) remove(id int64) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return true
}

func (l *list) clearCompleted() int {
	kept := l.items[:0]
	removed := 0
	for _, it := range l.items {
		if it.Completed {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	l.items = kept
	return removed
}

func (l *list) remaining() int {
	n := 0
	for _, it := range l.items {
		if !it.Completed {
			n++
		}
	}
	return n
}

func (l *list) allCompleted() bool {
	return len(l.items) > 0 && l.remaining() == 0
}

func (l *list) snapshot() []Item {
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

func encodeItems(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(items)
}

func decodeItems(data []byte) ([]Item, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode stored todos: %w", err)
	}
	return items, nil
}
