package ui

import "strings"

// todoItem is a scratch checklist entry. The checklist lives only for the
// session and never touches the ledger.
type todoItem struct {
	title string
	done  bool
}

type checklist struct {
	items []todoItem
}

// Add appends title unless it is blank.
func (c checklist) Add(title string) (checklist, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return c, false
	}
	c.items = append(c.items, todoItem{title: title})
	return c, true
}

func (c checklist) Toggle(i int) checklist {
	if i < 0 || i >= len(c.items) {
		return c
	}
	items := append([]todoItem(nil), c.items...)
	items[i].done = !items[i].done
	c.items = items
	return c
}

func (c checklist) Remove(i int) checklist {
	if i < 0 || i >= len(c.items) {
		return c
	}
	items := append([]todoItem(nil), c.items[:i]...)
	c.items = append(items, c.items[i+1:]...)
	return c
}

// Progress returns the number of done items and the total.
func (c checklist) Progress() (done, total int) {
	for _, it := range c.items {
		if it.done {
			done++
		}
	}
	return done, len(c.items)
}
