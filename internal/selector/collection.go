// Package selector implements the validate, pick, confirm and apply pipeline
// the interactive front-end runs against an in-memory list of entries.
package selector

// Indexed pairs an item with its position in the full collection. The
// position is what users type, so it is kept stable while a filter is active.
type Indexed[T any] struct {
	Index int
	Item  T
}

// Collection is an ordered list with a filtered view.
type Collection[T any] struct {
	items  []T
	filter func(T) bool
}

func New[T any](items []T) *Collection[T] {
	return &Collection[T]{items: append([]T(nil), items...)}
}

func (c *Collection[T]) Len() int { return len(c.items) }

// Items returns a copy of the items.
func (c *Collection[T]) Items() []T {
	return append([]T(nil), c.items...)
}

func (c *Collection[T]) Indexed() []Indexed[T] {
	out := make([]Indexed[T], len(c.items))
	for i, it := range c.items {
		out[i] = Indexed[T]{Index: i, Item: it}
	}
	return out
}

// Filtered returns the items passing the current filter, with their
// positions in the full collection.
func (c *Collection[T]) Filtered() []Indexed[T] {
	if c.filter == nil {
		return c.Indexed()
	}
	var out []Indexed[T]
	for i, it := range c.items {
		if c.filter(it) {
			out = append(out, Indexed[T]{Index: i, Item: it})
		}
	}
	return out
}

func (c *Collection[T]) SetFilter(pred func(T) bool) { c.filter = pred }

func (c *Collection[T]) ResetFiltered() { c.filter = nil }

func (c *Collection[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(c.items) {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

func (c *Collection[T]) Set(i int, item T) bool {
	if i < 0 || i >= len(c.items) {
		return false
	}
	c.items[i] = item
	return true
}

// Replace swaps in a new item list. The filter is kept.
func (c *Collection[T]) Replace(items []T) {
	c.items = append(c.items[:0:0], items...)
}

func (c *Collection[T]) UpdateAll(fn func(T) T) {
	for i, it := range c.items {
		c.items[i] = fn(it)
	}
}

func (c *Collection[T]) Add(item T) int {
	c.items = append(c.items, item)
	return len(c.items) - 1
}

// RemoveAt deletes position i; later items move down by one.
func (c *Collection[T]) RemoveAt(i int) bool {
	if i < 0 || i >= len(c.items) {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// RemoveIf deletes every item matching pred and returns how many went.
func (c *Collection[T]) RemoveIf(pred func(T) bool) int {
	kept := c.items[:0]
	for _, it := range c.items {
		if !pred(it) {
			kept = append(kept, it)
		}
	}
	n := len(c.items) - len(kept)
	var zero T
	for i := len(kept); i < len(c.items); i++ {
		c.items[i] = zero
	}
	c.items = kept
	return n
}

func (c *Collection[T]) Prompt() *Prompt[T] {
	return &Prompt[T]{c: c}
}
