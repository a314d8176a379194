package selector

import (
	"strconv"
	"strings"
)

// Outcomes shown to the user in place of a rendered item.
const (
	InvalidInput   = "Invalid Input"
	InvalidIndex   = "Invalid Index"
	NoItemFound    = "No Item Found"
	NoItemSelected = "No Item Selected"
)

// Prompt collects pipeline steps. Steps may be attached in any order; Run
// always evaluates them as: tokens, index, select, confirm, filter, update,
// consume, for-each, remove, wait.
type Prompt[T any] struct {
	c *Collection[T]

	tokens    []string
	minTokens int
	checkArgs bool

	indexToken string
	byIndex    bool

	selectWith func([]Indexed[T]) (int, bool)

	ask     func(string) bool
	askText func(T) string

	filter  func(T) bool
	update  func(T) (T, error)
	consume func(T) error
	forEach func([]Indexed[T]) error
	remove  bool
	wait    func() error
}

// RequireTokens fails the prompt with InvalidInput when fewer than n
// tokens were given.
func (p *Prompt[T]) RequireTokens(tokens []string, n int) *Prompt[T] {
	p.tokens, p.minTokens, p.checkArgs = tokens, n, true
	return p
}

// SelectIndex picks the item at the position written in token.
func (p *Prompt[T]) SelectIndex(token string) *Prompt[T] {
	p.indexToken, p.byIndex = token, true
	return p
}

// SelectWith lets fn pick a position from the whole collection.
func (p *Prompt[T]) SelectWith(fn func([]Indexed[T]) (int, bool)) *Prompt[T] {
	p.selectWith = fn
	return p
}

// SelectWhere picks the first item matching pred.
func (p *Prompt[T]) SelectWhere(pred func(T) bool) *Prompt[T] {
	return p.SelectWith(func(items []Indexed[T]) (int, bool) {
		for _, it := range items {
			if pred(it.Item) {
				return it.Index, true
			}
		}
		return -1, false
	})
}

// Confirm asks the user about the selected item, rendered by text. A
// negative answer ends the prompt with an empty result.
func (p *Prompt[T]) Confirm(ask func(string) bool, text func(T) string) *Prompt[T] {
	p.ask, p.askText = ask, text
	return p
}

func (p *Prompt[T]) Filter(pred func(T) bool) *Prompt[T] {
	p.filter = pred
	return p
}

// Update replaces the selected item with fn's result.
func (p *Prompt[T]) Update(fn func(T) (T, error)) *Prompt[T] {
	p.update = fn
	return p
}

func (p *Prompt[T]) Consume(fn func(T) error) *Prompt[T] {
	p.consume = fn
	return p
}

func (p *Prompt[T]) ForEach(fn func([]Indexed[T]) error) *Prompt[T] {
	p.forEach = fn
	return p
}

// Remove drops the selected item from the collection.
func (p *Prompt[T]) Remove() *Prompt[T] {
	p.remove = true
	return p
}

// Wait runs a blocking action, such as an editor session, before rendering.
func (p *Prompt[T]) Wait(fn func() error) *Prompt[T] {
	p.wait = fn
	return p
}

// Run evaluates the pipeline and renders the selected item, or the zero T
// when nothing was selected. Validation failures come back as one of the
// outcome strings with a nil error; only callback errors are returned as
// errors.
func (p *Prompt[T]) Run(render func(T) string) (string, error) {
	var (
		item     T
		selected = -1
	)

	if p.checkArgs && len(p.tokens) < p.minTokens {
		return InvalidInput, nil
	}

	if p.byIndex {
		n, err := strconv.Atoi(strings.TrimSpace(p.indexToken))
		if err != nil || n < 0 || n >= p.c.Len() {
			return InvalidIndex, nil
		}
		selected = n
	}

	if p.selectWith != nil {
		n, ok := p.selectWith(p.c.Indexed())
		if !ok || n < 0 || n >= p.c.Len() {
			return NoItemFound, nil
		}
		selected = n
	}

	if selected >= 0 {
		item, _ = p.c.At(selected)
	}

	if p.ask != nil {
		var q string
		if p.askText != nil {
			q = p.askText(item)
		}
		if !p.ask(q) {
			return "", nil
		}
	}

	if p.filter != nil {
		p.c.SetFilter(p.filter)
	}

	if p.update != nil {
		if selected < 0 {
			return NoItemSelected, nil
		}
		v, err := p.update(item)
		if err != nil {
			return "", err
		}
		p.c.Set(selected, v)
		item = v
	}

	if p.consume != nil {
		if selected < 0 {
			return NoItemSelected, nil
		}
		if err := p.consume(item); err != nil {
			return "", err
		}
	}

	if p.forEach != nil {
		if err := p.forEach(p.c.Indexed()); err != nil {
			return "", err
		}
	}

	if p.remove {
		if selected < 0 {
			return NoItemSelected, nil
		}
		p.c.RemoveAt(selected)
	}

	if p.wait != nil {
		if err := p.wait(); err != nil {
			return "", err
		}
	}

	if render == nil {
		return "", nil
	}
	return render(item), nil
}
