package form

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-form2/pkg/path"
)

// Key identifies a list item independently of its index. Keys come from a
// per-list counter and are never reused, not even after Reset.
type Key uint64

// ListField describes one item of a list group: its stable key, its current
// index and the item path.
type ListField struct {
	Key  Key
	Name int
	Path path.Path
}

// Sub returns the path of a field inside the item.
func (lf ListField) Sub(segments ...string) path.Path {
	out := lf.Path.Clone()
	for _, segment := range segments {
		out = append(out, path.Literal(segment))
	}
	return out
}

type listGroup struct {
	base     path.Path
	keys     []Key
	next     Key
	released bool
	handle   *List
}

func (g *listGroup) newKey() Key {
	g.next++
	return g.next
}

// sync keeps one key per item. Items appended or dropped through plain
// writes gain or lose keys at the tail.
func (g *listGroup) sync(n int) {
	if len(g.keys) > n {
		g.keys = g.keys[:n:n]
		return
	}
	for len(g.keys) < n {
		g.keys = append(g.keys, g.newKey())
	}
}

// List is the handle of a dynamic array-valued field.
type List struct {
	form  *Form
	group *listGroup
}

// List returns the list group at name, creating it on first use. The value
// at name must be a sequence or absent.
func (f *Form) List(name any) (*List, error) {
	p, err := f.resolve("list", name)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, f.misuse("list", name, ErrClosed)
	}
	for _, g := range f.lists {
		if g.base.Equal(p) {
			f.mu.Unlock()
			return g.handle, nil
		}
	}
	items, err := f.itemsLocked(p)
	if err != nil {
		f.mu.Unlock()
		return nil, f.misuse("list", name, err)
	}
	g := &listGroup{base: p}
	g.sync(len(items))
	g.handle = &List{form: f, group: g}
	f.lists = append(f.lists, g)
	f.mu.Unlock()
	return g.handle, nil
}

func (f *Form) itemsLocked(base path.Path) ([]any, error) {
	value, ok := f.store.get(base)
	if !ok || value == nil {
		return nil, nil
	}
	items, isList := value.([]any)
	if !isList {
		return nil, fmt.Errorf("%w: %s holds %T", ErrNotList, base, value)
	}
	return items, nil
}

// syncListKeysLocked restores keys.length == len(tree[base]) for every group
// after a batch. A group whose value was replaced by a non-sequence has no
// items.
func (f *Form) syncListKeysLocked() {
	for _, g := range f.lists {
		items, err := f.itemsLocked(g.base)
		if err != nil {
			f.log.WithFields(logrus.Fields{"path": g.base.String()}).WithError(err).Debug("form: list value replaced")
		}
		g.sync(len(items))
	}
}

// releaseDroppedItemsLocked releases the fields and nested groups of list
// items that no longer exist, as after Reset or a write that shortened a
// list, and returns their removal events.
func (f *Form) releaseDroppedItemsLocked() []FieldEvent {
	var events []FieldEvent
	for _, g := range append([]*listGroup(nil), f.lists...) {
		if g.released {
			continue
		}
		items, _ := f.itemsLocked(g.base)
		n := len(items)
		keep := func(i int) (int, bool) {
			return i, i < n
		}
		for _, st := range f.fields.remapItems(g.base, keep) {
			events = append(events, FieldEvent{Meta: f.metaLocked(st), Removed: true})
		}
		f.remapListsLocked(g.base, keep)
	}
	return events
}

// regenerateListKeysLocked hands every group fresh keys, as after Reset.
func (f *Form) regenerateListKeysLocked() {
	for _, g := range f.lists {
		items, _ := f.itemsLocked(g.base)
		g.keys = nil
		g.sync(len(items))
	}
}

// remapListsLocked moves nested groups along with the item that contains
// them and releases the groups of dropped items.
func (f *Form) remapListsLocked(base path.Path, mapIndex func(int) (int, bool)) {
	depth := len(base)
	kept := f.lists[:0]
	for _, g := range f.lists {
		if len(g.base) <= depth || !g.base.HasPrefix(base) || !g.base[depth].IsIndex() {
			kept = append(kept, g)
			continue
		}
		next, ok := mapIndex(g.base[depth].Index())
		if !ok {
			g.released = true
			continue
		}
		g.base = g.base.With(depth, path.Index(next))
		kept = append(kept, g)
	}
	f.lists = kept
}

// Path returns the base path of the list.
func (l *List) Path() path.Path {
	l.form.mu.Lock()
	defer l.form.mu.Unlock()
	return l.group.base.Clone()
}

// Len returns the number of items.
func (l *List) Len() int {
	l.form.mu.Lock()
	defer l.form.mu.Unlock()
	return len(l.group.keys)
}

// Fields returns one entry per item in index order.
func (l *List) Fields() []ListField {
	l.form.mu.Lock()
	defer l.form.mu.Unlock()
	g := l.group
	out := make([]ListField, len(g.keys))
	for i, key := range g.keys {
		out[i] = ListField{Key: key, Name: i, Path: g.base.Append(path.Index(i))}
	}
	return out
}

// Add appends value as a new item.
func (l *List) Add(value any) error {
	return l.edit("list-add", func(tx *Tx, items []any) error {
		return l.insert(tx, items, len(items), value)
	})
}

// Insert places value at index, shifting the items at index and after it.
// index may equal the current length.
func (l *List) Insert(index int, value any) error {
	return l.edit("list-insert", func(tx *Tx, items []any) error {
		if index < 0 || index > len(items) {
			return fmt.Errorf("%w: insert at %d, length %d", ErrIndexOutOfRange, index, len(items))
		}
		return l.insert(tx, items, index, value)
	})
}

func (l *List) insert(tx *Tx, items []any, index int, value any) error {
	g := l.group
	next := make([]any, 0, len(items)+1)
	next = append(next, items[:index]...)
	next = append(next, cloneValue(value))
	next = append(next, items[index:]...)
	if err := tx.writeList(g.base, next); err != nil {
		return err
	}

	shift := func(i int) (int, bool) {
		if i >= index {
			return i + 1, true
		}
		return i, true
	}
	tx.form.fields.remapItems(g.base, shift)
	tx.form.remapListsLocked(g.base, shift)

	keys := make([]Key, 0, len(g.keys)+1)
	keys = append(keys, g.keys[:index]...)
	keys = append(keys, g.newKey())
	g.keys = append(keys, g.keys[index:]...)
	return nil
}

// Remove deletes the items at indices. The fields mounted under removed items
// are released; fields of later items are renamed to their new index.
func (l *List) Remove(indices ...int) error {
	return l.edit("list-remove", func(tx *Tx, items []any) error {
		drop := make(map[int]struct{}, len(indices))
		for _, idx := range indices {
			if idx < 0 || idx >= len(items) {
				return fmt.Errorf("%w: remove %d, length %d", ErrIndexOutOfRange, idx, len(items))
			}
			drop[idx] = struct{}{}
		}
		if len(drop) == 0 {
			return nil
		}
		removed := make([]int, 0, len(drop))
		for idx := range drop {
			removed = append(removed, idx)
		}
		sort.Ints(removed)

		g := l.group
		keys := make([]Key, 0, len(items)-len(removed))
		for i := range items {
			if _, gone := drop[i]; !gone {
				keys = append(keys, g.keys[i])
			}
		}
		// Splice from the back so earlier indices stay valid.
		var pruned any = items
		for i := len(removed) - 1; i >= 0; i-- {
			pruned, _ = path.Delete(pruned, path.Of(path.Index(removed[i])))
		}
		next, _ := pruned.([]any)
		if err := tx.writeList(g.base, next); err != nil {
			return err
		}

		shift := func(i int) (int, bool) {
			if _, gone := drop[i]; gone {
				return 0, false
			}
			return i - sort.SearchInts(removed, i), true
		}
		for _, st := range tx.form.fields.remapItems(g.base, shift) {
			tx.released = append(tx.released, FieldEvent{Meta: tx.form.metaLocked(st), Removed: true})
		}
		tx.form.remapListsLocked(g.base, shift)
		g.keys = keys
		return nil
	})
}

// Move reorders the item at from to position to. The item keeps its key, so
// the fields mounted under it keep their state at the new index.
func (l *List) Move(from, to int) error {
	return l.edit("list-move", func(tx *Tx, items []any) error {
		n := len(items)
		if from < 0 || from >= n || to < 0 || to >= n {
			return fmt.Errorf("%w: move %d to %d, length %d", ErrIndexOutOfRange, from, to, n)
		}
		if from == to {
			return nil
		}
		g := l.group
		next := moveItem(items, from, to)
		if err := tx.writeList(g.base, next); err != nil {
			return err
		}

		shift := func(i int) (int, bool) {
			switch {
			case i == from:
				return to, true
			case from < to && i > from && i <= to:
				return i - 1, true
			case from > to && i >= to && i < from:
				return i + 1, true
			}
			return i, true
		}
		tx.form.fields.remapItems(g.base, shift)
		tx.form.remapListsLocked(g.base, shift)
		g.keys = moveItem(g.keys, from, to)
		return nil
	})
}

func moveItem[T any](items []T, from, to int) []T {
	out := make([]T, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)
	moved := items[from]
	out = append(out[:to], append([]T{moved}, out[to:]...)...)
	return out
}

// edit runs a list operation as one batch against the current items.
func (l *List) edit(op string, fn func(tx *Tx, items []any) error) error {
	f := l.form
	return f.mutate(op, func(tx *Tx) error {
		g := l.group
		tx.subject = g.base.String()
		if g.released {
			return ErrReleased
		}
		items, err := f.itemsLocked(g.base)
		if err != nil {
			return err
		}
		g.sync(len(items))
		return fn(tx, items)
	})
}
