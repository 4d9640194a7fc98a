package form

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-form2/pkg/path"
)

// Tx collects the writes of one batch. It is only valid inside the function
// passed to Batch; calling Form methods from that function deadlocks.
type Tx struct {
	form    *Form
	before  map[string]any
	writes  []path.Path
	written map[string]struct{}

	saved    map[*fieldState]fieldSnapshot
	affected []*fieldState
	explicit map[*fieldState]struct{}
	touched  []*fieldState
	released []FieldEvent
	subject  string
}

type fieldSnapshot struct {
	status  Status
	err     string
	dirty   bool
	touched bool
}

type delivery struct {
	changed  map[string]any
	all      map[string]any
	events   []FieldEvent
	validate []*fieldState
}

// Batch runs fn as one atomic batch: either every write applies and one
// OnValuesChange call reports them together, or fn returns an error and the
// tree is rolled back.
func (f *Form) Batch(fn func(tx *Tx) error) error {
	if fn == nil {
		return f.misuse("batch", "", errNilBatchFunction)
	}
	return f.mutate("batch", fn)
}

// SetFieldValue writes value at name through the same pipeline as a user
// edit, without marking the field touched.
func (f *Form) SetFieldValue(name any, value any) error {
	return f.mutate("set", func(tx *Tx) error {
		return tx.SetFieldValue(name, value)
	})
}

// SetFieldsValue deep merges values into the tree as one batch. Nested maps
// are merged key by key; every other value, sequences included, replaces
// what is stored at its path.
func (f *Form) SetFieldsValue(values map[string]any) error {
	return f.mutate("set-fields", func(tx *Tx) error {
		return tx.SetFieldsValue(values)
	})
}

// GetFieldValue returns the live value at name, falling back to the initial
// values, or nil.
func (f *Form) GetFieldValue(name any) any {
	p, err := f.resolve("get", name)
	if err != nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	value, _ := f.store.get(p)
	return cloneValue(value)
}

// GetFieldsValue returns a copy of the whole value tree.
func (f *Form) GetFieldsValue() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneTree(f.store.values)
}

// SetFieldValue stages a write.
func (tx *Tx) SetFieldValue(name any, value any) error {
	p, err := path.Normalize(name)
	if err != nil {
		tx.subject = describeName(name)
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return tx.write(p, value, true)
}

// SetFieldsValue stages a deep merge of values.
func (tx *Tx) SetFieldsValue(values map[string]any) error {
	merged, _ := cloneValue(values).(map[string]any)
	return tx.merge(nil, merged)
}

// GetFieldValue reads the value as staged so far.
func (tx *Tx) GetFieldValue(name any) any {
	p, err := path.Normalize(name)
	if err != nil {
		return nil
	}
	value, _ := tx.form.store.get(p)
	return cloneValue(value)
}

func (tx *Tx) merge(prefix path.Path, values map[string]any) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "" {
			tx.subject = prefix.String()
			return fmt.Errorf("%w: empty key under %q", ErrInvalidPath, prefix.String())
		}
		p := prefix.Append(path.Literal(key))
		value := values[key]
		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			if err := tx.merge(p, nested); err != nil {
				return err
			}
			continue
		}
		if err := tx.write(p, value, true); err != nil {
			return err
		}
	}
	return nil
}

// write stores value at p and marks every field whose value changed as a
// result. With descendants false only fields at p or above it are
// considered; list operations use that because they rename the fields of
// moved items instead of changing their values.
func (tx *Tx) write(p path.Path, value any, descendants bool) error {
	f := tx.form
	tx.subject = p.String()

	if st := f.fields.get(p); st != nil && st.normalize != nil {
		value = st.normalize(value)
	}
	value = cloneValue(value)

	// A field written by name returns to unvalidated even when the value is
	// unchanged.
	if descendants {
		if st := f.fields.get(p); st != nil {
			tx.affect(st)
			tx.explicit[st] = struct{}{}
		}
	}

	previous := f.store.values
	if current, ok := path.Get(previous, p); ok && equalValues(current, value) {
		return nil
	}
	if err := f.store.set(p, value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	tx.record(p)

	var candidates []*fieldState
	if descendants {
		candidates = f.fields.related(p)
	} else {
		candidates = f.fields.ancestors(p)
	}
	if len(candidates) == 0 && len(f.fields.related(p)) == 0 {
		f.log.WithField("path", p.String()).Debug("form: write to unregistered path")
	}
	for _, st := range candidates {
		if _, written := tx.explicit[st]; written {
			continue
		}
		before, _ := path.Get(previous, st.path)
		after, _ := path.Get(f.store.values, st.path)
		if equalValues(before, after) {
			continue
		}
		tx.affect(st)
	}
	return nil
}

// writeList stores a list produced by a list operation.
func (tx *Tx) writeList(base path.Path, items []any) error {
	f := tx.form
	tx.subject = base.String()
	previous := f.store.values
	if err := f.store.set(base, items); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	tx.record(base)
	for _, st := range f.fields.ancestors(base) {
		before, _ := path.Get(previous, st.path)
		if !equalValues(before, items) || st.path.Equal(base) {
			tx.affect(st)
		}
	}
	return nil
}

func (tx *Tx) record(p path.Path) {
	key := p.String()
	if _, seen := tx.written[key]; seen {
		return
	}
	tx.written[key] = struct{}{}
	tx.writes = append(tx.writes, p.Clone())
}

func (tx *Tx) save(st *fieldState) bool {
	if _, seen := tx.saved[st]; seen {
		return false
	}
	tx.saved[st] = fieldSnapshot{status: st.status, err: st.err, dirty: st.dirty, touched: st.touched}
	return true
}

// affect returns st to the unvalidated state for a new value.
func (tx *Tx) affect(st *fieldState) {
	tx.save(st)
	if !containsState(tx.affected, st) {
		tx.affected = append(tx.affected, st)
	}
	st.bump(tx.form.ctx)
	st.dirty = true
	st.status = StatusUnvalidated
	st.err = ""
}

func containsState(states []*fieldState, target *fieldState) bool {
	for _, st := range states {
		if st == target {
			return true
		}
	}
	return false
}

func (tx *Tx) touch(st *fieldState) {
	tx.save(st)
	st.touched = true
	tx.touched = append(tx.touched, st)
}

func (tx *Tx) rollback() {
	tx.form.store.values = tx.before
	for st := range tx.saved {
		tx.restore(st, false)
	}
}

func (tx *Tx) restore(st *fieldState, keepTouched bool) {
	snap, ok := tx.saved[st]
	if !ok {
		return
	}
	st.err = snap.err
	st.dirty = snap.dirty
	if !keepTouched {
		st.touched = snap.touched
	}
	st.status = snap.status
	if snap.status == StatusValidating {
		// The bump discarded the running validation.
		st.status = StatusUnvalidated
	}
}

func (f *Form) mutate(op string, fn func(tx *Tx) error) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return f.misuse(op, "", ErrClosed)
	}
	tx := &Tx{
		form:     f,
		before:   f.store.values,
		written:  make(map[string]struct{}),
		saved:    make(map[*fieldState]fieldSnapshot),
		explicit: make(map[*fieldState]struct{}),
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		f.mu.Unlock()
		if errors.Is(err, ErrMisuse) {
			return f.misuse(op, tx.subject, err)
		}
		return err
	}
	out := tx.commit()
	f.mu.Unlock()

	f.deliver(out)
	return nil
}

// commit computes the batch notification. Called with f.mu held.
func (tx *Tx) commit() delivery {
	f := tx.form
	f.syncListKeysLocked()

	dropped := f.releaseDroppedItemsLocked()

	var out delivery
	changed := map[string]any{}
	for _, p := range tx.writes {
		after, hasAfter := path.Get(f.store.values, p)
		before, hasBefore := path.Get(tx.before, p)
		if hasAfter == hasBefore && equalValues(before, after) {
			continue
		}
		next, err := path.Set(changed, p, cloneValue(after))
		if err != nil {
			f.log.WithFields(logrus.Fields{"path": p.String()}).WithError(err).Debug("form: skip changed value")
			continue
		}
		changed = asRoot(next)
	}
	if len(changed) > 0 {
		out.changed = changed
		if f.onValuesChange != nil {
			out.all = cloneTree(f.store.values)
		}
	}

	// Fields whose value ended where it started keep their previous state,
	// unless they were written by name.
	affected := tx.affected[:0]
	for _, st := range tx.affected {
		if _, written := tx.explicit[st]; written {
			affected = append(affected, st)
			continue
		}
		after, hasAfter := path.Get(f.store.values, st.path)
		before, hasBefore := path.Get(tx.before, st.path)
		if hasAfter == hasBefore && equalValues(before, after) {
			tx.restore(st, true)
			continue
		}
		affected = append(affected, st)
	}
	tx.affected = affected

	seen := make(map[*fieldState]struct{})
	for _, group := range [][]*fieldState{tx.affected, tx.touched} {
		for _, st := range group {
			if _, dup := seen[st]; dup || st.released {
				continue
			}
			seen[st] = struct{}{}
			out.events = append(out.events, FieldEvent{Meta: f.metaLocked(st)})
		}
	}
	out.events = append(out.events, tx.released...)
	out.events = append(out.events, dropped...)

	for _, st := range tx.affected {
		if !st.released && st.trigger.Has(OnChange) {
			out.validate = append(out.validate, st)
		}
	}
	return out
}

// deliver runs after the lock is released: field events, change-triggered
// validation, then the batch notification.
func (f *Form) deliver(out delivery) {
	f.emit(out.events)
	for _, st := range out.validate {
		f.validateInBackground(st)
	}
	if out.changed != nil && f.onValuesChange != nil {
		f.onValuesChange(out.changed, out.all)
	}
}
