package form

import (
	"context"

	"github.com/goliatone/go-form2/pkg/path"
)

// Field is the handle a control holds for one mounted field. The handle
// stays valid when list operations move the field to another path.
type Field struct {
	form  *Form
	state *fieldState
}

// Path returns the field's current path.
func (fl *Field) Path() path.Path {
	fl.form.mu.Lock()
	defer fl.form.mu.Unlock()
	return fl.state.path.Clone()
}

// Name returns the field's current path in dot notation.
func (fl *Field) Name() string {
	fl.form.mu.Lock()
	defer fl.form.mu.Unlock()
	return fl.state.key
}

// Value returns the field's current value.
func (fl *Field) Value() any {
	fl.form.mu.Lock()
	defer fl.form.mu.Unlock()
	value, _ := fl.form.store.get(fl.state.path)
	return cloneValue(value)
}

// Meta returns a snapshot of the field's descriptor.
func (fl *Field) Meta() FieldMeta {
	fl.form.mu.Lock()
	defer fl.form.mu.Unlock()
	return fl.form.metaLocked(fl.state)
}

// Released reports whether the field was unregistered or removed with its
// list item.
func (fl *Field) Released() bool {
	fl.form.mu.Lock()
	defer fl.form.mu.Unlock()
	return fl.state.released
}

// OnChange writes a user edit: the value is stored, the field is marked
// touched and validated when its trigger includes OnChange.
func (fl *Field) OnChange(value any) error {
	return fl.form.mutate("change", func(tx *Tx) error {
		if fl.state.released {
			return ErrReleased
		}
		if err := tx.write(fl.state.path, value, true); err != nil {
			return err
		}
		tx.touch(fl.state)
		return nil
	})
}

// Blur marks the field touched and validates it when its trigger includes
// OnBlur and the current value was not validated yet.
func (fl *Field) Blur() {
	fl.form.blur(fl.state)
}

// Validate runs the field's rule chain and blocks until it completes.
func (fl *Field) Validate(ctx context.Context) string {
	return fl.form.validate(ctx, fl.state, false)
}

// Unregister unmounts the field. The value stays in the tree.
func (fl *Field) Unregister() {
	f := fl.form
	f.mu.Lock()
	if fl.state.released {
		f.mu.Unlock()
		return
	}
	event := f.unregisterLocked(fl.state)
	f.mu.Unlock()
	f.emit([]FieldEvent{event})
}
