package form

import (
	"context"

	"github.com/goliatone/go-form2/pkg/path"
)

// Submit validates every mounted field and reports the outcome: OnFinish
// with the full value snapshot when every field is valid, OnFinishFailed with
// the errors in registration order otherwise. The outcome is also returned.
func (f *Form) Submit(ctx context.Context) Outcome {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		_ = f.misuse("submit", "", ErrClosed)
		return Outcome{Values: f.GetFieldsValue()}
	}

	failures := f.ValidateAll(ctx)
	outcome := Outcome{Values: f.GetFieldsValue(), Errors: failures}
	f.metrics.IncrementSubmit(outcome.OK())

	if outcome.OK() {
		f.log.Debug("form: submit succeeded")
		if f.onFinish != nil {
			f.onFinish(outcome.Values)
		}
		return outcome
	}

	f.log.WithField("errors", len(failures)).Debug("form: submit blocked")
	if f.onFinishFailed != nil {
		f.onFinishFailed(outcome)
	}
	return outcome
}

// Reset restores the initial values and clears every field's error, dirty
// and touched state. Pending validations are discarded and list groups get
// fresh keys. Fields mounted under list items that no longer exist are
// released. OnValuesChange reports the top level keys that changed; nothing
// is validated.
func (f *Form) Reset() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = f.misuse("reset", "", ErrClosed)
		return
	}
	before := f.store.values
	f.store.reset()

	events := f.releaseDroppedItemsLocked()
	f.regenerateListKeysLocked()

	for _, st := range f.fields.order {
		st.bump(f.ctx)
		st.status = StatusUnvalidated
		st.err = ""
		st.dirty = false
		st.touched = false
		events = append(events, FieldEvent{Meta: f.metaLocked(st)})
	}

	changed := map[string]any{}
	for _, root := range []map[string]any{before, f.store.values} {
		for key := range root {
			if _, seen := changed[key]; seen {
				continue
			}
			p := path.Of(path.Key(key))
			was, hadBefore := path.Get(before, p)
			now, hasNow := path.Get(f.store.values, p)
			if hadBefore == hasNow && equalValues(was, now) {
				continue
			}
			changed[key] = cloneValue(now)
		}
	}
	var all map[string]any
	if len(changed) > 0 && f.onValuesChange != nil {
		all = cloneTree(f.store.values)
	}
	f.mu.Unlock()

	f.emit(events)
	if len(changed) > 0 && f.onValuesChange != nil {
		f.onValuesChange(changed, all)
	}
}
