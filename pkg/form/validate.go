package form

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-form2/pkg/validation"
)

// job is one run of a field's rule chain against the value current when it
// was issued.
type job struct {
	state      *fieldState
	generation uint64
	genCtx     context.Context
	name       string
	value      any
	values     map[string]any
	rules      []validation.Rule
	start      time.Time
}

// prepareLocked captures everything a validation needs and runs the
// synchronous part of the chain. When done is true msg is final; otherwise
// the async validators in j still have to run.
func (f *Form) prepareLocked(st *fieldState) (j job, msg string, done bool) {
	value, _ := f.store.get(st.path)
	name := st.label
	if name == "" {
		name = st.key
	}
	st.checked = st.generation
	j = job{
		state:      st,
		generation: st.generation,
		genCtx:     st.genCtx,
		name:       name,
		value:      value,
		values:     f.store.values,
		rules:      st.rules,
		start:      time.Now(),
	}

	required, whitespace := validation.HasRequired(st.rules)
	skipChecks := !required && validation.IsMissing(value, whitespace)
	pending := false
	for _, rule := range st.rules {
		if rule.IsAsync() {
			pending = true
			continue
		}
		if skipChecks {
			continue
		}
		if msg := rule.Check(name, value); msg != "" {
			return j, msg, true
		}
	}
	return j, "", !pending
}

// runAsync runs the validator rules in declaration order; the first failure
// wins. ctx is cancelled when the field value changes.
func (j job) runAsync(ctx context.Context) string {
	values := cloneTree(j.values)
	for _, rule := range j.rules {
		if !rule.IsAsync() {
			continue
		}
		if msg := rule.Run(ctx, j.name, cloneValue(j.value), values); msg != "" {
			return msg
		}
	}
	return ""
}

// applyLocked stores msg on the field unless a newer write superseded the
// validation. Returns the event to emit, if any.
func (f *Form) applyLocked(j job, msg string, cancelled bool) (FieldEvent, bool) {
	st := j.state
	if st.released || st.generation != j.generation || cancelled {
		f.metrics.IncrementStale()
		f.log.WithFields(logrus.Fields{
			"path":       st.key,
			"generation": j.generation,
			"current":    st.generation,
		}).Debug("form: discard stale validation result")
		return FieldEvent{}, false
	}
	st.err = msg
	if msg == "" {
		st.status = StatusValid
	} else {
		st.status = StatusInvalid
	}
	f.metrics.ObserveValidation(j.start, msg == "")
	return FieldEvent{Meta: f.metaLocked(st)}, true
}

// validate runs the chain for st. With background set the async part runs
// on its own goroutine and the returned message is empty unless the
// synchronous rules already decided.
func (f *Form) validate(ctx context.Context, st *fieldState, background bool) string {
	f.mu.Lock()
	if st.released || f.closed {
		f.mu.Unlock()
		return ""
	}
	j, msg, done := f.prepareLocked(st)
	if done {
		event, applied := f.applyLocked(j, msg, false)
		f.mu.Unlock()
		if applied {
			f.emit([]FieldEvent{event})
		}
		return msg
	}
	st.status = StatusValidating
	st.err = ""
	event := FieldEvent{Meta: f.metaLocked(st)}
	f.mu.Unlock()
	f.emit([]FieldEvent{event})

	if !background {
		return f.finish(ctx, j)
	}
	f.pending.add()
	go func() {
		defer f.pending.done()
		f.finish(f.ctx, j)
	}()
	return ""
}

// finish runs the async validators and applies their verdict. The run is
// cancelled as soon as the field moves to a newer generation.
func (f *Form) finish(ctx context.Context, j job) string {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(j.genCtx, cancel)
	defer stop()

	msg := j.runAsync(runCtx)
	cancelled := runCtx.Err() != nil

	f.mu.Lock()
	event, applied := f.applyLocked(j, msg, cancelled)
	f.mu.Unlock()
	if applied {
		f.emit([]FieldEvent{event})
	}
	return msg
}

func (f *Form) validateInBackground(st *fieldState) {
	f.validate(f.ctx, st, true)
}

// ValidateField runs the rule chain of the field at name and blocks until
// it completes, returning the error message or "".
func (f *Form) ValidateField(ctx context.Context, name any) (string, error) {
	p, err := f.resolve("validate", name)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	st := f.fields.get(p)
	f.mu.Unlock()
	if st == nil {
		return "", f.misuse("validate", name, ErrNotRegistered)
	}
	return f.validate(ctx, st, false), nil
}

// ValidateAll validates every mounted field concurrently and returns the
// failures in registration order.
func (f *Form) ValidateAll(ctx context.Context) []FieldError {
	f.mu.Lock()
	fields := f.fields.live()
	f.mu.Unlock()

	results := make([]string, len(fields))
	var group errgroup.Group
	for i, st := range fields {
		group.Go(func() error {
			results[i] = f.validate(ctx, st, false)
			return nil
		})
	}
	_ = group.Wait()

	var failures []FieldError
	f.mu.Lock()
	for i, st := range fields {
		if results[i] == "" || st.released {
			continue
		}
		failures = append(failures, FieldError{
			Path:    st.path.Clone(),
			Name:    st.key,
			Message: results[i],
		})
	}
	f.mu.Unlock()
	return failures
}

func (f *Form) blur(st *fieldState) {
	f.mu.Lock()
	if st.released || f.closed {
		f.mu.Unlock()
		return
	}
	st.touched = true
	event := FieldEvent{Meta: f.metaLocked(st)}
	// A value already validated (or validating) by its change trigger is not
	// validated a second time on blur.
	needed := st.trigger.Has(OnBlur) && st.checked != st.generation
	f.mu.Unlock()

	f.emit([]FieldEvent{event})
	if needed {
		f.validateInBackground(st)
	}
}

// Blur marks the field at name touched and runs blur-triggered validation.
func (f *Form) Blur(name any) error {
	p, err := f.resolve("blur", name)
	if err != nil {
		return err
	}
	f.mu.Lock()
	st := f.fields.get(p)
	f.mu.Unlock()
	if st == nil {
		return f.misuse("blur", name, ErrNotRegistered)
	}
	f.blur(st)
	return nil
}
