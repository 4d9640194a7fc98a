package form

import (
	"context"

	"github.com/goliatone/go-form2/pkg/path"
	"github.com/goliatone/go-form2/pkg/validation"
)

// fieldState is the descriptor of one mounted field. Its path changes when
// list operations shift the item it belongs to; the state itself, and thus
// dirty/touched/error and in-flight validations, travels with it.
type fieldState struct {
	id        int
	path      path.Path
	key       string
	label     string
	rules     []validation.Rule
	trigger   Trigger
	normalize validation.Normalizer

	status  Status
	err     string
	dirty   bool
	touched bool

	// generation increments on every value write. checked is the generation
	// the latest validation was issued for; zero means never.
	generation uint64
	checked    uint64
	genCtx     context.Context
	genCancel  context.CancelFunc

	released bool
	handle   *Field
}

// bump starts a new generation and cancels validations of the previous one.
func (st *fieldState) bump(parent context.Context) {
	if st.genCancel != nil {
		st.genCancel()
	}
	st.generation++
	st.genCtx, st.genCancel = context.WithCancel(parent)
}

func (st *fieldState) release() {
	st.released = true
	if st.genCancel != nil {
		st.genCancel()
	}
	st.generation++
}

func (st *fieldState) setPath(p path.Path) {
	st.path = p
	st.key = p.String()
}

// registry tracks mounted fields in registration order.
type registry struct {
	nextID int
	order  []*fieldState
	byKey  map[string]*fieldState
}

func (r *registry) init() {
	r.byKey = make(map[string]*fieldState)
}

func (r *registry) get(p path.Path) *fieldState {
	return r.byKey[p.String()]
}

func (r *registry) add(st *fieldState) {
	r.nextID++
	st.id = r.nextID
	r.order = append(r.order, st)
	r.byKey[st.key] = st
}

func (r *registry) remove(st *fieldState) {
	if r.byKey[st.key] == st {
		delete(r.byKey, st.key)
	}
	for i, candidate := range r.order {
		if candidate == st {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			return
		}
	}
}

// live returns the mounted fields in registration order.
func (r *registry) live() []*fieldState {
	return append([]*fieldState(nil), r.order...)
}

// related returns fields whose path is p, inside p or an ancestor of p.
func (r *registry) related(p path.Path) []*fieldState {
	var out []*fieldState
	for _, st := range r.order {
		if st.path.HasPrefix(p) || p.HasPrefix(st.path) {
			out = append(out, st)
		}
	}
	return out
}

// ancestors returns fields at p or above it.
func (r *registry) ancestors(p path.Path) []*fieldState {
	var out []*fieldState
	for _, st := range r.order {
		if p.HasPrefix(st.path) {
			out = append(out, st)
		}
	}
	return out
}

// remapItems renames every field addressing an item of the list at base.
// mapIndex returns the item's new index, or false when the item is gone, in
// which case the field is released and returned.
func (r *registry) remapItems(base path.Path, mapIndex func(int) (int, bool)) []*fieldState {
	var released []*fieldState
	depth := len(base)
	kept := r.order[:0]
	for _, st := range r.order {
		if len(st.path) <= depth || !st.path.HasPrefix(base) || !st.path[depth].IsIndex() {
			kept = append(kept, st)
			continue
		}
		next, ok := mapIndex(st.path[depth].Index())
		if !ok {
			st.release()
			released = append(released, st)
			continue
		}
		st.setPath(st.path.With(depth, path.Index(next)))
		kept = append(kept, st)
	}
	r.order = kept
	r.reindex()
	return released
}

func (r *registry) reindex() {
	r.byKey = make(map[string]*fieldState, len(r.order))
	for _, st := range r.order {
		r.byKey[st.key] = st
	}
}

// countUnder returns the number of distinct items of the list at base that
// have at least one mounted field.
func (r *registry) countUnder(base path.Path) int {
	depth := len(base)
	seen := make(map[int]struct{})
	for _, st := range r.order {
		if len(st.path) > depth && st.path.HasPrefix(base) && st.path[depth].IsIndex() {
			seen[st.path[depth].Index()] = struct{}{}
		}
	}
	return len(seen)
}

// ItemOption configures a field at registration.
type ItemOption func(*itemConfig)

type itemConfig struct {
	rules     []validation.Rule
	rulesSet  bool
	required  bool
	trigger   Trigger
	normalize validation.Normalizer
	label     string
}

// Rules sets the field's rule chain, evaluated in declaration order.
func Rules(rules ...validation.Rule) ItemOption {
	return func(cfg *itemConfig) {
		cfg.rules = append([]validation.Rule(nil), rules...)
		cfg.rulesSet = true
	}
}

// Required prepends a presence rule unless the chain already has one.
func Required() ItemOption {
	return func(cfg *itemConfig) {
		cfg.required = true
	}
}

// ValidateTrigger selects the events that validate the field.
func ValidateTrigger(trigger Trigger) ItemOption {
	return func(cfg *itemConfig) {
		cfg.trigger = trigger
	}
}

// Normalize rewrites values written to the field before they are stored.
func Normalize(fn validation.Normalizer) ItemOption {
	return func(cfg *itemConfig) {
		cfg.normalize = fn
	}
}

// Label names the field in default error messages.
func Label(label string) ItemOption {
	return func(cfg *itemConfig) {
		cfg.label = label
	}
}

func (cfg itemConfig) apply(st *fieldState) {
	if cfg.rulesSet {
		st.rules = cfg.rules
	}
	if cfg.required {
		if ok, _ := validation.HasRequired(st.rules); !ok {
			st.rules = append([]validation.Rule{validation.Required("")}, st.rules...)
		}
	}
	if cfg.trigger != 0 {
		st.trigger = cfg.trigger
	}
	if cfg.normalize != nil {
		st.normalize = cfg.normalize
	}
	if cfg.label != "" {
		st.label = cfg.label
	}
}

// Register mounts the field at name. Registering a path that is already
// mounted returns the existing handle, updated with the new options, so
// callers may register on every render.
func (f *Form) Register(name any, opts ...ItemOption) (*Field, error) {
	p, err := f.resolve("register", name)
	if err != nil {
		return nil, err
	}

	var cfg itemConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, f.misuse("register", name, ErrClosed)
	}
	if st := f.fields.get(p); st != nil {
		cfg.apply(st)
		handle := st.handle
		f.mu.Unlock()
		return handle, nil
	}

	st := &fieldState{trigger: f.defaultTrigger}
	st.setPath(p)
	st.bump(f.ctx)
	cfg.apply(st)
	st.handle = &Field{form: f, state: st}
	f.fields.add(st)
	event := FieldEvent{Meta: f.metaLocked(st)}
	f.mu.Unlock()

	f.emit([]FieldEvent{event})
	return st.handle, nil
}

// Unregister drops the field's metadata. The value stays in the tree.
func (f *Form) Unregister(name any) error {
	p, err := f.resolve("unregister", name)
	if err != nil {
		return err
	}
	f.mu.Lock()
	st := f.fields.get(p)
	if st == nil {
		f.mu.Unlock()
		return f.misuse("unregister", name, ErrNotRegistered)
	}
	event := f.unregisterLocked(st)
	f.mu.Unlock()

	f.emit([]FieldEvent{event})
	return nil
}

func (f *Form) unregisterLocked(st *fieldState) FieldEvent {
	f.fields.remove(st)
	st.release()
	return FieldEvent{Meta: f.metaLocked(st), Removed: true}
}

// CountUnder returns how many items of the list at name have mounted fields.
func (f *Form) CountUnder(name any) int {
	p, err := f.resolve("count", name)
	if err != nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields.countUnder(p)
}

// Fields returns the metadata of every mounted field in registration order.
func (f *Form) Fields() []FieldMeta {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FieldMeta, 0, len(f.fields.order))
	for _, st := range f.fields.order {
		out = append(out, f.metaLocked(st))
	}
	return out
}

// FieldMeta returns the metadata of the field mounted at name.
func (f *Form) FieldMeta(name any) (FieldMeta, bool) {
	p, err := path.Normalize(name)
	if err != nil {
		return FieldMeta{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.fields.get(p)
	if st == nil {
		return FieldMeta{}, false
	}
	return f.metaLocked(st), true
}

// GetFieldError returns the current error of the field at name.
func (f *Form) GetFieldError(name any) string {
	meta, _ := f.FieldMeta(name)
	return meta.Error
}

// IsFieldTouched reports whether the user interacted with the field.
func (f *Form) IsFieldTouched(name any) bool {
	meta, _ := f.FieldMeta(name)
	return meta.Touched
}

// IsFieldDirty reports whether the field's value was written since mount or
// the last reset.
func (f *Form) IsFieldDirty(name any) bool {
	meta, _ := f.FieldMeta(name)
	return meta.Dirty
}

// FirstError returns the first invalid field in registration order, which is
// the field a rendering layer should focus.
func (f *Form) FirstError() (FieldError, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range f.fields.order {
		if st.status == StatusInvalid {
			return FieldError{Path: st.path.Clone(), Name: st.key, Message: st.err}, true
		}
	}
	return FieldError{}, false
}

func (f *Form) metaLocked(st *fieldState) FieldMeta {
	value, _ := f.store.get(st.path)
	return FieldMeta{
		ID:         st.id,
		Path:       st.path.Clone(),
		Name:       st.key,
		Label:      st.label,
		Value:      cloneValue(value),
		Error:      st.err,
		Status:     st.status,
		Dirty:      st.dirty,
		Touched:    st.touched,
		Generation: st.generation,
	}
}
