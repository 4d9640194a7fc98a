package form

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-form2/internal/metrics"
	"github.com/goliatone/go-form2/pkg/path"
)

// FinishFunc receives the full value snapshot after a successful submit.
type FinishFunc func(values map[string]any)

// FinishFailedFunc receives the failed outcome of a submit.
type FinishFailedFunc func(outcome Outcome)

// ValuesChangeFunc receives the values written by one batch and the full
// value snapshot after it.
type ValuesChangeFunc func(changed, all map[string]any)

// Handle is the imperative surface host code drives a form through.
type Handle interface {
	Submit(ctx context.Context) Outcome
	Reset()
	GetFieldValue(name any) any
	SetFieldValue(name any, value any) error
	SetFieldsValue(values map[string]any) error
}

var _ Handle = (*Form)(nil)

// Option configures a Form.
type Option func(*Form)

// WithOnFinish sets the success callback used by Submit.
func WithOnFinish(fn FinishFunc) Option {
	return func(f *Form) {
		f.onFinish = fn
	}
}

// WithOnFinishFailed sets the failure callback used by Submit.
func WithOnFinishFailed(fn FinishFailedFunc) Option {
	return func(f *Form) {
		f.onFinishFailed = fn
	}
}

// WithOnValuesChange sets the batched change callback.
func WithOnValuesChange(fn ValuesChangeFunc) Option {
	return func(f *Form) {
		f.onValuesChange = fn
	}
}

// WithLogger routes engine logs (misuse warnings, stale result notices) to
// logger. Forms log nowhere by default.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(f *Form) {
		if logger != nil {
			f.baseLogger = logger
		}
	}
}

// WithMetrics registers engine collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(f *Form) {
		f.metrics = metrics.New(reg)
	}
}

// WithID overrides the generated form identifier used in log entries.
func WithID(id string) Option {
	return func(f *Form) {
		if id != "" {
			f.id = id
		}
	}
}

// WithValidateTrigger sets the trigger used by fields that do not choose
// their own. The default is OnChange.
func WithValidateTrigger(trigger Trigger) Option {
	return func(f *Form) {
		if trigger != 0 {
			f.defaultTrigger = trigger
		}
	}
}

// Form is the context object shared by every mounted field.
type Form struct {
	id             string
	baseLogger     logrus.FieldLogger
	log            logrus.FieldLogger
	metrics        *metrics.Metrics
	defaultTrigger Trigger

	onFinish       FinishFunc
	onFinishFailed FinishFailedFunc
	onValuesChange ValuesChangeFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	store  store
	fields registry
	lists  []*listGroup

	subsMu  sync.RWMutex
	subs    map[int]func(FieldEvent)
	nextSub int

	pending tracker
}

// New mounts a form over a deep copy of initialValues.
func New(initialValues map[string]any, opts ...Option) *Form {
	f := &Form{
		id:             uuid.NewString(),
		defaultTrigger: OnChange,
		subs:           make(map[int]func(FieldEvent)),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(f)
	}
	if f.baseLogger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		f.baseLogger = discard
	}
	f.log = f.baseLogger.WithField("form_id", f.id)
	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.store.initialize(initialValues)
	f.fields.init()
	return f
}

// ID returns the form identifier.
func (f *Form) ID() string {
	return f.id
}

// Subscribe registers fn for field events and returns its cancel function.
// fn runs on the goroutine that caused the change and must not block.
func (f *Form) Subscribe(fn func(FieldEvent)) func() {
	if fn == nil {
		return func() {}
	}
	f.subsMu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.subsMu.Lock()
			delete(f.subs, id)
			f.subsMu.Unlock()
		})
	}
}

// Wait blocks until no background validation is running.
func (f *Form) Wait(ctx context.Context) error {
	return f.pending.wait(ctx)
}

// Close unmounts the form: in-flight validations are cancelled and their
// results discarded. Mutations after Close are rejected as misuse.
func (f *Form) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	for _, st := range f.fields.order {
		st.bump(f.ctx)
	}
	f.mu.Unlock()
	f.cancel()
	_ = f.pending.wait(context.Background())
}

func (f *Form) emit(events []FieldEvent) {
	if len(events) == 0 {
		return
	}
	f.subsMu.RLock()
	if len(f.subs) == 0 {
		f.subsMu.RUnlock()
		return
	}
	ids := make([]int, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(FieldEvent), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, f.subs[id])
	}
	f.subsMu.RUnlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func (f *Form) misuse(op string, name any, err error) error {
	f.log.WithFields(logrus.Fields{
		"op":   op,
		"path": describeName(name),
	}).WithError(err).Warn("form: misuse")
	return fmt.Errorf("form: %s %s: %w", op, describeName(name), err)
}

func (f *Form) resolve(op string, name any) (path.Path, error) {
	p, err := path.Normalize(name)
	if err != nil {
		return nil, f.misuse(op, name, fmt.Errorf("%w: %v", ErrInvalidPath, err))
	}
	return p, nil
}

func describeName(name any) string {
	switch v := name.(type) {
	case path.Path:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// tracker counts background validations so Wait can block until idle.
type tracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (t *tracker) add() {
	t.mu.Lock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
	t.mu.Unlock()
}

func (t *tracker) done() {
	t.mu.Lock()
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
	t.mu.Unlock()
}

func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.n == 0 {
		t.mu.Unlock()
		return nil
	}
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
