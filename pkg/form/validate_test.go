package form_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-form2/pkg/form"
	"github.com/goliatone/go-form2/pkg/validation"
)

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestValidation_StaleResultNeverOverwrites(t *testing.T) {
	release := make(chan struct{})
	reg := prometheus.NewRegistry()
	f := form.New(nil, form.WithMetrics(reg))

	check := func(_ context.Context, value any, _ map[string]any) error {
		if value == "ab" {
			// ignores cancellation: only the generation check stands between
			// this result and the field
			<-release
			return errors.New("slow verdict for ab")
		}
		return errors.New("fast verdict for " + value.(string))
	}
	mustRegister(t, f, "handle", form.Rules(validation.Validator(check, "")))

	mustNoErr(t, f.SetFieldValue("handle", "ab"))
	time.Sleep(10 * time.Millisecond)
	mustNoErr(t, f.SetFieldValue("handle", "abc"))

	waitFor(t, "fast verdict", func() bool {
		return f.GetFieldError("handle") == "fast verdict for abc"
	})

	close(release)
	mustNoErr(t, f.Wait(context.Background()))

	if got := f.GetFieldError("handle"); got != "fast verdict for abc" {
		t.Fatalf("stale result overwrote field: %q", got)
	}
	meta, ok := f.FieldMeta("handle")
	if !ok || meta.Status != form.StatusInvalid {
		t.Fatalf("expected invalid handle, got %#v (%v)", meta, ok)
	}
	if got := counterValue(t, reg, "form2_stale_validation_results_total", "", ""); got != 1 {
		t.Fatalf("expected 1 stale result, got %v", got)
	}
}

func TestValidation_NewWriteCancelsRunningValidator(t *testing.T) {
	cancelled := make(chan struct{}, 1)
	f := form.New(nil)
	check := func(ctx context.Context, value any, _ map[string]any) error {
		if value != "first" {
			return nil
		}
		<-ctx.Done()
		cancelled <- struct{}{}
		return ctx.Err()
	}
	mustRegister(t, f, "name", form.Rules(validation.Validator(check, "")))

	mustNoErr(t, f.SetFieldValue("name", "first"))
	mustNoErr(t, f.SetFieldValue("name", "second"))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("validator for the superseded value was not cancelled")
	}
	mustNoErr(t, f.Wait(context.Background()))
	meta, _ := f.FieldMeta("name")
	if meta.Status != form.StatusValid || meta.Error != "" {
		t.Fatalf("expected valid field, got %#v", meta)
	}
}

func TestValidateField_Idempotent(t *testing.T) {
	var calls atomic.Int32
	f := form.New(map[string]any{"code": "x1"})
	mustRegister(t, f, "code",
		form.Required(),
		form.Rules(
			validation.MustPattern(`^[a-z]\d$`, "bad code"),
			validation.Validator(func(context.Context, any, map[string]any) error {
				calls.Add(1)
				return errors.New("taken")
			}, ""),
		),
	)

	first, err := f.ValidateField(context.Background(), "code")
	mustNoErr(t, err)
	second, err := f.ValidateField(context.Background(), []any{"code"})
	mustNoErr(t, err)

	if first != "taken" || second != first {
		t.Fatalf("expected taken twice, got %q and %q", first, second)
	}
	if got := f.GetFieldError("code"); got != "taken" {
		t.Fatalf("expected stored error taken, got %q", got)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected validator to run twice, got %d", got)
	}
}

func TestValidation_FirstFailingRuleWins(t *testing.T) {
	f := form.New(nil)
	var ran atomic.Bool
	field := mustRegister(t, f, "pin",
		form.Label("PIN"),
		form.Rules(
			validation.Required(""),
			validation.Len(4, ""),
			validation.Validator(func(context.Context, any, map[string]any) error {
				ran.Store(true)
				return nil
			}, ""),
		),
	)

	mustNoErr(t, field.OnChange("12"))
	mustNoErr(t, f.Wait(context.Background()))

	if got := field.Meta().Error; got != "'PIN' must be exactly 4 characters" {
		t.Fatalf("unexpected error %q", got)
	}
	if ran.Load() {
		t.Fatalf("expected rules after the failing one to be skipped")
	}
}

func TestValidation_OptionalMissingValueSkipsChecks(t *testing.T) {
	f := form.New(nil)
	field := mustRegister(t, f, "website", form.Rules(validation.TypeOf(validation.TypeURL, "")))

	if msg := field.Validate(context.Background()); msg != "" {
		t.Fatalf("expected no error for missing optional value, got %q", msg)
	}
	if got := field.Meta().Status; got != form.StatusValid {
		t.Fatalf("expected valid, got %v", got)
	}

	mustNoErr(t, field.OnChange("not a url"))
	if got := field.Meta().Error; got != "'website' is not a valid url" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestValidation_ValidatorSeesAllValues(t *testing.T) {
	f := form.New(map[string]any{"password": "secret"})
	match := func(_ context.Context, value any, values map[string]any) error {
		if value != values["password"] {
			return errors.New("passwords do not match")
		}
		return nil
	}
	field := mustRegister(t, f, "confirm", form.Rules(validation.Validator(match, "")))

	mustNoErr(t, field.OnChange("other"))
	mustNoErr(t, f.Wait(context.Background()))
	if got := field.Meta().Error; got != "passwords do not match" {
		t.Fatalf("unexpected error %q", got)
	}

	mustNoErr(t, field.OnChange("secret"))
	mustNoErr(t, f.Wait(context.Background()))
	if got := field.Meta().Error; got != "" {
		t.Fatalf("expected error cleared, got %q", got)
	}
}

func TestBlur_DoesNotRevalidateValidatedValue(t *testing.T) {
	var calls atomic.Int32
	counting := validation.Validator(func(context.Context, any, map[string]any) error {
		calls.Add(1)
		return nil
	}, "")

	f := form.New(nil)
	both := mustRegister(t, f, "both",
		form.ValidateTrigger(form.OnChange|form.OnBlur),
		form.Rules(counting),
	)

	mustNoErr(t, f.SetFieldValue("both", "v"))
	mustNoErr(t, f.Blur("both"))
	mustNoErr(t, f.Wait(context.Background()))

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one validation, got %d", got)
	}
	if !both.Meta().Touched {
		t.Fatalf("expected blur to touch")
	}
}

func TestBlur_ValidatesBlurOnlyFields(t *testing.T) {
	f := form.New(nil)
	field := mustRegister(t, f, "email",
		form.ValidateTrigger(form.OnBlur),
		form.Rules(validation.TypeOf(validation.TypeEmail, "enter an email")),
	)

	mustNoErr(t, field.OnChange("nope"))
	if got := field.Meta().Status; got != form.StatusUnvalidated {
		t.Fatalf("expected unvalidated before blur, got %v", got)
	}

	field.Blur()
	mustNoErr(t, f.Wait(context.Background()))
	if got := field.Meta().Error; got != "enter an email" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestSubmitOnlyTrigger(t *testing.T) {
	f := form.New(nil, form.WithValidateTrigger(form.OnSubmit))
	field := mustRegister(t, f, "name", form.Required())

	mustNoErr(t, field.OnChange(""))
	field.Blur()
	if got := field.Meta().Status; got != form.StatusUnvalidated {
		t.Fatalf("expected unvalidated before submit, got %v", got)
	}

	outcome := f.Submit(context.Background())
	if len(outcome.Errors) != 1 {
		t.Fatalf("expected 1 error, got %#v", outcome.Errors)
	}
	if got := field.Meta().Status; got != form.StatusInvalid {
		t.Fatalf("expected invalid after submit, got %v", got)
	}
}

func TestValidateAll_RunsFieldsConcurrently(t *testing.T) {
	const n = 4
	var started atomic.Int32
	gate := make(chan struct{})
	rule := validation.Validator(func(ctx context.Context, _ any, _ map[string]any) error {
		if started.Add(1) == n {
			close(gate)
		}
		select {
		case <-gate:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, "")

	f := form.New(nil, form.WithValidateTrigger(form.OnSubmit))
	for _, name := range []string{"a", "b", "c", "d"} {
		mustRegister(t, f, name, form.Rules(rule))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if errs := f.ValidateAll(ctx); len(errs) != 0 {
		t.Fatalf("expected all fields to pass together, got %#v", errs)
	}
}

func TestClose_DiscardsPendingResults(t *testing.T) {
	f := form.New(nil)
	field := mustRegister(t, f, "name", form.Rules(validation.Validator(func(ctx context.Context, _ any, _ map[string]any) error {
		<-ctx.Done()
		return errors.New("late")
	}, "")))
	mustNoErr(t, field.OnChange("v"))

	f.Close()

	if got := field.Meta().Error; got != "" {
		t.Fatalf("expected no error after close, got %q", got)
	}
	mustNoErr(t, f.Wait(context.Background()))
}

func TestSetFieldValue_SameValueReturnsFieldToUnvalidated(t *testing.T) {
	rec := &changeRecorder{}
	f := form.New(map[string]any{"a": ""},
		form.WithValidateTrigger(form.OnSubmit),
		form.WithOnValuesChange(rec.record),
	)
	field := mustRegister(t, f, "a", form.Required())

	if outcome := f.Submit(context.Background()); outcome.OK() {
		t.Fatalf("expected submit to fail")
	}
	before := field.Meta()
	if before.Status != form.StatusInvalid || before.Error != "'a' is required" {
		t.Fatalf("unexpected state after submit: %+v", before)
	}

	if err := f.SetFieldValue("a", ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	after := field.Meta()
	if after.Status != form.StatusUnvalidated || after.Error != "" || !after.Dirty {
		t.Fatalf("expected unvalidated dirty field without error, got %+v", after)
	}
	if after.Generation <= before.Generation {
		t.Fatalf("expected generation to advance, %d -> %d", before.Generation, after.Generation)
	}
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no change notification, got %v", got)
	}
}
