// Package form implements the dynamic form engine: a value tree addressed by
// canonical paths, a registry of mounted fields with stable identities, list
// operations that rename (never recreate) the fields of shifted items, rule
// chains with generation-stamped async validators, batched change
// notification and the imperative Handle used by host code.
//
// A Form is the explicit context object handed to every field. All mutation
// goes through its methods; there is no package level state. The tree and the
// field metadata are guarded by one mutex, host callbacks always run with the
// mutex released, and async validators run on their own goroutines. A
// validator result is applied only when the field's generation (bumped on
// every value write) still matches the generation the validation started
// from, so the visible state always reflects the latest input.
//
// Each public mutation is one batch and produces at most one OnValuesChange
// call. Batch groups several writes into a single notification.
package form
