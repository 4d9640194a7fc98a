package orchestrator_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-form2/pkg/orchestrator"
	"github.com/goliatone/go-form2/pkg/schema"
	"github.com/goliatone/go-form2/pkg/testsupport"
)

const preset = `
title: Join the team
trigger: blur
initial:
  country: AU
items:
  email: {label: Work email}
  age: {hidden: true}
  users.role: {default: admin}
  tags.*: {label: Keyword, rules: [{kind: min, value: 2}]}
  newsletter: {required: true}
`

func TestPresetTransformer(t *testing.T) {
	transformer, err := orchestrator.NewPresetTransformerFromFS(fstest.MapFS{
		"presets/signup.yaml": {Data: []byte(preset)},
	}, "presets/signup.yaml")
	require.NoError(t, err)

	def := testsupport.MustLoadDefinition(t, testsupport.Fixture("signup.yaml"))
	require.NoError(t, transformer.Transform(context.Background(), &def))

	assert.Equal(t, "Join the team", def.Title)
	assert.Equal(t, "blur", def.Trigger)
	assert.Equal(t, "AU", def.Initial["country"])

	byName := map[string]schema.Item{}
	for _, item := range def.Items {
		byName[item.Name] = item
	}
	assert.NotContains(t, byName, "age")
	assert.Equal(t, "Work email", byName["email"].Label)
	assert.True(t, byName["newsletter"].Required)
	assert.Equal(t, "admin", byName["users"].Fields[1].Default)
	assert.Equal(t, "Keyword", byName["tags"].Fields[0].Label)
	assert.Len(t, byName["tags"].Fields[0].Rules, 1)
}

func TestPresetTransformer_UnknownItem(t *testing.T) {
	transformer, err := orchestrator.NewPresetTransformer([]byte("items:\n  nope: {label: X}\n"))
	require.NoError(t, err)
	def := testsupport.MustLoadDefinition(t, testsupport.Fixture("signup.yaml"))
	assert.ErrorContains(t, transformer.Transform(context.Background(), &def), `item "nope" not found`)
}

func TestPresetTransformer_RejectsUnknownKeys(t *testing.T) {
	_, err := orchestrator.NewPresetTransformer([]byte("colour: red\n"))
	assert.Error(t, err)
	_, err = orchestrator.NewPresetTransformer([]byte("  "))
	assert.Error(t, err)
}

func TestOrchestrator_AppliesTransformers(t *testing.T) {
	called := false
	orch := orchestrator.New(
		orchestrator.WithValidators(validators()),
		orchestrator.WithTransformer(orchestrator.TransformerFunc(func(_ context.Context, def *schema.Definition) error {
			called = true
			def.Title = "Patched"
			return nil
		})),
		orchestrator.WithTransformer(orchestrator.TransformerFunc(func(_ context.Context, def *schema.Definition) error {
			def.Items = nil
			return nil
		})),
	)
	_, err := orch.Definition(context.Background(), orchestrator.Request{
		Source: schema.SourceFromFile(testsupport.Fixture("signup.yaml")),
	})
	assert.True(t, called)
	assert.ErrorIs(t, err, schema.ErrInvalidDefinition)
}
