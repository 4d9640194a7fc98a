package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-form2/pkg/schema"
	"github.com/goliatone/go-form2/pkg/testsupport"
)

func TestRun_ListForms(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), flags{
		source:    testsupport.Fixture("petstore.yaml"),
		envFile:   filepath.Join(t.TempDir(), "none.env"),
		listForms: true,
	}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "createOwner\t")
	assert.Contains(t, stdout.String(), "createPet\t")
}

func TestRun_RequiresSource(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), flags{envFile: filepath.Join(t.TempDir(), "none.env")}, &stdout, &stderr)
	assert.ErrorContains(t, err, "-source is required")
}

func TestRun_RejectsUnknownOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), flags{
		source:  testsupport.Fixture("signup.yaml"),
		output:  "xml",
		envFile: filepath.Join(t.TempDir(), "none.env"),
	}, &stdout, &stderr)
	assert.ErrorContains(t, err, "FORM2_OUTPUT")
}

func TestParseSource(t *testing.T) {
	assert.Nil(t, parseSource("  "))
	assert.Equal(t, schema.SourceKindURL, parseSource("https://example.com/api.yaml").Kind())
	assert.Equal(t, schema.SourceKindFile, parseSource("forms/signup.yaml").Kind())
}

func TestReadValues(t *testing.T) {
	file := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(file, []byte("email: ada@example.com\nprofile:\n  bio: hi\n"), 0o600))

	values, err := readValues(file)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"email":   "ada@example.com",
		"profile": map[string]any{"bio": "hi"},
	}, values)

	_, err = readValues(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
