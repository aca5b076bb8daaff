package tui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/diffkit/model"
)

type fakeRunner struct {
	summary model.Summary
	err     error
}

func (f fakeRunner) Execute() (model.Summary, error) { return f.summary, f.err }

func TestModel_Summary(t *testing.T) {
	m := New(fakeRunner{summary: model.Summary{Modified: []string{"a.py"}}})

	msg := m.runApp()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)

	done := next.(Model)
	require.NoError(t, done.Err())
	assert.Equal(t, []string{"a.py"}, done.Summary().Modified)
	assert.Contains(t, done.View(), "Modified:")
	assert.Contains(t, done.View(), "a.py")
}

func TestModel_Error(t *testing.T) {
	m := New(fakeRunner{err: errors.New("boom")})

	next, _ := m.Update(m.runApp())
	done := next.(Model)
	require.Error(t, done.Err())
	assert.Contains(t, done.View(), "boom")
}

func TestModel_Progress(t *testing.T) {
	m := New(fakeRunner{})
	next, _ := m.Update(Progress(2, 5))
	assert.Contains(t, next.(Model).View(), "(2/5)")
}

func TestRenderSummary_Empty(t *testing.T) {
	assert.Contains(t, RenderSummary(model.Summary{}), "Nothing to do.")

	out := RenderSummary(model.Summary{Message: "Dry run.", Failed: []string{"x.py"}})
	assert.Contains(t, out, "Dry run.")
	assert.Contains(t, out, "Failed:")
}
