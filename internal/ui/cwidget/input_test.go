package cwidget

import (
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/assert"
)

func TestPathInput(t *testing.T) {
	test.NewTempApp(t)

	var got []string
	input := NewPathInput("Model", "/path/to/model.pt", "", func(s string) {
		got = append(got, s)
	})

	assert.True(t, input.errorWidget.Hidden)

	missing := filepath.Join(t.TempDir(), "missing.pt")
	input.SetText(missing)
	assert.False(t, input.errorWidget.Hidden)
	assert.Equal(t, errPathMissing.Error(), input.errorWidget.Text)

	existing := t.TempDir()
	input.SetText(existing)
	assert.True(t, input.errorWidget.Hidden)

	assert.Equal(t, []string{missing, existing}, got)
	assert.Equal(t, existing, input.Text())
}

func TestPathInputInitialValueIsChecked(t *testing.T) {
	test.NewTempApp(t)

	input := NewPathInput("Data", "", filepath.Join(t.TempDir(), "gone"), nil)
	assert.False(t, input.errorWidget.Hidden)

	tapped := false
	btn := input.AddAction("Browse", theme.FolderOpenIcon(), func() { tapped = true })
	test.Tap(btn)
	assert.True(t, tapped)
	assert.Len(t, input.actions.Objects, 1)
}
