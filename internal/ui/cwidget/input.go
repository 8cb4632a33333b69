package cwidget

import (
	"errors"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

var errPathMissing = errors.New("path does not exist")

// PathInput is a labelled path entry with optional action buttons and an
// inline warning for paths that cannot be found.
type PathInput struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label
	actions     *fyne.Container

	LabelText   string
	Placeholder string

	OnChanged func(string)

	Validator func(string) error
}

func NewPathInput(label, placeholder, value string, onChanged func(string)) *PathInput {
	input := &PathInput{
		LabelText:   label,
		Placeholder: placeholder,
		OnChanged:   onChanged,
	}

	input.labelWidget = widget.NewLabel(label)
	input.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	input.entryWidget = widget.NewEntry()
	input.entryWidget.SetPlaceHolder(placeholder)

	input.errorWidget = widget.NewLabel("")
	input.errorWidget.Hidden = true
	input.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	input.errorWidget.Importance = widget.DangerImportance

	input.actions = container.NewHBox()

	input.Validator = func(s string) error {
		if s == "" {
			return nil
		}
		if _, err := os.Stat(s); err != nil {
			return errPathMissing
		}
		return nil
	}

	input.entryWidget.SetText(value)
	input.SetError(input.Validator(value))

	// a missing path is only a warning, the value is still taken
	input.entryWidget.OnChanged = func(s string) {
		input.SetError(input.Validator(s))
		if input.OnChanged != nil {
			input.OnChanged(s)
		}
	}

	input.ExtendBaseWidget(input)

	return input
}

func (item *PathInput) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		container.NewBorder(nil, nil, nil, item.actions, item.entryWidget),
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

// AddAction appends a button to the right of the entry.
func (item *PathInput) AddAction(label string, icon fyne.Resource, tapped func()) *widget.Button {
	btn := widget.NewButtonWithIcon(label, icon, tapped)
	item.actions.Add(btn)
	return btn
}

func (item *PathInput) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *PathInput) SetText(text string) {
	item.entryWidget.SetText(text)
}

func (item *PathInput) Text() string {
	return item.entryWidget.Text
}
