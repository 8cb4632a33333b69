package ui

import (
	"errors"
	"log/slog"
	"strings"

	"detbench/internal/config"
	"detbench/internal/ui/cwidget"
	"detbench/processing/runner"
	"detbench/processing/task"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config *config.Config
	runner *runner.Runner
	deps   task.Deps
	logger *slog.Logger

	modelInput *cwidget.PathInput
	dataInput  *cwidget.PathInput

	evalButton  *widget.Button
	benchButton *widget.Button

	logGrid   *widget.TextGrid
	logScroll *container.Scroll
}

// CreateApp builds the window. Task events are marshalled onto the Fyne
// goroutine with fyne.Do.
func CreateApp(cfg *config.Config, deps task.Deps, logger *slog.Logger) *DetectApp {
	return newDetectApp(app.NewWithID("io.detbench.desktop"), cfg, deps, logger, fyne.Do)
}

func newDetectApp(fyneApp fyne.App, cfg *config.Config, deps task.Deps, logger *slog.Logger, dispatch runner.Dispatcher) *DetectApp {
	w := fyneApp.NewWindow("Detection Model Evaluation")
	w.Resize(fyne.NewSize(cfg.GetWindowSize()))

	return &DetectApp{
		fyneApp: fyneApp,
		mainWin: w,
		config:  cfg,
		runner:  runner.New(dispatch, logger),
		deps:    deps,
		logger:  logger,
	}
}

func (a *DetectApp) Run() {
	a.mainWin.SetContent(a.buildContent())

	// runs in flight are not cancelled, their goroutines end with the process
	a.mainWin.SetCloseIntercept(a.quit)

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *DetectApp) buildContent() fyne.CanvasObject {
	a.modelInput = cwidget.NewPathInput("Model", "/path/to/model.pt", a.config.GetModelPath(), a.config.SetModelPath)
	a.modelInput.AddAction("Select Model", theme.FileIcon(), a.selectModelFile)

	a.dataInput = cwidget.NewPathInput("Dataset", "/path/to/data.yaml or dataset folder", a.config.GetDataPath(), a.config.SetDataPath)
	a.dataInput.AddAction("Select Data", theme.FileIcon(), a.selectDataFile)
	a.dataInput.AddAction("", theme.FolderOpenIcon(), a.selectDataFolder)

	a.evalButton = widget.NewButtonWithIcon("Run Validation", theme.MediaPlayIcon(), nil)
	a.evalButton.OnTapped = func() { _, _ = a.startRun(task.KindEvaluation, a.evalButton) }

	a.benchButton = widget.NewButtonWithIcon("Run Benchmark", theme.MediaFastForwardIcon(), nil)
	a.benchButton.OnTapped = func() { _, _ = a.startRun(task.KindBenchmark, a.benchButton) }

	exitButton := widget.NewButtonWithIcon("Exit", theme.CancelIcon(), a.quit)

	a.logGrid = widget.NewTextGrid()
	a.logScroll = container.NewScroll(a.logGrid)

	settingsLabel := widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	sidebar := container.NewVBox(
		settingsLabel,
		widget.NewSeparator(),
		a.modelInput,
		a.dataInput,
		widget.NewSeparator(),
		a.evalButton,
		a.benchButton,
		widget.NewSeparator(),
		exitButton,
	)

	outputLabel := widget.NewLabelWithStyle("Output", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	output := container.NewBorder(outputLabel, nil, nil, nil, a.logScroll)

	split := container.NewHSplit(
		container.NewPadded(sidebar),
		container.NewPadded(output),
	)
	split.SetOffset(0.35)

	return split
}

func (a *DetectApp) quit() {
	size := a.mainWin.Canvas().Size()
	a.config.SetWindowSize(size.Width, size.Height)

	if err := a.config.SaveByDefault(); err != nil {
		a.logger.Error("failed to save config", "path", a.config.Path(), "error", err)
	}

	a.fyneApp.Quit()
}

// startRun starts a run of kind. button stays disabled until the run
// finishes and the log is cleared first.
func (a *DetectApp) startRun(kind task.Kind, button *widget.Button) (*runner.Run, error) {
	req := task.Request{
		ModelPath: a.config.GetModelPath(),
		DataPath:  a.config.GetDataPath(),
	}

	worker, err := task.NewWorker(kind, req, a.deps)
	if err != nil {
		dialog.ShowError(err, a.mainWin)
		return nil, err
	}

	run, err := a.runner.Start(worker, runner.Hooks{
		OnStart: func() {
			a.clearLog()
			button.Disable()
		},
		OnEvent: func(ev task.Event) {
			a.appendLog(ev.Text)
		},
		OnFinish: func() {
			button.Enable()
			a.logger.Info("run complete", "kind", kind)
		},
	})
	if err != nil {
		if errors.Is(err, runner.ErrAlreadyRunning) {
			a.logger.Warn("run rejected", "kind", kind, "error", err)
		}
		dialog.ShowError(err, a.mainWin)
		return nil, err
	}
	return run, nil
}

func (a *DetectApp) clearLog() {
	a.logGrid.SetText("")
	a.logScroll.ScrollToTop()
}

// appendLog extends the last row and adds one row per newline. Only the
// touched rows are set, earlier output is left alone.
func (a *DetectApp) appendLog(text string) {
	if text == "" {
		return
	}
	lines := strings.Split(text, "\n")

	last := max(len(a.logGrid.Rows)-1, 0)
	var row widget.TextGridRow
	if len(a.logGrid.Rows) > 0 {
		row.Cells = append(row.Cells, a.logGrid.Rows[last].Cells...)
	}
	row.Cells = append(row.Cells, logCells(lines[0])...)
	a.logGrid.SetRow(last, row)

	for i, line := range lines[1:] {
		a.logGrid.SetRow(last+1+i, widget.TextGridRow{Cells: logCells(line)})
	}

	a.logScroll.ScrollToBottom()
}

func logCells(line string) []widget.TextGridCell {
	cells := make([]widget.TextGridCell, 0, len(line))
	for _, r := range line {
		cells = append(cells, widget.TextGridCell{Rune: r})
	}
	return cells
}

func (a *DetectApp) selectModelFile() {
	d := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err == nil && reader != nil {
			defer reader.Close()
			a.modelInput.SetText(reader.URI().Path())
		}
	}, a.mainWin)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".pt"}))
	d.Show()
}

func (a *DetectApp) selectDataFile() {
	d := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err == nil && reader != nil {
			defer reader.Close()
			a.dataInput.SetText(reader.URI().Path())
		}
	}, a.mainWin)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".yaml", ".yml"}))
	d.Show()
}

func (a *DetectApp) selectDataFolder() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err == nil && uri != nil {
			a.dataInput.SetText(uri.Path())
		}
	}, a.mainWin)
}
