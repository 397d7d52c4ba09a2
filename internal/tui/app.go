// Package tui is the terminal drive explorer. Every state change goes through
// drive.Explorer; the widgets are redrawn from its View after each event.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/mrd/ca-drive/internal/config"
	"github.com/mrd/ca-drive/internal/constants"
	"github.com/mrd/ca-drive/internal/drive"
	"github.com/mrd/ca-drive/internal/events"
	"github.com/mrd/ca-drive/internal/localfs"
	"github.com/mrd/ca-drive/internal/logging"
	"github.com/mrd/ca-drive/internal/models"
	"github.com/mrd/ca-drive/internal/pathutil"
	ustr "github.com/mrd/ca-drive/internal/util/strings"
)

const (
	ModeNormal = 1
	ModeInput  = 2
	ModeModal  = 3
)

// gridColumns is the number of file tiles per row in grid view.
const gridColumns = 4

// App is the terminal explorer for one client's drive.
type App struct {
	app     *tview.Application
	pages   *tview.Pages
	crumbs  *tview.TextView
	folders *tview.List
	files   *tview.Table
	detail  *tview.TextView
	status  *tview.TextView

	explorer   *drive.Explorer
	bus        *events.EventBus
	cfg        *config.Config
	configPath string
	logger     *logging.Logger

	ctx          context.Context
	mode         uint8
	view         drive.View
	focusOnFiles bool
	message      string
}

// NewApp creates the explorer UI. bus must be the bus the explorer publishes to.
func NewApp(explorer *drive.Explorer, bus *events.EventBus, cfg *config.Config, configPath string, logger *logging.Logger) *App {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg == nil {
		cfg = config.New()
	}
	a := &App{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		crumbs:     tview.NewTextView().SetDynamicColors(true),
		folders:    tview.NewList().ShowSecondaryText(false),
		files:      tview.NewTable(),
		detail:     tview.NewTextView().SetDynamicColors(true).SetWrap(true),
		status:     tview.NewTextView().SetDynamicColors(true),
		explorer:   explorer,
		bus:        bus,
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		ctx:        context.Background(),
		mode:       ModeNormal,
	}

	a.folders.SetBorder(true).SetTitle("Folders")
	a.files.SetBorder(true)
	a.detail.SetBorder(true).SetTitle("Details")
	a.folders.SetChangedFunc(func(int, string, string, rune) { a.showDetails() })
	a.files.SetSelectionChangedFunc(func(int, int) { a.showDetails() })

	cols := tview.NewFlex().
		AddItem(a.folders, 0, 1, true).
		AddItem(a.files, 0, 3, false).
		AddItem(a.detail, 0, 1, false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(cols, 0, 1, true).
		AddItem(a.status, 1, 0, false)

	a.pages.AddPage("main", main, true, true)
	a.render()
	return a
}

// Run loads the drive and blocks until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.ctx = ctx
	done := make(chan struct{})
	defer close(done)

	if a.bus != nil {
		ch := a.bus.SubscribeAll()
		defer a.bus.UnsubscribeAll(ch)
		go a.listen(ch, done)
	}
	go func() {
		select {
		case <-ctx.Done():
			a.app.Stop()
		case <-done:
		}
	}()
	go a.run("Loading", a.explorer.Load)

	a.app.SetRoot(a.pages, true)
	a.app.SetInputCapture(a.globalInput)
	a.app.SetFocus(a.folders)
	return a.app.Run()
}

func (a *App) listen(ch <-chan events.Event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			msg := eventMessage(ev)
			if ev.Type() == events.EventLog && msg == "" {
				continue
			}
			a.app.QueueUpdateDraw(func() {
				if msg != "" {
					a.message = msg
				}
				a.render()
			})
		}
	}
}

// run executes a blocking explorer call off the UI goroutine.
func (a *App) run(label string, fn func(ctx context.Context) error) {
	a.app.QueueUpdateDraw(func() {
		a.message = "[yellow]" + label + "…"
		a.updateStatus()
	})
	err := fn(a.ctx)
	if err == nil || errors.Is(err, drive.ErrSuperseded) {
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.message = "[red]" + tview.Escape(err.Error())
		a.updateStatus()
	})
}

// render redraws every widget from the explorer's current view.
func (a *App) render() {
	a.view = a.explorer.View()

	a.crumbs.SetText(breadcrumbText(a.view.State))

	cur := a.folders.GetCurrentItem()
	a.folders.Clear()
	for _, f := range a.view.Folders {
		a.folders.AddItem(tview.Escape(drive.DisplayName(f.Name)), "", 0, nil)
	}
	if cur >= 0 && cur < a.folders.GetItemCount() {
		a.folders.SetCurrentItem(cur)
	}
	a.folders.SetTitle(fmt.Sprintf("Folders (%d)", len(a.view.Folders)))

	a.fillFiles()
	a.showDetails()
	a.updateStatus()
}

func (a *App) fillFiles() {
	a.files.Clear()
	if a.cfg.ViewMode == config.ViewModeList {
		a.files.SetSelectable(true, false).SetFixed(1, 0)
		for c, h := range []string{"Name", "Type", "Size", "Uploaded"} {
			a.files.SetCell(0, c, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
		}
		for i, f := range a.view.Files {
			row := i + 1
			a.files.SetCell(row, 0, tview.NewTableCell(tview.Escape(f.FileName)).SetExpansion(1))
			a.files.SetCell(row, 1, tview.NewTableCell(f.TypeLabel()))
			a.files.SetCell(row, 2, tview.NewTableCell(ustr.FormatBytes(f.FileSize)).SetAlign(tview.AlignRight))
			a.files.SetCell(row, 3, tview.NewTableCell(formatDate(f)))
		}
	} else {
		a.files.SetSelectable(true, true).SetFixed(0, 0)
		for i, f := range a.view.Files {
			row, col := gridCell(i)
			text := fmt.Sprintf("[%s] %s", f.TypeLabel(), ustr.Truncate(f.FileName, 24))
			a.files.SetCell(row, col, tview.NewTableCell(tview.Escape(text)).SetExpansion(1))
		}
	}
	a.files.SetTitle(fmt.Sprintf("Files (%d) · %s", len(a.view.Files), a.cfg.ViewMode))
}

func (a *App) updateStatus() {
	keys := "[::b]Enter[::-] open  [::b]⌫[::-] up  [::b]0-9[::-] crumb  [::b]r[::-] refresh  [::b]d[::-] del  [::b]u[::-] upload  [::b]n[::-] new folder  [::b]y[::-] year  [::b]v[::-] view  [::b]q[::-] quit"
	year := a.view.ActiveYear
	if year == "" {
		year = "-"
	}
	text := fmt.Sprintf("%s  [::b]%s[::-]", keys, tview.Escape(year))
	if a.message != "" {
		text = a.message + "[-]  " + text
	}
	a.status.SetText(text)
}

// selectedFolder returns the folder under the cursor in the folder list.
func (a *App) selectedFolder() (models.Folder, bool) {
	i := a.folders.GetCurrentItem()
	if i < 0 || i >= len(a.view.Folders) {
		return models.Folder{}, false
	}
	return a.view.Folders[i], true
}

// selectedFile returns the file under the cursor in the file table.
func (a *App) selectedFile() (models.File, bool) {
	row, col := a.files.GetSelection()
	var i int
	if a.cfg.ViewMode == config.ViewModeList {
		i = row - 1
	} else {
		i = row*gridColumns + col
	}
	if i < 0 || i >= len(a.view.Files) {
		return models.File{}, false
	}
	return a.view.Files[i], true
}

func (a *App) showDetails() {
	if a.focusOnFiles {
		if f, ok := a.selectedFile(); ok {
			a.detail.SetText(fileDetails(f))
			return
		}
	} else if f, ok := a.selectedFolder(); ok {
		a.detail.SetText(fmt.Sprintf("[::b]%s[::-]\n\nCreated: %s\nModified: %s",
			tview.Escape(drive.DisplayName(f.Name)),
			f.CreatedAt.Local().Format("02 Jan 2006"),
			f.ModifiedAt().Local().Format("02 Jan 2006")))
		return
	}
	a.detail.SetText("")
}

func (a *App) toggleFocus() {
	a.focusOnFiles = !a.focusOnFiles
	if a.focusOnFiles {
		a.app.SetFocus(a.files)
	} else {
		a.app.SetFocus(a.folders)
	}
	a.showDetails()
}

func (a *App) navigate(fn func() (drive.State, error)) {
	if _, err := fn(); err != nil && !errors.Is(err, drive.ErrAtRoot) {
		a.message = "[red]" + tview.Escape(err.Error())
	} else {
		a.message = ""
	}
	a.folders.SetCurrentItem(0)
	a.render()
}

func (a *App) globalInput(event *tcell.EventKey) *tcell.EventKey {
	if a.mode != ModeNormal {
		if a.mode == ModeInput && event.Key() == tcell.KeyEscape {
			a.closeOverlay("input")
			return nil
		}
		return event
	}

	switch event.Key() {
	case tcell.KeyTab:
		a.toggleFocus()
		return nil
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		a.navigate(a.explorer.GoUp)
		return nil
	case tcell.KeyEnter:
		if a.focusOnFiles {
			a.showDetails()
			return nil
		}
		if f, ok := a.selectedFolder(); ok {
			a.navigate(func() (drive.State, error) { return a.explorer.Enter(f.ID) })
		}
		return nil
	case tcell.KeyRune:
	default:
		return event
	}

	r := event.Rune()
	switch {
	case r >= '0' && r <= '9':
		a.navigate(func() (drive.State, error) { return a.explorer.GoToBreadcrumb(int(r - '0')) })
	case r == 'q':
		a.app.Stop()
	case r == 'r':
		go a.run("Refreshing", a.explorer.Load)
	case r == 'y':
		a.cycleYear()
	case r == 'v':
		a.toggleViewMode()
	case r == 'd':
		a.confirmDelete()
	case r == 'u':
		a.showInput("Upload", "Path: ", a.upload)
	case r == 'n':
		a.showInput("New folder", "Name: ", a.createFolder)
	default:
		return event
	}
	return nil
}

func (a *App) cycleYear() {
	years := drive.RootYears(a.explorer.Snapshot())
	if len(years) == 0 {
		years = constants.DefaultFiscalYears
	}
	next := nextYear(years, a.explorer.ActiveYear())
	a.explorer.SetActiveYear(next)
	a.message = "Year: " + tview.Escape(next)
	a.render()
}

func (a *App) toggleViewMode() {
	mode := a.cfg.ToggleViewMode()
	if a.configPath != "" {
		if err := config.Save(a.cfg, a.configPath); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to save view mode")
			a.message = "[red]view mode not saved: " + tview.Escape(err.Error())
		}
	}
	a.files.Select(0, 0)
	a.render()
	a.logger.Debug().Str("view_mode", mode).Msg("View mode changed")
}

func (a *App) confirmDelete() {
	if a.focusOnFiles {
		f, ok := a.selectedFile()
		if !ok {
			return
		}
		a.showConfirm(fmt.Sprintf("Delete file '%s'?", f.FileName), func() {
			go a.run("Deleting", func(ctx context.Context) error { return a.explorer.Delete(ctx, f.ID) })
		})
		return
	}
	f, ok := a.selectedFolder()
	if !ok {
		return
	}
	a.showConfirm(fmt.Sprintf("Delete folder '%s' and its contents?", drive.DisplayName(f.Name)), func() {
		go a.run("Deleting", func(ctx context.Context) error { return a.explorer.DeleteFolder(ctx, f.ID) })
	})
}

// upload sends a file, or every file directly inside a directory, to the current folder.
func (a *App) upload(path string) {
	files, err := collectFiles(path)
	if err != nil {
		a.message = "[red]" + tview.Escape(err.Error())
		a.updateStatus()
		return
	}
	go a.run("Uploading "+ustr.Count(len(files), "file"), func(ctx context.Context) error {
		report, err := a.explorer.Upload(ctx, files)
		if err != nil {
			return err
		}
		summary := uploadSummary(report)
		a.app.QueueUpdateDraw(func() {
			a.message = summary
			a.updateStatus()
		})
		return nil
	})
}

func (a *App) createFolder(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	go a.run("Creating "+name, func(ctx context.Context) error {
		_, err := a.explorer.CreateFolder(ctx, name)
		return err
	})
}

func (a *App) showInput(title, label string, onDone func(string)) {
	input := tview.NewInputField().SetLabel(label).SetFieldWidth(60)
	input.SetDoneFunc(func(key tcell.Key) {
		text := input.GetText()
		a.closeOverlay("input")
		if key == tcell.KeyEnter && strings.TrimSpace(text) != "" {
			onDone(text)
		}
	})
	input.SetBorder(true).SetTitle(title)

	frame := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(input, 76, 0, true).
			AddItem(nil, 0, 1, false), 3, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("input", frame, true, true)
	a.mode = ModeInput
	a.app.SetFocus(input)
}

func (a *App) showConfirm(message string, onConfirm func()) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"Cancel", "OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.closeOverlay("confirm")
			if buttonIndex == 1 && onConfirm != nil {
				onConfirm()
			}
		})
	modal.SetBorder(true).SetTitle("Confirm")
	a.pages.AddPage("confirm", modal, true, true)
	a.mode = ModeModal
	a.app.SetFocus(modal)
}

func (a *App) closeOverlay(name string) {
	a.pages.RemovePage(name)
	a.mode = ModeNormal
	if a.focusOnFiles {
		a.app.SetFocus(a.files)
	} else {
		a.app.SetFocus(a.folders)
	}
}

func breadcrumbText(s drive.State) string {
	var b strings.Builder
	for i, c := range s.Breadcrumbs {
		if i > 0 {
			b.WriteString(" / ")
		}
		name := tview.Escape(drive.DisplayName(c.Name))
		if i == len(s.Breadcrumbs)-1 {
			fmt.Fprintf(&b, "[yellow::b]%d:%s[-::-]", i, name)
		} else {
			fmt.Fprintf(&b, "[grey]%d:[-]%s", i, name)
		}
	}
	return b.String()
}

// gridCell maps a file index to its table position in grid view.
func gridCell(i int) (row, col int) {
	return i / gridColumns, i % gridColumns
}

// nextYear returns the year after current, wrapping; the first year when current is unknown.
func nextYear(years []string, current string) string {
	if len(years) == 0 {
		return current
	}
	for i, y := range years {
		if y == current {
			return years[(i+1)%len(years)]
		}
	}
	return years[0]
}

func fileDetails(f models.File) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]%s[::-]\n\n", tview.Escape(f.FileName))
	fmt.Fprintf(&b, "Type: %s\n", f.TypeLabel())
	fmt.Fprintf(&b, "Size: %s\n", ustr.FormatBytes(f.FileSize))
	fmt.Fprintf(&b, "Uploaded: %s\n", formatDate(f))
	if f.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", tview.Escape(f.Category))
	}
	if f.Previewable() {
		b.WriteString("\n[grey]Previewable with `ca-drive drive get`[-]")
	}
	return b.String()
}

func formatDate(f models.File) string {
	if f.CreatedAt.IsZero() {
		return "-"
	}
	return f.CreatedAt.Local().Format("02 Jan 2006")
}

func uploadSummary(r *drive.UploadReport) string {
	up := r.Count(models.UploadStatusUploaded)
	rej := r.Count(models.UploadStatusRejected)
	failed := r.Count(models.UploadStatusFailed)
	color := "[green]"
	if failed > 0 {
		color = "[red]"
	} else if rej > 0 {
		color = "[yellow]"
	}
	return fmt.Sprintf("%s%d uploaded, %d rejected, %d failed", color, up, rej, failed)
}

// collectFiles expands path into local files. A directory contributes its
// visible regular files, not subdirectories.
func collectFiles(path string) ([]drive.LocalFile, error) {
	abs, err := pathutil.ResolveAbsolutePath(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	entries, err := localfs.UploadCandidates(abs, localfs.ListOptions{})
	if err != nil {
		return nil, err
	}
	files := make([]drive.LocalFile, 0, len(entries))
	for _, e := range entries {
		f, err := drive.NewLocalFile(e.Path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// eventMessage turns an explorer event into a status line, or "" for none.
func eventMessage(ev events.Event) string {
	switch e := ev.(type) {
	case *events.SnapshotEvent:
		if e.Error != nil {
			return "[red]load failed: " + tview.Escape(e.Error.Error())
		}
		return fmt.Sprintf("[green]%s, %s", ustr.Count(e.Folders, "folder"), ustr.Count(e.Files, "file"))
	case *events.MutationEvent:
		if e.Error != nil {
			return "[red]" + strings.ReplaceAll(e.Op, "_", " ") + " failed: " + tview.Escape(e.Error.Error())
		}
		if e.Type() == events.EventFolderCreated {
			return "[green]created " + tview.Escape(e.Name)
		}
		return "[green]deleted"
	case *events.LogEvent:
		if e.Level >= events.WarnLevel {
			return "[yellow]" + tview.Escape(e.Message)
		}
	}
	return ""
}
