package gui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"jordanella.com/screen-mapper/internal/events"
	"jordanella.com/screen-mapper/internal/extract"
	"jordanella.com/screen-mapper/internal/gui/components"
	"jordanella.com/screen-mapper/internal/library"
	"jordanella.com/screen-mapper/internal/logging"
)

// EditorTab edits the rules of the open library
type EditorTab struct {
	controller *Controller

	destinationEntry *widget.Entry
	outputEntry      *widget.Entry
	regionEntry      *widget.Entry

	nameEntry     *widget.Entry
	kindSelect    *widget.Select
	boxEntry      *widget.Entry
	templateEntry *widget.Entry

	ruleList *widget.List
	selected int
	status   *components.StatusChip
}

// NewEditorTab creates the library editor
func NewEditorTab(ctrl *Controller) *EditorTab {
	return &EditorTab{controller: ctrl, selected: -1}
}

// Build constructs the editor UI
func (e *EditorTab) Build() fyne.CanvasObject {
	e.destinationEntry = widget.NewEntry()
	e.destinationEntry.SetPlaceHolder("libs/hud.go")
	e.outputEntry = widget.NewEntry()
	e.regionEntry = widget.NewEntry()
	e.regionEntry.SetPlaceHolder("x,y,width,height (blank for the whole screen)")

	for _, entry := range []*widget.Entry{e.destinationEntry, e.outputEntry, e.regionEntry} {
		entry.OnChanged = func(string) { e.markDirty() }
	}

	outputBrowse := widget.NewButtonWithIcon("", theme.FolderOpenIcon(), e.browseOutputDirectory)

	header := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Library file", Widget: e.destinationEntry},
			{Text: "Output directory", Widget: container.NewBorder(nil, nil, nil, outputBrowse, e.outputEntry)},
			{Text: "Capture region", Widget: e.regionEntry},
		},
	}

	e.status = components.NewStatusChip("Unsaved")
	fileActions := container.NewHBox(
		widget.NewButtonWithIcon("New", theme.DocumentCreateIcon(), e.newLibrary),
		widget.NewButtonWithIcon("Open", theme.FolderOpenIcon(), e.browseOpen),
		components.PrimaryButton("Save", theme.DocumentSaveIcon(), e.saveLibrary),
		e.status.Container,
	)

	e.ruleList = widget.NewList(
		func() int {
			lib := e.controller.Library()
			if lib == nil {
				return 0
			}
			return lib.Len()
		},
		func() fyne.CanvasObject {
			return components.MonospaceLabel("rule summary")
		},
		func(id widget.ListItemID, item fyne.CanvasObject) {
			lib := e.controller.Library()
			if lib == nil {
				return
			}
			rules := lib.Rules()
			if id < 0 || id >= len(rules) {
				return
			}
			item.(*widget.Label).SetText(ruleSummary(rules[id]))
		},
	)
	e.ruleList.OnSelected = func(id widget.ListItemID) { e.selected = id }
	e.ruleList.OnUnselected = func(widget.ListItemID) { e.selected = -1 }

	ruleActions := container.NewHBox(
		widget.NewButtonWithIcon("Test", theme.MediaPlayIcon(), e.testSelected),
		components.DangerButton("Remove", theme.DeleteIcon(), e.removeSelected),
	)

	left := container.NewBorder(
		container.NewVBox(components.Heading("Library"), fileActions, header,
			components.SectionHeader("Rules", ruleActions)),
		nil, nil, nil,
		e.ruleList,
	)

	return container.NewHSplit(left, e.buildAddForm())
}

func (e *EditorTab) buildAddForm() fyne.CanvasObject {
	e.nameEntry = widget.NewEntry()
	e.nameEntry.SetPlaceHolder("score")

	kinds := make([]string, 0, len(library.Kinds()))
	for _, k := range library.Kinds() {
		kinds = append(kinds, k.String())
	}
	e.boxEntry = widget.NewEntry()
	e.boxEntry.SetPlaceHolder("x,y,width,height")
	e.templateEntry = widget.NewEntry()
	e.templateEntry.Disable()
	templateBrowse := widget.NewButtonWithIcon("", theme.FileImageIcon(), e.browseTemplate)

	e.kindSelect = widget.NewSelect(kinds, func(kind string) {
		if kind == library.KindTemplateMatch.String() {
			e.templateEntry.Enable()
		} else {
			e.templateEntry.Disable()
		}
	})
	e.kindSelect.SetSelected(library.KindText.String())

	return container.NewVBox(
		components.Subheading("Add Rule"),
		components.FieldRow("Name", e.nameEntry, "A Go identifier, unique in the library"),
		components.FieldRow("Kind", e.kindSelect, ""),
		components.FieldRow("Box", e.boxEntry, "Relative to the captured frame"),
		components.FieldRow("Template image", container.NewBorder(nil, nil, nil, templateBrowse, e.templateEntry),
			"Only for template_match"),
		components.PrimaryButton("Add Rule", theme.ContentAddIcon(), e.addRule),
	)
}

// Refresh copies the open library into the widgets
func (e *EditorTab) Refresh() {
	lib := e.controller.Library()
	if lib == nil || e.destinationEntry == nil {
		return
	}
	e.destinationEntry.SetText(lib.DestinationPath)
	e.outputEntry.SetText(lib.OutputDirectory)
	e.regionEntry.SetText(regionText(lib.CaptureRegion))

	e.selected = -1
	e.ruleList.UnselectAll()
	e.ruleList.Refresh()
}

func (e *EditorTab) markDirty() {
	if e.status != nil {
		e.status.SetStatus("Unsaved")
	}
}

func (e *EditorTab) markSaved() {
	if e.status != nil {
		e.status.SetStatus("Saved")
	}
}

// applyHeader pushes the header fields into the open library
func (e *EditorTab) applyHeader() error {
	lib := e.controller.Library()
	if lib == nil {
		return fmt.Errorf("no library open")
	}
	return applyHeader(lib, e.destinationEntry.Text, e.regionEntry.Text, e.outputEntry.Text)
}

func (e *EditorTab) newLibrary() {
	lib, err := library.New("", nil, e.controller.config.OutputDirectory)
	if err != nil {
		e.controller.showError("Failed to create library", err)
		return
	}
	e.controller.SetLibrary(lib)
	e.markDirty()
}

// OpenLibrary loads the library at path into the editor
func (e *EditorTab) OpenLibrary(path string) {
	lib, err := library.Load(path)
	if err != nil {
		e.controller.showError("Failed to open library", err)
		return
	}
	e.controller.SetLibrary(lib)
	e.markSaved()
	e.controller.logTab.AddLog(logging.LogLevelInfo, "library",
		fmt.Sprintf("Opened %s (%d rules)", path, lib.Len()))
}

func (e *EditorTab) browseOpen() {
	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			e.controller.showError("Failed to open library", err)
			return
		}
		if reader == nil {
			return // cancelled
		}
		path := reader.URI().Path()
		reader.Close()
		e.OpenLibrary(path)
	}, e.controller.window)
	open.SetFilter(storage.NewExtensionFileFilter([]string{".go"}))
	open.Show()
}

func (e *EditorTab) saveLibrary() {
	if err := e.applyHeader(); err != nil {
		e.controller.showError("Failed to save library", err)
		return
	}
	lib := e.controller.Library()
	if lib.DestinationPath == "" {
		e.browseSave()
		return
	}

	if err := library.Save(lib); err != nil {
		e.controller.showError("Failed to save library", err)
		return
	}
	e.markSaved()
	e.controller.publish(events.NewLibrarySavedEvent(lib.DestinationPath, lib.Len()))
}

func (e *EditorTab) browseSave() {
	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			e.controller.showError("Failed to save library", err)
			return
		}
		if writer == nil {
			return // cancelled
		}
		path := writer.URI().Path()
		writer.Close()

		e.destinationEntry.SetText(path)
		e.saveLibrary()
	}, e.controller.window)
	save.SetFileName("library.go")
	save.Show()
}

func (e *EditorTab) browseOutputDirectory() {
	dialog.ShowFolderOpen(func(folder fyne.ListableURI, err error) {
		if err != nil {
			e.controller.showError("Failed to choose folder", err)
			return
		}
		if folder == nil {
			return
		}
		e.outputEntry.SetText(folder.Path())
	}, e.controller.window)
}

func (e *EditorTab) browseTemplate() {
	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			e.controller.showError("Failed to choose template", err)
			return
		}
		if reader == nil {
			return
		}
		e.templateEntry.SetText(reader.URI().Path())
		reader.Close()
	}, e.controller.window)
	open.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".bmp", ".gif", ".webp"}))
	open.Show()
}

func (e *EditorTab) addRule() {
	if err := e.applyHeader(); err != nil {
		e.controller.showError("Invalid library settings", err)
		return
	}
	rule, err := parseRuleForm(e.nameEntry.Text, e.kindSelect.Selected, e.boxEntry.Text, e.templateEntry.Text)
	if err != nil {
		e.controller.showError("Invalid rule", err)
		return
	}
	if err := e.controller.Library().Add(rule); err != nil {
		e.controller.showError("Rule rejected", err)
		return
	}

	e.nameEntry.SetText("")
	e.ruleList.Refresh()
	e.markDirty()
}

func (e *EditorTab) selectedRule() (library.BoxFunction, bool) {
	lib := e.controller.Library()
	if lib == nil || e.selected < 0 {
		return library.BoxFunction{}, false
	}
	rules := lib.Rules()
	if e.selected >= len(rules) {
		return library.BoxFunction{}, false
	}
	return rules[e.selected], true
}

func (e *EditorTab) removeSelected() {
	rule, ok := e.selectedRule()
	if !ok {
		return
	}
	e.controller.Library().Remove(rule.Name)
	e.selected = -1
	e.ruleList.UnselectAll()
	e.ruleList.Refresh()
	e.markDirty()
}

// testSelected grabs one frame and evaluates the selected rule on it
func (e *EditorTab) testSelected() {
	rule, ok := e.selectedRule()
	if !ok {
		return
	}
	if err := e.applyHeader(); err != nil {
		e.controller.showError("Invalid library settings", err)
		return
	}
	region := e.controller.Library().CaptureRegion

	go func() {
		frame, err := e.controller.grabFrame(region)
		var result extract.Result
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			result, err = extract.EvaluateRule(ctx, e.controller.engine, frame, rule)
			cancel()
		}

		fyne.Do(func() {
			if err != nil {
				e.controller.showError("Rule test failed", err)
				return
			}
			dialog.ShowInformation(rule.Name, fmt.Sprintf("%s = %s", rule.Name, result), e.controller.window)
		})
	}()
}
