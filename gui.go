package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"
	"go.uber.org/zap"
)

const (
	appTitle  = "TextSword"
	appWidth  = 1100
	appHeight = 650
)

var ruleModes = []RuleMode{RuleModeAuto, RuleModeLiteral, RuleModePattern}

// TextSwordWindow is the GTK front end. All state lives behind commands.
type TextSwordWindow struct {
	commands TextSwordCommands
	log      *Logger

	window       *gtk.Window
	inputBuffer  *gtk.TextBuffer
	outputBuffer *gtk.TextBuffer
	inputCount   *gtk.Label
	outputCount  *gtk.Label
	ruleList     *gtk.ListBox

	rules    []ReplaceRule // rules currently shown in ruleList
	updating bool          // set while buffers are filled from state
}

// NewTextSwordWindow builds the main window around commands
func NewTextSwordWindow(commands TextSwordCommands, log *Logger) (*TextSwordWindow, error) {
	if log == nil {
		log = NewNopLogger()
	}
	tw := &TextSwordWindow{commands: commands, log: log.WithComponent("gui")}
	if err := tw.BuildUI(); err != nil {
		return nil, err
	}
	tw.Refresh()
	return tw, nil
}

// BuildUI creates the widgets
func (tw *TextSwordWindow) BuildUI() error {
	win, err := gtk.WindowNew(gtk.WINDOW_TOPLEVEL)
	if err != nil {
		return fmt.Errorf("unable to create window: %w", err)
	}
	tw.window = win
	tw.window.SetTitle(appTitle)
	tw.window.SetDefaultSize(appWidth, appHeight)
	tw.window.Connect("destroy", func() {
		gtk.MainQuit()
	})

	mainBox, _ := gtk.BoxNew(gtk.ORIENTATION_VERTICAL, 5)
	mainBox.SetMarginTop(5)
	mainBox.SetMarginBottom(5)
	mainBox.SetMarginStart(5)
	mainBox.SetMarginEnd(5)

	mainBox.PackStart(tw.createToolbar(), false, false, 0)

	// rules panel | input | output
	mainPaned, _ := gtk.PanedNew(gtk.ORIENTATION_HORIZONTAL)
	mainPaned.SetPosition(360)
	mainPaned.Add1(tw.createRulePanel())

	textPaned, _ := gtk.PanedNew(gtk.ORIENTATION_HORIZONTAL)
	textPaned.SetPosition((appWidth - 360) / 2)
	textPaned.Add1(tw.createTextPane("Input", true))
	textPaned.Add2(tw.createTextPane("Output", false))
	mainPaned.Add2(textPaned)

	mainBox.PackStart(mainPaned, true, true, 0)

	tw.window.Add(mainBox)
	tw.window.ShowAll()
	return nil
}

func (tw *TextSwordWindow) createToolbar() *gtk.Box {
	toolbar, _ := gtk.BoxNew(gtk.ORIENTATION_HORIZONTAL, 5)

	addButton := func(label string, onClick func()) {
		button, _ := gtk.ButtonNewWithLabel(label)
		button.Connect("clicked", onClick)
		toolbar.PackStart(button, false, false, 0)
	}

	addButton("Replace", tw.replace)
	addButton("Fill Back", func() {
		tw.commands.FillBack()
		tw.Refresh()
	})
	addButton("Undo", func() {
		if !tw.commands.UndoFill() {
			tw.showMessage(gtk.MESSAGE_INFO, "Nothing to undo.")
			return
		}
		tw.Refresh()
	})
	addButton("Distinct", func() {
		tw.commands.Deduplicate()
		tw.Refresh()
	})
	addButton("Asc", func() {
		tw.commands.SortLines(SortAscending)
		tw.Refresh()
	})
	addButton("Desc", func() {
		tw.commands.SortLines(SortDescending)
		tw.Refresh()
	})

	spacer, _ := gtk.BoxNew(gtk.ORIENTATION_HORIZONTAL, 0)
	toolbar.PackStart(spacer, true, true, 0)

	addButton("Import", tw.importFile)
	addButton("Export", tw.exportFile)
	addButton("Copy to Clipboard", tw.copyToClipboard)

	return toolbar
}

func (tw *TextSwordWindow) createRulePanel() *gtk.Box {
	panel, _ := gtk.BoxNew(gtk.ORIENTATION_VERTICAL, 5)

	titleLabel, _ := gtk.LabelNew("Rules")
	titleLabel.SetMarkup("<b>Rules</b>")
	panel.PackStart(titleLabel, false, false, 5)

	hint, _ := gtk.LabelNew("Find text, or /pattern/flags")
	hint.SetXAlign(0)
	panel.PackStart(hint, false, false, 0)

	scrolledWindow, _ := gtk.ScrolledWindowNew(nil, nil)
	scrolledWindow.SetPolicy(gtk.POLICY_AUTOMATIC, gtk.POLICY_AUTOMATIC)
	scrolledWindow.SetSizeRequest(340, -1)

	listBox, _ := gtk.ListBoxNew()
	listBox.SetSelectionMode(gtk.SELECTION_NONE)
	tw.ruleList = listBox

	scrolledWindow.Add(listBox)
	panel.PackStart(scrolledWindow, true, true, 0)

	addRule, _ := gtk.ButtonNewWithLabel("Add Rule")
	addRule.Connect("clicked", func() {
		tw.commands.AddRule()
		tw.refreshRules(true)
	})
	panel.PackStart(addRule, false, false, 0)

	return panel
}

func (tw *TextSwordWindow) createTextPane(title string, isInput bool) *gtk.Box {
	pane, _ := gtk.BoxNew(gtk.ORIENTATION_VERTICAL, 2)

	frame, _ := gtk.FrameNew(title)

	scrolledWindow, _ := gtk.ScrolledWindowNew(nil, nil)
	scrolledWindow.SetPolicy(gtk.POLICY_AUTOMATIC, gtk.POLICY_AUTOMATIC)

	textView, _ := gtk.TextViewNew()
	textView.SetWrapMode(gtk.WRAP_WORD)
	textView.SetMonospace(true)
	textView.SetEditable(true)

	buffer, _ := textView.GetBuffer()
	count, _ := gtk.LabelNew("Lines: 0")
	count.SetXAlign(1)

	if isInput {
		tw.inputBuffer = buffer
		tw.inputCount = count
		buffer.Connect("changed", func() {
			if tw.updating {
				return
			}
			tw.commands.SetInputText(bufferText(buffer))
			tw.updateCounts()
		})
	} else {
		tw.outputBuffer = buffer
		tw.outputCount = count
		buffer.Connect("changed", func() {
			if tw.updating {
				return
			}
			tw.commands.SetOutputText(bufferText(buffer))
			tw.updateCounts()
		})
	}

	scrolledWindow.Add(textView)
	frame.Add(scrolledWindow)
	pane.PackStart(frame, true, true, 0)
	pane.PackStart(count, false, false, 0)

	return pane
}

// Refresh redraws texts, counts and rules from the current state.
// Buffers are only rewritten when their text differs, so the cursor
// stays put while typing.
func (tw *TextSwordWindow) Refresh() {
	tw.updating = true
	if input := tw.commands.GetInputText(); input != bufferText(tw.inputBuffer) {
		tw.inputBuffer.SetText(input)
	}
	if output := tw.commands.GetOutputText(); output != bufferText(tw.outputBuffer) {
		tw.outputBuffer.SetText(output)
	}
	tw.updating = false

	tw.updateCounts()
	tw.refreshRules(false)
}

// RefreshLater schedules Refresh on the GTK main loop; safe from any goroutine
func (tw *TextSwordWindow) RefreshLater() {
	glib.IdleAdd(func() bool {
		tw.Refresh()
		return false
	})
}

func (tw *TextSwordWindow) updateCounts() {
	in, out := tw.commands.LineCounts()
	tw.inputCount.SetText(fmt.Sprintf("Lines: %d", in))
	tw.outputCount.SetText(fmt.Sprintf("Lines: %d", out))
}

// refreshRules rebuilds the rule rows when the rule list changed
func (tw *TextSwordWindow) refreshRules(force bool) {
	rules := tw.commands.GetRules()
	if !force && slices.Equal(rules, tw.rules) {
		return
	}
	tw.rules = rules

	tw.ruleList.GetChildren().Foreach(func(item interface{}) {
		widget := item.(*gtk.Widget)
		tw.ruleList.Remove(widget)
	})

	for i, rule := range rules {
		tw.ruleList.Add(tw.createRuleRow(i, rule))
	}
	tw.ruleList.ShowAll()
}

func (tw *TextSwordWindow) createRuleRow(index int, rule ReplaceRule) *gtk.Box {
	row, _ := gtk.BoxNew(gtk.ORIENTATION_HORIZONTAL, 3)
	row.SetMarginTop(2)
	row.SetMarginBottom(2)

	find, _ := gtk.EntryNew()
	find.SetPlaceholderText("find")
	find.SetWidthChars(14)
	find.SetText(rule.Find)

	replace, _ := gtk.EntryNew()
	replace.SetPlaceholderText("replace")
	replace.SetWidthChars(10)
	replace.SetText(rule.Replace)

	mode, _ := gtk.ComboBoxTextNew()
	for i, m := range ruleModes {
		mode.AppendText(displayMode(m))
		if m == rule.Mode {
			mode.SetActive(i)
		}
	}

	remove, _ := gtk.ButtonNewFromIconName("list-remove", gtk.ICON_SIZE_BUTTON)
	remove.SetTooltipText("Remove rule")

	update := func() {
		findText, _ := find.GetText()
		replaceText, _ := replace.GetText()
		ruleMode, _ := ParseRuleMode(mode.GetActiveText())

		updated := ReplaceRule{Find: findText, Replace: replaceText, Mode: ruleMode}
		if err := tw.commands.UpdateRule(index, updated); err != nil {
			tw.log.Warn("Failed to update rule", zap.Int("index", index), zap.Error(err))
			return
		}
		if index < len(tw.rules) {
			tw.rules[index] = updated
		}
	}

	// signals are connected after the initial values are set
	find.Connect("changed", update)
	replace.Connect("changed", update)
	mode.Connect("changed", update)
	remove.Connect("clicked", func() {
		if err := tw.commands.RemoveRule(index); err != nil {
			tw.log.Warn("Failed to remove rule", zap.Int("index", index), zap.Error(err))
		}
		tw.refreshRules(true)
	})

	row.PackStart(find, true, true, 0)
	row.PackStart(replace, true, true, 0)
	row.PackStart(mode, false, false, 0)
	row.PackStart(remove, false, false, 0)
	return row
}

// replace runs the rules and lists any rules whose pattern was rejected
func (tw *TextSwordWindow) replace() {
	errs := tw.commands.Replace()
	tw.Refresh()
	if len(errs) == 0 {
		return
	}

	finds := make([]string, 0, len(errs))
	for _, ruleErr := range errs {
		finds = append(finds, ruleErr.Find)
	}
	tw.showMessage(gtk.MESSAGE_ERROR,
		"These rules were skipped because their pattern is invalid:\n\n"+strings.Join(finds, "\n"))
}

func (tw *TextSwordWindow) importFile() {
	dialog, err := gtk.FileChooserDialogNewWith2Buttons(
		"Import Text File", tw.window, gtk.FILE_CHOOSER_ACTION_OPEN,
		"Cancel", gtk.RESPONSE_CANCEL,
		"Open", gtk.RESPONSE_ACCEPT,
	)
	if err != nil {
		tw.log.Error("Failed to create file chooser", zap.Error(err))
		return
	}
	response := dialog.Run()
	path := dialog.GetFilename()
	dialog.Destroy()
	if response != gtk.RESPONSE_ACCEPT || path == "" {
		return
	}

	if err := tw.commands.ImportFile(path); err != nil {
		var warning *EncodingWarning
		if errors.As(err, &warning) {
			tw.showMessage(gtk.MESSAGE_WARNING, warning.Reason)
			return
		}
		tw.showMessage(gtk.MESSAGE_ERROR, err.Error())
		return
	}
	tw.Refresh()
}

func (tw *TextSwordWindow) exportFile() {
	path, err := tw.commands.ExportFile("")
	if err != nil {
		tw.showMessage(gtk.MESSAGE_ERROR, err.Error())
		return
	}
	tw.showMessage(gtk.MESSAGE_INFO, "Exported to "+path)
}

// copyToClipboard copies the output text to clipboard
func (tw *TextSwordWindow) copyToClipboard() {
	clipboard, err := gtk.ClipboardGet(gdk.GdkAtomIntern("CLIPBOARD", true))
	if err != nil {
		tw.log.Warn("Failed to get clipboard", zap.Error(err))
		return
	}
	clipboard.SetText(bufferText(tw.outputBuffer))
}

func (tw *TextSwordWindow) showMessage(kind gtk.MessageType, message string) {
	dialog := gtk.MessageDialogNew(tw.window, gtk.DIALOG_MODAL, kind, gtk.BUTTONS_OK, "%s", message)
	dialog.Run()
	dialog.Destroy()
}

func bufferText(buffer *gtk.TextBuffer) string {
	start, end := buffer.GetBounds()
	text, _ := buffer.GetText(start, end, true)
	return text
}

// RunGUI shows the window and blocks in the GTK main loop
func RunGUI(commands TextSwordCommands, server *SocketServer, log *Logger) error {
	gtk.Init(nil)

	window, err := NewTextSwordWindow(commands, log)
	if err != nil {
		return err
	}
	if server != nil {
		server.SetUpdateCallback(window.RefreshLater)
	}

	gtk.Main()
	return nil
}
