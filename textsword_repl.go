package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

const replPrompt = "textsword> "

// errExitREPL ends the session loop
var errExitREPL = errors.New("exit")

// REPLCommand represents a parsed command
type REPLCommand struct {
	Verb   string
	Object string   // lower-cased first argument
	Args   []string // arguments after Object
	Raw    []string // all arguments after the verb, case preserved
}

// lineReader is the part of readline used for multi-line input
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// REPLFormatter handles output formatting
type REPLFormatter struct {
	out     io.Writer
	success *color.Color
	failure *color.Color
	info    *color.Color
	warning *color.Color
}

// NewREPLFormatter creates a new formatter writing to stdout
func NewREPLFormatter(useColor bool) *REPLFormatter {
	return newREPLFormatterTo(os.Stdout, useColor)
}

func newREPLFormatterTo(out io.Writer, useColor bool) *REPLFormatter {
	f := &REPLFormatter{
		out:     out,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		info:    color.New(color.FgCyan),
		warning: color.New(color.FgYellow),
	}
	if !useColor {
		for _, c := range []*color.Color{f.success, f.failure, f.info, f.warning} {
			c.DisableColor()
		}
	}
	return f
}

// PrintSuccess prints a success message
func (f *REPLFormatter) PrintSuccess(message string) {
	f.success.Fprintf(f.out, "✓ %s\n", message)
}

// PrintError prints an error message
func (f *REPLFormatter) PrintError(message string) {
	f.failure.Fprintf(f.out, "✗ Error: %s\n", message)
}

// PrintWarning prints a warning message
func (f *REPLFormatter) PrintWarning(message string) {
	f.warning.Fprintf(f.out, "! Warning: %s\n", message)
}

// PrintInfo prints an info message
func (f *REPLFormatter) PrintInfo(message string) {
	f.info.Fprintf(f.out, "ℹ %s\n", message)
}

// PrintText prints a block of text as is
func (f *REPLFormatter) PrintText(text string) {
	fmt.Fprintln(f.out, text)
}

// PrintTable prints a formatted ASCII table
func (f *REPLFormatter) PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	// padding is by display width, wide characters take two columns
	printRow := func(cells []string) {
		for i, cell := range cells {
			fmt.Fprint(f.out, cell)
			if i < len(widths) {
				if pad := widths[i] - runewidth.StringWidth(cell); pad > 0 {
					fmt.Fprint(f.out, strings.Repeat(" ", pad))
				}
			}
			if i < len(cells)-1 {
				fmt.Fprint(f.out, "  ")
			}
		}
		fmt.Fprintln(f.out)
	}

	printRow(headers)
	separator := make([]string, len(headers))
	for i := range headers {
		separator[i] = strings.Repeat("-", widths[i])
	}
	printRow(separator)
	for _, row := range rows {
		printRow(row)
	}
}

// PrintJSON prints formatted JSON
func (f *REPLFormatter) PrintJSON(data interface{}) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		f.PrintError("Failed to format JSON: " + err.Error())
		return
	}
	fmt.Fprintln(f.out, string(jsonBytes))
}

// ParseCommand parses a verb-first command string
func ParseCommand(input string) (*REPLCommand, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	parts := splitArgs(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := &REPLCommand{
		Verb: strings.ToLower(parts[0]),
		Raw:  parts[1:],
	}

	if len(parts) > 1 {
		cmd.Object = strings.ToLower(parts[1])
		cmd.Args = parts[2:]
	}

	return cmd, nil
}

// splitArgs splits a command string into arguments, respecting quotes.
// A backslash only escapes a quote or another backslash, so regex
// escapes like \d reach the rule unchanged.
func splitArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	hasToken := false
	quoteChar := rune(0)
	escaped := false

	for _, ch := range input {
		if escaped {
			if ch != '"' && ch != '\'' && ch != '\\' {
				current.WriteRune('\\')
			}
			current.WriteRune(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			escaped = true
			hasToken = true
			continue
		}

		if (ch == '"' || ch == '\'') && !inQuotes {
			inQuotes = true
			hasToken = true
			quoteChar = ch
			continue
		}

		if ch == quoteChar && inQuotes {
			inQuotes = false
			quoteChar = 0
			continue
		}

		if (ch == ' ' || ch == '\t') && !inQuotes {
			if hasToken {
				args = append(args, current.String())
				current.Reset()
				hasToken = false
			}
			continue
		}

		current.WriteRune(ch)
		hasToken = true
	}

	if escaped {
		current.WriteRune('\\')
	}
	if hasToken {
		args = append(args, current.String())
	}

	return args
}

// ExecuteREPLCommand executes a REPL command against commands.
// It returns errExitREPL when the session should end.
func ExecuteREPLCommand(cmd *REPLCommand, commands TextSwordCommands, formatter *REPLFormatter, rl lineReader) error {
	switch cmd.Verb {
	// Text
	case "set":
		return handleSetCommand(cmd, commands, formatter, rl)
	case "get", "show":
		return handleGetCommand(cmd, commands, formatter)

	// Rules
	case "rule":
		return handleRuleCommand(cmd, commands, formatter)
	case "rules":
		return handleRulesCommand(cmd, commands, formatter, rl)

	// Transformations
	case "replace":
		return handleReplaceCommand(commands, formatter)
	case "fillback":
		commands.FillBack()
		formatter.PrintSuccess("Output moved to input")
		return nil
	case "undo":
		if commands.UndoFill() {
			formatter.PrintSuccess("Input restored")
		} else {
			formatter.PrintInfo("Nothing to undo")
		}
		return nil
	case "dedupe", "distinct":
		commands.Deduplicate()
		_, out := commands.LineCounts()
		formatter.PrintSuccess(fmt.Sprintf("Output deduplicated (%d lines)", out))
		return nil
	case "sort":
		return handleSortCommand(cmd, commands, formatter)

	// Files
	case "import":
		return handleImportCommand(cmd, commands, formatter)
	case "export":
		return handleExportCommand(cmd, commands, formatter)

	// Utility commands
	case "help":
		showMainHelp(formatter.out)
		return nil
	case "quit", "exit":
		return errExitREPL
	case "clear":
		fmt.Fprint(formatter.out, "\033[2J\033[H")
		return nil

	default:
		formatter.PrintError(fmt.Sprintf("Unknown command: %s", cmd.Verb))
		formatter.PrintInfo("Type 'help' for available commands")
		return nil
	}
}

// Command handlers

func handleSetCommand(cmd *REPLCommand, commands TextSwordCommands, formatter *REPLFormatter, rl lineReader) error {
	if cmd.Object != "input" && cmd.Object != "output" {
		formatter.PrintError("set requires 'input' or 'output' argument")
		return nil
	}

	text := strings.Join(cmd.Args, " ")
	if len(cmd.Args) == 0 {
		if rl == nil {
			formatter.PrintError("set " + cmd.Object + " requires text")
			return nil
		}
		formatter.PrintInfo("Enter text (end with blank line):")
		text = readMultiline(rl)
	}

	if cmd.Object == "input" {
		commands.SetInputText(text)
		formatter.PrintSuccess("Input text set")
	} else {
		commands.SetOutputText(text)
		formatter.PrintSuccess("Output text set")
	}
	return nil
}

func handleGetCommand(cmd *REPLCommand, commands TextSwordCommands, formatter *REPLFormatter) error {
	switch cmd.Object {
	case "input":
		formatter.PrintText(commands.GetInputText())
	case "output":
		formatter.PrintText(commands.GetOutputText())
	case "rules":
		printRules(commands.GetRules(), formatter)
	case "counts":
		in, out := commands.LineCounts()
		formatter.PrintInfo(fmt.Sprintf("input: %d lines, output: %d lines", in, out))
	default:
		formatter.PrintError("get requires 'input', 'output', 'rules' or 'counts' argument")
	}
	return nil
}

func handleRuleCommand(cmd *REPLCommand, commands TextSwordCommands, formatter *REPLFormatter) error {
	switch cmd.Object {
	case "add":
		index := commands.AddRule()
		formatter.PrintSuccess(fmt.Sprintf("Rule %d added", index))

	case "set":
		// rule set <index> <find> [replace]
		if len(cmd.Args) < 2 {
			formatter.PrintError("usage: rule set <index> <find> [replace]")
			return nil
		}
		index, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			formatter.PrintError("invalid rule index: " + cmd.Args[0])
			return nil
		}
		rule := ReplaceRule{Find: cmd.Args[1]}
		if len(cmd.Args) > 2 {
			rule.Replace = cmd.Args[2]
		}
		if rules := commands.GetRules(); index >= 0 && index < len(rules) {
			rule.Mode = rules[index].Mode
		}
		if err := commands.UpdateRule(index, rule); err != nil {
			formatter.PrintError(err.Error())
			return nil
		}
		formatter.PrintSuccess(fmt.Sprintf("Rule %d updated", index))

	case "mode":
		// rule mode <index> auto|literal|pattern
		if len(cmd.Args) < 2 {
			formatter.PrintError("usage: rule mode <index> auto|literal|pattern")
			return nil
		}
		index, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			formatter.PrintError("invalid rule index: " + cmd.Args[0])
			return nil
		}
		mode, err := ParseRuleMode(cmd.Args[1])
		if err != nil {
			formatter.PrintError(err.Error())
			return nil
		}
		rules := commands.GetRules()
		if index < 0 || index >= len(rules) {
			formatter.PrintError(fmt.Sprintf("%v: %d", ErrRuleIndex, index))
			return nil
		}
		rule := rules[index]
		rule.Mode = mode
		if err := commands.UpdateRule(index, rule); err != nil {
			formatter.PrintError(err.Error())
			return nil
		}
		formatter.PrintSuccess(fmt.Sprintf("Rule %d mode set to %s", index, displayMode(mode)))

	case "remove", "delete":
		if len(cmd.Args) < 1 {
			formatter.PrintError("usage: rule remove <index>")
			return nil
		}
		index, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			formatter.PrintError("invalid rule index: " + cmd.Args[0])
			return nil
		}
		if err := commands.RemoveRule(index); err != nil {
			formatter.PrintError(err.Error())
			return nil
		}
		formatter.PrintSuccess(fmt.Sprintf("Rule %d removed", index))

	default:
		formatter.PrintError("rule requires 'add', 'set', 'mode' or 'remove'")
	}
	return nil
}

func handleRulesCommand(cmd *REPLCommand, commands TextSwordCommands, formatter *REPLFormatter, rl lineReader) error {
	switch cmd.Object {
	case "", "list":
		printRules(commands.GetRules(), formatter)

	case "export":
		jsonStr, err := commands.ExportRules()
		if err != nil {
			formatter.PrintError(err.Error())
			return nil
		}
		formatter.PrintText(jsonStr)

	case "import":
		jsonStr := strings.Join(cmd.Args, " ")
		if jsonStr == "" && rl != nil {
			formatter.PrintInfo("Enter JSON rules (end with blank line):")
			jsonStr = readMultiline(rl)
		}
		if jsonStr == "" {
			formatter.PrintError("rules import requires JSON data")
			return nil
		}
		if err := commands.ImportRules(jsonStr); err != nil {
			formatter.PrintError(err.Error())
			return nil
		}
		formatter.PrintSuccess(fmt.Sprintf("%d rules imported", len(commands.GetRules())))

	default:
		formatter.PrintError("rules requires 'list', 'export' or 'import'")
	}
	return nil
}

func handleReplaceCommand(commands TextSwordCommands, formatter *REPLFormatter) error {
	errs := commands.Replace()
	for _, ruleErr := range errs {
		formatter.PrintError(ruleErr.Error())
	}
	_, out := commands.LineCounts()
	if len(errs) > 0 {
		formatter.PrintWarning(fmt.Sprintf("%d rule(s) skipped, output has %d lines", len(errs), out))
		return nil
	}
	formatter.PrintSuccess(fmt.Sprintf("Replaced (%d output lines)", out))
	return nil
}

func handleSortCommand(cmd *REPLCommand, commands TextSwordCommands, formatter *REPLFormatter) error {
	direction, err := ParseSortDirection(cmd.Object)
	if err != nil {
		formatter.PrintError(err.Error())
		return nil
	}
	commands.SortLines(direction)
	formatter.PrintSuccess("Output sorted " + string(direction))
	return nil
}

func handleImportCommand(cmd *REPLCommand, commands TextSwordCommands, formatter *REPLFormatter) error {
	if len(cmd.Raw) == 0 {
		formatter.PrintError("usage: import <path>")
		return nil
	}
	path := strings.Join(cmd.Raw, " ")

	if err := commands.ImportFile(path); err != nil {
		var warning *EncodingWarning
		if errors.As(err, &warning) {
			formatter.PrintWarning(warning.Reason)
			return nil
		}
		formatter.PrintError(err.Error())
		return nil
	}
	in, _ := commands.LineCounts()
	formatter.PrintSuccess(fmt.Sprintf("Imported %s (%d lines)", path, in))
	return nil
}

func handleExportCommand(cmd *REPLCommand, commands TextSwordCommands, formatter *REPLFormatter) error {
	path, err := commands.ExportFile(strings.Join(cmd.Raw, " "))
	if err != nil {
		formatter.PrintError(err.Error())
		return nil
	}
	formatter.PrintSuccess("Exported to " + path)
	return nil
}

func printRules(rules []ReplaceRule, formatter *REPLFormatter) {
	rows := make([][]string, 0, len(rules))
	for i, rule := range rules {
		rows = append(rows, []string{
			strconv.Itoa(i),
			shortenString(rule.Find, 40),
			shortenString(rule.Replace, 40),
			displayMode(rule.Mode),
		})
	}
	formatter.PrintTable([]string{"#", "Find", "Replace", "Mode"}, rows)
}

func displayMode(mode RuleMode) string {
	if mode == RuleModeAuto {
		return "auto"
	}
	return string(mode)
}

// readMultiline reads lines until a blank line or EOF
func readMultiline(rl lineReader) string {
	var lines []string
	rl.SetPrompt("")
	defer rl.SetPrompt(replPrompt)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err != nil {
			break
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func showMainHelp(w io.Writer) {
	fmt.Fprint(w, `TextSword commands:

  Text
    set input [text]            Set the input (no text: read lines until blank)
    set output [text]           Set the output
    get input|output            Print the input or output
    get counts                  Print line counts
    get rules                   List the rules

  Rules
    rule add                    Append a blank rule
    rule set <i> <find> [repl]  Change rule i (find may be /pattern/flags)
    rule mode <i> <mode>        Set rule i to auto, literal or pattern
    rule remove <i>             Delete rule i
    rules export                Print the rules as JSON
    rules import [json]         Replace the rules from JSON

  Transform
    replace                     Apply the rules to the input
    fillback                    Move the output into the input
    undo                        Undo the last fillback
    dedupe                      Remove repeated output lines
    sort asc|desc               Sort the output lines

  Files
    import <path>               Read a file into the input
    export [dir]                Write the output to a timestamped file

  help, clear, quit
`)
}

// REPLSession manages the REPL interactive session
type REPLSession struct {
	client    *SocketClient
	commands  *SocketClientCommands
	formatter *REPLFormatter
	config    REPLConfig
	address   string
}

// NewREPLSession connects to the socket server at socketPath
func NewREPLSession(socketPath string, config REPLConfig, log *Logger) (*REPLSession, error) {
	client, err := NewSocketClient(socketPath)
	if err != nil {
		return nil, err
	}

	return &REPLSession{
		client:    client,
		commands:  NewSocketClientCommands(client, log),
		formatter: NewREPLFormatter(config.Color),
		config:    config,
		address:   socketPath,
	}, nil
}

// Run starts the interactive REPL loop
func (rs *REPLSession) Run() error {
	defer rs.client.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      replPrompt,
		HistoryFile: rs.config.HistoryFile,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	rs.formatter.PrintInfo("TextSword REPL")
	rs.formatter.PrintInfo("Connected to socket server at " + rs.address)
	rs.formatter.PrintInfo("Type 'help' for available commands")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Fprintln(rs.formatter.out)
			break
		} else if err != nil {
			rs.formatter.PrintError(err.Error())
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, err := ParseCommand(line)
		if err != nil {
			rs.formatter.PrintError(err.Error())
			continue
		}

		if err := ExecuteREPLCommand(cmd, rs.commands, rs.formatter, rl); err != nil {
			if errors.Is(err, errExitREPL) {
				break
			}
			rs.formatter.PrintError(err.Error())
		}
	}

	rs.formatter.PrintInfo("Goodbye!")
	return nil
}

// shortenString cuts s to at most maxWidth display columns without splitting a character
func shortenString(s string, maxWidth int) string {
	return runewidth.Truncate(s, maxWidth, "...")
}
