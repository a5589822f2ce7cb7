package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// fakeLineReader feeds prepared lines to multi-line input
type fakeLineReader struct {
	lines   []string
	prompts []string
}

func (f *fakeLineReader) Readline() (string, error) {
	if len(f.lines) == 0 {
		return "", io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func (f *fakeLineReader) SetPrompt(prompt string) {
	f.prompts = append(f.prompts, prompt)
}

// runREPL parses and executes input against commands, returning the printed output
func runREPL(t *testing.T, commands TextSwordCommands, input string, rl lineReader) string {
	t.Helper()

	cmd, err := ParseCommand(input)
	if err != nil {
		t.Fatalf("ParseCommand(%q) failed: %v", input, err)
	}

	var buf bytes.Buffer
	if err := ExecuteREPLCommand(cmd, commands, newREPLFormatterTo(&buf, false), rl); err != nil {
		t.Fatalf("ExecuteREPLCommand(%q) failed: %v", input, err)
	}
	return buf.String()
}

// TestParseCommand tests command parsing
func TestParseCommand(t *testing.T) {
	tests := []struct {
		input  string
		verb   string
		object string
		args   []string
		desc   string
	}{
		{"replace", "replace", "", nil, "Verb only"},
		{"SET Input hello world", "set", "input", []string{"hello", "world"}, "Verb and object are lower-cased"},
		{`rule set 0 "a b" 'c d'`, "rule", "set", []string{"0", "a b", "c d"}, "Quoted arguments"},
		{`rule set 0 /\d+/g x`, "rule", "set", []string{"0", `/\d+/g`, "x"}, "Regex escapes are kept"},
		{`rule set 0 "say \"hi\"" ''`, "rule", "set", []string{"0", `say "hi"`, ""}, "Escaped quotes and empty argument"},
		{"sort\tdesc", "sort", "desc", []string{}, "Tab separated"},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			cmd, err := ParseCommand(test.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if cmd.Verb != test.verb {
				t.Errorf("Expected verb %q, got %q", test.verb, cmd.Verb)
			}
			if cmd.Object != test.object {
				t.Errorf("Expected object %q, got %q", test.object, cmd.Object)
			}
			if len(cmd.Args) != len(test.args) || (len(test.args) > 0 && !reflect.DeepEqual(cmd.Args, test.args)) {
				t.Errorf("Expected args %q, got %q", test.args, cmd.Args)
			}
		})
	}
}

// TestParseCommandEmpty tests that blank input is rejected
func TestParseCommandEmpty(t *testing.T) {
	for _, input := range []string{"", "   ", "\t"} {
		if _, err := ParseCommand(input); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

// TestParseCommandRawKeepsCase tests that Raw keeps file paths intact
func TestParseCommandRawKeepsCase(t *testing.T) {
	cmd, err := ParseCommand("import /Data/My File.txt")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(cmd.Raw, " ") != "/Data/My File.txt" {
		t.Errorf("Unexpected raw arguments %q", cmd.Raw)
	}
}

// TestREPLEditingSession tests a full session through the REPL commands
func TestREPLEditingSession(t *testing.T) {
	core := NewTextSwordCore()

	runREPL(t, core, "set input item 12, item 7", nil)
	if core.GetInputText() != "item 12, item 7" {
		t.Fatalf("Unexpected input %q", core.GetInputText())
	}

	out := runREPL(t, core, `rule set 0 "/item (\d+)/g" "#$1"`, nil)
	if !strings.Contains(out, "Rule 0 updated") {
		t.Errorf("Unexpected output %q", out)
	}
	runREPL(t, core, "rule add", nil)
	runREPL(t, core, `rule set 1 ", " \n`, nil)

	out = runREPL(t, core, "replace", nil)
	if !strings.Contains(out, "Replaced (2 output lines)") {
		t.Errorf("Unexpected output %q", out)
	}
	if core.GetOutputText() != "#12\n#7" {
		t.Errorf("Expected '#12\\n#7', got %q", core.GetOutputText())
	}

	runREPL(t, core, "sort desc", nil)
	if core.GetOutputText() != "#7\n#12" {
		t.Errorf("Expected descending order, got %q", core.GetOutputText())
	}

	if out := runREPL(t, core, "get output", nil); out != "#7\n#12\n" {
		t.Errorf("Unexpected get output %q", out)
	}

	runREPL(t, core, "fillback", nil)
	if core.GetInputText() != "#7\n#12" {
		t.Errorf("Expected output in input, got %q", core.GetInputText())
	}
	if out := runREPL(t, core, "undo", nil); !strings.Contains(out, "Input restored") {
		t.Errorf("Unexpected undo output %q", out)
	}
	if out := runREPL(t, core, "undo", nil); !strings.Contains(out, "Nothing to undo") {
		t.Errorf("Unexpected second undo output %q", out)
	}
}

// TestREPLReplaceReportsInvalidRules tests that skipped rules are printed
func TestREPLReplaceReportsInvalidRules(t *testing.T) {
	core := NewTextSwordCore()
	core.SetInputText("abc")
	core.UpdateRule(0, ReplaceRule{Find: "/[/", Replace: "x"})

	out := runREPL(t, core, "replace", nil)
	if !strings.Contains(out, "rule 0: invalid pattern: /[/") {
		t.Errorf("Expected rule error, got %q", out)
	}
	if !strings.Contains(out, "1 rule(s) skipped") {
		t.Errorf("Expected warning, got %q", out)
	}
}

// TestREPLRuleMode tests switching a rule between modes
func TestREPLRuleMode(t *testing.T) {
	core := NewTextSwordCore()
	core.UpdateRule(0, ReplaceRule{Find: "/a/", Replace: "b"})

	out := runREPL(t, core, "rule mode 0 literal", nil)
	if !strings.Contains(out, "Rule 0 mode set to literal") {
		t.Errorf("Unexpected output %q", out)
	}
	if core.GetRules()[0].Mode != RuleModeLiteral {
		t.Errorf("Expected literal mode, got %q", core.GetRules()[0].Mode)
	}

	// rule set keeps the mode
	runREPL(t, core, "rule set 0 /b/ c", nil)
	if rule := core.GetRules()[0]; rule.Mode != RuleModeLiteral || rule.Find != "/b/" {
		t.Errorf("Unexpected rule %+v", rule)
	}

	if out := runREPL(t, core, "rule mode 0 glob", nil); !strings.Contains(out, "unknown rule mode") {
		t.Errorf("Expected mode error, got %q", out)
	}
	if out := runREPL(t, core, "rule mode 4 pattern", nil); !strings.Contains(out, "rule index out of range") {
		t.Errorf("Expected index error, got %q", out)
	}
}

// TestREPLRuleErrors tests argument validation for rule commands
func TestREPLRuleErrors(t *testing.T) {
	core := NewTextSwordCore()

	tests := []struct {
		input string
		want  string
	}{
		{"rule set 0", "usage: rule set"},
		{"rule set x a", "invalid rule index: x"},
		{"rule set 3 a", "rule index out of range"},
		{"rule remove", "usage: rule remove"},
		{"rule remove 9", "rule index out of range"},
		{"rule frob", "rule requires"},
		{"set everything", "set requires"},
		{"set input", "set input requires text"},
		{"get nothing", "get requires"},
		{"sort sideways", "unknown sort direction"},
		{"import", "usage: import"},
		{"frobnicate", "Unknown command: frobnicate"},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			if out := runREPL(t, core, test.input, nil); !strings.Contains(out, test.want) {
				t.Errorf("Expected %q in %q", test.want, out)
			}
		})
	}
}

// TestREPLMultilineInput tests reading text until a blank line
func TestREPLMultilineInput(t *testing.T) {
	core := NewTextSwordCore()
	rl := &fakeLineReader{lines: []string{"first", "second", "", "ignored"}}

	runREPL(t, core, "set output", rl)
	if core.GetOutputText() != "first\nsecond" {
		t.Errorf("Expected two lines, got %q", core.GetOutputText())
	}
	if len(rl.lines) != 1 {
		t.Errorf("Expected reading to stop at the blank line, %d lines left", len(rl.lines))
	}
	if len(rl.prompts) != 2 || rl.prompts[0] != "" || rl.prompts[1] != replPrompt {
		t.Errorf("Expected prompt to be cleared and restored, got %q", rl.prompts)
	}
}

// TestREPLRulesImportExport tests moving rules as JSON through the REPL
func TestREPLRulesImportExport(t *testing.T) {
	core := NewTextSwordCore()
	rl := &fakeLineReader{lines: []string{`[{"find":"a","replace":"b"},`, `{"find":"/c/i","replace":"d","mode":"pattern"}]`, ""}}

	out := runREPL(t, core, "rules import", rl)
	if !strings.Contains(out, "2 rules imported") {
		t.Errorf("Unexpected output %q", out)
	}

	out = runREPL(t, core, "rules export", nil)
	if !strings.Contains(out, `"find": "/c/i"`) {
		t.Errorf("Expected exported rules, got %q", out)
	}

	if out := runREPL(t, core, "rules import [{\"find\":1}]", nil); !strings.Contains(out, "Error") {
		t.Errorf("Expected import error, got %q", out)
	}
	if len(core.GetRules()) != 2 {
		t.Error("Rules should be unchanged after a failed import")
	}
}

// TestREPLPrintRules tests the rule table
func TestREPLPrintRules(t *testing.T) {
	var buf bytes.Buffer
	printRules([]ReplaceRule{
		{Find: "x", Replace: "y"},
		{Find: strings.Repeat("f", 50), Replace: "", Mode: RuleModePattern},
	}, newREPLFormatterTo(&buf, false))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header, separator and 2 rows, got %q", lines)
	}
	if !strings.HasPrefix(lines[0], "#  Find") {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[2], "auto") {
		t.Errorf("Expected auto mode in %q", lines[2])
	}
	if !strings.Contains(lines[3], strings.Repeat("f", 37)+"...") || !strings.Contains(lines[3], "pattern") {
		t.Errorf("Expected shortened find and pattern mode in %q", lines[3])
	}
}

// TestREPLPrintRulesWideText tests the rule table with multibyte and wide characters
func TestREPLPrintRulesWideText(t *testing.T) {
	var buf bytes.Buffer
	printRules([]ReplaceRule{
		{Find: "\u66ff\u6362", Replace: "x"},
		{Find: strings.Repeat("\u00e9", 50), Replace: "abcd"},
	}, newREPLFormatterTo(&buf, false))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header, separator and 2 rows, got %q", lines)
	}
	width := runewidth.StringWidth(lines[0])
	for _, line := range lines {
		if !utf8.ValidString(line) {
			t.Errorf("Expected valid UTF-8, got %q", line)
		}
		if w := runewidth.StringWidth(line); w != width {
			t.Errorf("Expected every line %d columns wide, got %d in %q", width, w, line)
		}
	}
	if !strings.Contains(lines[3], strings.Repeat("\u00e9", 37)+"...") {
		t.Errorf("Expected shortened find in %q", lines[3])
	}
}

func TestShortenString(t *testing.T) {
	tests := []struct {
		input    string
		maxWidth int
		expected string
		desc     string
	}{
		{"short", 10, "short", "Fits"},
		{strings.Repeat("a", 12), 10, "aaaaaaa...", "ASCII"},
		{strings.Repeat("\u00e9", 12), 10, strings.Repeat("\u00e9", 7) + "...", "Two byte characters"},
		{strings.Repeat("\u66ff", 12), 10, strings.Repeat("\u66ff", 3) + "...", "Wide characters"},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			result := shortenString(test.input, test.maxWidth)
			if result != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, result)
			}
			if runewidth.StringWidth(result) > test.maxWidth {
				t.Errorf("Expected at most %d columns, got %q", test.maxWidth, result)
			}
		})
	}
}

// TestREPLFiles tests import and export through the REPL
func TestREPLFiles(t *testing.T) {
	dir := t.TempDir()
	core := NewTextSwordCore()

	path := filepath.Join(dir, "in put.txt")
	os.WriteFile(path, []byte("a\nb\nc"), 0o644)
	if out := runREPL(t, core, "import "+path, nil); !strings.Contains(out, "(3 lines)") {
		t.Errorf("Unexpected import output %q", out)
	}

	wide := filepath.Join(dir, "wide.txt")
	os.WriteFile(wide, []byte("\xF0\x9F\x98\x80"), 0o644)
	if out := runREPL(t, core, "import "+wide, nil); !strings.Contains(out, "Warning") {
		t.Errorf("Expected encoding warning, got %q", out)
	}

	core.SetOutputText("result")
	out := runREPL(t, core, "export "+dir, nil)
	if !strings.Contains(out, "Exported to "+dir) {
		t.Errorf("Unexpected export output %q", out)
	}
}

// TestREPLQuit tests that quit ends the session
func TestREPLQuit(t *testing.T) {
	for _, input := range []string{"quit", "exit", "EXIT"} {
		cmd, _ := ParseCommand(input)
		err := ExecuteREPLCommand(cmd, NewTextSwordCore(), newREPLFormatterTo(io.Discard, false), nil)
		if !errors.Is(err, errExitREPL) {
			t.Errorf("Expected exit for %q, got %v", input, err)
		}
	}
}

// TestREPLHelp tests that help lists the commands
func TestREPLHelp(t *testing.T) {
	out := runREPL(t, NewTextSwordCore(), "help", nil)
	for _, want := range []string{"rule set", "fillback", "dedupe", "sort asc|desc", "export [dir]"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in help", want)
		}
	}
}
