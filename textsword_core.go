package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrRuleIndex is returned when a rule index is outside the rule list
var ErrRuleIndex = errors.New("rule index out of range")

// TextSwordCore is the headless application state with no GTK dependencies
type TextSwordCore struct {
	inputText  string
	outputText string
	backup     *string // input saved by FillBack, restored by UndoFill
	rules      []ReplaceRule
	store      StateStore
	log        *Logger
	now        func() time.Time
	stripHTML  bool
	exportDir  string
}

// CoreOption customises a TextSwordCore
type CoreOption func(*TextSwordCore)

// WithStore persists state changes to store
func WithStore(store StateStore) CoreOption {
	return func(tc *TextSwordCore) { tc.store = store }
}

// WithLogger sets the logger used for persistence failures
func WithLogger(log *Logger) CoreOption {
	return func(tc *TextSwordCore) { tc.log = log.WithComponent("core") }
}

// WithClock replaces time.Now, used for export file names
func WithClock(now func() time.Time) CoreOption {
	return func(tc *TextSwordCore) { tc.now = now }
}

// WithImportOptions controls HTML stripping on import
func WithImportOptions(stripHTML bool) CoreOption {
	return func(tc *TextSwordCore) { tc.stripHTML = stripHTML }
}

// WithExportDir sets the default export directory
func WithExportDir(dir string) CoreOption {
	return func(tc *TextSwordCore) { tc.exportDir = dir }
}

// NewTextSwordCore creates a new TextSwordCore with one blank rule
func NewTextSwordCore(opts ...CoreOption) *TextSwordCore {
	tc := &TextSwordCore{
		rules:     defaultRules(),
		store:     NewMemoryStore(),
		log:       NewNopLogger(),
		now:       time.Now,
		stripHTML: false,
		exportDir: ".",
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

func defaultRules() []ReplaceRule {
	return []ReplaceRule{{}}
}

// ============================================================================
// Persistence
// ============================================================================

// Restore loads input, output and rules from the store.
// Missing keys keep their defaults; unreadable rules fall back to one blank rule.
func (tc *TextSwordCore) Restore(ctx context.Context) error {
	if value, ok, err := tc.store.Load(ctx, stateKeyInput); err != nil {
		return err
	} else if ok {
		tc.inputText = value
	}

	if value, ok, err := tc.store.Load(ctx, stateKeyOutput); err != nil {
		return err
	} else if ok {
		tc.outputText = value
	}

	value, ok, err := tc.store.Load(ctx, stateKeyRules)
	if err != nil {
		return err
	}
	tc.rules = defaultRules()
	if ok {
		rules, err := parseRules(value)
		if err != nil {
			tc.log.Warn("Stored rules are invalid, starting with a blank rule", zap.Error(err))
		} else {
			tc.rules = rules
		}
	}

	return nil
}

func (tc *TextSwordCore) persist(key, value string) {
	if err := tc.store.Save(context.Background(), key, value); err != nil {
		tc.log.Warn("Failed to persist state", zap.String("key", key), zap.Error(err))
	}
}

func (tc *TextSwordCore) persistRules() {
	data, err := json.Marshal(tc.rules)
	if err != nil {
		tc.log.Warn("Failed to encode rules", zap.Error(err))
		return
	}
	tc.persist(stateKeyRules, string(data))
}

// parseRules decodes a rule list and checks its shape: an array of objects
// whose find and replace fields are strings and whose optional mode is known
func parseRules(jsonStr string) ([]ReplaceRule, error) {
	var raw []map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("rules must be an array")
	}

	rules := make([]ReplaceRule, 0, len(raw))
	for i, item := range raw {
		if item == nil {
			return nil, fmt.Errorf("rule %d is not an object", i)
		}
		find, ok := item["find"].(string)
		if !ok {
			return nil, fmt.Errorf("rule %d: find must be a string", i)
		}
		replace, ok := item["replace"].(string)
		if !ok {
			return nil, fmt.Errorf("rule %d: replace must be a string", i)
		}

		rule := ReplaceRule{Find: find, Replace: replace}
		if m, present := item["mode"]; present {
			s, ok := m.(string)
			if !ok {
				return nil, fmt.Errorf("rule %d: mode must be a string", i)
			}
			mode, err := ParseRuleMode(s)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			rule.Mode = mode
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ============================================================================
// Text Methods
// ============================================================================

// SetInputText replaces the input text
func (tc *TextSwordCore) SetInputText(text string) {
	tc.inputText = text
	tc.persist(stateKeyInput, text)
}

// GetInputText returns the current input text
func (tc *TextSwordCore) GetInputText() string {
	return tc.inputText
}

// SetOutputText replaces the output text
func (tc *TextSwordCore) SetOutputText(text string) {
	tc.outputText = text
	tc.persist(stateKeyOutput, text)
}

// GetOutputText returns the current output text
func (tc *TextSwordCore) GetOutputText() string {
	return tc.outputText
}

// Replace applies the rule list to the input and stores the result as output
func (tc *TextSwordCore) Replace() []RuleError {
	output, errs := ApplyRules(tc.inputText, tc.rules)
	tc.SetOutputText(output)
	return errs
}

// FillBack copies the output into the input, keeping the old input for UndoFill
func (tc *TextSwordCore) FillBack() {
	previous := tc.inputText
	tc.backup = &previous
	tc.SetInputText(tc.outputText)
}

// UndoFill restores the input saved by the last FillBack.
// It returns false when there is nothing to restore.
func (tc *TextSwordCore) UndoFill() bool {
	if tc.backup == nil {
		return false
	}
	previous := *tc.backup
	tc.backup = nil
	tc.SetInputText(previous)
	return true
}

// Deduplicate removes repeated lines from the output
func (tc *TextSwordCore) Deduplicate() {
	tc.SetOutputText(Deduplicate(tc.outputText))
}

// SortLines sorts the output lines
func (tc *TextSwordCore) SortLines(direction SortDirection) {
	tc.SetOutputText(SortLines(tc.outputText, direction))
}

// LineCounts returns the line counts shown next to the input and output
func (tc *TextSwordCore) LineCounts() (int, int) {
	return CountLines(tc.inputText), CountLines(tc.outputText)
}

// ============================================================================
// Rule Methods
// ============================================================================

// AddRule appends a blank rule and returns its index
func (tc *TextSwordCore) AddRule() int {
	tc.rules = append(tc.rules, ReplaceRule{})
	tc.persistRules()
	return len(tc.rules) - 1
}

// UpdateRule replaces the rule at index
func (tc *TextSwordCore) UpdateRule(index int, rule ReplaceRule) error {
	if index < 0 || index >= len(tc.rules) {
		return fmt.Errorf("%w: %d", ErrRuleIndex, index)
	}
	tc.rules[index] = rule
	tc.persistRules()
	return nil
}

// RemoveRule deletes the rule at index
func (tc *TextSwordCore) RemoveRule(index int) error {
	if index < 0 || index >= len(tc.rules) {
		return fmt.Errorf("%w: %d", ErrRuleIndex, index)
	}
	tc.rules = append(tc.rules[:index], tc.rules[index+1:]...)
	tc.persistRules()
	return nil
}

// GetRules returns a copy of the rule list
func (tc *TextSwordCore) GetRules() []ReplaceRule {
	return append([]ReplaceRule{}, tc.rules...)
}

// ExportRules exports the rule list as a JSON string
func (tc *TextSwordCore) ExportRules() (string, error) {
	data, err := json.MarshalIndent(tc.rules, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImportRules replaces the rule list with the rules in jsonStr
func (tc *TextSwordCore) ImportRules(jsonStr string) error {
	rules, err := parseRules(jsonStr)
	if err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}
	tc.rules = rules
	tc.persistRules()
	return nil
}

// ============================================================================
// Import/Export Methods
// ============================================================================

// ImportFile reads path and makes its content the new input.
// On an *EncodingWarning or read error the input is left unchanged.
func (tc *TextSwordCore) ImportFile(path string) error {
	text, err := ReadImportFile(path, tc.stripHTML)
	if err != nil {
		return err
	}
	tc.SetInputText(text)
	return nil
}

// ExportFile writes the output to a timestamped file in dir (or the default
// export directory when dir is empty) and returns the file path
func (tc *TextSwordCore) ExportFile(dir string) (string, error) {
	if dir == "" {
		dir = tc.exportDir
	}
	return WriteExportFile(dir, tc.outputText, tc.now())
}

// SetExportDir changes the default export directory
func (tc *TextSwordCore) SetExportDir(dir string) {
	tc.exportDir = dir
}
