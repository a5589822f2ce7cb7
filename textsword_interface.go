package main

// TextSwordCommands defines the interface for all TextSword operations.
// Both TextSwordCore (direct implementation) and SocketClientCommands (socket wrapper)
// implement this interface, so the GUI works the same against either.
type TextSwordCommands interface {
	// =========================================================================
	// Text - Set and get input/output text
	// =========================================================================

	// SetInputText replaces the input text
	SetInputText(text string)

	// GetInputText returns the current input text
	GetInputText() string

	// SetOutputText replaces the output text
	SetOutputText(text string)

	// GetOutputText returns the current output text
	GetOutputText() string

	// LineCounts returns the input and output line counts
	LineCounts() (int, int)

	// =========================================================================
	// Transformations - All of these act on the current state
	// =========================================================================

	// Replace applies the rules to the input, writing the output
	Replace() []RuleError

	// FillBack moves the output into the input, keeping a backup
	FillBack()

	// UndoFill restores the backup made by FillBack
	UndoFill() bool

	// Deduplicate removes repeated output lines
	Deduplicate()

	// SortLines sorts the output lines
	SortLines(direction SortDirection)

	// =========================================================================
	// Rules - Ordered find/replace list
	// =========================================================================

	// AddRule appends a blank rule and returns its index
	AddRule() int

	// UpdateRule replaces the rule at index
	UpdateRule(index int, rule ReplaceRule) error

	// RemoveRule deletes the rule at index
	RemoveRule(index int) error

	// GetRules returns the rule list
	GetRules() []ReplaceRule

	// ExportRules returns the rule list as JSON
	ExportRules() (string, error)

	// ImportRules replaces the rule list from JSON
	ImportRules(jsonStr string) error

	// =========================================================================
	// Files
	// =========================================================================

	// ImportFile reads a file into the input
	ImportFile(path string) error

	// ExportFile writes the output to a timestamped file and returns its path
	ExportFile(dir string) (string, error)
}
