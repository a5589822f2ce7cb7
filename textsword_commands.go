package main

import (
	"encoding/json"
	"errors"
)

// Command represents a JSON command sent by a client or an agent
type Command struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// Response represents a JSON response from command execution
type Response struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
	Warning string      `json:"warning,omitempty"`
}

// readOnlyActions never modify state
var readOnlyActions = map[string]bool{
	"get_input_text":  true,
	"get_output_text": true,
	"line_counts":     true,
	"get_state":       true,
	"list_rules":      true,
	"export_rules":    true,
	"export_file":     true,
}

// ExecuteCommand executes a JSON command and returns a JSON response
func (tc *TextSwordCore) ExecuteCommand(cmdJSON string) string {
	var cmd Command
	if err := json.Unmarshal([]byte(cmdJSON), &cmd); err != nil {
		return tc.errorResponse("Invalid JSON: " + err.Error())
	}

	switch cmd.Action {
	case "set_input_text":
		return tc.cmdSetInputText(cmd.Params)
	case "get_input_text":
		return tc.cmdGetInputText(cmd.Params)
	case "set_output_text":
		return tc.cmdSetOutputText(cmd.Params)
	case "get_output_text":
		return tc.cmdGetOutputText(cmd.Params)
	case "line_counts":
		return tc.cmdLineCounts(cmd.Params)
	case "get_state":
		return tc.cmdGetState(cmd.Params)
	case "replace":
		return tc.cmdReplace(cmd.Params)
	case "fill_back":
		return tc.cmdFillBack(cmd.Params)
	case "undo_fill":
		return tc.cmdUndoFill(cmd.Params)
	case "deduplicate":
		return tc.cmdDeduplicate(cmd.Params)
	case "sort_lines":
		return tc.cmdSortLines(cmd.Params)
	case "add_rule":
		return tc.cmdAddRule(cmd.Params)
	case "update_rule":
		return tc.cmdUpdateRule(cmd.Params)
	case "remove_rule":
		return tc.cmdRemoveRule(cmd.Params)
	case "list_rules":
		return tc.cmdListRules(cmd.Params)
	case "export_rules":
		return tc.cmdExportRules(cmd.Params)
	case "import_rules":
		return tc.cmdImportRules(cmd.Params)
	case "import_file":
		return tc.cmdImportFile(cmd.Params)
	case "export_file":
		return tc.cmdExportFile(cmd.Params)
	default:
		return tc.errorResponse("Unknown action: " + cmd.Action)
	}
}

// ============================================================================
// Command Handlers
// ============================================================================

func (tc *TextSwordCore) cmdSetInputText(params map[string]interface{}) string {
	text := getStr(params, "text", "")
	tc.SetInputText(text)
	return tc.successResponse(map[string]interface{}{
		"success": true,
	})
}

func (tc *TextSwordCore) cmdGetInputText(params map[string]interface{}) string {
	return tc.successResponse(map[string]interface{}{
		"text": tc.GetInputText(),
	})
}

func (tc *TextSwordCore) cmdSetOutputText(params map[string]interface{}) string {
	text := getStr(params, "text", "")
	tc.SetOutputText(text)
	return tc.successResponse(map[string]interface{}{
		"success": true,
	})
}

func (tc *TextSwordCore) cmdGetOutputText(params map[string]interface{}) string {
	return tc.successResponse(map[string]interface{}{
		"text": tc.GetOutputText(),
	})
}

func (tc *TextSwordCore) cmdLineCounts(params map[string]interface{}) string {
	in, out := tc.LineCounts()
	return tc.successResponse(map[string]interface{}{
		"input":  in,
		"output": out,
	})
}

// cmdGetState returns everything a UI needs to redraw in one call
func (tc *TextSwordCore) cmdGetState(params map[string]interface{}) string {
	in, out := tc.LineCounts()
	return tc.successResponse(map[string]interface{}{
		"input":        tc.GetInputText(),
		"output":       tc.GetOutputText(),
		"rules":        tc.GetRules(),
		"input_lines":  in,
		"output_lines": out,
		"can_undo":     tc.backup != nil,
	})
}

// cmdReplace runs the rules; per-rule errors are part of a successful result
func (tc *TextSwordCore) cmdReplace(params map[string]interface{}) string {
	errs := tc.Replace()
	if errs == nil {
		errs = []RuleError{}
	}
	return tc.successResponse(map[string]interface{}{
		"output": tc.GetOutputText(),
		"errors": errs,
	})
}

func (tc *TextSwordCore) cmdFillBack(params map[string]interface{}) string {
	tc.FillBack()
	return tc.successResponse(map[string]interface{}{
		"input": tc.GetInputText(),
	})
}

func (tc *TextSwordCore) cmdUndoFill(params map[string]interface{}) string {
	restored := tc.UndoFill()
	return tc.successResponse(map[string]interface{}{
		"restored": restored,
		"input":    tc.GetInputText(),
	})
}

func (tc *TextSwordCore) cmdDeduplicate(params map[string]interface{}) string {
	tc.Deduplicate()
	return tc.successResponse(map[string]interface{}{
		"output": tc.GetOutputText(),
	})
}

func (tc *TextSwordCore) cmdSortLines(params map[string]interface{}) string {
	direction, err := ParseSortDirection(getStr(params, "direction", "ascending"))
	if err != nil {
		return tc.errorResponse(err.Error())
	}
	tc.SortLines(direction)
	return tc.successResponse(map[string]interface{}{
		"output": tc.GetOutputText(),
	})
}

func (tc *TextSwordCore) cmdAddRule(params map[string]interface{}) string {
	index := tc.AddRule()
	return tc.successResponse(map[string]interface{}{
		"index": index,
	})
}

func (tc *TextSwordCore) cmdUpdateRule(params map[string]interface{}) string {
	index, ok := getInt(params, "index")
	if !ok {
		return tc.errorResponse("Missing required parameter: index")
	}
	mode, err := ParseRuleMode(getStr(params, "mode", ""))
	if err != nil {
		return tc.errorResponse(err.Error())
	}

	rule := ReplaceRule{
		Find:    getStr(params, "find", ""),
		Replace: getStr(params, "replace", ""),
		Mode:    mode,
	}
	if err := tc.UpdateRule(index, rule); err != nil {
		return tc.errorResponse(err.Error())
	}

	return tc.successResponse(map[string]interface{}{
		"success": true,
	})
}

func (tc *TextSwordCore) cmdRemoveRule(params map[string]interface{}) string {
	index, ok := getInt(params, "index")
	if !ok {
		return tc.errorResponse("Missing required parameter: index")
	}
	if err := tc.RemoveRule(index); err != nil {
		return tc.errorResponse(err.Error())
	}
	return tc.successResponse(map[string]interface{}{
		"success": true,
	})
}

func (tc *TextSwordCore) cmdListRules(params map[string]interface{}) string {
	return tc.successResponse(map[string]interface{}{
		"rules": tc.GetRules(),
	})
}

func (tc *TextSwordCore) cmdExportRules(params map[string]interface{}) string {
	jsonStr, err := tc.ExportRules()
	if err != nil {
		return tc.errorResponse(err.Error())
	}
	return tc.successResponse(map[string]interface{}{
		"json": jsonStr,
	})
}

func (tc *TextSwordCore) cmdImportRules(params map[string]interface{}) string {
	jsonStr := getStr(params, "json", "")
	if jsonStr == "" {
		return tc.errorResponse("Missing required parameter: json")
	}
	if err := tc.ImportRules(jsonStr); err != nil {
		return tc.errorResponse(err.Error())
	}
	return tc.successResponse(map[string]interface{}{
		"count": len(tc.rules),
	})
}

// cmdImportFile reports encoding problems as warnings rather than errors
func (tc *TextSwordCore) cmdImportFile(params map[string]interface{}) string {
	path := getStr(params, "path", "")
	if path == "" {
		return tc.errorResponse("Missing required parameter: path")
	}

	if err := tc.ImportFile(path); err != nil {
		var warning *EncodingWarning
		if errors.As(err, &warning) {
			return tc.warningResponse(warning.Reason)
		}
		return tc.errorResponse(err.Error())
	}

	return tc.successResponse(map[string]interface{}{
		"input_lines": CountLines(tc.GetInputText()),
	})
}

func (tc *TextSwordCore) cmdExportFile(params map[string]interface{}) string {
	path, err := tc.ExportFile(getStr(params, "dir", ""))
	if err != nil {
		return tc.errorResponse(err.Error())
	}
	return tc.successResponse(map[string]interface{}{
		"path": path,
	})
}

// ============================================================================
// Helper Functions
// ============================================================================

// getStr safely extracts a string parameter, with a default value
func getStr(params map[string]interface{}, key, defaultValue string) string {
	if val, ok := params[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return defaultValue
}

// getInt extracts an integer parameter; JSON numbers arrive as float64
func getInt(params map[string]interface{}, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// successResponse creates a successful response
func (tc *TextSwordCore) successResponse(result interface{}) string {
	resp := Response{
		Success: true,
		Result:  result,
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

// errorResponse creates an error response
func (tc *TextSwordCore) errorResponse(errorMsg string) string {
	resp := Response{
		Success: false,
		Error:   errorMsg,
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

// warningResponse creates a response for an operation that was refused with a warning
func (tc *TextSwordCore) warningResponse(warning string) string {
	resp := Response{
		Success: false,
		Warning: warning,
	}
	data, _ := json.Marshal(resp)
	return string(data)
}
