package main

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// SocketClientCommands wraps a SocketClient to implement the TextSwordCommands interface.
// This allows GUI code to use the same interface whether connected to a socket server
// or using TextSwordCore directly.
type SocketClientCommands struct {
	client *SocketClient
	log    *Logger
}

// NewSocketClientCommands creates a new socket client wrapper.
// Methods without an error return log failures instead.
func NewSocketClientCommands(client *SocketClient, log *Logger) *SocketClientCommands {
	if log == nil {
		log = NewNopLogger()
	}
	return &SocketClientCommands{client: client, log: log.WithComponent("client")}
}

// call executes action and decodes the result into out (when out is not nil)
func (s *SocketClientCommands) call(action string, params map[string]interface{}, out interface{}) error {
	resp, err := s.client.Call(action, params)
	if err != nil {
		return fmt.Errorf("%s socket error: %w", action, err)
	}
	if !resp.Success {
		if resp.Warning != "" {
			return &EncodingWarning{Path: getStr(params, "path", ""), Reason: resp.Warning}
		}
		if resp.Error != "" {
			return fmt.Errorf("%s error: %s", action, resp.Error)
		}
		return fmt.Errorf("%s failed with unknown error", action)
	}
	if out == nil {
		return nil
	}

	// result arrives as generic JSON; round-trip it into the typed target
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// ============================================================================
// Text Methods
// ============================================================================

// SetInputText implements TextSwordCommands.SetInputText
func (s *SocketClientCommands) SetInputText(text string) {
	if err := s.call("set_input_text", map[string]interface{}{"text": text}, nil); err != nil {
		s.log.Warn("SetInputText failed", zap.Error(err))
	}
}

// GetInputText implements TextSwordCommands.GetInputText
func (s *SocketClientCommands) GetInputText() string {
	var result struct {
		Text string `json:"text"`
	}
	if err := s.call("get_input_text", nil, &result); err != nil {
		s.log.Warn("GetInputText failed", zap.Error(err))
	}
	return result.Text
}

// SetOutputText implements TextSwordCommands.SetOutputText
func (s *SocketClientCommands) SetOutputText(text string) {
	if err := s.call("set_output_text", map[string]interface{}{"text": text}, nil); err != nil {
		s.log.Warn("SetOutputText failed", zap.Error(err))
	}
}

// GetOutputText implements TextSwordCommands.GetOutputText
func (s *SocketClientCommands) GetOutputText() string {
	var result struct {
		Text string `json:"text"`
	}
	if err := s.call("get_output_text", nil, &result); err != nil {
		s.log.Warn("GetOutputText failed", zap.Error(err))
	}
	return result.Text
}

// LineCounts implements TextSwordCommands.LineCounts
func (s *SocketClientCommands) LineCounts() (int, int) {
	var result struct {
		Input  int `json:"input"`
		Output int `json:"output"`
	}
	if err := s.call("line_counts", nil, &result); err != nil {
		s.log.Warn("LineCounts failed", zap.Error(err))
	}
	return result.Input, result.Output
}

// ============================================================================
// Transformation Methods
// ============================================================================

// Replace implements TextSwordCommands.Replace
func (s *SocketClientCommands) Replace() []RuleError {
	var result struct {
		Errors []RuleError `json:"errors"`
	}
	if err := s.call("replace", nil, &result); err != nil {
		s.log.Warn("Replace failed", zap.Error(err))
		return nil
	}
	if len(result.Errors) == 0 {
		return nil
	}
	return result.Errors
}

// FillBack implements TextSwordCommands.FillBack
func (s *SocketClientCommands) FillBack() {
	if err := s.call("fill_back", nil, nil); err != nil {
		s.log.Warn("FillBack failed", zap.Error(err))
	}
}

// UndoFill implements TextSwordCommands.UndoFill
func (s *SocketClientCommands) UndoFill() bool {
	var result struct {
		Restored bool `json:"restored"`
	}
	if err := s.call("undo_fill", nil, &result); err != nil {
		s.log.Warn("UndoFill failed", zap.Error(err))
	}
	return result.Restored
}

// Deduplicate implements TextSwordCommands.Deduplicate
func (s *SocketClientCommands) Deduplicate() {
	if err := s.call("deduplicate", nil, nil); err != nil {
		s.log.Warn("Deduplicate failed", zap.Error(err))
	}
}

// SortLines implements TextSwordCommands.SortLines
func (s *SocketClientCommands) SortLines(direction SortDirection) {
	params := map[string]interface{}{"direction": string(direction)}
	if err := s.call("sort_lines", params, nil); err != nil {
		s.log.Warn("SortLines failed", zap.Error(err))
	}
}

// ============================================================================
// Rule Methods
// ============================================================================

// AddRule implements TextSwordCommands.AddRule
func (s *SocketClientCommands) AddRule() int {
	var result struct {
		Index int `json:"index"`
	}
	if err := s.call("add_rule", nil, &result); err != nil {
		s.log.Warn("AddRule failed", zap.Error(err))
		return -1
	}
	return result.Index
}

// UpdateRule implements TextSwordCommands.UpdateRule
func (s *SocketClientCommands) UpdateRule(index int, rule ReplaceRule) error {
	return s.call("update_rule", map[string]interface{}{
		"index":   index,
		"find":    rule.Find,
		"replace": rule.Replace,
		"mode":    string(rule.Mode),
	}, nil)
}

// RemoveRule implements TextSwordCommands.RemoveRule
func (s *SocketClientCommands) RemoveRule(index int) error {
	return s.call("remove_rule", map[string]interface{}{"index": index}, nil)
}

// GetRules implements TextSwordCommands.GetRules
func (s *SocketClientCommands) GetRules() []ReplaceRule {
	var result struct {
		Rules []ReplaceRule `json:"rules"`
	}
	if err := s.call("list_rules", nil, &result); err != nil {
		s.log.Warn("GetRules failed", zap.Error(err))
	}
	return result.Rules
}

// ExportRules implements TextSwordCommands.ExportRules
func (s *SocketClientCommands) ExportRules() (string, error) {
	var result struct {
		JSON string `json:"json"`
	}
	if err := s.call("export_rules", nil, &result); err != nil {
		return "", err
	}
	return result.JSON, nil
}

// ImportRules implements TextSwordCommands.ImportRules
func (s *SocketClientCommands) ImportRules(jsonStr string) error {
	return s.call("import_rules", map[string]interface{}{"json": jsonStr}, nil)
}

// ============================================================================
// File Methods
// ============================================================================

// ImportFile implements TextSwordCommands.ImportFile.
// The path is read by the server process.
func (s *SocketClientCommands) ImportFile(path string) error {
	return s.call("import_file", map[string]interface{}{"path": path}, nil)
}

// ExportFile implements TextSwordCommands.ExportFile
func (s *SocketClientCommands) ExportFile(dir string) (string, error) {
	var result struct {
		Path string `json:"path"`
	}
	if err := s.call("export_file", map[string]interface{}{"dir": dir}, &result); err != nil {
		return "", err
	}
	return result.Path, nil
}
