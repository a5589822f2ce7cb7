package main

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	mcpServerName    = "textsword"
	mcpServerVersion = "v0.1.0"
)

// ApplyRulesInput represents the MCP tool input for running rules over text.
type ApplyRulesInput struct {
	Text  string        `json:"text" jsonschema:"text to transform"`
	Rules []ReplaceRule `json:"rules" jsonschema:"ordered find/replace rules; find may be /pattern/flags"`
}

// ApplyRulesResult represents the MCP tool output for running rules.
type ApplyRulesResult struct {
	Output string      `json:"output" jsonschema:"text after every valid rule ran"`
	Errors []RuleError `json:"errors" jsonschema:"rules skipped because their pattern is invalid"`
}

// LinesInput represents the MCP tool input for line tools.
type LinesInput struct {
	Text string `json:"text" jsonschema:"newline separated text"`
}

// SortLinesInput represents the MCP tool input for sorting lines.
type SortLinesInput struct {
	Text      string `json:"text" jsonschema:"newline separated text"`
	Direction string `json:"direction,omitempty" jsonschema:"ascending (default) or descending"`
}

// LinesResult represents the MCP tool output for line tools.
type LinesResult struct {
	Output string `json:"output" jsonschema:"resulting text"`
	Lines  int    `json:"lines" jsonschema:"line count of the output"`
}

// CountLinesResult represents the MCP tool output for counting lines.
type CountLinesResult struct {
	Lines int `json:"lines" jsonschema:"number of lines"`
}

// ApplyRulesTool defines the MCP tool schema for applying rules.
func ApplyRulesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "apply_rules",
		Description: "Applies ordered find/replace rules to text",
	}
}

// DeduplicateLinesTool defines the MCP tool schema for removing repeated lines.
func DeduplicateLinesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "deduplicate_lines",
		Description: "Trims lines, drops blank ones and keeps the first of each repeated line",
	}
}

// SortLinesTool defines the MCP tool schema for sorting lines.
func SortLinesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sort_lines",
		Description: "Trims lines, drops blank ones and sorts the rest",
	}
}

// CountLinesTool defines the MCP tool schema for counting lines.
func CountLinesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "count_lines",
		Description: "Counts lines the way the editor shows them",
	}
}

// ApplyRulesHandler runs rules over the given text.
func ApplyRulesHandler() mcp.ToolHandlerFor[ApplyRulesInput, ApplyRulesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ApplyRulesInput) (*mcp.CallToolResult, ApplyRulesResult, error) {
		output, errs := ApplyRules(input.Text, input.Rules)
		if errs == nil {
			errs = []RuleError{}
		}
		return nil, ApplyRulesResult{Output: output, Errors: errs}, nil
	}
}

// DeduplicateLinesHandler removes repeated lines.
func DeduplicateLinesHandler() mcp.ToolHandlerFor[LinesInput, LinesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LinesInput) (*mcp.CallToolResult, LinesResult, error) {
		output := Deduplicate(input.Text)
		return nil, LinesResult{Output: output, Lines: CountLines(output)}, nil
	}
}

// SortLinesHandler sorts lines.
func SortLinesHandler() mcp.ToolHandlerFor[SortLinesInput, LinesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SortLinesInput) (*mcp.CallToolResult, LinesResult, error) {
		direction, err := ParseSortDirection(input.Direction)
		if err != nil {
			return nil, LinesResult{}, err
		}
		output := SortLines(input.Text, direction)
		return nil, LinesResult{Output: output, Lines: CountLines(output)}, nil
	}
}

// CountLinesHandler counts lines.
func CountLinesHandler() mcp.ToolHandlerFor[LinesInput, CountLinesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LinesInput) (*mcp.CallToolResult, CountLinesResult, error) {
		return nil, CountLinesResult{Lines: CountLines(input.Text)}, nil
	}
}

// NewMCPServer creates an MCP server exposing the stateless text tools
func NewMCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: mcpServerName, Version: mcpServerVersion}, nil)
	mcp.AddTool(server, ApplyRulesTool(), ApplyRulesHandler())
	mcp.AddTool(server, DeduplicateLinesTool(), DeduplicateLinesHandler())
	mcp.AddTool(server, SortLinesTool(), SortLinesHandler())
	mcp.AddTool(server, CountLinesTool(), CountLinesHandler())
	return server
}

// RunMCPServer serves the tools on transport until ctx is cancelled
func RunMCPServer(ctx context.Context, transport mcp.Transport, log *Logger) error {
	if log == nil {
		log = NewNopLogger()
	}
	log = log.WithComponent("mcp")

	log.Info("MCP server starting", zap.String("version", mcpServerVersion))
	if err := NewMCPServer().Run(ctx, transport); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
