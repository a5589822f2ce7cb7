package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// connectTestMCP runs the MCP server over in-memory transports and returns a client session
func connectTestMCP(t *testing.T) *mcp.ClientSession {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- RunMCPServer(ctx, serverTransport, nil)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), time.Second)
	defer clientCancel()
	session, err := client.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}

	t.Cleanup(func() {
		session.Close()
		cancel()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after cancel")
		}
	})
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return result
}

func decodeStructuredContent[T any](t *testing.T, value any) T {
	t.Helper()

	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var output T
	if err := json.Unmarshal(data, &output); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return output
}

// TestMCPListTools ensures every text tool is registered.
func TestMCPListTools(t *testing.T) {
	session := connectTestMCP(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}

	names := make(map[string]bool)
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, name := range []string{"apply_rules", "deduplicate_lines", "sort_lines", "count_lines"} {
		if !names[name] {
			t.Errorf("missing tool %s", name)
		}
	}
}

// TestMCPApplyRules ensures rules run in order and invalid ones are reported.
func TestMCPApplyRules(t *testing.T) {
	session := connectTestMCP(t)

	result := callTool(t, session, "apply_rules", map[string]any{
		"text": "cat hat",
		"rules": []map[string]any{
			{"find": "/(\\w)at/g", "replace": "$1og"},
			{"find": "/(/", "replace": "x"},
			{"find": "hog", "replace": "pig"},
		},
	})
	if result.IsError {
		t.Fatalf("unexpected tool error: %+v", result.Content)
	}

	output := decodeStructuredContent[ApplyRulesResult](t, result.StructuredContent)
	if output.Output != "cog pig" {
		t.Errorf("Expected 'cog pig', got %q", output.Output)
	}
	if len(output.Errors) != 1 || output.Errors[0].Index != 1 || output.Errors[0].Find != "/(/" {
		t.Errorf("Unexpected rule errors %+v", output.Errors)
	}
}

// TestMCPApplyRulesNoErrors ensures a clean run reports an empty error list.
func TestMCPApplyRulesNoErrors(t *testing.T) {
	session := connectTestMCP(t)

	result := callTool(t, session, "apply_rules", map[string]any{
		"text":  "a-b",
		"rules": []map[string]any{{"find": "-", "replace": `\t`}},
	})
	output := decodeStructuredContent[ApplyRulesResult](t, result.StructuredContent)
	if output.Output != "a\tb" {
		t.Errorf("Expected tab separated output, got %q", output.Output)
	}
	if output.Errors == nil || len(output.Errors) != 0 {
		t.Errorf("Expected an empty error list, got %v", output.Errors)
	}
}

// TestMCPLineTools ensures the line tools match the editor commands.
func TestMCPLineTools(t *testing.T) {
	session := connectTestMCP(t)

	dedupe := decodeStructuredContent[LinesResult](t,
		callTool(t, session, "deduplicate_lines", map[string]any{"text": " b \na\n\nb"}).StructuredContent)
	if dedupe.Output != "b\na" || dedupe.Lines != 2 {
		t.Errorf("Unexpected deduplicate result %+v", dedupe)
	}

	sorted := decodeStructuredContent[LinesResult](t,
		callTool(t, session, "sort_lines", map[string]any{"text": "b\nc\na", "direction": "descending"}).StructuredContent)
	if sorted.Output != "c\nb\na" || sorted.Lines != 3 {
		t.Errorf("Unexpected sort result %+v", sorted)
	}

	ascending := decodeStructuredContent[LinesResult](t,
		callTool(t, session, "sort_lines", map[string]any{"text": "b\na"}).StructuredContent)
	if ascending.Output != "a\nb" {
		t.Errorf("Expected ascending by default, got %q", ascending.Output)
	}

	counted := decodeStructuredContent[CountLinesResult](t,
		callTool(t, session, "count_lines", map[string]any{"text": "\none\ntwo"}).StructuredContent)
	if counted.Lines != 2 {
		t.Errorf("Expected 2 lines, got %d", counted.Lines)
	}
}

// TestMCPSortLinesInvalidDirection ensures bad directions become tool errors.
func TestMCPSortLinesInvalidDirection(t *testing.T) {
	session := connectTestMCP(t)

	result := callTool(t, session, "sort_lines", map[string]any{"text": "a", "direction": "sideways"})
	if !result.IsError {
		t.Error("expected tool error for unknown direction")
	}
}

// TestRunMCPServerStopsOnContext ensures the server exits when the context is cancelled.
func TestRunMCPServerStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- RunMCPServer(ctx, serverTransport, nil)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), time.Second)
	defer clientCancel()
	session, err := client.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
