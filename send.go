package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// buildRawCommand turns send arguments into a command JSON string.
// A single argument starting with '{' is sent as is; otherwise the first
// argument is the action and the optional second one its params object.
func buildRawCommand(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("usage: send <action> [params-json] | send '<command-json>'")
	}

	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		var cmd Command
		if err := json.Unmarshal([]byte(args[0]), &cmd); err != nil {
			return "", fmt.Errorf("invalid command JSON: %w", err)
		}
		return args[0], nil
	}

	cmd := Command{Action: args[0], Params: map[string]interface{}{}}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(strings.Join(args[1:], " ")), &cmd.Params); err != nil {
			return "", fmt.Errorf("invalid params JSON: %w", err)
		}
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sendRaw executes one command on client and pretty prints the response to w
func sendRaw(client *SocketClient, cmdJSON string, w io.Writer) (*Response, error) {
	resp, err := client.Execute(cmdJSON)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(w, string(data))
	return resp, nil
}
