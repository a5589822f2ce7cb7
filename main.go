package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Options defines the global CLI flags.
type Options struct {
	Config string `short:"c" long:"config" description:"Path to a textsword.yaml config file"`
}

var opts Options

// guiCommand opens the editor window.
type guiCommand struct {
	Connect  string `long:"connect" description:"Attach to a running 'textsword serve' at this socket path"`
	NoSocket bool   `long:"no-socket" description:"Do not expose the session on a Unix socket"`
}

// serveCommand runs a headless session behind the Unix socket.
type serveCommand struct {
	Socket string `short:"s" long:"socket" description:"Socket path (overrides socket.path)"`
}

// replCLICommand attaches an interactive shell to a running session.
type replCLICommand struct {
	Socket string `short:"s" long:"socket" description:"Socket path (overrides socket.path)"`
}

// applyCommand runs a rule file over text once, without a session.
type applyCommand struct {
	Rules  string `short:"r" long:"rules" required:"true" description:"JSON rule file"`
	Input  string `short:"i" long:"input" description:"Input file (default stdin)"`
	Output string `short:"o" long:"output" description:"Output file (default stdout)"`
	Dedupe bool   `long:"dedupe" description:"Remove repeated lines after replacing"`
	Sort   string `long:"sort" choice:"asc" choice:"desc" description:"Sort lines after replacing"`
	Strict bool   `long:"strict" description:"Fail when a rule has an invalid pattern"`
}

// sendCommand sends one raw JSON command to a running session.
type sendCommand struct {
	Socket string `short:"s" long:"socket" description:"Socket path (overrides socket.path)"`
}

// mcpCommand serves the text tools over MCP on stdio.
type mcpCommand struct{}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true

	parser.AddCommand("gui", "Open the editor window (default)", "Opens the GTK editor. The session is shared on the configured socket unless --no-socket is given.", &guiCommand{})
	parser.AddCommand("serve", "Run a headless session", "Keeps the session in memory and answers JSON commands on a Unix socket.", &serveCommand{})
	parser.AddCommand("repl", "Interactive shell for a running session", "Connects to 'textsword serve' (or a GUI) and accepts verb-first commands.", &replCLICommand{})
	parser.AddCommand("send", "Send one JSON command to a running session", "Sends a socket command and prints the JSON response, e.g. 'textsword send set_input_text {\"text\":\"hi\"}'.", &sendCommand{})
	parser.AddCommand("apply", "Apply a rule file to text", "Runs the rules in a JSON file over a file or stdin and prints the result.", &applyCommand{})
	parser.AddCommand("mcp", "Serve text tools over MCP", "Exposes apply_rules, deduplicate_lines, sort_lines and count_lines on stdio.", &mcpCommand{})

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// no subcommand given
	if parser.Active == nil {
		if err := (&guiCommand{}).Execute(nil); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

// setup loads the configuration and builds the logger
func setup() (*Config, *Logger, error) {
	config, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, nil, err
	}
	log, err := NewLogger(LogConfig{Level: config.Logging.Level, Format: config.Logging.Format})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return config, log, nil
}

// openSession restores the persisted core described by config
func openSession(ctx context.Context, config *Config, log *Logger) (*TextSwordCore, StateStore, error) {
	store, err := OpenStateStore(config.Storage.Path)
	if err != nil {
		return nil, nil, err
	}

	core := NewTextSwordCore(
		WithStore(store),
		WithLogger(log),
		WithImportOptions(config.Import.StripHTML),
		WithExportDir(config.Export.Dir),
	)
	if err := core.Restore(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return core, store, nil
}

// watchConfig applies log level and export directory changes while running
func watchConfig(server *SocketServer, log *Logger) {
	err := WatchConfig(opts.Config, func(config *Config) {
		if err := log.SetLevel(config.Logging.Level); err != nil {
			log.Warn("Ignoring log level", zap.Error(err))
		}
		server.WithCore(func(core *TextSwordCore) {
			core.SetExportDir(config.Export.Dir)
		})
		log.Info("Configuration reloaded")
	}, func(err error) {
		log.Warn("Ignoring invalid configuration", zap.Error(err))
	})
	if err != nil {
		log.Debug("Config watching disabled", zap.Error(err))
	}
}

func (c *guiCommand) Execute(args []string) error {
	config, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if c.Connect != "" {
		client, err := NewSocketClient(c.Connect)
		if err != nil {
			return err
		}
		defer client.Close()
		return RunGUI(NewSocketClientCommands(client, log), nil, log)
	}

	core, store, err := openSession(context.Background(), config, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if c.NoSocket {
		return RunGUI(core, nil, log)
	}

	// The window talks to its own server so socket clients and the GUI
	// share one serialised session.
	server := NewSocketServer(config.Socket.Path, core, log)
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()
	watchConfig(server, log)

	client, err := NewSocketClient(config.Socket.Path)
	if err != nil {
		return err
	}
	defer client.Close()

	return RunGUI(NewSocketClientCommands(client, log), server, log)
}

func (c *serveCommand) Execute(args []string) error {
	config, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	socketPath := config.Socket.Path
	if c.Socket != "" {
		socketPath = c.Socket
	}

	core, store, err := openSession(context.Background(), config, log)
	if err != nil {
		return err
	}
	defer store.Close()

	server := NewSocketServer(socketPath, core, log)
	if err := server.Start(); err != nil {
		return err
	}
	watchConfig(server, log)

	server.Wait()
	log.Info("Socket server stopped")
	return nil
}

func (c *replCLICommand) Execute(args []string) error {
	config, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	socketPath := config.Socket.Path
	if c.Socket != "" {
		socketPath = c.Socket
	}

	session, err := NewREPLSession(socketPath, config.REPL, log)
	if err != nil {
		return err
	}
	return session.Run()
}

func (c *sendCommand) Execute(args []string) error {
	config, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	socketPath := config.Socket.Path
	if c.Socket != "" {
		socketPath = c.Socket
	}

	cmdJSON, err := buildRawCommand(args)
	if err != nil {
		return err
	}

	client, err := NewSocketClient(socketPath)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := sendRaw(client, cmdJSON, os.Stdout)
	if err != nil {
		return err
	}
	if !resp.Success && resp.Warning == "" {
		return fmt.Errorf("command failed: %s", resp.Error)
	}
	return nil
}

func (c *applyCommand) Execute(args []string) error {
	config, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	data, err := os.ReadFile(c.Rules)
	if err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}
	rules, err := parseRules(string(data))
	if err != nil {
		return fmt.Errorf("invalid rules in %s: %w", c.Rules, err)
	}

	var input string
	if c.Input == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		input = string(raw)
	} else if input, err = ReadImportFile(c.Input, config.Import.StripHTML); err != nil {
		return err
	}

	output, ruleErrs := ApplyRules(input, rules)
	for _, ruleErr := range ruleErrs {
		log.Warn("Rule skipped", zap.Int("index", ruleErr.Index), zap.String("find", ruleErr.Find))
	}
	if c.Strict && len(ruleErrs) > 0 {
		return fmt.Errorf("%d rule(s) have an invalid pattern", len(ruleErrs))
	}

	if c.Dedupe {
		output = Deduplicate(output)
	}
	if c.Sort != "" {
		direction, err := ParseSortDirection(c.Sort)
		if err != nil {
			return err
		}
		output = SortLines(output, direction)
	}

	if c.Output == "" {
		_, err = io.WriteString(os.Stdout, output)
		if err == nil && !strings.HasSuffix(output, "\n") {
			_, err = io.WriteString(os.Stdout, "\n")
		}
		return err
	}
	return os.WriteFile(c.Output, []byte(output), 0o644)
}

func (c *mcpCommand) Execute(args []string) error {
	_, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return RunMCPServer(ctx, &mcp.StdioTransport{}, log)
}
