package main

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// maxMessageSize bounds a single framed message
const maxMessageSize = 64 << 20

// UpdateCallback is called when the core state changes via socket command
type UpdateCallback func()

// SocketClient talks to a running socket server
type SocketClient struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewSocketClient connects to a running socket server
func NewSocketClient(socketPath string) (*SocketClient, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket server at %s: %w", socketPath, err)
	}

	return &SocketClient{conn: conn}, nil
}

// Close closes the connection to the socket server
func (sc *SocketClient) Close() error {
	if sc.conn != nil {
		return sc.conn.Close()
	}
	return nil
}

// Execute sends a command and returns the decoded response
func (sc *SocketClient) Execute(cmdJSON string) (*Response, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := writeFrame(sc.conn, []byte(cmdJSON)); err != nil {
		return nil, err
	}

	data, err := readFrame(sc.conn)
	if err != nil {
		return nil, err
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &response, nil
}

// Call marshals action and params into a command and executes it
func (sc *SocketClient) Call(action string, params map[string]interface{}) (*Response, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	cmdJSON, err := json.Marshal(Command{Action: action, Params: params})
	if err != nil {
		return nil, err
	}
	return sc.Execute(string(cmdJSON))
}

// SocketServer manages the Unix domain socket interface for TextSwordCore
type SocketServer struct {
	socketPath string
	core       *TextSwordCore
	log        *Logger
	listener   net.Listener
	mu         sync.Mutex // serialises access to core
	cbMu       sync.Mutex
	done       chan struct{}
	stopped    chan struct{} // Closed when server has fully shut down
	stopOnce   sync.Once
	callbacks  []UpdateCallback // Called after each command execution to update UIs
	connMu     sync.Mutex
	conns      map[net.Conn]struct{} // open client connections, closed by Stop
}

// NewSocketServer creates a new socket server instance
func NewSocketServer(socketPath string, core *TextSwordCore, log *Logger) *SocketServer {
	if log == nil {
		log = NewNopLogger()
	}
	return &SocketServer{
		socketPath: socketPath,
		core:       core,
		log:        log.WithComponent("socket"),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		callbacks:  make([]UpdateCallback, 0),
		conns:      make(map[net.Conn]struct{}),
	}
}

// SetUpdateCallback adds a callback to be called after each socket command
func (ss *SocketServer) SetUpdateCallback(callback UpdateCallback) {
	ss.cbMu.Lock()
	defer ss.cbMu.Unlock()
	ss.callbacks = append(ss.callbacks, callback)
}

// WithCore runs fn while holding the core lock
func (ss *SocketServer) WithCore(fn func(core *TextSwordCore)) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	fn(ss.core)
}

// Start begins listening on the Unix domain socket
func (ss *SocketServer) Start() error {
	// Remove a stale socket file left by a previous run
	if err := os.Remove(ss.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", ss.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", ss.socketPath, err)
	}

	ss.listener = listener

	go ss.handleSignals()
	go ss.acceptConnections()

	ss.log.Info("Socket server listening", zap.String("path", ss.socketPath))
	return nil
}

// acceptConnections accepts incoming connections (multiple clients supported)
func (ss *SocketServer) acceptConnections() {
	for {
		conn, err := ss.listener.Accept()
		if err != nil {
			select {
			case <-ss.done:
				return
			default:
				ss.log.Warn("Error accepting connection", zap.Error(err))
				continue
			}
		}

		if !ss.trackConn(conn) {
			conn.Close()
			return
		}
		go ss.handleClient(conn)
	}
}

// trackConn registers conn so Stop can close it. It returns false once the
// server is stopping.
func (ss *SocketServer) trackConn(conn net.Conn) bool {
	ss.connMu.Lock()
	defer ss.connMu.Unlock()
	select {
	case <-ss.done:
		return false
	default:
	}
	ss.conns[conn] = struct{}{}
	return true
}

func (ss *SocketServer) untrackConn(conn net.Conn) {
	ss.connMu.Lock()
	delete(ss.conns, conn)
	ss.connMu.Unlock()
}

// handleClient handles communication with a connected client
func (ss *SocketServer) handleClient(conn net.Conn) {
	defer ss.untrackConn(conn)
	defer conn.Close()

	for {
		data, err := readFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			ss.log.Warn("Error reading from client", zap.Error(err))
			return
		}

		ss.mu.Lock()
		response := ss.core.ExecuteCommand(string(data))
		ss.mu.Unlock()

		if err := writeFrame(conn, []byte(response)); err != nil {
			ss.log.Warn("Error writing to client", zap.Error(err))
			return
		}

		if changesState(data) {
			ss.notify()
		}
	}
}

// notify runs the update callbacks
func (ss *SocketServer) notify() {
	ss.cbMu.Lock()
	callbacks := append([]UpdateCallback{}, ss.callbacks...)
	ss.cbMu.Unlock()
	for _, callback := range callbacks {
		callback()
	}
}

// changesState reports whether a command may modify the core state.
// Queries are skipped so UIs refreshing themselves do not loop.
func changesState(cmdJSON []byte) bool {
	var cmd struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(cmdJSON, &cmd); err != nil {
		return false
	}
	return !readOnlyActions[cmd.Action]
}

// handleSignals sets up graceful shutdown on signals
func (ss *SocketServer) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		ss.log.Info("Shutdown signal received", zap.String("signal", sig.String()))
		ss.Stop()
	case <-ss.done:
	}
}

// Stop gracefully shuts down the socket server. It is safe to call more than once.
func (ss *SocketServer) Stop() error {
	ss.stopOnce.Do(func() {
		close(ss.done)

		if ss.listener != nil {
			ss.listener.Close()
		}

		ss.connMu.Lock()
		for conn := range ss.conns {
			conn.Close()
		}
		ss.connMu.Unlock()

		os.Remove(ss.socketPath)

		close(ss.stopped)
	})
	return nil
}

// Wait blocks until the server is fully shut down
func (ss *SocketServer) Wait() {
	<-ss.stopped
}

// ============================================================================
// Length-Prefixed Protocol Implementation
// ============================================================================

// readFrame reads one message: a 4-byte big-endian length followed by data
func readFrame(r io.Reader) ([]byte, error) {
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBuf)
	if length > maxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return data, nil
}

// writeFrame writes one length-prefixed message
func writeFrame(w io.Writer, data []byte) error {
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	_, err := w.Write(frame)
	return err
}
