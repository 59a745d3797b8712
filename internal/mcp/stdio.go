// ABOUTME: Stdio transport: newline-delimited JSON-RPC on an input/output pair.
// ABOUTME: Strictly sequential; one message fully answered before the next read.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// MaxLineSize is the maximum allowed size for a single inbound message (1MB).
const MaxLineSize = 1 << 20

// DefaultShutdownGrace bounds how long an in-flight exchange may run after a
// shutdown signal before the loop is abandoned.
const DefaultShutdownGrace = 5 * time.Second

// ErrShutdownTimeout is returned when the in-flight exchange did not finish
// within the shutdown grace period.
var ErrShutdownTimeout = errors.New("shutdown grace period exceeded")

// StdioConfig holds configuration for the stdio transport.
type StdioConfig struct {
	Engine        *Engine
	In            io.Reader
	Out           io.Writer
	Logger        *slog.Logger
	ShutdownGrace time.Duration
}

// StdioServer reads one JSON message per line and writes one JSON response
// per line, flushing after every write.
type StdioServer struct {
	engine *Engine
	in     io.Reader
	out    *bufio.Writer
	logger *slog.Logger
	grace  time.Duration
}

// NewStdioServer creates a stdio transport around the given engine.
func NewStdioServer(cfg StdioConfig) (*StdioServer, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.In == nil || cfg.Out == nil {
		return nil, errors.New("input and output streams are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := cfg.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}
	return &StdioServer{
		engine: cfg.Engine,
		in:     cfg.In,
		out:    bufio.NewWriter(cfg.Out),
		logger: logger,
		grace:  grace,
	}, nil
}

// Serve runs the read-dispatch-write loop until the input stream closes or
// the context is cancelled. A malformed line produces a parse-error response
// and the loop continues; only stream closure or a write failure ends it.
func (s *StdioServer) Serve(ctx context.Context) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	// Reader goroutine: stdin has no deadline support, so the line wait is
	// bounded by selecting against ctx in the main loop instead. The goroutine
	// exits when the stream closes.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			lines <- line
		}
		readErr <- scanner.Err()
	}()

	done := make(chan error, 1)
	go func() {
		done <- s.processLoop(ctx, lines)
	}()

	select {
	case err := <-done:
		s.engine.Close()
		if err != nil {
			return err
		}
		// Stream closed; surface any scanner error.
		select {
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
		default:
		}
		s.logger.Info("input stream closed, session ended")
		return nil

	case <-ctx.Done():
		s.engine.Close()
		s.logger.Info("shutdown requested, draining in-flight exchange", "grace", s.grace)
		select {
		case err := <-done:
			return err
		case <-time.After(s.grace):
			s.logger.Warn("forced shutdown", "grace", s.grace)
			return ErrShutdownTimeout
		}
	}
}

// processLoop handles messages strictly one at a time.
func (s *StdioServer) processLoop(ctx context.Context, lines <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if len(line) == 0 {
				continue
			}
			resp := s.engine.HandleRaw(ctx, line)
			if resp == nil {
				continue
			}
			if err := s.write(resp); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

// write encodes one response as a single line and flushes it.
func (s *StdioServer) write(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := s.out.Write(data); err != nil {
		return err
	}
	if err := s.out.WriteByte('\n'); err != nil {
		return err
	}
	return s.out.Flush()
}
