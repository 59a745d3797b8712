// Package mcp implements the Model Context Protocol session layer for the
// weather server.
//
// # Protocol
//
// Messages are JSON-RPC 2.0 envelopes. The engine dispatches a closed set of
// methods:
//
//   - initialize - handshake; returns protocol version and server identity
//   - notifications/initialized - completes the handshake (no response)
//   - tools/list - tool descriptors from the registry
//   - tools/call - invoke a tool by name with arguments
//
// Requests without an id are notifications and never produce a response.
// Responses echo the request id verbatim.
//
// # Handshake
//
// The handshake is enforced strictly: tools/list and tools/call are rejected
// with code -32002 until an initialize request followed by the initialized
// notification has been processed. One Engine is one session - per connection
// on the stdio transport, per process on the HTTP transport.
//
// # Transports
//
// StdioServer frames messages as newline-delimited JSON on an input/output
// stream pair, processing strictly one message at a time:
//
//	engine := mcp.NewEngine(registry, logger)
//	srv, _ := mcp.NewStdioServer(mcp.StdioConfig{
//		Engine: engine,
//		In:     os.Stdin,
//		Out:    os.Stdout,
//		Logger: logger,
//	})
//	err := srv.Serve(ctx)
//
// The HTTP transport lives in internal/httpserver and feeds the same engine.
//
// # Failure containment
//
// Malformed messages become -32700 responses, unknown methods -32601, and
// recovered panics -32603. No single message can terminate a transport loop;
// only stream closure or a write failure ends a session.
package mcp
