// ABOUTME: Tests for the HTTP transport adapter.
// ABOUTME: Covers discovery endpoints, the /mcp exchange, and auth composition.

package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast/weather-mcp/internal/auth"
	"github.com/skycast/weather-mcp/internal/mcp"
	"github.com/skycast/weather-mcp/internal/tools"
	"github.com/skycast/weather-mcp/internal/weather"
)

func newTestServer(t *testing.T, validator *auth.Validator) *Server {
	t.Helper()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(weather.Descriptor(), weather.Handler(weather.NewGenerator())))

	explode := tools.Descriptor{
		Name:        "explode",
		Description: "panics on invocation",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}
	require.NoError(t, registry.Register(explode, func(ctx context.Context, args json.RawMessage) (any, error) {
		panic("kaboom")
	}))

	srv, err := New(Config{
		Addr:      ":0",
		Registry:  registry,
		Engine:    mcp.NewEngine(registry, slog.Default()),
		Validator: validator,
		Logger:    slog.Default(),
	})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func postMCP(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

// doHandshake initializes the server's shared session.
func doHandshake(t *testing.T, srv *Server) {
	t.Helper()
	rr := postMCP(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = postMCP(t, srv, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Empty(t, rr.Body.String(), "notifications must not produce a body")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "weather-mcp-server", body["service"])
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := get(t, srv, "/")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "MCP Weather Server", body["service"])
}

func TestToolsWithoutHandshake(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := get(t, srv, "/tools")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Tools []struct {
			Name        string          `json:"name"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Tools, 2)
	assert.Equal(t, weather.ToolName, body.Tools[0].Name)
	assert.NotEmpty(t, body.Tools[0].InputSchema)
}

func TestMCPFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := postMCP(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var initResp struct {
		ID     json.RawMessage `json:"id"`
		Result struct {
			ProtocolVersion string `json:"protocolVersion"`
			ServerInfo      struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &initResp))
	assert.Equal(t, "1", string(initResp.ID))
	assert.NotEmpty(t, initResp.Result.ProtocolVersion)
	assert.Equal(t, "weather-mcp-server", initResp.Result.ServerInfo.Name)

	rr = postMCP(t, srv, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = postMCP(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_weather","arguments":{"city":"Paris","unit":"celsius"}}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var callResp struct {
		ID     json.RawMessage `json:"id"`
		Result struct {
			Content []mcp.Content `json:"content"`
		} `json:"result"`
		Error *mcp.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &callResp))
	require.Nil(t, callResp.Error)
	assert.Equal(t, "2", string(callResp.ID))
	require.Len(t, callResp.Result.Content, 1)

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			City string `json:"city"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(callResp.Result.Content[0].Text), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, "Paris", payload.Data.City)
}

func TestMCPRequiresHandshake(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := postMCP(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_weather","arguments":{"city":"Paris"}}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Error *mcp.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeNotInitialized, resp.Error.Code)
}

func TestMCPInternalErrorReturns500(t *testing.T) {
	srv := newTestServer(t, nil)
	doHandshake(t, srv)

	rr := postMCP(t, srv, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"explode","arguments":{}}}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp struct {
		ID    json.RawMessage `json:"id"`
		Error *mcp.Error      `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "9", string(resp.ID), "500 envelope must still echo the request id")
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeInternalError, resp.Error.Code)
}

func TestMCPMalformedBody(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := postMCP(t, srv, `{not json`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Error *mcp.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeParseError, resp.Error.Code)
}

func TestMCPMethodNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	doHandshake(t, srv)

	rr := postMCP(t, srv, `{"jsonrpc":"2.0","id":4,"method":"resources/list"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Error *mcp.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeMethodNotFound, resp.Error.Code)
}

func TestAuthGateComposition(t *testing.T) {
	// A validator pointed at an unreachable discovery endpoint is enough to
	// verify the gate rejects requests before the engine is touched.
	validator, err := auth.NewEntraValidator("test-tenant", "test-client", slog.Default())
	require.NoError(t, err)

	srv := newTestServer(t, validator)

	t.Run("mcp requires a token", func(t *testing.T) {
		rr := postMCP(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("tools requires a token", func(t *testing.T) {
		rr := get(t, srv, "/tools")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		rr := get(t, srv, "/health")
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	registry := tools.NewRegistry()
	_, err = New(Config{Registry: registry})
	require.Error(t, err)
}
