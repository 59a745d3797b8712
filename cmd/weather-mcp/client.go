// ABOUTME: Client subcommands probing a running weather-mcp HTTP server.
// ABOUTME: Used for smoke tests against local and container deployments.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/skycast/weather-mcp/internal/mcp"
)

// serverURL returns the base URL of the server under test.
func serverURL() string {
	if url := os.Getenv("WEATHER_MCP_URL"); url != "" {
		return url
	}
	return "http://localhost:8000"
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// doGet performs an authenticated GET and returns the decoded JSON body.
func doGet(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL()+path, nil)
	if err != nil {
		return nil, err
	}
	addAuth(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s: %s", path, resp.Status, bytes.TrimSpace(body))
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return decoded, nil
}

// addAuth attaches the bearer token, if one is configured.
func addAuth(req *http.Request) {
	if token := os.Getenv("WEATHER_MCP_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// rpc sends one JSON-RPC request to /mcp and returns the decoded response.
// Notifications return (nil, nil).
func rpc(ctx context.Context, payload mcp.Request) (*mcp.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL()+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	addAuth(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return nil, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusInternalServerError {
		return nil, fmt.Errorf("POST /mcp: %s: %s", resp.Status, bytes.TrimSpace(raw))
	}

	var decoded mcp.Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &decoded, nil
}

func runHealth(ctx context.Context) error {
	body, err := doGet(ctx, "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("%v (%v)\n", body["status"], body["service"])
	return nil
}

func runTools(ctx context.Context) error {
	body, err := doGet(ctx, "/tools")
	if err != nil {
		return fmt.Errorf("listing tools failed: %w", err)
	}

	toolList, _ := body["tools"].([]any)
	cyan := color.New(color.FgCyan)
	fmt.Printf("%d tool(s):\n", len(toolList))
	for _, t := range toolList {
		tool, _ := t.(map[string]any)
		cyan.Printf("  %v", tool["name"])
		fmt.Printf("  %v\n", tool["description"])
	}
	return nil
}

// runCall performs the full handshake and one get_weather invocation.
func runCall(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: weather-mcp call CITY [UNIT]")
	}
	city := args[0]
	unit := "celsius"
	if len(args) > 1 {
		unit = args[1]
	}

	initReq := mcp.Request{JSONRPC: "2.0", ID: json.RawMessage("1"), Method: mcp.MethodInitialize}
	initResp, err := rpc(ctx, initReq)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if initResp != nil && initResp.Error != nil {
		return fmt.Errorf("initialize: %s", initResp.Error.Message)
	}

	if _, err := rpc(ctx, mcp.Request{JSONRPC: "2.0", Method: mcp.MethodInitialized}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	params, err := json.Marshal(mcp.CallToolParams{
		Name:      "get_weather",
		Arguments: mustMarshal(map[string]string{"city": city, "unit": unit}),
	})
	if err != nil {
		return err
	}

	callResp, err := rpc(ctx, mcp.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage("2"),
		Method:  mcp.MethodToolsCall,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("tools/call: %w", err)
	}
	if callResp.Error != nil {
		return fmt.Errorf("tools/call: %s (code %d)", callResp.Error.Message, callResp.Error.Code)
	}

	// Re-encode the result to pull out the text content.
	resultJSON, err := json.Marshal(callResp.Result)
	if err != nil {
		return err
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return fmt.Errorf("decoding tool result: %w", err)
	}
	if len(result.Content) == 0 {
		return fmt.Errorf("empty tool result")
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(result.Content[0].Text), "", "  "); err != nil {
		fmt.Println(result.Content[0].Text)
		return nil
	}

	if result.IsError {
		color.New(color.FgRed).Println("tool reported an error:")
	}
	fmt.Println(pretty.String())
	return nil
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
