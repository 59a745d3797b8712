// ABOUTME: MCP tool binding for the fake weather generator.
// ABOUTME: Exposes the get_weather descriptor and its handler.

package weather

import (
	"context"
	"encoding/json"

	"github.com/skycast/weather-mcp/internal/tools"
)

// ToolName is the registered name of the weather tool.
const ToolName = "get_weather"

// inputSchema describes the get_weather arguments in JSON Schema form.
const inputSchema = `{
  "type": "object",
  "properties": {
    "city": {
      "type": "string",
      "description": "Name of the city to fetch weather for"
    },
    "unit": {
      "type": "string",
      "enum": ["celsius", "fahrenheit"],
      "default": "celsius",
      "description": "Temperature unit"
    }
  },
  "required": ["city"]
}`

// callArgs are the decoded tools/call arguments for get_weather.
type callArgs struct {
	City string `json:"city"`
	Unit string `json:"unit"`
}

// Descriptor returns the tool descriptor for registry registration.
func Descriptor() tools.Descriptor {
	return tools.Descriptor{
		Name:        ToolName,
		Description: "Retrieves current weather conditions for a given city",
		InputSchema: json.RawMessage(inputSchema),
	}
}

// Handler returns the registry handler backed by the given generator.
func Handler(gen *Generator) tools.Handler {
	return func(ctx context.Context, args json.RawMessage) (any, error) {
		var in callArgs
		if len(args) > 0 {
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
		}
		return gen.Generate(in.City, in.Unit)
	}
}
