package pipeerr

import "github.com/mark3labs/mcp-go/mcp"

// ToolResult converts a pipeline error into an MCP tool error result,
// preserving the code prefix and guidance tail.
func ToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	var pe *Error
	if e, ok := err.(*Error); ok {
		pe = e
	} else {
		pe = &Error{Code: AggregationFailed, Msg: err.Error()}
	}
	return mcp.NewToolResultError(normalize(pe.Code, pe.Msg))
}

// Result builds an MCP tool error result directly from a code and message.
func Result(code Code, msg string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, msg))
}
