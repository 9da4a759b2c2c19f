package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.getSessionTool(),
		s.processTurnTool(),
		s.getThresholdsTool(),
	)
}

func (s *Server) getSessionTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_session",
		mcplib.WithDescription("Get a conversation session's stage, slots and turn history by ID"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The session ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetSession,
	}
}

func (s *Server) processTurnTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("process_turn",
		mcplib.WithDescription("Submit one utterance to a session and return the resulting turn"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The session to address; an unknown ID starts a new conversation"),
		),
		mcplib.WithString("input",
			mcplib.Required(),
			mcplib.Description("The user utterance"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleProcessTurn,
	}
}

func (s *Server) getThresholdsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_thresholds",
		mcplib.WithDescription("Get the active confidence thresholds per conversation stage"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetThresholds,
	}
}

func (s *Server) handleGetSession(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Sessions == nil {
		return mcplib.NewToolResultError("session reader not configured"), nil
	}
	args := req.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	sess, err := s.deps.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get session %s", sessionID), err,
		), nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal session", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleProcessTurn(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Turns == nil {
		return mcplib.NewToolResultError("turn processor not configured"), nil
	}
	args := req.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	input, ok := args["input"].(string)
	if !ok || input == "" {
		return mcplib.NewToolResultError("input is required"), nil
	}
	turn, err := s.deps.Turns.ProcessTurn(ctx, sessionID, input)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to process turn for session %s", sessionID), err,
		), nil
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal turn", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetThresholds(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Thresholds == nil {
		return mcplib.NewToolResultError("threshold reader not configured"), nil
	}
	data, err := json.Marshal(s.deps.Thresholds.Current())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal thresholds", err), nil
	}
	return toolResultJSON(string(data)), nil
}

// toolResultJSON wraps a JSON document as a successful text result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
