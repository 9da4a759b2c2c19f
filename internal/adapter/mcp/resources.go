package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"parley://thresholds",
			"Confidence Thresholds",
			mcplib.WithResourceDescription("Active per-stage confidence thresholds"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleThresholdsResource,
	)
}

func (s *Server) handleThresholdsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Thresholds == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"threshold reader not configured"}`,
			},
		}, nil
	}
	data, err := json.Marshal(s.deps.Thresholds.Current())
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
