package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/sensor-game-hub/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Sensor Game Hub",
		"6.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Sensor Game Hub - MCP Interface

This is a thin client that proxies all requests to the REST API server.

The hub pairs motion-sensor devices (phones) with host displays via short
session codes and relays sensor telemetry in real time over WebSocket.

AVAILABLE TOOLS:
- hub_stats: Aggregate statistics across all sessions
- list_sessions: List all active sessions
- get_session: Get details of a specific session
- close_session: Force-close a session and notify its clients

These tools are for monitoring and administration; gameplay itself runs
over the WebSocket transport.`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "hub_stats",
		Description: "Get aggregate statistics across all active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sort": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"created", "activity"},
					"description": "Sort key (default: created)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of sessions to return",
				},
			},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to retrieve",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "close_session",
		Description: "Force-close a session and notify its connected clients",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to close",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleCloseSession)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats session.Stats
	err := c.apiCall("GET", "/api/stats", nil, &stats)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStats(&stats)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	params := "?"
	if sortBy, ok := args["sort"].(string); ok && sortBy != "" {
		params += fmt.Sprintf("sort=%s&", sortBy)
	}
	if limit, ok := args["limit"].(float64); ok {
		params += fmt.Sprintf("limit=%d&", int(limit))
	}

	var response struct {
		Count    int                `json:"count"`
		Sessions []*session.Summary `json:"sessions"`
	}

	err := c.apiCall("GET", "/api/sessions"+strings.TrimSuffix(params, "?"), nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s code=%s game=%s type=%s state=%s sensors=%d/%d created=%s\n",
			s.SessionID, s.SessionCode, s.GameID, s.GameType, s.State,
			s.ConnectedSensors, s.MaxSensors, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	sessionID, _ := args["session_id"].(string)

	var summary session.Summary
	err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s", sessionID), nil, &summary)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSummary(&summary)), nil
}

func (c *Client) handleCloseSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	sessionID, _ := args["session_id"].(string)

	var response struct {
		Message string `json:"message"`
	}
	err := c.apiCall("DELETE", fmt.Sprintf("/api/sessions/%s", sessionID), nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message), nil
}

// Formatting helpers

func formatStats(stats *session.Stats) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Sessions: %d | Connected sensors: %d\n",
		stats.TotalSessions, stats.TotalSensorsConnected))

	if len(stats.ByGameType) > 0 {
		b.WriteString("\nBy game type:\n")
		for _, gt := range sortedKeys(stats.ByGameType) {
			b.WriteString(fmt.Sprintf("- %s: %d\n", gt, stats.ByGameType[session.GameType(gt)]))
		}
	}

	if len(stats.ByState) > 0 {
		b.WriteString("\nBy state:\n")
		states := make([]string, 0, len(stats.ByState))
		for st := range stats.ByState {
			states = append(states, string(st))
		}
		sort.Strings(states)
		for _, st := range states {
			b.WriteString(fmt.Sprintf("- %s: %d\n", st, stats.ByState[session.State(st)]))
		}
	}

	return b.String()
}

func sortedKeys(m map[session.GameType]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

func formatSummary(s *session.Summary) string {
	return fmt.Sprintf(`Session: %s
Code: %s
Game: %s (%s)
State: %s
Sensors: %d/%d
Created: %s
Last activity: %s`,
		s.SessionID, s.SessionCode, s.GameID, s.GameType, s.State,
		s.ConnectedSensors, s.MaxSensors,
		s.CreatedAt.Format("2006-01-02 15:04:05"),
		s.LastActivityAt.Format("2006-01-02 15:04:05"))
}
