package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jonathan/careers-finder/internal/batch"
	"github.com/jonathan/careers-finder/internal/resolver"
	"github.com/jonathan/careers-finder/internal/trace"
)

const resolveToolName = "resolve_careers_page"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve careers page resolution as an MCP tool over stdio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		r, err := newResolver(ctx, cfg, store)
		if err != nil {
			return err
		}

		s := server.NewMCPServer("careers-finder", "1.0.0")
		s.AddTool(resolveTool(), resolveToolHandler(r))
		return server.ServeStdio(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func resolveTool() mcp.Tool {
	tool := mcp.NewTool(resolveToolName,
		mcp.WithDescription("Find a company's careers page. The first search result is accepted when its domain "+
			"resembles the company name or the page mentions hiring."),
	)
	tool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"company_name": map[string]interface{}{"type": "string", "description": "The company to look up"},
		},
		Required: []string{"company_name"},
	}
	return tool
}

// resolveToolHandler returns the resolution as JSON. A rejected page is a
// successful call with status not_relevant; only search failures are tool
// errors.
func resolveToolHandler(r batch.Resolver) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		company, _ := args["company_name"].(string)
		if company == "" {
			return mcp.NewToolResultError("company_name is required"), nil
		}

		ctx = trace.WithCompany(ctx, company)
		res, err := r.Resolve(ctx, company)
		if err != nil {
			trace.Logger(ctx).Warn("resolution failed", "error", err)
			if errors.Is(err, resolver.ErrSearchFailed) {
				return mcp.NewToolResultError(fmt.Sprintf("search failed for %s: %v", company, err)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("failed to resolve %s: %v", company, err)), nil
		}

		body, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
