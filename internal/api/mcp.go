package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/roofcheck/internal/inspection"
	"github.com/kalambet/roofcheck/internal/report"
	"github.com/kalambet/roofcheck/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *inspection.Service
	Version string
}

// NewMCPServer creates an MCP server with the inspection tools and the
// catalog resource registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"roofcheck",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("roofcheck guides roof inspections: capture photos step by step, get an assessment of each photo and generate the final report."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_inspections",
			mcp.WithDescription("List inspections, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of inspections (default 20)")),
		),
		mcpListInspections(deps),
	)

	s.AddTool(
		mcp.NewTool("inspection_status",
			mcp.WithDescription("Show the current wizard step and per-section progress of an inspection."),
			mcp.WithString("inspection_id", mcp.Description("Inspection ID"), mcp.Required()),
		),
		mcpInspectionStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_photo",
			mcp.WithDescription("Store a photo file for a wizard step and return its assessment."),
			mcp.WithString("inspection_id", mcp.Description("Inspection ID"), mcp.Required()),
			mcp.WithString("section", mcp.Description("Section key (e.g. elevations)"), mcp.Required()),
			mcp.WithString("step", mcp.Description("Step key (e.g. front)"), mcp.Required()),
			mcp.WithString("path", mcp.Description("Path to a JPEG, PNG, GIF or WebP file"), mcp.Required()),
		),
		mcpAnalyzePhoto(deps),
	)

	s.AddTool(
		mcp.NewTool("add_hail_hit",
			mcp.WithDescription("Record one more circled hail hit in the test square."),
			mcp.WithString("inspection_id", mcp.Description("Inspection ID"), mcp.Required()),
		),
		mcpAddHailHit(deps),
	)

	s.AddTool(
		mcp.NewTool("get_report",
			mcp.WithDescription("Return the generated report of a completed inspection."),
			mcp.WithString("inspection_id", mcp.Description("Inspection ID"), mcp.Required()),
			mcp.WithString("format", mcp.Description("text (default) or markdown")),
		),
		mcpGetReport(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"roofcheck://catalog",
			"Inspection Catalog",
			mcp.WithResourceDescription("Wizard sections, steps and accessory types as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCatalog(deps),
	)

	return s
}

func mcpListInspections(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		list, err := deps.Service.List(ctx, limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("listing inspections failed: %v", err)), nil
		}
		out := make([]inspectionJSON, len(list))
		for i, in := range list {
			out[i] = toInspectionJSON(in)
		}
		return mcpJSON(out)
	}
}

func mcpInspectionStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("inspection_id")
		if err != nil {
			return mcpError("inspection_id is required"), nil
		}
		st, err := deps.Service.State(ctx, id)
		if err != nil {
			return mcpServiceError(err), nil
		}
		return mcpJSON(stateJSON{Inspection: toInspectionJSON(st.Inspection), State: st})
	}
}

func mcpAnalyzePhoto(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args [4]string
		for i, name := range []string{"inspection_id", "section", "step", "path"} {
			v, err := req.RequireString(name)
			if err != nil {
				return mcpError(name + " is required"), nil
			}
			args[i] = v
		}

		info, err := os.Stat(args[3])
		if err != nil {
			return mcpError(fmt.Sprintf("reading photo: %v", err)), nil
		}
		if info.Size() > maxUploadSize {
			return mcpError(fmt.Sprintf("photo exceeds %d bytes", maxUploadSize)), nil
		}
		data, err := os.ReadFile(args[3])
		if err != nil {
			return mcpError(fmt.Sprintf("reading photo: %v", err)), nil
		}

		res, err := deps.Service.Capture(ctx, args[0], args[1], args[2], data)
		if err != nil {
			return mcpServiceError(err), nil
		}
		return mcpJSON(res)
	}
}

func mcpAddHailHit(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("inspection_id")
		if err != nil {
			return mcpError("inspection_id is required"), nil
		}
		v, err := deps.Service.AddHailHit(ctx, id)
		if err != nil {
			return mcpServiceError(err), nil
		}
		return mcpJSON(v)
	}
}

func mcpGetReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("inspection_id")
		if err != nil {
			return mcpError("inspection_id is required"), nil
		}
		stored, err := deps.Service.Report(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError("no report yet: complete the inspection first"), nil
		}
		if err != nil {
			return mcpServiceError(err), nil
		}
		rep := report.Report{Body: stored.Body, Generator: stored.Generator, GeneratedAt: stored.GeneratedAt}

		switch format := req.GetString("format", "text"); format {
		case "text":
			return mcpText(report.FormatText(rep.Body)), nil
		case "markdown":
			in, err := deps.Service.ReportInput(ctx, id)
			if err != nil {
				return mcpServiceError(err), nil
			}
			var buf bytes.Buffer
			if err := report.WriteMarkdown(&buf, in, rep); err != nil {
				return mcpError(fmt.Sprintf("rendering report: %v", err)), nil
			}
			return mcpText(buf.String()), nil
		default:
			return mcpError(fmt.Sprintf("unknown format %q", format)), nil
		}
	}
}

func mcpResourceCatalog(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Service.Catalog())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// mcpServiceError turns a service error into a tool error result.
func mcpServiceError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return mcpError("inspection not found")
	default:
		return mcpError(err.Error())
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
