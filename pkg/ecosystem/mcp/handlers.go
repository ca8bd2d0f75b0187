package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/envrun/pkg/ecosystem/recorder"
	"github.com/ormasoftchile/envrun/pkg/runtime"
	"github.com/ormasoftchile/envrun/pkg/schema"
)

// HandleValidate implements the envrun/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, _ := req.GetArguments()["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	doc, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d env groups, %d scripts)", path, len(doc.GroupNames()), len(doc.ListScripts()))), nil
}

// HandleListScripts implements the envrun/list_scripts MCP tool.
func HandleListScripts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, res := loadArg(req)
	if res != nil {
		return res, nil
	}
	return jsonResult(doc.ListScripts())
}

// HandleListEnvs implements the envrun/list_envs MCP tool.
func HandleListEnvs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, res := loadArg(req)
	if res != nil {
		return res, nil
	}
	return jsonResult(doc.ListGroups())
}

// HandleSchema implements the envrun/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// Handlers carries the engine options used by invocations.
type Handlers struct {
	Options []runtime.Option
}

// HandleInvoke implements the envrun/invoke MCP tool.
func (h *Handlers) HandleInvoke(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	doc, res := loadArg(req)
	if res != nil {
		return res, nil
	}
	script, _ := args["script"].(string)
	if script == "" {
		return errorResult("script argument is required"), nil
	}

	var envs []string
	switch v := args["envs"].(type) {
	case []any:
		for _, e := range v {
			envs = append(envs, fmt.Sprint(e))
		}
	case string:
		envs = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}

	answers := make(map[string]string)
	if raw, ok := args["answers"].(map[string]any); ok {
		for k, v := range raw {
			answers[k] = fmt.Sprint(v)
		}
	}

	var out bytes.Buffer
	opts := append([]runtime.Option{}, h.Options...)
	opts = append(opts,
		runtime.WithBatch(true),
		runtime.WithIO(strings.NewReader(""), &out, &out),
	)
	e := runtime.New(doc, answers, opts...)
	rec := recorder.Attach(e)
	result, err := e.Invoke(ctx, envs, schema.SplitPath(script), false)

	response := map[string]any{"result": result, "commands": rec.Runs()}
	if out.Len() > 0 {
		response["output"] = out.String()
	}
	data, _ := json.MarshalIndent(response, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: err != nil,
	}, nil
}

func loadArg(req mcp.CallToolRequest) (*schema.Document, *mcp.CallToolResult) {
	path, _ := req.GetArguments()["path"].(string)
	if path == "" {
		return nil, errorResult("path argument is required")
	}
	doc, err := schema.LoadFile(path)
	if err != nil {
		return nil, errorResult(err.Error())
	}
	return doc, nil
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
