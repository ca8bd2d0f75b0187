package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/envrun/pkg/runtime"
)

const sampleDoc = `
env:
  dev:
    STAGE: dev
  prod:
    STAGE: prod
scripts:
  greet:
    $resolve: hello ${STAGE} ${NAME}
  deploy:
    app:
      $cmd: deploy ${STAGE}
`

func writeDoc(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "envrun.yaml")
	if err := os.WriteFile(p, []byte(sampleDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleValidate_MissingPath(t *testing.T) {
	result, err := HandleValidate(context.Background(), call(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleValidate_Valid(t *testing.T) {
	result, err := HandleValidate(context.Background(), call(map[string]any{"path": writeDoc(t)}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", text(t, result))
	}
	if !strings.Contains(text(t, result), "2 env groups, 2 scripts") {
		t.Errorf("text = %q", text(t, result))
	}
}

func TestHandleSchema(t *testing.T) {
	result, err := HandleSchema(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Error("expected success for schema export")
	}
	if !json.Valid([]byte(text(t, result))) {
		t.Error("schema is not valid JSON")
	}
}

func TestHandleListScripts(t *testing.T) {
	result, err := HandleListScripts(context.Background(), call(map[string]any{"path": writeDoc(t)}))
	if err != nil {
		t.Fatal(err)
	}
	var entries []struct {
		Path []string `json:"path"`
		Kind string   `json:"kind"`
	}
	if err := json.Unmarshal([]byte(text(t, result)), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].Kind != "command" || strings.Join(entries[1].Path, "/") != "deploy/app" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestHandleListEnvs(t *testing.T) {
	result, err := HandleListEnvs(context.Background(), call(map[string]any{"path": writeDoc(t)}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text(t, result), `"prod"`) {
		t.Errorf("text = %s", text(t, result))
	}
}

func TestHandleInvoke(t *testing.T) {
	h := &Handlers{Options: []runtime.Option{runtime.WithHost(map[string]string{})}}
	result, err := h.HandleInvoke(context.Background(), call(map[string]any{
		"path":    writeDoc(t),
		"script":  "gr",
		"envs":    []any{"dev", "prod"},
		"answers": map[string]any{"unused": "x"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	// NAME is undefined, so the invocation fails with a listing
	if !result.IsError {
		t.Fatalf("expected failure: %s", text(t, result))
	}
	if !strings.Contains(text(t, result), "NAME") {
		t.Errorf("text = %s", text(t, result))
	}

	doc := writeDoc(t)
	if err := os.WriteFile(doc, []byte(strings.Replace(sampleDoc, " ${NAME}", "", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	result, _ = h.HandleInvoke(context.Background(), call(map[string]any{
		"path":   doc,
		"script": "greet",
		"envs":   "dev,prod",
	}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", text(t, result))
	}
	var payload struct {
		Result runtime.Result `json:"result"`
	}
	if err := json.Unmarshal([]byte(text(t, result)), &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Result.Outputs) != 1 || payload.Result.Outputs[0] != "hello prod" {
		t.Errorf("outputs = %v", payload.Result.Outputs)
	}
}
