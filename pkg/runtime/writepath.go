package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
	"github.com/ormasoftchile/envrun/pkg/schema"
)

// writePath turns a WritePath into a shell script and hands it to the
// command path, so it follows the same local/container/remote routing.
func (e *Engine) writePath(ctx context.Context, key string, w *schema.WritePath, m mode) (string, error) {
	target, err := e.Store.Resolve(w.Path, key)
	if err != nil {
		return "", err
	}
	if target == "" {
		return "", errdefs.Wrap(errdefs.ErrInvalidShape, "%q: empty $path", key)
	}

	var content *string
	if w.Content != nil {
		resolved, err := e.resolveContent(ctx, key, w.Content)
		if err != nil {
			return "", err
		}
		text, err := Serialize(target, resolved)
		if err != nil {
			return "", fmt.Errorf("serialize content of %q: %w", key, err)
		}
		content = &text
	}

	owner, err := e.Store.Resolve(w.Owner, key)
	if err != nil {
		return "", err
	}
	script, err := WriteScript(target, content, w.Permissions, owner)
	if err != nil {
		return "", fmt.Errorf("build write script for %q: %w", key, err)
	}

	cmd := &schema.Command{Image: w.Image, Remote: w.Remote}
	// file writes never produce output worth streaming
	m.terminal = false
	m.persist = false
	if _, err := e.runCommand(ctx, key, cmd, script, m); err != nil {
		return "", err
	}
	return target, nil
}

// resolveContent interpolates every string of a content tree. Script nodes
// are evaluated and replaced by their output.
func (e *Engine) resolveContent(ctx context.Context, key string, v any) (any, error) {
	switch v := v.(type) {
	case string:
		return e.Store.Resolve(v, key)
	case *schema.Map:
		if schema.IsScript(v) {
			s, _, err := schema.Classify(v)
			if err != nil {
				return nil, fmt.Errorf("content of %q: %w", key, err)
			}
			return e.resolve(ctx, key+".$content", s, mode{})
		}
		out := schema.NewMap()
		for _, k := range v.Keys() {
			child, _ := v.Get(k)
			r, err := e.resolveContent(ctx, key, child)
			if err != nil {
				return nil, err
			}
			out.Set(k, r)
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			r, err := e.resolveContent(ctx, key, child)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// Serialize renders content for the file at target. Strings and scalars are
// written as is; structured values are encoded by the file extension
// (.yaml/.yml, .toml) and as indented JSON otherwise.
func Serialize(target string, content any) (string, error) {
	if s, ok := schema.Scalar(content); ok {
		return s, nil
	}
	switch strings.ToLower(path.Ext(target)) {
	case ".yaml", ".yml":
		out, err := yaml.Marshal(content)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case ".toml":
		out, err := toml.Marshal(schema.Plain(content))
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		out, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out) + "\n", nil
	}
}

// WriteScript builds the POSIX shell text that creates target. A nil
// content creates a directory instead of a file.
func WriteScript(target string, content *string, perms, owner string) (string, error) {
	qt, err := syntax.Quote(target, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("quote path: %w", err)
	}
	var b strings.Builder
	b.WriteString("set -e\n")
	if content == nil {
		fmt.Fprintf(&b, "mkdir -p %s\n", qt)
	} else {
		qd, err := syntax.Quote(path.Dir(target), syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote dir: %w", err)
		}
		delim := "ENVRUN_EOF_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		fmt.Fprintf(&b, "mkdir -p %s\n", qd)
		fmt.Fprintf(&b, "cat > %s <<'%s'\n", qt, delim)
		b.WriteString(*content)
		if !strings.HasSuffix(*content, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(delim + "\n")
	}
	if perms != "" {
		qp, err := syntax.Quote(perms, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote permissions: %w", err)
		}
		fmt.Fprintf(&b, "chmod %s %s\n", qp, qt)
	}
	if owner != "" {
		qo, err := syntax.Quote(owner, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote owner: %w", err)
		}
		fmt.Fprintf(&b, "chown %s %s\n", qo, qt)
	}
	return b.String(), nil
}
