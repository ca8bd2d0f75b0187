package schema

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Loader fetches an imported document. ref is the import path as written,
// base is the Path of the importing document.
type Loader interface {
	Load(ctx context.Context, ref, base string) (*Document, error)
}

// MergeImports folds every import of doc into doc itself, recursively.
// Env groups and scripts are shallow-merged by top-level key: later imports
// override earlier ones and doc's own keys override all imports. A failing
// optional import is logged and skipped. Imports are cleared afterwards so
// the call is idempotent.
func MergeImports(ctx context.Context, doc *Document, loader Loader, logger *log.Logger) error {
	if len(doc.Imports) == 0 {
		return nil
	}
	visited := map[string]bool{doc.Path: true}
	env, scripts, err := collectImports(ctx, doc, loader, logger, visited)
	if err != nil {
		return err
	}
	doc.Env = overlay(env, doc.Env)
	doc.Scripts = overlay(scripts, doc.Scripts)
	doc.Imports = nil
	return nil
}

func collectImports(ctx context.Context, doc *Document, loader Loader, logger *log.Logger, visited map[string]bool) (*Map, *Map, error) {
	env, scripts := NewMap(), NewMap()
	for _, imp := range doc.Imports {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		child, err := loader.Load(ctx, imp.Path, doc.Path)
		if err != nil {
			if imp.Optional {
				if logger != nil {
					logger.Warn("skipping optional import", "path", imp.Path, "err", err)
				}
				continue
			}
			return nil, nil, fmt.Errorf("load import %q: %w", imp.Path, err)
		}
		if visited[child.Path] {
			if logger != nil {
				logger.Debug("import already merged", "path", child.Path)
			}
			continue
		}
		visited[child.Path] = true

		childEnv, childScripts, err := collectImports(ctx, child, loader, logger, visited)
		if err != nil {
			return nil, nil, err
		}
		env = overlay(env, overlay(childEnv, child.Env))
		scripts = overlay(scripts, overlay(childScripts, child.Scripts))
	}
	return env, scripts, nil
}

// overlay returns base with every top-level key of top written over it.
func overlay(base, top *Map) *Map {
	out := base.Clone()
	for _, k := range top.Keys() {
		v, _ := top.Get(k)
		out.Set(k, v)
	}
	return out
}
