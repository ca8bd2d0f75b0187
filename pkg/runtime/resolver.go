package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
	"github.com/ormasoftchile/envrun/pkg/schema"
)

// ResolveGroup resolves every entry of group in declaration order. Later
// entries may reference earlier ones. Keys starting with "$" are metadata
// and skipped.
func (e *Engine) ResolveGroup(ctx context.Context, name string, group *schema.Map, persist bool) error {
	for _, key := range group.Keys() {
		if strings.HasPrefix(key, "$") {
			continue
		}
		node, _ := group.Get(key)
		s, ok, err := schema.Classify(node)
		if err != nil {
			return fmt.Errorf("env %s.%s: %w", name, key, err)
		}
		if !ok {
			return errdefs.Wrap(errdefs.ErrInvalidShape, "env %s.%s is not a variable declaration", name, key)
		}
		e.Logger.Debug("resolving variable", "group", name, "key", key, "kind", s.Kind())
		if _, err := e.resolve(ctx, key, s, mode{persist: persist}); err != nil {
			return err
		}
	}
	return nil
}

// ResolveNamedGroups applies the document groups matching names, in the
// given order, so a later group overrides an earlier one. Each name matches
// exactly or by unique prefix. It returns the full group names.
func (e *Engine) ResolveNamedGroups(ctx context.Context, names []string) ([]string, error) {
	return e.applyNamedGroups(ctx, names)
}

func (e *Engine) applyNamedGroups(ctx context.Context, names []string) ([]string, error) {
	available := e.Doc.GroupNames()
	resolved := make([]string, 0, len(names))
	for _, n := range names {
		full, err := schema.MatchName(n, available, errdefs.ErrEnvironmentNotFound)
		if err != nil {
			return resolved, err
		}
		group, _ := e.Doc.Group(full)
		if err := e.ResolveGroup(ctx, full, group, true); err != nil {
			return resolved, fmt.Errorf("resolve env %s: %w", full, err)
		}
		resolved = append(resolved, full)
	}
	return resolved, nil
}

// mergeImports folds the document's imports into it once.
func (e *Engine) mergeImports(ctx context.Context) error {
	if len(e.Doc.Imports) == 0 {
		return nil
	}
	return schema.MergeImports(ctx, e.Doc, e.Loader, e.Logger)
}
