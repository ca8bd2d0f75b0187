// Package choices normalizes the many accepted forms of an Ask script's
// $choices declaration into an ordered list of name/value pairs.
package choices

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
	"github.com/ormasoftchile/envrun/pkg/schema"
)

// Choice is one selectable option. Name is shown, Value is stored.
type Choice struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Options are the Ask fields that shape the list.
type Options struct {
	FieldsMapping *schema.FieldsMapping
	Filter        string
	Sort          string
}

// OptionsFor extracts Options from an Ask script.
func OptionsFor(a *schema.Ask) Options {
	return Options{FieldsMapping: a.FieldsMapping, Filter: a.Filter, Sort: a.Sort}
}

// ResolveFunc evaluates a script declaration without persisting its result.
type ResolveFunc func(ctx context.Context, s schema.Script) (string, error)

// Normalize converts decl into choices. A decl that is itself a script is
// resolved through resolve and its output parsed as strict JSON, falling
// back to newline-separated text.
func Normalize(ctx context.Context, decl any, opts Options, resolve ResolveFunc) ([]Choice, error) {
	raw, err := materialize(ctx, decl, resolve)
	if err != nil {
		return nil, err
	}

	out, err := normalizeRaw(raw, opts.FieldsMapping)
	if err != nil {
		return nil, err
	}
	if out, err = applyFilter(out, opts.Filter); err != nil {
		return nil, err
	}
	return applySort(out, opts.Sort)
}

// textLines marks newline-delimited text after materialization.
type textLines string

func materialize(ctx context.Context, decl any, resolve ResolveFunc) (any, error) {
	switch t := decl.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.Contains(t, "${") && resolve != nil {
			out, err := resolve(ctx, &schema.Literal{Value: t})
			if err != nil {
				return nil, fmt.Errorf("resolve choices: %w", err)
			}
			return textLines(out), nil
		}
		return textLines(t), nil
	case *schema.Map:
		s, ok, err := schema.Classify(t)
		if err != nil {
			return nil, fmt.Errorf("choices: %w", err)
		}
		if !ok {
			return t, nil
		}
		if resolve == nil {
			return nil, errdefs.Wrap(errdefs.ErrInvalidChoiceShape, "choices declared as a %s script but no resolver given", s.Kind())
		}
		out, err := resolve(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("resolve choices: %w", err)
		}
		parsed, err := schema.ParseJSON([]byte(strings.TrimSpace(out)))
		if err != nil {
			return textLines(out), nil
		}
		switch parsed.(type) {
		case *schema.Map, []any:
			return parsed, nil
		default:
			return textLines(out), nil
		}
	default:
		if s, isScalar := schema.Scalar(decl); isScalar {
			return textLines(s), nil
		}
		return decl, nil
	}
}

func normalizeRaw(raw any, mapping *schema.FieldsMapping) ([]Choice, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case textLines:
		var out []Choice
		for _, line := range strings.Split(string(t), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			out = append(out, Choice{Name: line, Value: line})
		}
		return out, nil
	case *schema.Map:
		out := make([]Choice, 0, t.Len())
		for _, k := range t.Keys() {
			v, _ := t.Get(k)
			if mapping != nil {
				c, err := project(v, mapping)
				if err != nil {
					return nil, fmt.Errorf("choices[%q]: %w", k, err)
				}
				out = append(out, c)
				continue
			}
			out = append(out, Choice{Name: k, Value: stringify(v)})
		}
		return out, nil
	case map[string]any:
		m := schema.NewMap()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(k, t[k])
		}
		return normalizeRaw(m, mapping)
	case []any:
		out := make([]Choice, 0, len(t))
		for i, el := range t {
			c, err := element(el, mapping)
			if err != nil {
				return nil, fmt.Errorf("choices[%d]: %w", i, err)
			}
			out = append(out, c)
		}
		return out, nil
	case []string:
		out := make([]Choice, 0, len(t))
		for _, s := range t {
			out = append(out, Choice{Name: s, Value: s})
		}
		return out, nil
	default:
		return nil, errdefs.Wrap(errdefs.ErrInvalidChoiceShape, "unsupported choices declaration %T", raw)
	}
}

func element(el any, mapping *schema.FieldsMapping) (Choice, error) {
	if mapping != nil {
		return project(el, mapping)
	}
	if s, isScalar := schema.Scalar(el); isScalar {
		return Choice{Name: s, Value: s}, nil
	}
	entry, ok := asPlainMap(el)
	if !ok {
		return Choice{}, errdefs.Wrap(errdefs.ErrInvalidChoiceShape, "element of type %T is neither a scalar nor a {name, value} object", el)
	}
	name, hasName := entry["name"]
	if !hasName {
		return Choice{}, errdefs.Wrap(errdefs.ErrInvalidChoiceShape, "object element without a name field")
	}
	c := Choice{Name: stringify(name)}
	if v, ok := entry["value"]; ok {
		c.Value = stringify(v)
	} else {
		c.Value = c.Name
	}
	return c, nil
}

func asPlainMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case *schema.Map:
		return schema.Plain(t).(map[string]any), true
	case map[string]any:
		return t, true
	}
	return nil, false
}

// project reads the mapped name and value out of one raw entry.
func project(el any, mapping *schema.FieldsMapping) (Choice, error) {
	entry, ok := asPlainMap(el)
	if !ok {
		return Choice{}, errdefs.Wrap(errdefs.ErrInvalidChoiceMapping, "cannot map fields of a %T entry", el)
	}
	namePath, valuePath := mapping.Name, mapping.Value
	if namePath == "" {
		namePath = valuePath
	}
	if valuePath == "" {
		valuePath = namePath
	}
	name, err := field(entry, namePath)
	if err != nil {
		return Choice{}, err
	}
	value, err := field(entry, valuePath)
	if err != nil {
		return Choice{}, err
	}
	return Choice{Name: name, Value: value}, nil
}

// field looks path up as a direct property first, then as an expression
// such as "items[0].id" or "meta.name".
func field(entry map[string]any, path string) (string, error) {
	if v, ok := entry[path]; ok && v != nil {
		return stringify(v), nil
	}
	program, err := expr.Compile(path, expr.Env(entry), expr.AllowUndefinedVariables())
	if err != nil {
		return "", errdefs.Wrap(errdefs.ErrInvalidChoiceMapping, "compile %q: %v", path, err)
	}
	out, err := expr.Run(program, entry)
	if err != nil {
		return "", errdefs.Wrap(errdefs.ErrInvalidChoiceMapping, "eval %q: %v", path, err)
	}
	if out == nil {
		return "", errdefs.Wrap(errdefs.ErrInvalidChoiceMapping, "%q does not resolve", path)
	}
	return stringify(out), nil
}

func stringify(v any) string {
	if s, ok := schema.Scalar(v); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

var delimitedRe = regexp.MustCompile(`^/(.*)/([imsU]*)$`)

// CompileFilter parses a filter: "/pattern/flags" with flags from "imsU", or
// a bare pattern, which is matched case-insensitively and multiline.
func CompileFilter(filter string) (*regexp.Regexp, error) {
	pattern := "(?im)" + filter
	if m := delimitedRe.FindStringSubmatch(filter); m != nil {
		pattern = m[1]
		if m[2] != "" {
			pattern = "(?" + m[2] + ")" + pattern
		}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrInvalidChoiceShape, "filter %q: %v", filter, err)
	}
	return re, nil
}

func applyFilter(in []Choice, filter string) ([]Choice, error) {
	if filter == "" {
		return in, nil
	}
	re, err := CompileFilter(filter)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(in, func(c Choice) bool { return !re.MatchString(c.Name) }), nil
}

func applySort(in []Choice, order string) ([]Choice, error) {
	switch order {
	case "", schema.SortNone:
		return in, nil
	case schema.SortAlpha:
		slices.SortStableFunc(in, func(a, b Choice) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	case schema.SortAlphaDesc:
		slices.SortStableFunc(in, func(a, b Choice) int {
			return strings.Compare(strings.ToLower(b.Name), strings.ToLower(a.Name))
		})
	default:
		return nil, errdefs.Wrap(errdefs.ErrInvalidChoiceShape, "unknown sort %q", order)
	}
	return in, nil
}

// Lookup maps a selected name to its value. Answers that match no name are
// returned unchanged so that free-form values still work.
func Lookup(list []Choice, answer string) string {
	for _, c := range list {
		if c.Name == answer {
			return c.Value
		}
	}
	return answer
}

// Names returns the choice names in order.
func Names(list []Choice) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Name
	}
	return out
}
