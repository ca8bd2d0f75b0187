package schema

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
)

// MatchName picks name out of candidates: an exact match wins, otherwise a
// unique prefix. kind is the sentinel reported when nothing matches
// (ErrEnvironmentNotFound or ErrScriptNotFound).
func MatchName(name string, candidates []string, kind error) (string, error) {
	var matches []string
	for _, c := range candidates {
		if c == name {
			return c, nil
		}
		if strings.HasPrefix(c, name) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", &errdefs.NotFoundError{
			Kind:       kind,
			Name:       name,
			Candidates: candidates,
			Suggestion: Suggest(name, candidates),
		}
	default:
		return "", &errdefs.AmbiguousError{Name: name, Matches: matches}
	}
}

// Suggest returns the closest candidate to name, or "" when none is close.
func Suggest(name string, candidates []string) string {
	if name == "" {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	// typos: "stagign" is not a subsequence of "staging"
	best, bestDist := "", max(2, len(name)/3)+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Children returns the non-$ keys of a group node in declaration order.
func Children(group *Map) []string {
	var out []string
	for _, k := range group.Keys() {
		if !strings.HasPrefix(k, "$") {
			out = append(out, k)
		}
	}
	return out
}

// FindScript walks the script tree along segments, matching each segment by
// exact name or unique prefix. It returns the script and the fully
// qualified segments. A path that stops on a group node is ScriptNotFound
// listing the group's children.
func FindScript(doc *Document, segments []string) (Script, []string, error) {
	node := any(doc.Scripts)
	resolved := make([]string, 0, len(segments))

	for _, seg := range segments {
		group, ok := node.(*Map)
		if !ok || IsScript(group) {
			return nil, resolved, &errdefs.NotFoundError{
				Kind: errdefs.ErrScriptNotFound,
				Name: strings.Join(append(resolved, seg), "/"),
			}
		}
		name, err := MatchName(seg, Children(group), errdefs.ErrScriptNotFound)
		if err != nil {
			if nf, ok := err.(*errdefs.NotFoundError); ok && len(resolved) > 0 {
				nf.Name = strings.Join(append(resolved, seg), "/")
			}
			return nil, resolved, err
		}
		resolved = append(resolved, name)
		node, _ = group.Get(name)
	}

	script, ok, err := Classify(node)
	if err != nil {
		return nil, resolved, fmtPathErr(resolved, err)
	}
	if !ok {
		var children []string
		if g, isGroup := node.(*Map); isGroup {
			children = Children(g)
		}
		return nil, resolved, &errdefs.NotFoundError{
			Kind:       errdefs.ErrScriptNotFound,
			Name:       strings.Join(resolved, "/"),
			Candidates: children,
		}
	}
	return script, resolved, nil
}

func fmtPathErr(path []string, err error) error {
	return &pathError{path: strings.Join(path, "/"), err: err}
}

type pathError struct {
	path string
	err  error
}

func (e *pathError) Error() string { return "scripts." + e.path + ": " + e.err.Error() }
func (e *pathError) Unwrap() error { return e.err }
