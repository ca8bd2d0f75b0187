// Package vars implements the tiered variable store used during resolution
// and execution.
//
// A Store keeps three disjoint tiers:
//
//   - global: inherited from the host process, lowest precedence
//   - resolved: values computed or accepted during an invocation
//   - secret: any key whose name contains "secret" (case-insensitive)
//
// Secrets take part in ${name} resolution but are never enumerated,
// serialized or merged back into a parent scope.
package vars

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
)

var (
	// placeholderRe matches innermost placeholders only: the name cannot
	// itself contain "$", "{" or "}".
	placeholderRe = regexp.MustCompile(`\$\{([^${}]+)\}`)
	envNameRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Store is the per-invocation variable container.
type Store struct {
	mu           sync.RWMutex
	global       map[string]string
	resolved     map[string]string
	secret       map[string]string
	doNotResolve map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithGlobals seeds the global tier, typically from the host environment.
func WithGlobals(env map[string]string) Option {
	return func(s *Store) {
		for k, v := range env {
			s.putLocked(s.global, k, v)
		}
	}
}

// WithDoNotResolve marks keys whose values are passed through verbatim.
func WithDoNotResolve(keys ...string) Option {
	return func(s *Store) {
		for _, k := range keys {
			s.doNotResolve[k] = true
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		global:       make(map[string]string),
		resolved:     make(map[string]string),
		secret:       make(map[string]string),
		doNotResolve: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsSecretKey reports whether key is routed to the secret tier.
func IsSecretKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "secret")
}

// putLocked writes into tier unless key is a secret, in which case the
// secret tier wins regardless of the caller's intent.
func (s *Store) putLocked(tier map[string]string, key, value string) {
	if IsSecretKey(key) {
		s.secret[key] = value
		return
	}
	tier[key] = value
}

// PutGlobal writes a host-inherited value.
func (s *Store) PutGlobal(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(s.global, key, value)
}

// PutResolved writes a computed value.
func (s *Store) PutResolved(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(s.resolved, key, value)
}

// PutSecret writes into the secret tier.
func (s *Store) PutSecret(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret[key] = value
}

// GetAll returns global merged with resolved (resolved wins). Secrets are
// never included.
func (s *Store) GetAll() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.global)+len(s.resolved))
	maps.Copy(out, s.global)
	maps.Copy(out, s.resolved)
	return out
}

// Resolved returns a copy of the resolved tier.
func (s *Store) Resolved() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.resolved)
}

// Lookup finds key across all tiers with precedence secret > resolved > global.
// Empty values count as absent.
func (s *Store) Lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(key)
}

func (s *Store) lookupLocked(key string) (string, bool) {
	for _, tier := range []map[string]string{s.secret, s.resolved, s.global} {
		if v, ok := tier[key]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// IsResolvable reports whether key has a non-empty value in any tier.
func (s *Store) IsResolvable(key string) bool {
	_, ok := s.Lookup(key)
	return ok
}

// IsLiteral reports whether key is exempt from placeholder resolution.
func (s *Store) IsLiteral(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doNotResolve[key]
}

// References returns the sorted, unique placeholder names found at the
// innermost level of text.
func References(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		seen[strings.TrimSpace(m[1])] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Missing returns the sorted names referenced by text that are not resolvable.
func (s *Store) Missing(text string) []string {
	var missing []string
	for _, name := range References(text) {
		if !s.IsResolvable(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Resolve expands every ${name} in text. When contextKey is marked
// do-not-resolve, text is returned untouched. Any unresolvable reference
// fails the whole expansion with a MissingVariablesError naming all of them.
//
// Nested placeholders such as ${url_${stage}} are expanded innermost first.
// Substituted values are inserted verbatim and never rescanned, so a stored
// value that happens to contain ${...} is not treated as a template.
func (s *Store) Resolve(text, contextKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doNotResolve[contextKey] {
		return text, nil
	}

	missing := make(map[string]struct{})
	out := s.expandLocked(text, missing)
	if len(missing) == 0 {
		return out, nil
	}

	known := make([]string, 0, len(s.global)+len(s.resolved))
	for k := range s.global {
		known = append(known, k)
	}
	for k := range s.resolved {
		if _, dup := s.global[k]; !dup {
			known = append(known, k)
		}
	}
	slices.Sort(known)
	return "", &errdefs.MissingVariablesError{
		Names:   slices.Sorted(maps.Keys(missing)),
		Known:   known,
		Context: contextKey,
	}
}

// expandLocked walks text once, left to right. Every unresolvable name is
// recorded in missing and its placeholder kept as written.
func (s *Store) expandLocked(text string, missing map[string]struct{}) string {
	var b strings.Builder
	for {
		open := strings.Index(text, "${")
		if open < 0 {
			b.WriteString(text)
			return b.String()
		}
		closing := matchingBrace(text, open+2)
		if closing < 0 {
			b.WriteString(text[:open+2])
			text = text[open+2:]
			continue
		}
		b.WriteString(text[:open])
		raw := text[open : closing+1]
		text = text[closing+1:]

		before := len(missing)
		name := strings.TrimSpace(s.expandLocked(raw[2:len(raw)-1], missing))
		if len(missing) > before || name == "" {
			b.WriteString(raw)
			continue
		}
		v, ok := s.lookupLocked(name)
		if !ok {
			missing[name] = struct{}{}
			b.WriteString(raw)
			continue
		}
		b.WriteString(v)
	}
}

// matchingBrace returns the index of the "}" closing a placeholder whose
// body starts at from, or -1 when it is unterminated.
func matchingBrace(text string, from int) int {
	depth := 1
	for i := from; i < len(text); i++ {
		switch {
		case strings.HasPrefix(text[i:], "${"):
			depth++
			i++
		case text[i] == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Clone returns an independent deep copy, secrets included.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Store{
		global:       maps.Clone(s.global),
		resolved:     maps.Clone(s.resolved),
		secret:       maps.Clone(s.secret),
		doNotResolve: maps.Clone(s.doNotResolve),
	}
}

// MergeResolved copies child's resolved tier into s. The child's secrets
// stay behind.
func (s *Store) MergeResolved(child *Store) {
	if child == s {
		return
	}
	resolved := child.Resolved()
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.resolved, resolved)
}

// PurgeSecrets empties the secret tier only.
func (s *Store) PurgeSecrets() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.secret)
}

// Environ renders the store as KEY=VALUE pairs for a subprocess: resolved and
// secret values, preceded by the global tier when includeGlobal is set. Keys
// that are not valid environment names are skipped.
func (s *Store) Environ(includeGlobal bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[string]string)
	if includeGlobal {
		maps.Copy(merged, s.global)
	}
	maps.Copy(merged, s.resolved)
	maps.Copy(merged, s.secret)

	out := make([]string, 0, len(merged))
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		if !envNameRe.MatchString(k) {
			continue
		}
		out = append(out, k+"="+merged[k])
	}
	return out
}

const (
	// Redacted replaces secret values in command output.
	Redacted = "<REDACTED>"
	// minRedactLen keeps very short values from shredding unrelated text.
	minRedactLen = 4
)

// Redact replaces every occurrence of a secret value in text with
// Redacted. Longer values are replaced first so that a secret containing
// another one is hidden whole. Values shorter than four bytes are kept.
func (s *Store) Redact(text string) string {
	s.mu.RLock()
	values := make([]string, 0, len(s.secret))
	for _, v := range s.secret {
		if len(v) >= minRedactLen {
			values = append(values, v)
		}
	}
	s.mu.RUnlock()
	if len(values) == 0 || text == "" {
		return text
	}
	slices.SortFunc(values, func(a, b string) int { return len(b) - len(a) })
	for _, v := range values {
		text = strings.ReplaceAll(text, v, Redacted)
	}
	return text
}
