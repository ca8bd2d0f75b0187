package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-viper/mapstructure/v2"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
)

// Discriminator keys. A script declaration carries exactly one of them.
const (
	KeyResolve  = "$resolve"
	KeyCmd      = "$cmd"
	KeyAsk      = "$ask"
	KeyPath     = "$path"
	KeyRef      = "$ref"
	KeyJobs     = "$jobs"
	KeyInternal = "$internal"
)

var discriminators = []string{KeyResolve, KeyCmd, KeyAsk, KeyPath, KeyRef, KeyJobs, KeyInternal}

var commonKeys = []string{"$env", "$envNames", "$description"}

// allowedKeys lists the keys each variant accepts besides the common ones.
var allowedKeys = map[string][]string{
	KeyResolve:  {KeyResolve},
	KeyCmd:      {KeyCmd, "$image", "$ssh", "$inheritEnv", "$errorMessage", "$shell", "$workdir"},
	KeyAsk:      {KeyAsk, "$choices", "$default", "$fieldsMapping", "$filter", "$sort"},
	KeyPath:     {KeyPath, "$content", "$permissions", "$owner", "$image", "$ssh"},
	KeyRef:      {KeyRef},
	KeyJobs:     {KeyJobs},
	KeyInternal: {KeyInternal},
}

// Script is one of Literal, Resolve, Command, Ask, WritePath, EnvRef,
// JobsSerial or Internal.
type Script interface {
	// Kind names the variant, e.g. "command".
	Kind() string
	// Common returns the fields shared by every variant.
	Common() *Base
	sealed()
}

// Base holds the fields every variant may carry.
type Base struct {
	// Env is resolved before the variant's own effect.
	Env *Map
	// EnvNames are additional document groups applied after Env.
	EnvNames    []string
	Description string
}

// Common implements Script.
func (b *Base) Common() *Base { return b }
func (*Base) sealed()         {}

// Literal is a plain scalar, resolved as an expression against itself.
type Literal struct {
	Base
	Value string
}

// Resolve is pure string interpolation.
type Resolve struct {
	Base
	Expr string
}

// Command runs shell text locally, in a container (Image) or on a remote
// host (Remote, user@host[:port]).
type Command struct {
	Base
	Text   string
	Image  string
	Remote string
	// InheritEnv overrides the default host-environment inheritance.
	InheritEnv *bool
	// ErrorMessage is markdown shown when the command fails.
	ErrorMessage string
	Shell        string
	WorkDir      string
}

// IsContainer reports whether the command runs inside an image.
func (c *Command) IsContainer() bool { return c.Image != "" }

// IsRemote reports whether the command runs over ssh.
func (c *Command) IsRemote() bool { return c.Image == "" && c.Remote != "" }

// Sort orders for Ask choices.
const (
	SortNone      = "none"
	SortAlpha     = "alpha"
	SortAlphaDesc = "alphaDesc"
)

// FieldsMapping says which entry properties carry a choice's name and value.
type FieldsMapping struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// Ask prompts for a single value.
type Ask struct {
	Base
	Prompt        string
	Choices       any
	Default       any
	FieldsMapping *FieldsMapping
	Filter        string
	Sort          string
}

// WritePath materializes a file, or a directory when Content is nil.
type WritePath struct {
	Base
	Path        string
	Content     any
	Permissions string
	Owner       string
	Image       string
	Remote      string
}

// EnvRef copies an existing value under a new key.
type EnvRef struct {
	Base
	Ref string
}

// Job is one JobsSerial element: either a script path or an inline node.
type Job struct {
	// Path is set for by-path references.
	Path []string
	// Inline is set when Node classified as a script.
	Inline Script
	// Node is the raw inline declaration.
	Node any
}

// Label renders the job for messages.
func (j Job) Label(index int) string {
	if j.Path != nil {
		return strings.Join(j.Path, "/")
	}
	return fmt.Sprintf("[%d]", index)
}

// JobsSerial runs its jobs in order.
type JobsSerial struct {
	Base
	Jobs []Job
}

// Internal calls a caller-registered function.
type Internal struct {
	Base
	Handle string
}

func (*Literal) Kind() string    { return "literal" }
func (*Resolve) Kind() string    { return "resolve" }
func (*Command) Kind() string    { return "command" }
func (*Ask) Kind() string        { return "ask" }
func (*WritePath) Kind() string  { return "writePath" }
func (*EnvRef) Kind() string     { return "envRef" }
func (*JobsSerial) Kind() string { return "jobs" }
func (*Internal) Kind() string   { return "internal" }

// rawScript is the decode target for any script mapping. Discriminators are
// pointers so that an empty value still counts as present.
type rawScript struct {
	Resolve  *string `mapstructure:"$resolve"`
	Cmd      *string `mapstructure:"$cmd"`
	Ask      *string `mapstructure:"$ask"`
	Path     *string `mapstructure:"$path"`
	Ref      *string `mapstructure:"$ref"`
	Jobs     []any   `mapstructure:"$jobs"`
	Internal *string `mapstructure:"$internal"`

	Env         any      `mapstructure:"$env"`
	EnvNames    []string `mapstructure:"$envNames"`
	Description string   `mapstructure:"$description"`

	Image        string `mapstructure:"$image"`
	SSH          string `mapstructure:"$ssh"`
	InheritEnv   *bool  `mapstructure:"$inheritEnv"`
	ErrorMessage string `mapstructure:"$errorMessage"`
	Shell        string `mapstructure:"$shell"`
	WorkDir      string `mapstructure:"$workdir"`

	Choices       any    `mapstructure:"$choices"`
	Default       any    `mapstructure:"$default"`
	FieldsMapping any    `mapstructure:"$fieldsMapping"`
	Filter        string `mapstructure:"$filter"`
	Sort          string `mapstructure:"$sort"`

	Content     any    `mapstructure:"$content"`
	Permissions any    `mapstructure:"$permissions"`
	Owner       string `mapstructure:"$owner"`
}

// IsScript reports whether node would classify as a script.
func IsScript(node any) bool {
	s, ok, err := Classify(node)
	return err == nil && ok && s != nil
}

// Classify turns a document node into a Script. Scalars are literals;
// mappings must carry exactly one discriminator key. ok is false for group
// nodes (mappings without a discriminator) and for lists.
func Classify(node any) (Script, bool, error) {
	if s, isScalar := Scalar(node); isScalar {
		return &Literal{Value: s}, true, nil
	}
	m, isMap := node.(*Map)
	if !isMap {
		return nil, false, nil
	}

	var found []string
	for _, k := range m.Keys() {
		if slices.Contains(discriminators, k) {
			found = append(found, k)
		}
	}
	switch len(found) {
	case 0:
		return nil, false, nil
	case 1:
	default:
		return nil, false, errdefs.Wrap(errdefs.ErrInvalidShape, "script declares more than one of %s", strings.Join(found, ", "))
	}
	kind := found[0]

	allowed := append(slices.Clone(commonKeys), allowedKeys[kind]...)
	for _, k := range m.Keys() {
		if !slices.Contains(allowed, k) {
			return nil, false, errdefs.Wrap(errdefs.ErrInvalidShape, "key %q is not valid for a %s script", k, kind)
		}
	}

	input := make(map[string]any, m.Len())
	for _, k := range m.Keys() {
		input[k], _ = m.Get(k)
	}
	var raw rawScript
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		MatchName:        func(mapKey, fieldName string) bool { return mapKey == fieldName },
		Result:           &raw,
	})
	if err != nil {
		return nil, false, err
	}
	if err := dec.Decode(input); err != nil {
		return nil, false, errdefs.Wrap(errdefs.ErrInvalidShape, "decode %s script: %v", kind, err)
	}

	base := Base{EnvNames: raw.EnvNames, Description: raw.Description}
	if raw.Env != nil {
		env, ok := raw.Env.(*Map)
		if !ok {
			return nil, false, errdefs.Wrap(errdefs.ErrInvalidShape, "$env must be a mapping, got %T", raw.Env)
		}
		base.Env = env
	}

	switch kind {
	case KeyResolve:
		return &Resolve{Base: base, Expr: deref(raw.Resolve)}, true, nil
	case KeyCmd:
		return &Command{
			Base:         base,
			Text:         deref(raw.Cmd),
			Image:        raw.Image,
			Remote:       raw.SSH,
			InheritEnv:   raw.InheritEnv,
			ErrorMessage: raw.ErrorMessage,
			Shell:        raw.Shell,
			WorkDir:      raw.WorkDir,
		}, true, nil
	case KeyAsk:
		ask := &Ask{
			Base:    base,
			Prompt:  deref(raw.Ask),
			Choices: raw.Choices,
			Default: raw.Default,
			Filter:  raw.Filter,
			Sort:    raw.Sort,
		}
		if raw.FieldsMapping != nil {
			fm, err := decodeFieldsMapping(raw.FieldsMapping)
			if err != nil {
				return nil, false, err
			}
			ask.FieldsMapping = fm
		}
		return ask, true, nil
	case KeyPath:
		perm, err := permissionString(raw.Permissions)
		if err != nil {
			return nil, false, err
		}
		return &WritePath{
			Base:        base,
			Path:        deref(raw.Path),
			Content:     raw.Content,
			Permissions: perm,
			Owner:       raw.Owner,
			Image:       raw.Image,
			Remote:      raw.SSH,
		}, true, nil
	case KeyRef:
		return &EnvRef{Base: base, Ref: deref(raw.Ref)}, true, nil
	case KeyJobs:
		jobs := make([]Job, 0, len(raw.Jobs))
		for i, el := range raw.Jobs {
			if p, ok := el.(string); ok {
				segs := SplitPath(p)
				if len(segs) == 0 {
					return nil, false, errdefs.Wrap(errdefs.ErrInvalidShape, "$jobs[%d]: empty script path", i)
				}
				jobs = append(jobs, Job{Path: segs})
				continue
			}
			inline, ok, err := Classify(el)
			if err != nil {
				return nil, false, fmt.Errorf("$jobs[%d]: %w", i, err)
			}
			job := Job{Node: el}
			if ok {
				job.Inline = inline
			}
			jobs = append(jobs, job)
		}
		return &JobsSerial{Base: base, Jobs: jobs}, true, nil
	case KeyInternal:
		return &Internal{Base: base, Handle: deref(raw.Internal)}, true, nil
	}
	return nil, false, errdefs.Wrap(errdefs.ErrInvalidShape, "unhandled discriminator %s", kind)
}

func decodeFieldsMapping(v any) (*FieldsMapping, error) {
	var fm FieldsMapping
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &fm,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(Plain(v)); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrInvalidShape, "$fieldsMapping: %v", err)
	}
	if fm.Name == "" && fm.Value == "" {
		return nil, errdefs.Wrap(errdefs.ErrInvalidShape, "$fieldsMapping needs name or value")
	}
	return &fm, nil
}

// permissionString normalizes $permissions. YAML reads 0644 as the integer
// 420, which is rendered back as octal.
func permissionString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int:
		return strconv.FormatInt(int64(t), 8), nil
	case int64:
		return strconv.FormatInt(t, 8), nil
	case uint64:
		return strconv.FormatUint(t, 8), nil
	default:
		return "", errdefs.Wrap(errdefs.ErrInvalidShape, "$permissions must be a mode string, got %T", v)
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// SplitPath splits a script path on "/" and whitespace.
func SplitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
}
