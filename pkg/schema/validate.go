package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // dotted location, e.g. "scripts.deploy.$jobs[1]"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether any entry has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile runs the validation pipeline on a document file.
// Phase 1: Structural (YAML decode, top-level keys)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (script classification and cross references)
func ValidateFile(path string) (*Document, []*ValidationError) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return doc, Validate(doc)
}

// Validate runs the semantic and domain phases on a loaded document.
func Validate(doc *Document) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(doc)...)
	all = append(all, ValidateDomain(doc)...)
	return all
}

// Tree renders the document back into its generic form.
func (d *Document) Tree() *Map {
	root := NewMap()
	if d.Description != "" {
		root.Set(KeyDescription, d.Description)
	}
	if len(d.Imports) > 0 {
		imports := make([]any, 0, len(d.Imports))
		for _, imp := range d.Imports {
			if imp.Optional {
				imports = append(imports, MapOf("path", imp.Path, "optional", true))
			} else {
				imports = append(imports, imp.Path)
			}
		}
		root.Set(KeyImports, imports)
	}
	root.Set(KeyEnv, d.Env.Clone())
	root.Set(KeyScripts, d.Scripts.Clone())
	return root
}

func semanticError(format string, args ...any) []*ValidationError {
	return []*ValidationError{{
		Phase:    "semantic",
		Message:  fmt.Sprintf(format, args...),
		Severity: "error",
	}}
}

// validateSemantic validates the document against the JSON Schema.
func validateSemantic(doc *Document) []*ValidationError {
	data, err := json.Marshal(doc.Tree())
	if err != nil {
		return semanticError("marshal for schema validation: %v", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semanticError("generate schema: %v", err)
	}
	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return semanticError("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("document-v1.json", schemaDoc); err != nil {
		return semanticError("add schema resource: %v", err)
	}
	sch, err := c.Compile("document-v1.json")
	if err != nil {
		return semanticError("compile schema: %v", err)
	}

	var inst interface{}
	if err := json.Unmarshal(data, &inst); err != nil {
		return semanticError("unmarshal document: %v", err)
	}

	if err := sch.Validate(inst); err != nil {
		var ve *sjsonschema.ValidationError
		if !errors.As(err, &ve) {
			return semanticError("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "."),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain classifies every env entry and script, and checks that
// $jobs paths and $envNames point at something that exists.
func ValidateDomain(doc *Document) []*ValidationError {
	v := &domainValidator{doc: doc}
	for _, name := range doc.GroupNames() {
		group, ok := doc.Group(name)
		if !ok {
			v.fail("env."+name, "group must be a mapping")
			continue
		}
		for _, key := range group.Keys() {
			node, _ := group.Get(key)
			v.entry("env."+name+"."+key, node)
		}
	}
	v.walk("scripts", doc.Scripts)
	return v.errs
}

type domainValidator struct {
	doc  *Document
	errs []*ValidationError
}

func (v *domainValidator) fail(path, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{Phase: "domain", Path: path, Message: fmt.Sprintf(format, args...), Severity: "error"})
}

func (v *domainValidator) warn(path, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{Phase: "domain", Path: path, Message: fmt.Sprintf(format, args...), Severity: "warning"})
}

// entry validates an env declaration: every node there must be a script.
func (v *domainValidator) entry(path string, node any) {
	s, ok, err := Classify(node)
	if err != nil {
		v.fail(path, "%v", err)
		return
	}
	if !ok {
		v.fail(path, "not a variable declaration")
		return
	}
	v.script(path, s)
}

func (v *domainValidator) walk(path string, group *Map) {
	for _, key := range group.Keys() {
		if strings.HasPrefix(key, "$") {
			if key != "$description" {
				v.fail(path+"."+key, "unknown key on a script group")
			}
			continue
		}
		node, _ := group.Get(key)
		s, ok, err := Classify(node)
		switch {
		case err != nil:
			v.fail(path+"."+key, "%v", err)
		case ok:
			v.script(path+"."+key, s)
		default:
			child, isMap := node.(*Map)
			if !isMap {
				v.fail(path+"."+key, "expected a script or a group, got %T", node)
				continue
			}
			v.walk(path+"."+key, child)
		}
	}
}

func (v *domainValidator) script(path string, s Script) {
	base := s.Common()
	for i, name := range base.EnvNames {
		if _, err := MatchName(name, v.doc.GroupNames(), errdefs.ErrEnvironmentNotFound); err != nil {
			if len(v.doc.Imports) > 0 {
				v.warn(fmt.Sprintf("%s.$envNames[%d]", path, i), "%v (may come from an import)", err)
			} else {
				v.fail(fmt.Sprintf("%s.$envNames[%d]", path, i), "%v", err)
			}
		}
	}
	for _, key := range base.Env.Keys() {
		node, _ := base.Env.Get(key)
		v.entry(path+".$env."+key, node)
	}

	switch t := s.(type) {
	case *Command:
		if t.Image != "" && t.Remote != "" {
			v.warn(path, "$image and $ssh are both set; the container wins")
		}
	case *Ask:
		if t.Sort != "" && !slices.Contains([]string{SortNone, SortAlpha, SortAlphaDesc}, t.Sort) {
			v.fail(path+".$sort", "unknown sort %q", t.Sort)
		}
	case *JobsSerial:
		for i, job := range t.Jobs {
			jp := fmt.Sprintf("%s.$jobs[%d]", path, i)
			switch {
			case job.Path != nil:
				if _, _, err := FindScript(v.doc, job.Path); err != nil {
					if len(v.doc.Imports) > 0 {
						v.warn(jp, "%v (may come from an import)", err)
					} else {
						v.fail(jp, "%v", err)
					}
				}
			case job.Inline != nil:
				v.script(jp, job.Inline)
			default:
				v.fail(jp, "not executable")
			}
		}
	}
}
