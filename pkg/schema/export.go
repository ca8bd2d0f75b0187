package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID is the $id of the exported document schema.
const SchemaID = "https://github.com/ormasoftchile/envrun/schemas/document-v1.json"

// The spec structs below only drive schema reflection; documents are
// decoded through Classify.

type commonSpec struct {
	Env         map[string]any `json:"$env,omitempty" jsonschema:"description=Variables resolved before the script runs"`
	EnvNames    []string       `json:"$envNames,omitempty" jsonschema:"description=Document env groups applied after $env"`
	Description string         `json:"$description,omitempty"`
}

type resolveSpec struct {
	commonSpec
	Resolve string `json:"$resolve" jsonschema:"required,description=Interpolated expression"`
}

type commandSpec struct {
	commonSpec
	Cmd          string `json:"$cmd" jsonschema:"required,description=Shell text"`
	Image        string `json:"$image,omitempty" jsonschema:"description=Run inside this container image"`
	SSH          string `json:"$ssh,omitempty" jsonschema:"description=Run on user@host[:port]"`
	InheritEnv   *bool  `json:"$inheritEnv,omitempty"`
	ErrorMessage string `json:"$errorMessage,omitempty" jsonschema:"description=Markdown shown on failure"`
	Shell        string `json:"$shell,omitempty"`
	WorkDir      string `json:"$workdir,omitempty"`
}

type fieldsMappingSpec struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

type askSpec struct {
	commonSpec
	Ask           string             `json:"$ask" jsonschema:"required,description=Prompt text"`
	Choices       any                `json:"$choices,omitempty"`
	Default       any                `json:"$default,omitempty"`
	FieldsMapping *fieldsMappingSpec `json:"$fieldsMapping,omitempty"`
	Filter        string             `json:"$filter,omitempty" jsonschema:"description=Regular expression tested against choice names"`
	Sort          string             `json:"$sort,omitempty" jsonschema:"enum=alpha,enum=alphaDesc,enum=none"`
}

type writePathSpec struct {
	commonSpec
	Path        string `json:"$path" jsonschema:"required"`
	Content     any    `json:"$content,omitempty"`
	Permissions any    `json:"$permissions,omitempty"`
	Owner       string `json:"$owner,omitempty"`
	Image       string `json:"$image,omitempty"`
	SSH         string `json:"$ssh,omitempty"`
}

type refSpec struct {
	commonSpec
	Ref string `json:"$ref" jsonschema:"required"`
}

type jobsSpec struct {
	commonSpec
	Jobs []any `json:"$jobs" jsonschema:"required"`
}

type internalSpec struct {
	commonSpec
	Internal string `json:"$internal" jsonschema:"required"`
}

func nodeRef() *jsonschema.Schema { return &jsonschema.Schema{Ref: "#/$defs/node"} }

func groupSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Description:          desc,
		AdditionalProperties: nodeRef(),
	}
}

// DocumentSchema builds the JSON Schema of an envrun document.
func DocumentSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	variant := func(v any) *jsonschema.Schema {
		s := r.Reflect(v)
		s.Version = ""
		if s.Properties != nil {
			if _, ok := s.Properties.Get("$env"); ok {
				s.Properties.Set("$env", groupSchema(""))
			}
			if _, ok := s.Properties.Get("$jobs"); ok {
				s.Properties.Set("$jobs", &jsonschema.Schema{Type: "array", Items: nodeRef()})
			}
		}
		return s
	}

	scalar := &jsonschema.Schema{AnyOf: []*jsonschema.Schema{
		{Type: "string"}, {Type: "number"}, {Type: "boolean"}, {Type: "null"},
	}}
	node := &jsonschema.Schema{AnyOf: []*jsonschema.Schema{
		{Ref: "#/$defs/scalar"},
		variant(&resolveSpec{}),
		variant(&commandSpec{}),
		variant(&askSpec{}),
		variant(&writePathSpec{}),
		variant(&refSpec{}),
		variant(&jobsSpec{}),
		variant(&internalSpec{}),
		{Ref: "#/$defs/group"},
	}}

	importItem := &jsonschema.Schema{AnyOf: []*jsonschema.Schema{
		{Type: "string"},
		r.Reflect(&struct {
			Path     string `json:"path" jsonschema:"required"`
			Optional bool   `json:"optional,omitempty"`
		}{}),
	}}
	importItem.AnyOf[1].Version = ""

	props := jsonschema.NewProperties()
	props.Set(KeyDescription, &jsonschema.Schema{Type: "string"})
	props.Set(KeyImports, &jsonschema.Schema{Type: "array", Items: importItem})
	props.Set(KeyEnv, &jsonschema.Schema{
		Type:                 "object",
		Description:          "Named environment groups",
		AdditionalProperties: &jsonschema.Schema{Ref: "#/$defs/group"},
	})
	props.Set(KeyScripts, &jsonschema.Schema{Ref: "#/$defs/group"})

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		ID:                   SchemaID,
		Title:                "envrun document v1",
		Description:          "Schema for envrun environment and script documents",
		Type:                 "object",
		Properties:           props,
		AdditionalProperties: jsonschema.FalseSchema,
		Definitions: jsonschema.Definitions{
			"scalar": scalar,
			"node":   node,
			"group":  groupSchema("Group of scripts or variables"),
		},
	}
}

// GenerateJSONSchema renders DocumentSchema as indented JSON.
func GenerateJSONSchema() ([]byte, error) {
	data, err := json.MarshalIndent(DocumentSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
