package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func findValidation(errs []*ValidationError, phase, substr string) bool {
	for _, e := range errs {
		if e.Phase == phase && strings.Contains(e.Error(), substr) {
			return true
		}
	}
	return false
}

// TestValidateValidFixtures runs the full pipeline on the valid fixtures.
func TestValidateValidFixtures(t *testing.T) {
	for _, f := range []string{"basic.yaml", "all-variants.yaml"} {
		t.Run(f, func(t *testing.T) {
			_, errs := ValidateFile("../../testdata/valid/" + f)
			if HasErrors(errs) {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}

// TestValidateTwoDiscriminators checks domain rejection of ambiguous shapes.
func TestValidateTwoDiscriminators(t *testing.T) {
	_, errs := ValidateFile("../../testdata/invalid/two-discriminators.yaml")
	if !findValidation(errs, "domain", "more than one") {
		t.Errorf("expected two-discriminator error, got: %v", errs)
	}
}

// TestValidateDanglingJob checks that $jobs paths must exist.
func TestValidateDanglingJob(t *testing.T) {
	_, errs := ValidateFile("../../testdata/invalid/dangling-job.yaml")
	if !findValidation(errs, "domain", "$jobs[0]") {
		t.Errorf("expected dangling job error, got: %v", errs)
	}
}

func TestValidateStructuralError(t *testing.T) {
	doc, errs := ValidateFile("../../testdata/invalid/unknown-top-level.yaml")
	if doc != nil {
		t.Error("expected nil document on structural failure")
	}
	if len(errs) != 1 || errs[0].Phase != "structural" {
		t.Errorf("errs = %v, want one structural error", errs)
	}
}

func TestValidateDomainRules(t *testing.T) {
	doc, err := Parse([]byte(`
env:
  dev:
    a: "1"
    bad:
      nested: group
scripts:
  pick:
    $ask: choose
    $sort: random
  both:
    $cmd: echo
    $image: alpine
    $ssh: host
  uses:
    $envNames: [nope]
    $cmd: echo
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	errs := ValidateDomain(doc)
	if !findValidation(errs, "domain", "env.dev.bad") {
		t.Errorf("expected error on group inside env, got %v", errs)
	}
	if !findValidation(errs, "domain", "unknown sort") {
		t.Errorf("expected sort error, got %v", errs)
	}
	if !findValidation(errs, "domain", "container wins") {
		t.Errorf("expected routing warning, got %v", errs)
	}
	if !findValidation(errs, "domain", "nope") {
		t.Errorf("expected $envNames error, got %v", errs)
	}
}

// TestGenerateJSONSchema checks the exported schema is well-formed JSON with
// the expected definitions.
func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var s map[string]any
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s["$id"] != SchemaID {
		t.Errorf("$id = %v", s["$id"])
	}
	defs, ok := s["$defs"].(map[string]any)
	if !ok {
		t.Fatal("$defs missing")
	}
	for _, name := range []string{"node", "group", "scalar"} {
		if _, ok := defs[name]; !ok {
			t.Errorf("$defs.%s missing", name)
		}
	}
	if !strings.Contains(string(data), `"$cmd"`) {
		t.Error("schema should describe $cmd")
	}
}

func TestValidateSemanticRejectsBadTopLevelTypes(t *testing.T) {
	doc := &Document{Env: MapOf("dev", "not-a-group"), Scripts: NewMap()}
	errs := validateSemantic(doc)
	if len(errs) == 0 {
		t.Error("expected a semantic error for a scalar env group")
	}
}
