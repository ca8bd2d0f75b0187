package schema

import (
	"slices"
	"testing"
)

func TestListScripts(t *testing.T) {
	doc, err := Parse([]byte(`
scripts:
  build:
    $description: Build targets
    app:
      $cmd: make app
      $description: Build the app
    docs:
      $cmd: make docs
  ci:
    $jobs: [build/app]
  hello: world
`))
	if err != nil {
		t.Fatal(err)
	}
	got := doc.ListScripts()
	var names []string
	for _, e := range got {
		names = append(names, e.Name()+":"+e.Kind)
	}
	want := []string{"build/app:command", "build/docs:command", "ci:jobs", "hello:literal"}
	if !slices.Equal(names, want) {
		t.Errorf("ListScripts = %v, want %v", names, want)
	}
	if got[0].Description != "Build the app" {
		t.Errorf("description = %q", got[0].Description)
	}
}

func TestListGroups(t *testing.T) {
	doc, err := Parse([]byte(`
env:
  dev:
    $description: Local development
    STAGE: dev
    URL: http://localhost
  prod:
    STAGE: prod
`))
	if err != nil {
		t.Fatal(err)
	}
	groups := doc.ListGroups()
	if len(groups) != 2 || groups[0].Name != "dev" || groups[1].Name != "prod" {
		t.Fatalf("groups = %+v", groups)
	}
	if !slices.Equal(groups[0].Keys, []string{"STAGE", "URL"}) {
		t.Errorf("keys = %v", groups[0].Keys)
	}
	if groups[0].Description != "Local development" {
		t.Errorf("description = %q", groups[0].Description)
	}
}
