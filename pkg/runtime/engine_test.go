package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
	"github.com/ormasoftchile/envrun/pkg/providers"
	"github.com/ormasoftchile/envrun/pkg/schema"
)

// fakeRunner records every spec and echoes the script text back as stdout.
type fakeRunner struct {
	specs []providers.RunSpec
	run   func(spec providers.RunSpec) *providers.RunOutput
}

func (f *fakeRunner) Run(_ context.Context, spec providers.RunSpec) (*providers.RunOutput, error) {
	f.specs = append(f.specs, spec)
	if f.run != nil {
		return f.run(spec), nil
	}
	return &providers.RunOutput{Stdout: []byte(spec.Script + "\n")}, nil
}

func (f *fakeRunner) scripts() []string {
	out := make([]string, len(f.specs))
	for i, s := range f.specs {
		out[i] = s.Script
	}
	return out
}

type harness struct {
	local, container, remote *fakeRunner
	stderr                   *bytes.Buffer
	probes                   int
	probeErr                 error
	rc                       *RuntimeContext
}

func newHarness() *harness {
	h := &harness{
		local:     &fakeRunner{},
		container: &fakeRunner{},
		remote:    &fakeRunner{},
		stderr:    &bytes.Buffer{},
	}
	h.rc = NewRuntimeContext(&providers.ContainerEngine{}, WithContainerProbe(func(context.Context) error {
		h.probes++
		return h.probeErr
	}))
	return h
}

func (h *harness) options(extra ...Option) []Option {
	return append([]Option{
		WithHost(map[string]string{}),
		WithRunners(Runners{Local: h.local, Container: h.container, Remote: h.remote}),
		WithRuntimeContext(h.rc),
		WithIO(strings.NewReader(""), &bytes.Buffer{}, h.stderr),
		WithBatch(true),
	}, extra...)
}

func mustParse(t *testing.T, src string) *schema.Document {
	t.Helper()
	doc, err := schema.Parse([]byte(src))
	require.NoError(t, err)
	return doc
}

func envHas(env []string, kv string) bool {
	for _, e := range env {
		if e == kv {
			return true
		}
	}
	return false
}

const precedenceDoc = `
env:
  base:
    STAGE: base
    REGION: eu
  dev:
    STAGE: dev
  prod:
    STAGE: prod
scripts:
  show:
    $cmd: echo ${STAGE} ${REGION}
`

func TestGroupPrecedenceLastWins(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		names []string
		stage string
	}{
		{[]string{"base", "dev"}, "dev"},
		{[]string{"dev", "base"}, "base"},
		{[]string{"base", "dev", "prod"}, "prod"},
	} {
		store, names, err := ResolveEnvironment(ctx, mustParse(t, precedenceDoc), tc.names, nil, map[string]string{})
		require.NoError(t, err)
		require.Equal(t, tc.names, names)
		v, _ := store.Lookup("STAGE")
		require.Equal(t, tc.stage, v, "groups %v", tc.names)
	}
}

func TestResolveNamedGroupsPrefix(t *testing.T) {
	ctx := context.Background()
	doc := mustParse(t, `
env:
  development: {A: "1"}
  demo: {A: "2"}
  production: {A: "3"}
`)
	_, names, err := ResolveEnvironment(ctx, doc, []string{"prod", "dev"}, nil, map[string]string{})
	require.NoError(t, err)
	require.Equal(t, []string{"production", "development"}, names)

	_, _, err = ResolveEnvironment(ctx, doc, []string{"de"}, nil, map[string]string{})
	var amb *errdefs.AmbiguousError
	require.ErrorAs(t, err, &amb)
	require.ElementsMatch(t, []string{"development", "demo"}, amb.Matches)

	_, _, err = ResolveEnvironment(ctx, doc, []string{"prd"}, nil, map[string]string{})
	require.ErrorIs(t, err, errdefs.ErrEnvironmentNotFound)
	var nf *errdefs.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "production", nf.Suggestion)
}

func TestChainedReferences(t *testing.T) {
	doc := mustParse(t, `
env:
  chain:
    one: "1"
    two: "${one}-2"
    three: "${two}-3"
    four: "${three}-4"
    five: "${four}-5"
    six: "${five}-6"
`)
	store, _, err := ResolveEnvironment(context.Background(), doc, []string{"chain"}, nil, map[string]string{})
	require.NoError(t, err)
	v, _ := store.Lookup("six")
	require.Equal(t, "1-2-3-4-5-6", v)
}

func TestGroupOrderMatters(t *testing.T) {
	doc := mustParse(t, `
env:
  dev:
    url: "https://${host}"
    host: example.com
`)
	_, _, err := ResolveEnvironment(context.Background(), doc, []string{"dev"}, nil, map[string]string{})
	require.ErrorIs(t, err, errdefs.ErrMissingVariables)
}

func TestJobsEnvVisibleForwardOnly(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
env:
  dev: {STAGE: dev}
scripts:
  greet:
    $jobs:
      - $cmd: echo one ${STAGE}
      - $cmd: echo two
        $env:
          GREETING: Hi
      - $cmd: echo ${GREETING} three
`)
	res, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"greet"}, nil, false, h.options()...)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, []string{"echo one dev", "echo two", "echo Hi three"}, h.local.scripts())
	require.False(t, envHas(h.local.specs[0].Env, "GREETING=Hi"), "step 1 must not see GREETING")
	require.True(t, envHas(h.local.specs[2].Env, "GREETING=Hi"))
	require.Equal(t, []string{"echo one dev", "echo two", "echo Hi three"}, res.Outputs)
}

func TestJobsEarlierStepCannotSeeLaterEnv(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
scripts:
  greet:
    $jobs:
      - $cmd: echo ${GREETING}
      - $cmd: echo two
        $env:
          GREETING: Hi
`)
	_, err := Invoke(context.Background(), doc, nil, []string{"greet"}, nil, false, h.options()...)
	require.ErrorIs(t, err, errdefs.ErrMissingVariables)
	require.Empty(t, h.local.specs)
}

func TestJobsByPathAndTerminalLastStep(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
scripts:
  build:
    app:
      $cmd: make app
  test:
    $cmd: make test
  ci:
    $jobs:
      - build/app
      - test
`)
	res, err := Invoke(context.Background(), doc, nil, []string{"ci"}, nil, true, h.options()...)
	require.NoError(t, err)
	require.Len(t, h.local.specs, 2)
	require.False(t, h.local.specs[0].Terminal)
	require.True(t, h.local.specs[1].Terminal)
	require.Equal(t, []string{"make app"}, res.Outputs)
}

func TestJobsPrePassRejectsGroups(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
scripts:
  build:
    app:
      $cmd: make app
  ci:
    $jobs:
      - $cmd: echo first
      - build
`)
	_, err := Invoke(context.Background(), doc, nil, []string{"ci"}, nil, false, h.options()...)
	require.ErrorIs(t, err, errdefs.ErrNotExecutable)
	require.Contains(t, err.Error(), "build")
	require.Empty(t, h.local.specs, "no step may run when planning fails")
}

func TestJobsUnknownPathFailsBeforeRunning(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
scripts:
  ci:
    $jobs:
      - $cmd: echo first
      - nope
`)
	_, err := Invoke(context.Background(), doc, nil, []string{"ci"}, nil, false, h.options()...)
	require.ErrorIs(t, err, errdefs.ErrScriptNotFound)
	require.Empty(t, h.local.specs)
}

func TestJobsCycle(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
scripts:
  a:
    $jobs: [b]
  b:
    $jobs: [a]
`)
	_, err := Invoke(context.Background(), doc, nil, []string{"a"}, nil, false, h.options()...)
	require.ErrorIs(t, err, errdefs.ErrCyclicReference)
}

func TestNestedJobsKeepSecretsInside(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
scripts:
  outer:
    $jobs:
      - $jobs:
          - $cmd: inner
            $env:
              TOKEN_SECRET: s3
              COLOR: blue
      - $cmd: after ${COLOR}
`)
	res, err := Invoke(context.Background(), doc, nil, []string{"outer"}, nil, false, h.options()...)
	require.NoError(t, err)
	require.Len(t, h.local.specs, 2)
	require.True(t, envHas(h.local.specs[0].Env, "TOKEN_SECRET=s3"))
	require.False(t, envHas(h.local.specs[1].Env, "TOKEN_SECRET=s3"))
	require.Equal(t, "after blue", h.local.specs[1].Script)
	require.Equal(t, "blue", res.EnvVars["COLOR"])
	require.NotContains(t, res.EnvVars, "TOKEN_SECRET")
}

func TestCancelledBetweenSteps(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	h.local.run = func(spec providers.RunSpec) *providers.RunOutput {
		cancel()
		return &providers.RunOutput{}
	}
	doc := mustParse(t, `
scripts:
  ci:
    $jobs:
      - $cmd: one
      - $cmd: two
`)
	_, err := Invoke(ctx, doc, nil, []string{"ci"}, nil, false, h.options()...)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, h.local.specs, 1)
}

func TestSecretsExcludedFromResult(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
env:
  dev:
    NAME: web
    DB_SECRET: hunter2
    API_Secret_Key:
      $ask: API key?
scripts:
  show:
    $cmd: echo ${NAME}
`)
	stdin := map[string]string{"API_Secret_Key": "k3y"}
	res, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"show"}, stdin, false, h.options()...)
	require.NoError(t, err)
	require.Equal(t, "web", res.EnvVars["NAME"])
	require.NotContains(t, res.EnvVars, "DB_SECRET")
	require.NotContains(t, res.EnvVars, "API_Secret_Key")
	require.NotContains(t, res.Answers, "API_Secret_Key")
	require.True(t, envHas(h.local.specs[0].Env, "DB_SECRET=hunter2"), "secrets still reach the command")
}

const askDoc = `
env:
  dev:
    STAGE: dev
    REGION:
      $ask: Which region?
      $choices:
        eu: europe-west1
        us: us-central1
scripts:
  deploy:
    $cmd: deploy ${STAGE} ${REGION}
`

func TestAskStdinAnswerMapsChoice(t *testing.T) {
	h := newHarness()
	res, err := Invoke(context.Background(), mustParse(t, askDoc), []string{"dev"}, []string{"deploy"}, map[string]string{"REGION": "us"}, false, h.options()...)
	require.NoError(t, err)
	require.Equal(t, "us-central1", res.EnvVars["REGION"])
	require.Equal(t, map[string]string{"REGION": "us"}, res.Answers)
	require.Equal(t, []string{"deploy dev us-central1"}, res.Outputs)
}

func TestAskStdinBeforeStore(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
env:
  a:
    REGION: from-store
  b:
    REGION:
      $ask: Which region?
scripts:
  show:
    $cmd: echo ${REGION}
`)
	res, err := Invoke(context.Background(), doc, []string{"a", "b"}, []string{"show"}, map[string]string{"REGION": "from-stdin"}, false, h.options()...)
	require.NoError(t, err)
	require.Equal(t, "from-stdin", res.EnvVars["REGION"])

	res, err = Invoke(context.Background(), doc, []string{"a", "b"}, []string{"show"}, nil, false, h.options()...)
	require.NoError(t, err, "an answer already in the store must not prompt")
	require.Equal(t, "from-store", res.EnvVars["REGION"])
}

func TestAskBatchRequiresInteraction(t *testing.T) {
	h := newHarness()
	res, err := Invoke(context.Background(), mustParse(t, askDoc), []string{"dev"}, []string{"deploy"}, nil, false, h.options()...)
	require.ErrorIs(t, err, errdefs.ErrInteractionRequired)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Error)
	require.Empty(t, h.local.specs)
}

func TestAskBatchPromptWithUnsetVariable(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
env:
  dev:
    NAME:
      $ask: Name for ${OWNER}?
scripts:
  show:
    $cmd: echo ${NAME}
`)
	_, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"show"}, nil, false, h.options()...)
	require.ErrorIs(t, err, errdefs.ErrInteractionRequired)
	require.NotErrorIs(t, err, errdefs.ErrMissingVariables)
	require.Empty(t, h.local.specs)
}

// TestAskStoredValueNotRemapped checks a value already in the store is used
// as-is even when it matches the name of a choice.
func TestAskStoredValueNotRemapped(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
env:
  a:
    REGION: eu
  b:
    REGION:
      $ask: Which region?
      $choices:
        eu: europe-west1
        us: us-central1
scripts:
  show:
    $cmd: echo ${REGION}
`)
	res, err := Invoke(context.Background(), doc, []string{"a", "b"}, []string{"show"}, nil, false, h.options()...)
	require.NoError(t, err)
	require.Equal(t, "eu", res.EnvVars["REGION"])
	require.Equal(t, []string{"echo eu"}, res.Outputs)
}

func TestReplayReproducesEnvVars(t *testing.T) {
	h := newHarness()
	prompter := providers.NewScenarioPrompter(map[string]string{"REGION": "eu"})
	first, err := Invoke(context.Background(), mustParse(t, askDoc), []string{"dev"}, []string{"deploy"}, nil, false,
		h.options(WithBatch(false), WithPrompter(prompter))...)
	require.NoError(t, err)
	require.Equal(t, []string{"REGION"}, prompter.Asked)
	require.Equal(t, map[string]string{"REGION": "eu"}, first.Answers)

	second, err := Replay(context.Background(), mustParse(t, askDoc), first, false, h.options()...)
	require.NoError(t, err)
	require.Equal(t, first.EnvVars, second.EnvVars)
	require.Equal(t, first.Outputs, second.Outputs)
	require.Len(t, prompter.Asked, 1, "replay must not prompt")
}

func TestAskChoicesFromScript(t *testing.T) {
	h := newHarness()
	h.local.run = func(spec providers.RunSpec) *providers.RunOutput {
		if strings.HasPrefix(spec.Script, "list") {
			return &providers.RunOutput{Stdout: []byte(`[{"id":"c1","title":"First"},{"id":"c2","title":"Second"}]`)}
		}
		return &providers.RunOutput{Stdout: []byte(spec.Script)}
	}
	doc := mustParse(t, `
env:
  dev:
    CLUSTER:
      $ask: Cluster?
      $choices:
        $cmd: list clusters
      $fieldsMapping:
        name: title
        value: id
scripts:
  show:
    $cmd: use ${CLUSTER}
`)
	res, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"show"}, map[string]string{"CLUSTER": "Second"}, false, h.options()...)
	require.NoError(t, err)
	require.Equal(t, "c2", res.EnvVars["CLUSTER"])
	require.Equal(t, []string{"use c2"}, res.Outputs)
}

func TestCommandFailedWithRemediation(t *testing.T) {
	h := newHarness()
	h.local.run = func(spec providers.RunSpec) *providers.RunOutput {
		return &providers.RunOutput{Stdout: []byte("partial\n"), Stderr: []byte("boom\n"), ExitCode: 2}
	}
	doc := mustParse(t, `
env:
  dev: {STAGE: dev}
scripts:
  migrate:
    $cmd: migrate ${STAGE}
    $errorMessage: "Run **reset ${STAGE}** first"
`)
	_, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"migrate"}, nil, false, h.options()...)
	var failed *errdefs.CommandFailedError
	require.ErrorAs(t, err, &failed)
	require.ErrorIs(t, err, errdefs.ErrCommandFailed)
	require.Equal(t, 2, failed.ExitCode)
	require.Equal(t, "partial", failed.Stdout)
	require.Equal(t, "boom", failed.Stderr)
	require.Equal(t, "Run **reset dev** first", failed.Remediation)
	require.Contains(t, h.stderr.String(), "reset")
}

func TestCommandMissingVariablesListsAll(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
scripts:
  go:
    $cmd: run ${zeta} ${alpha} ${mid}
`)
	_, err := Invoke(context.Background(), doc, nil, []string{"go"}, nil, false, h.options()...)
	var missing *errdefs.MissingVariablesError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"alpha", "mid", "zeta"}, missing.Names)
	require.Empty(t, h.local.specs)
}

func TestCommandRouting(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
scripts:
  local:
    $cmd: echo local
  box:
    $cmd: echo box
    $image: alpine:3
  far:
    $cmd: echo far
    $ssh: deploy@web1
  boxed-inherit:
    $cmd: echo inherit
    $image: alpine:3
    $inheritEnv: true
  local-clean:
    $cmd: echo clean
    $inheritEnv: false
`)
	ctx := context.Background()
	for _, p := range []string{"local", "box", "far", "boxed-inherit", "local-clean"} {
		_, err := Invoke(ctx, doc, nil, []string{p}, nil, false, h.options()...)
		require.NoError(t, err, p)
	}
	require.Len(t, h.local.specs, 2)
	require.True(t, h.local.specs[0].InheritEnv)
	require.False(t, h.local.specs[1].InheritEnv)

	require.Len(t, h.container.specs, 2)
	require.Equal(t, "alpine:3", h.container.specs[0].Image)
	require.False(t, h.container.specs[0].InheritEnv)
	require.True(t, h.container.specs[1].InheritEnv)

	require.Len(t, h.remote.specs, 1)
	require.Equal(t, "deploy@web1", h.remote.specs[0].Remote)
	require.False(t, h.remote.specs[0].InheritEnv)

	require.Equal(t, 1, h.probes, "container reachability is probed once")
}

func TestContainerUnavailableIsFatal(t *testing.T) {
	h := newHarness()
	h.probeErr = &errdefs.RuntimeUnavailableError{Engine: "docker", Reason: "daemon not running"}
	doc := mustParse(t, `
scripts:
  box:
    $cmd: echo box
    $image: alpine:3
`)
	for range 2 {
		_, err := Invoke(context.Background(), doc, nil, []string{"box"}, nil, false, h.options()...)
		require.ErrorIs(t, err, errdefs.ErrRuntimeUnavailable)
	}
	require.Equal(t, 1, h.probes)
	require.Empty(t, h.container.specs)
}

func TestEnvRefAndInternal(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
env:
  dev:
    HOST: example.com
    ALIAS:
      $ref: HOST
    STAMP:
      $internal: stamp
scripts:
  show:
    $resolve: ${ALIAS}@${STAMP}
`)
	var seen InternalCall
	stamp := func(_ context.Context, call InternalCall) (string, bool, error) {
		seen = call
		return "42", true, nil
	}
	res, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"show"}, map[string]string{"x": "y"}, false,
		h.options(WithCallback("stamp", stamp))...)
	require.NoError(t, err)
	require.Equal(t, "example.com", res.EnvVars["ALIAS"])
	require.Equal(t, "42", res.EnvVars["STAMP"])
	require.Equal(t, []string{"example.com@42"}, res.Outputs)
	require.Equal(t, "STAMP", seen.Key)
	require.Equal(t, "y", seen.Stdin["x"])
}

func TestUnknownReferences(t *testing.T) {
	h := newHarness()
	for _, src := range []string{
		"env:\n  dev:\n    ALIAS:\n      $ref: NOPE\n",
		"env:\n  dev:\n    X:\n      $internal: unregistered\n",
	} {
		_, _, err := ResolveEnvironment(context.Background(), mustParse(t, src), []string{"dev"}, nil, map[string]string{}, h.options()...)
		require.ErrorIs(t, err, errdefs.ErrUnknownReference)
	}
}

func TestLiteralKeysNotInterpolated(t *testing.T) {
	doc := mustParse(t, `
env:
  dev:
    TEMPLATE: "${NOT_A_VAR}"
`)
	store, _, err := ResolveEnvironment(context.Background(), doc, []string{"dev"}, nil, map[string]string{}, WithLiteralKeys("TEMPLATE"))
	require.NoError(t, err)
	v, _ := store.Lookup("TEMPLATE")
	require.Equal(t, "${NOT_A_VAR}", v)
}

func TestEnvNamesAppliedBeforeScript(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
env:
  creds: {USER_NAME: admin}
scripts:
  login:
    $cmd: login ${USER_NAME} ${PORT}
    $env:
      PORT: "8443"
    $envNames: [creds]
`)
	res, err := Invoke(context.Background(), doc, nil, []string{"login"}, nil, false, h.options()...)
	require.NoError(t, err)
	require.Equal(t, []string{"login admin 8443"}, res.Outputs)
}

func TestInvokeScriptNotFound(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, "scripts:\n  make: {$cmd: make}\n  manual: {$cmd: man}\n")
	_, err := Invoke(context.Background(), doc, nil, []string{"ma"}, nil, false, h.options()...)
	require.ErrorIs(t, err, errdefs.ErrAmbiguousReference)

	res, err := Invoke(context.Background(), doc, nil, []string{"mak"}, nil, false, h.options()...)
	require.NoError(t, err)
	require.Equal(t, []string{"make"}, res.ScriptPath)
}

func TestErrorsStayMatchable(t *testing.T) {
	h := newHarness()
	h.local.run = func(providers.RunSpec) *providers.RunOutput { return &providers.RunOutput{ExitCode: 1} }
	doc := mustParse(t, "scripts:\n  ci:\n    $jobs:\n      - $cmd: fail\n")
	_, err := Invoke(context.Background(), doc, nil, []string{"ci"}, nil, false, h.options()...)
	require.True(t, errors.Is(err, errdefs.ErrCommandFailed), "wrapped step errors must unwrap: %v", err)
}

func TestCommandFailedRedactsSecrets(t *testing.T) {
	h := newHarness()
	h.local.run = func(spec providers.RunSpec) *providers.RunOutput {
		return &providers.RunOutput{Stderr: []byte("login failed for hunter22\n"), ExitCode: 1}
	}
	doc := mustParse(t, `
env:
  dev:
    db_secret: hunter22
scripts:
  login:
    $cmd: login ${db_secret}
`)
	_, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"login"}, nil, false, h.options()...)
	var failed *errdefs.CommandFailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, "login failed for <REDACTED>", failed.Stderr)
	require.NotContains(t, err.Error(), "hunter22")
}

func TestTerminalResolveIsCaptured(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
env:
  dev: {STAGE: dev}
scripts:
  url:
    $resolve: https://${STAGE}.example.com
`)
	res, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"url"}, nil, true, h.options()...)
	require.NoError(t, err)
	require.Equal(t, []string{"https://dev.example.com"}, res.Outputs)
	require.Empty(t, h.local.specs)
}

func TestOutputsRedactSecrets(t *testing.T) {
	h := newHarness()
	doc := mustParse(t, `
env:
  dev:
    API_SECRET: t0ken-value
scripts:
  call:
    $cmd: curl -u ${API_SECRET} example.com
`)
	res, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"call"}, nil, false, h.options()...)
	require.NoError(t, err)
	require.Equal(t, []string{"curl -u <REDACTED> example.com"}, res.Outputs)
	require.Equal(t, "curl -u t0ken-value example.com", h.local.specs[0].Script)
}

func TestInteractivePrompterUsesEngineStdin(t *testing.T) {
	in := strings.NewReader("eu\n")
	e := New(mustParse(t, askDoc), nil, WithIO(in, &bytes.Buffer{}, &bytes.Buffer{}), WithBatch(false))
	p, ok := e.Prompter.(*providers.InteractivePrompter)
	require.True(t, ok, "prompter = %T", e.Prompter)
	require.Same(t, in, p.In)
}
