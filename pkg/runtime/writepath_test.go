package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/envrun/pkg/schema"
)

func TestSerialize(t *testing.T) {
	m := schema.MapOf("name", "web", "port", 8080)
	cases := []struct {
		target string
		want   string
	}{
		{"app.yaml", "name: web\nport: 8080\n"},
		{"app.yml", "name: web\nport: 8080\n"},
		{"app.toml", "name = 'web'\nport = 8080\n"},
		{"app.json", "{\n  \"name\": \"web\",\n  \"port\": 8080\n}\n"},
		{"app.conf", "{\n  \"name\": \"web\",\n  \"port\": 8080\n}\n"},
	}
	for _, c := range cases {
		got, err := Serialize(c.target, m)
		if err != nil {
			t.Errorf("Serialize(%s): %v", c.target, err)
			continue
		}
		if got != c.want {
			t.Errorf("Serialize(%s) =\n%q\nwant\n%q", c.target, got, c.want)
		}
	}
	if got, _ := Serialize("x.yaml", "raw text"); got != "raw text" {
		t.Errorf("string content = %q", got)
	}
	if got, _ := Serialize("x.json", 42); got != "42" {
		t.Errorf("scalar content = %q", got)
	}
}

func TestWriteScript(t *testing.T) {
	content := "hello $USER\n"
	got, err := WriteScript("/etc/my app/conf", &content, "600", "root:root")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"mkdir -p '/etc/my app'\n",
		"cat > '/etc/my app/conf' <<'ENVRUN_EOF_",
		"hello $USER\nENVRUN_EOF_",
		"chmod 600 '/etc/my app/conf'\n",
		"chown root:root '/etc/my app/conf'\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("script missing %q:\n%s", want, got)
		}
	}

	dir, err := WriteScript("/tmp/out", nil, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if dir != "set -e\nmkdir -p /tmp/out\n" {
		t.Errorf("directory script = %q", dir)
	}
}

func TestWritePathLocal(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh on PATH")
	}
	dir := t.TempDir()
	doc := mustParse(t, fmt.Sprintf(`
env:
  dev:
    DIR: %q
    NAME: web
scripts:
  config:
    $path: ${DIR}/conf/app.yaml
    $permissions: "600"
    $content:
      name: ${NAME}
      port: 8080
  cache:
    $path: ${DIR}/cache/tmp
`, dir))

	ctx := context.Background()
	res, err := Invoke(ctx, doc, []string{"dev"}, []string{"config"}, nil, false, WithHost(map[string]string{}), WithBatch(true))
	require.NoError(t, err)
	target := filepath.Join(dir, "conf", "app.yaml")
	require.Equal(t, []string{target}, res.Outputs)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "name: web\nport: 8080\n", string(data))
	info, err := os.Stat(target)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = Invoke(ctx, doc, []string{"dev"}, []string{"cache"}, nil, false, WithHost(map[string]string{}), WithBatch(true))
	require.NoError(t, err)
	info, err = os.Stat(filepath.Join(dir, "cache", "tmp"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLocalCommandEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh on PATH")
	}
	doc := mustParse(t, `
env:
  dev:
    GREETING: hello
    LOUD:
      $cmd: echo "${GREETING}" | tr a-z A-Z
scripts:
  greet:
    $cmd: printf '%s world\n\n' "$LOUD"
`)
	res, err := Invoke(context.Background(), doc, []string{"dev"}, []string{"greet"}, nil, false,
		WithHost(map[string]string{"PATH": os.Getenv("PATH")}), WithBatch(true))
	require.NoError(t, err)
	require.Equal(t, "HELLO", res.EnvVars["LOUD"])
	require.Equal(t, []string{"HELLO world"}, res.Outputs)
}
