package providers

import (
	"slices"
	"testing"
)

func TestParseTarget(t *testing.T) {
	cases := []struct {
		in, user string
		want     Target
	}{
		{"deploy@web1", "", Target{User: "deploy", Host: "web1", Port: "22"}},
		{"deploy@web1:2222", "", Target{User: "deploy", Host: "web1", Port: "2222"}},
		{"web1", "ops", Target{User: "ops", Host: "web1", Port: "22"}},
		{"root@[::1]:22", "", Target{User: "root", Host: "::1", Port: "22"}},
	}
	for _, c := range cases {
		got, err := ParseTarget(c.in, c.user)
		if err != nil {
			t.Errorf("ParseTarget(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseTarget(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
	if _, err := ParseTarget("deploy@", ""); err == nil {
		t.Error("expected error for missing host")
	}
	if got := (Target{Host: "web1", Port: "22"}).Addr(); got != "web1:22" {
		t.Errorf("Addr = %q", got)
	}
}

func TestRemoteScript(t *testing.T) {
	got, err := RemoteScript([]string{"STAGE=dev", "MSG=two words"}, "echo $STAGE")
	if err != nil {
		t.Fatal(err)
	}
	want := "export STAGE=dev\nexport MSG='two words'\necho $STAGE\n"
	if got != want {
		t.Errorf("RemoteScript =\n%q\nwant\n%q", got, want)
	}
}

func TestExportable(t *testing.T) {
	got := exportable([]string{"GOOD=1", "bad-name=2", "PATH=/bin", "=x", "_OK=3"})
	want := []string{"GOOD=1", "_OK=3"}
	if !slices.Equal(got, want) {
		t.Errorf("exportable = %v, want %v", got, want)
	}
}
