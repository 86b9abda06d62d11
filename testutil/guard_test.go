package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestImportPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"internal", InternalImportForbidden, "opensilex/internal/core", true},
		{"internal nested", InternalImportForbidden, "example.com/mod/internal/x", true},
		{"internal pkg", InternalImportForbidden, "opensilex/pkg/domain", false},
		{"third party", ThirdPartyImportForbidden, "go.uber.org/zap", true},
		{"stdlib", ThirdPartyImportForbidden, "net/url", false},
		{"module", ThirdPartyImportForbidden, "opensilex/pkg/domain", false},
		{"backend", BackendImportForbidden, "opensilex/internal/infra/graph/sqlite", true},
		{"blob core", BackendImportForbidden, "opensilex/internal/blob/core", false},
		{"any of", AnyOf(ThirdPartyImportForbidden, InternalImportForbidden), "opensilex/internal/blob", true},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("%s: pred(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
}

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) {
	r.msg = format
	if len(args) > 1 {
		if s, ok := args[1].(string); ok {
			r.msg = s
		}
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	src := "package x\n\nimport (\n\t\"fmt\"\n\t\"go.uber.org/zap\"\n)\n\nvar _ = fmt.Sprint\nvar _ = zap.L\n"
	if err := os.WriteFile(filepath.Join(dir, "x.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package x\n\nimport _ \"example.com/ignored\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, ThirdPartyImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.HasPrefix(viols[0], "go.uber.org/zap") {
		t.Fatalf("unexpected violations %v", viols)
	}
	r := &recorder{}
	failIfDirectViolations(r, "reason", viols)
	if !strings.Contains(r.msg, "go.uber.org/zap") {
		t.Fatalf("expected violation in failure message, got %q", r.msg)
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), ThirdPartyImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
