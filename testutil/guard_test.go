package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"internal", InternalImportForbidden, "custodycore/internal/core", true},
		{"internal pkg", InternalImportForbidden, "custodycore/pkg/domain", false},
		{"core", CoreImportForbidden, "custodycore/internal/core", true},
		{"core prefix only", CoreImportForbidden, "custodycore/internal/corex", false},
		{"gin", TransportImportForbidden, "github.com/gin-gonic/gin", true},
		{"cors", TransportImportForbidden, "github.com/gin-contrib/cors", true},
		{"httpapi", TransportImportForbidden, "custodycore/internal/adapters/httpapi", true},
		{"net/http", TransportImportForbidden, "net/http", true},
		{"decimal", TransportImportForbidden, "github.com/shopspring/decimal", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("%s: pred(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
	combined := AnyOf(CoreImportForbidden, TransportImportForbidden)
	if !combined("net/http") || !combined("custodycore/internal/core") || combined("fmt") {
		t.Fatalf("AnyOf combined predicates incorrectly")
	}
}

func writePkg(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := writePkg(t, map[string]string{
		"x.go":      "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}\n",
		"x_test.go": "package tmp\nimport \"net/http\"\nvar _ = http.MethodGet\n",
	})
	AssertNoDirectImports(t, dir, TransportImportForbidden, "tests may import anything")
}

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, args ...any) { c.msg = fmt.Sprintf(format, args...) }

func TestDirectViolationsReported(t *testing.T) {
	dir := writePkg(t, map[string]string{
		"x.go": "package tmp\nimport (\n\t\"net/http\"\n\t\"fmt\"\n)\nvar _ = http.MethodGet\nvar _ = fmt.Sprint\n",
	})
	viols, err := directImportViolations(dir, TransportImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.HasPrefix(viols[0], "net/http") {
		t.Fatalf("unexpected violations %v", viols)
	}
	var c captureFatal
	failIfDirectViolations(&c, "no transports", viols)
	if !strings.Contains(c.msg, "no transports") {
		t.Fatalf("expected reason in failure, got %q", c.msg)
	}
}

func TestDirectViolationsMissingDir(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
