package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyCacheImportsBlob keeps object storage behind the correlation
// cache. Everything else reaches stored matrices through cache.Cache.
func TestOnlyCacheImportsBlob(t *testing.T) {
	const (
		blobPkg  = "github.com/nvandessel/depcorr/internal/blob"
		allowed  = "github.com/nvandessel/depcorr/internal/cache"
		patterns = "github.com/nvandessel/depcorr/..."
	)

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, patterns)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	var violations []string
	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		path := strings.TrimSuffix(pkg.PkgPath, "_test")
		if path == blobPkg || path == allowed {
			continue
		}
		if _, ok := pkg.Imports[blobPkg]; ok && !seen[pkg.PkgPath] {
			seen[pkg.PkgPath] = true
			violations = append(violations, pkg.PkgPath)
		}
	}

	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("forbidden import of %s in %s", blobPkg, v)
	}
}
