package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteTestsCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	tests := []GeneratedTest{
		{FilePath: "tests/unit/test_new.py", Content: "def test_ok():\n    assert True\n"},
	}

	written := writeTests(dir, tests)
	require.Len(t, written, 1)

	content, err := os.ReadFile(filepath.Join(dir, "tests/unit/test_new.py"))
	require.NoError(t, err)
	require.Contains(t, string(content), "def test_ok")
}

func TestSourceRootsDeduplicatesTopLevelDirs(t *testing.T) {
	roots := sourceRoots([]string{"pkg/a.go", "pkg/b.go", "cmd/main.go", "README.md"})
	require.ElementsMatch(t, []string{"pkg", "cmd", "README.md"}, roots)
}

func TestSourceRootsEmptyInput(t *testing.T) {
	require.Empty(t, sourceRoots(nil))
}
