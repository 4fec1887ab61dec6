package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/goliatone/go-recipe-cache/recipe"
	"github.com/goliatone/go-recipe-cache/storage/memory"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadRecipes loads a JSON array of recipes in the read model shape and
// converts them to storage rows.
func LoadRecipes(t *testing.T, path string) []recipe.Record {
	t.Helper()

	var recipes []recipe.Recipe
	LoadFixtureJSON(t, path, &recipes)

	records := make([]recipe.Record, 0, len(recipes))
	for _, rc := range recipes {
		records = append(records, recipe.RecordFromRecipe(rc))
	}
	return records
}

// NewMemoryStore returns an in-memory store seeded from a recipe fixture.
func NewMemoryStore(t *testing.T, path string) *memory.Store {
	t.Helper()
	return memory.New(LoadRecipes(t, path)...)
}

// PageIDs returns the ids of a page in order.
func PageIDs(page recipe.Page[recipe.Recipe]) []string {
	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// AssertGolden compares actual with testdata/golden/<name>.golden. Run the
// tests with -update to rewrite golden files.
func AssertGolden(t *testing.T, name string, actual []byte) {
	t.Helper()
	g := goldie.New(t, goldie.WithFixtureDir(GoldenDir))
	g.Assert(t, name, actual)
}

// GoldenDir holds golden files relative to the test package directory.
var GoldenDir = filepath.Join("testdata", "golden")

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(name string) string {
	return filepath.Join(GoldenDir, name+".golden")
}
