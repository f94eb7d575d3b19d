package review

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedai/typedai/pkg/store/memory"
)

const seedYaml = `rules:
  - title: No console.log
    enabled: true
    description: use the project logger
    version: "2"
    file_extensions:
      include: [".ts", ".tsx"]
    requires:
      text: ["console.log"]
  - title: Error wrapping
    enabled: true
    description: wrap errors with context
    file_extensions:
      include: [".go"]
`

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSeedRules(t *testing.T) {
	ctx := context.Background()
	rules := memory.NewReviewConfigStore()
	path := writeRulesFile(t, seedYaml)

	require.NoError(t, SeedRules(ctx, rules, path))

	list, err := rules.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Error wrapping", list[0].Title)
	assert.Equal(t, "No console.log", list[1].Title)
	assert.Equal(t, []string{".ts", ".tsx"}, list[1].FileExtensions.Include)
	assert.Equal(t, []string{"console.log"}, list[1].Requires.Text)
	assert.Equal(t, "2", list[1].Version)

	t.Run("reseeding updates in place", func(t *testing.T) {
		updated := `rules:
  - title: No console.log
    enabled: false
    description: changed
`
		require.NoError(t, SeedRules(ctx, rules, writeRulesFile(t, updated)))

		list, err := rules.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "changed", list[1].Description)
		assert.False(t, list[1].Enabled)
	})
}

func TestSeedRulesMissingFile(t *testing.T) {
	rules := memory.NewReviewConfigStore()
	require.NoError(t, SeedRules(context.Background(), rules, filepath.Join(t.TempDir(), "absent.yaml")))
	list, err := rules.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSeedRulesDisabled(t *testing.T) {
	require.NoError(t, SeedRules(context.Background(), memory.NewReviewConfigStore(), ""))
}

func TestSeedRulesRejectsUntitled(t *testing.T) {
	rules := memory.NewReviewConfigStore()
	err := SeedRules(context.Background(), rules, writeRulesFile(t, "rules:\n  - description: nameless\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no title")
}

func TestSeedRulesRejectsMalformedYaml(t *testing.T) {
	rules := memory.NewReviewConfigStore()
	err := SeedRules(context.Background(), rules, writeRulesFile(t, "rules: [broken"))
	require.Error(t, err)
}
