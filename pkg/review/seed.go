package review

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/store"
)

// rulesFile is the on-disk shape of a review rules file.
type rulesFile struct {
	Rules []models.CodeReviewConfig `yaml:"rules"`
}

// SeedRules loads review rules from a YAML file into the rule store.
// Rules are matched to existing ones by title so reseeding on every
// boot updates rules in place instead of duplicating them. A missing
// file is not an error; an empty path disables seeding.
func SeedRules(ctx context.Context, rules store.CodeReviewConfigStore, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("Review rules file not found, skipping seed", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read review rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse review rules file %s: %w", path, err)
	}

	existing, err := rules.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list review rules: %w", err)
	}
	byTitle := make(map[string]string, len(existing))
	for _, cfg := range existing {
		byTitle[cfg.Title] = cfg.ID
	}

	for i := range file.Rules {
		rule := file.Rules[i]
		if rule.Title == "" {
			return fmt.Errorf("review rule %d in %s has no title", i, path)
		}
		if id, ok := byTitle[rule.Title]; ok && rule.ID == "" {
			rule.ID = id
		}
		if err := rules.Save(ctx, &rule); err != nil {
			return fmt.Errorf("failed to save review rule %q: %w", rule.Title, err)
		}
	}

	slog.Info("Seeded review rules", "path", path, "count", len(file.Rules))
	return nil
}
