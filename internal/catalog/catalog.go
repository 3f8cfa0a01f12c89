// Package catalog serves the static challenge and quiz question content.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultContent []byte

// DefaultQuestionLimit matches what the quiz screen asks for
const DefaultQuestionLimit = 10

type file struct {
	Challenges []models.Challenge    `yaml:"challenges"`
	Questions  []models.QuizQuestion `yaml:"questions"`
}

// Catalog is an immutable in-memory catalog loaded once at startup
type Catalog struct {
	challenges []models.Challenge
	byID       map[string]int
	questions  []models.QuizQuestion
	answers    map[string]int
}

var _ progression.Catalog = (*Catalog)(nil)

// Default returns the built-in catalog
func Default() (*Catalog, error) {
	return Parse(defaultContent)
}

// Load reads a catalog file. An empty path selects the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		challenges: f.Challenges,
		byID:       make(map[string]int, len(f.Challenges)),
		questions:  f.Questions,
		answers:    make(map[string]int, len(f.Questions)),
	}

	for i, ch := range f.Challenges {
		if ch.ID == "" {
			return nil, fmt.Errorf("challenge %d has no id", i)
		}
		if _, dup := c.byID[ch.ID]; dup {
			return nil, fmt.Errorf("duplicate challenge id %q", ch.ID)
		}
		if !ch.Category.Valid() {
			return nil, fmt.Errorf("challenge %q has unknown category %q", ch.ID, ch.Category)
		}
		if ch.PointsRequired < 0 || ch.PointsReward < 0 {
			return nil, fmt.Errorf("challenge %q has negative points", ch.ID)
		}
		c.byID[ch.ID] = i
	}

	for i, q := range f.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question %d has no id", i)
		}
		if _, dup := c.answers[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return nil, fmt.Errorf("question %q answer index %d out of range", q.ID, q.CorrectAnswer)
		}
		c.answers[q.ID] = q.CorrectAnswer
	}

	return c, nil
}

func (c *Catalog) Challenges(ctx context.Context) ([]models.Challenge, error) {
	out := make([]models.Challenge, len(c.challenges))
	copy(out, c.challenges)
	return out, nil
}

func (c *Catalog) Challenge(ctx context.Context, id string) (*models.Challenge, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, progression.ErrChallengeNotFound
	}
	ch := c.challenges[i]
	return &ch, nil
}

// Questions returns up to limit questions, optionally filtered by category, in catalog order
func (c *Catalog) Questions(ctx context.Context, category string, limit int) ([]models.QuizQuestion, error) {
	if limit <= 0 {
		limit = DefaultQuestionLimit
	}
	category = strings.TrimSpace(category)

	out := []models.QuizQuestion{}
	for _, q := range c.questions {
		if category != "" && q.Category != category {
			continue
		}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *Catalog) AnswerKey(ctx context.Context, ids []string) (map[string]int, error) {
	key := make(map[string]int, len(ids))
	for _, id := range ids {
		if answer, ok := c.answers[id]; ok {
			key[id] = answer
		}
	}
	return key, nil
}
