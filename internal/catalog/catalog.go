// Package catalog provides the static bank of speaking prompts.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"speech-coach-service/internal/models"
)

//go:embed questions.yaml
var defaultQuestions []byte

var (
	ErrNoQuestions     = errors.New("no questions match the requested filters")
	ErrUnknownQuestion = errors.New("unknown question")
)

// Catalog is an immutable, ordered set of speaking questions.
type Catalog struct {
	questions []models.SpeakingQuestion
	byID      map[string]int
}

// Default returns the built-in catalog. It panics if the embedded data is
// invalid, which can only happen at build time.
func Default() *Catalog {
	c, err := Parse(defaultQuestions)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded questions are invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML list of questions.
func Parse(data []byte) (*Catalog, error) {
	var qs []models.SpeakingQuestion
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&qs); err != nil {
		return nil, err
	}
	return New(qs)
}

// New validates and indexes a list of questions.
func New(qs []models.SpeakingQuestion) (*Catalog, error) {
	c := &Catalog{
		questions: make([]models.SpeakingQuestion, 0, len(qs)),
		byID:      make(map[string]int, len(qs)),
	}
	for i, q := range qs {
		if q.ID == "" {
			return nil, fmt.Errorf("question %d: missing id", i)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("question %s: duplicate id", q.ID)
		}
		if !q.Category.Valid() {
			return nil, fmt.Errorf("question %s: invalid category %q", q.ID, q.Category)
		}
		if !q.Difficulty.Valid() {
			return nil, fmt.Errorf("question %s: invalid difficulty %q", q.ID, q.Difficulty)
		}
		if q.TimeLimitSeconds <= 0 {
			return nil, fmt.Errorf("question %s: time limit must be positive, got %d", q.ID, q.TimeLimitSeconds)
		}
		if q.Question == "" {
			return nil, fmt.Errorf("question %s: missing text", q.ID)
		}
		c.byID[q.ID] = len(c.questions)
		c.questions = append(c.questions, q)
	}
	return c, nil
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// All returns every question in catalog order.
func (c *Catalog) All() []models.SpeakingQuestion {
	return append([]models.SpeakingQuestion(nil), c.questions...)
}

// Get looks up a question by id.
func (c *Catalog) Get(id string) (models.SpeakingQuestion, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.SpeakingQuestion{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	return c.questions[i], nil
}

// ByCategory returns the questions in a category, in catalog order.
func (c *Catalog) ByCategory(category models.Category) []models.SpeakingQuestion {
	return c.Filter(category, "")
}

// ByDifficulty returns the questions of a difficulty, in catalog order.
func (c *Catalog) ByDifficulty(difficulty models.Difficulty) []models.SpeakingQuestion {
	return c.Filter("", difficulty)
}

// Filter returns the questions matching both filters. An empty filter matches
// everything.
func (c *Catalog) Filter(category models.Category, difficulty models.Difficulty) []models.SpeakingQuestion {
	var out []models.SpeakingQuestion
	for _, q := range c.questions {
		if category != "" && q.Category != category {
			continue
		}
		if difficulty != "" && q.Difficulty != difficulty {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Random picks a question uniformly among those matching the filters.
func (c *Catalog) Random(r *rand.Rand, category models.Category, difficulty models.Difficulty) (models.SpeakingQuestion, error) {
	candidates := c.Filter(category, difficulty)
	if len(candidates) == 0 {
		return models.SpeakingQuestion{}, ErrNoQuestions
	}
	return candidates[r.Intn(len(candidates))], nil
}
