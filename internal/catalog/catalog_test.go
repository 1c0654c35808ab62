package catalog

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"speech-coach-service/internal/models"
)

func TestDefault_HasThreeQuestionsPerCategory(t *testing.T) {
	c := Default()

	if c.Len() != 15 {
		t.Fatalf("expected 15 questions, got %d", c.Len())
	}

	categories := []models.Category{
		models.CategoryBusiness,
		models.CategoryPersonal,
		models.CategoryAcademic,
		models.CategoryCreative,
		models.CategoryCurrentEvents,
	}
	for _, cat := range categories {
		if got := len(c.ByCategory(cat)); got != 3 {
			t.Errorf("category %s: expected 3 questions, got %d", cat, got)
		}
	}

	for _, d := range []models.Difficulty{models.DifficultyBeginner, models.DifficultyIntermediate, models.DifficultyAdvanced} {
		if got := len(c.ByDifficulty(d)); got != 5 {
			t.Errorf("difficulty %s: expected 5 questions, got %d", d, got)
		}
	}
}

func TestGet(t *testing.T) {
	c := Default()

	q, err := c.Get("biz-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TimeLimitSeconds != 120 {
		t.Errorf("expected time limit 120, got %d", q.TimeLimitSeconds)
	}
	if len(q.Tips) != 3 {
		t.Errorf("expected 3 tips, got %d", len(q.Tips))
	}

	if _, err := c.Get("nope"); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestRandom_RespectsFilters(t *testing.T) {
	c := Default()
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		q, err := c.Random(r, models.CategoryCreative, models.DifficultyAdvanced)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Category != models.CategoryCreative || q.Difficulty != models.DifficultyAdvanced {
			t.Fatalf("filter not applied: %+v", q)
		}
	}

	if _, err := c.Random(r, "sports", ""); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions, got %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	valid := models.SpeakingQuestion{
		ID:               "q-1",
		Category:         models.CategoryBusiness,
		Difficulty:       models.DifficultyBeginner,
		Question:         "Pitch your product.",
		TimeLimitSeconds: 60,
	}

	tests := []struct {
		name   string
		mutate func(q *models.SpeakingQuestion)
	}{
		{"missing id", func(q *models.SpeakingQuestion) { q.ID = "" }},
		{"bad category", func(q *models.SpeakingQuestion) { q.Category = "sports" }},
		{"bad difficulty", func(q *models.SpeakingQuestion) { q.Difficulty = "expert" }},
		{"zero time limit", func(q *models.SpeakingQuestion) { q.TimeLimitSeconds = 0 }},
		{"missing text", func(q *models.SpeakingQuestion) { q.Question = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			if _, err := New([]models.SpeakingQuestion{q}); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if _, err := New([]models.SpeakingQuestion{valid, valid}); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	data := []byte(`- id: custom-1
  category: academic
  difficulty: intermediate
  question: "Explain recursion to a first-year student."
  time_limit: 90
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 question, got %d", c.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
