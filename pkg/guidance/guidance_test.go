package guidance

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type fakeGenerator struct {
	text   string
	err    error
	system string
	user   string
}

func (f *fakeGenerator) GenerateText(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system = systemPrompt
	f.user = userPrompt
	return f.text, f.err
}

const wellFormed = `Here is some guidance for you:
{
  "verses": [
    {"reference": "Matthew 6:33", "text": "But seek first his kingdom and his righteousness, and all these things will be given to you as well.", "application": "Provision follows priority."}
  ],
  "prayer": "Father, provide for me as I seek new work. Amen.",
  "actionStep": "Write down three skills and share them with one contact today.",
  "encouragement": "Your worth is not your job."
}
Blessings.`

func TestGenerateSuccess(t *testing.T) {
	gen := &fakeGenerator{text: wellFormed}
	res := NewPipeline(gen, time.Second).Generate(context.Background(), Request{Situation: "I lost my job"})
	if res.Kind != Success || res.Degraded() {
		t.Fatalf("expected success, got %s (%v)", res.Kind, res.Reason)
	}
	if len(res.Guidance.Verses) < 1 {
		t.Fatal("expected at least one verse")
	}
	if res.Guidance.Prayer == "" || res.Guidance.ActionStep == "" {
		t.Fatalf("expected prayer and action step, got %+v", res.Guidance)
	}
	if gen.system != SystemPrompt() {
		t.Fatalf("unexpected system prompt %q", gen.system)
	}
	if !strings.Contains(gen.user, `User's situation: "I lost my job"`) {
		t.Fatalf("situation missing from prompt: %q", gen.user)
	}
}

func TestGenerateParseFallbackWithoutJSON(t *testing.T) {
	gen := &fakeGenerator{text: "I'm sorry, I can only answer in prose today."}
	res := NewPipeline(gen, 0).Generate(context.Background(), Request{Situation: "I lost my job"})
	if res.Kind != ParseFallback || res.Reason == nil {
		t.Fatalf("expected parse fallback, got %s", res.Kind)
	}
	if !reflect.DeepEqual(res.Guidance, ParseFailureFallback()) {
		t.Fatalf("guidance differs from parse fallback: %+v", res.Guidance)
	}
}

func TestGenerateParseFallbackOnInvalidShape(t *testing.T) {
	cases := []string{
		`{"verses": [`,
		`{"verses": [], "prayer": "Amen"}`,
		`{"verses": "John 3:16"}`,
	}
	for _, raw := range cases {
		res := NewPipeline(&fakeGenerator{text: raw}, 0).Generate(context.Background(), Request{Situation: "x"})
		if res.Kind != ParseFallback {
			t.Fatalf("%q: expected parse fallback, got %s", raw, res.Kind)
		}
	}
}

func TestGenerateCallFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream 529")}
	res := NewPipeline(gen, 0).Generate(context.Background(), Request{Situation: "I lost my job"})
	if res.Kind != CallFallback || !res.Degraded() {
		t.Fatalf("expected call fallback, got %s", res.Kind)
	}
	if !reflect.DeepEqual(res.Guidance, CallFailureFallback()) {
		t.Fatalf("guidance differs from call fallback: %+v", res.Guidance)
	}
	if res.Reason == nil || res.Reason.Error() != "upstream 529" {
		t.Fatalf("unexpected reason %v", res.Reason)
	}
}

func TestGenerateWithoutGenerator(t *testing.T) {
	res := NewPipeline(nil, 0).Generate(context.Background(), Request{Situation: "x"})
	if res.Kind != CallFallback {
		t.Fatalf("expected call fallback, got %s", res.Kind)
	}
}

func TestValidate(t *testing.T) {
	if err := (Request{Situation: "   "}).Validate(); !errors.Is(err, ErrSituationRequired) {
		t.Fatalf("expected ErrSituationRequired, got %v", err)
	}
	if err := (Request{Situation: "anxious about exams"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildPromptContext(t *testing.T) {
	prompt := BuildPrompt(Request{Situation: "exams", Mood: "anxious", RecentJournalContent: "slept badly"})
	want := `Context: The person is feeling anxious. Recent reflection: "slept badly" `
	if !strings.Contains(prompt, want) {
		t.Fatalf("prompt missing context line:\n%s", prompt)
	}
	if !strings.Contains(prompt, `"actionStep"`) {
		t.Fatal("prompt missing JSON format block")
	}

	bare := BuildPrompt(Request{Situation: "exams"})
	if strings.Contains(bare, "Context:") {
		t.Fatalf("unexpected context line:\n%s", bare)
	}
}

func TestParseDropsEmptyVerses(t *testing.T) {
	g, err := Parse(`{"verses":[{"reference":"","text":""},{"reference":"Psalm 23:1","text":"The Lord is my shepherd"}],"prayer":"Amen"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(g.Verses) != 1 || g.Verses[0].Reference != "Psalm 23:1" {
		t.Fatalf("unexpected verses %+v", g.Verses)
	}
}

func TestFallbacksAreIndependentCopies(t *testing.T) {
	a := ParseFailureFallback()
	a.Verses[0].Reference = "changed"
	if ParseFailureFallback().Verses[0].Reference != "Philippians 4:6-7" {
		t.Fatal("fallback payload was mutated through a returned copy")
	}
}
