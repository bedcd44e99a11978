// Package guidance turns a described situation into biblical guidance using
// a text generator, substituting a fixed payload whenever generation fails.
package guidance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"selah/pkg/ai"
)

// ErrSituationRequired is returned by Validate when the situation is blank.
var ErrSituationRequired = errors.New("guidance: situation is required")

// Request is the caller input for one guidance call.
type Request struct {
	Situation            string `json:"situation"`
	Mood                 string `json:"mood,omitempty"`
	RecentJournalContent string `json:"recentJournalContent,omitempty"`
}

// Validate reports whether req is well-formed.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Situation) == "" {
		return ErrSituationRequired
	}
	return nil
}

// Verse is one scripture reference with its application.
type Verse struct {
	Reference   string `json:"reference"`
	Text        string `json:"text"`
	Application string `json:"application"`
}

// Guidance is the structured payload returned to the user.
type Guidance struct {
	Verses        []Verse `json:"verses"`
	Prayer        string  `json:"prayer"`
	ActionStep    string  `json:"actionStep"`
	Encouragement string  `json:"encouragement"`
}

// Kind tags how a Result was produced.
type Kind int

const (
	Success Kind = iota
	ParseFallback
	CallFallback
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case ParseFallback:
		return "parse_fallback"
	case CallFallback:
		return "call_fallback"
	default:
		return "unknown"
	}
}

// Result always carries a usable Guidance. Reason is set for fallbacks.
type Result struct {
	Kind     Kind
	Guidance Guidance
	Reason   error
}

// Degraded reports whether the guidance is a fallback payload.
func (r Result) Degraded() bool {
	return r.Kind != Success
}

// Pipeline generates guidance with a TextGenerator.
type Pipeline struct {
	generator ai.TextGenerator
	timeout   time.Duration
}

// NewPipeline builds a Pipeline. A zero timeout leaves the deadline to ctx.
func NewPipeline(generator ai.TextGenerator, timeout time.Duration) *Pipeline {
	return &Pipeline{generator: generator, timeout: timeout}
}

// Generate runs one guidance request. The request must already be valid;
// every downstream failure is folded into a fallback Result.
func (p *Pipeline) Generate(ctx context.Context, req Request) Result {
	if p == nil || p.generator == nil {
		return Result{Kind: CallFallback, Guidance: CallFailureFallback(), Reason: errors.New("guidance generator not configured")}
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := p.generator.GenerateText(ctx, SystemPrompt(), BuildPrompt(req))
	if err != nil {
		return Result{Kind: CallFallback, Guidance: CallFailureFallback(), Reason: err}
	}
	parsed, err := Parse(raw)
	if err != nil {
		return Result{Kind: ParseFallback, Guidance: ParseFailureFallback(), Reason: err}
	}
	return Result{Kind: Success, Guidance: parsed}
}

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Parse extracts the outermost JSON object from raw model output and
// decodes it. Output without at least one verse is rejected.
func Parse(raw string) (Guidance, error) {
	candidate := jsonObject.FindString(raw)
	if candidate == "" {
		return Guidance{}, errors.New("no JSON object in model response")
	}
	var g Guidance
	if err := json.Unmarshal([]byte(candidate), &g); err != nil {
		return Guidance{}, fmt.Errorf("decode guidance: %w", err)
	}
	verses := g.Verses[:0]
	for _, v := range g.Verses {
		if strings.TrimSpace(v.Reference) == "" && strings.TrimSpace(v.Text) == "" {
			continue
		}
		verses = append(verses, v)
	}
	g.Verses = verses
	if len(g.Verses) == 0 {
		return Guidance{}, errors.New("guidance has no verses")
	}
	return g, nil
}
