package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Turn is one line of conversation as the pipeline sees it.
type Turn struct {
	Speaker string
	Role    string
	Text    string
	IsSelf  bool
}

// Label renders the speaker as it appears in prompts: "Speaker 1 (Customer)".
func (t Turn) Label() string {
	switch {
	case t.IsSelf:
		return t.Speaker + " (You)"
	case t.Role != "" && t.Role != "unknown":
		return t.Speaker + " (" + strings.ToUpper(t.Role[:1]) + t.Role[1:] + ")"
	default:
		return t.Speaker
	}
}

// Persona is the operator-selected assistant profile.
type Persona struct {
	ID           string
	Instructions string
	// DocumentIDs scope retrieval to the persona's knowledge base.
	DocumentIDs []string
}

// Request is one suggestion attempt.
type Request struct {
	Utterance Turn
	// Context holds finalized turns before Utterance, oldest first.
	Context []Turn
	Persona Persona
}

// Passage is one retrieved knowledge-base excerpt.
type Passage struct {
	Text        string
	SourceLabel string
	Score       float64
}

// Retriever searches the knowledge base. It may return no passages; the
// pipeline applies no threshold of its own.
type Retriever interface {
	Search(ctx context.Context, query string, scope []string, limit int) ([]Passage, error)
}

// Completion is the provider-neutral completion call.
type Completion struct {
	System string
	Prompt string
}

// Completer calls a completion provider.
type Completer interface {
	Name() string
	Complete(ctx context.Context, c Completion) (string, error)
}

// Config tunes the pipeline.
type Config struct {
	// ContextTurns is how many prior turns go into the prompt. Default: 5.
	ContextTurns int
	// RetrievalLimit is passed to the retriever. Default: 4.
	RetrievalLimit int
}

// Dependencies are the pipeline's collaborators. Retriever may be nil.
type Dependencies struct {
	Retriever Retriever
	Completer Completer
	Logger    *slog.Logger
	Tracer    trace.Tracer
}

// Pipeline runs retrieval, completion and the suggest/silent parse.
type Pipeline struct {
	cfg       Config
	retriever Retriever
	completer Completer
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewPipeline builds a pipeline. A completer is required.
func NewPipeline(cfg Config, deps Dependencies) (*Pipeline, error) {
	if deps.Completer == nil {
		return nil, errors.New("suggest: completer is required")
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = 5
	}
	if cfg.RetrievalLimit <= 0 {
		cfg.RetrievalLimit = 4
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/vango-go/vai-wingman/pkg/core/suggest")
	}
	return &Pipeline{
		cfg:       cfg,
		retriever: deps.Retriever,
		completer: deps.Completer,
		logger:    deps.Logger,
		tracer:    deps.Tracer,
	}, nil
}

// Provider names the completion provider, which keys the cooldown.
func (p *Pipeline) Provider() string { return p.completer.Name() }

// Run produces a Result for req. Retrieval failures are logged and ignored.
// A completion failure is returned; callers treat it as no suggestion.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "suggest.Pipeline.Run")
	defer span.End()

	qtype := Classify(req.Utterance.Text)
	span.SetAttributes(
		attribute.String("suggest.question_type", string(qtype)),
		attribute.String("suggest.provider", p.completer.Name()),
	)

	passages := p.retrieve(ctx, req)
	span.SetAttributes(attribute.Int("suggest.passages", len(passages)))

	raw, err := p.completer.Complete(ctx, Completion{
		System: BuildSystem(req.Persona, qtype),
		Prompt: BuildPrompt(req, p.cfg.ContextTurns, passages),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return Silent(), fmt.Errorf("completion: %w", err)
	}

	res := Parse(raw)
	if res.Kind == KindSuggest {
		res.QuestionType = qtype
		for _, ps := range passages {
			res.Sources = append(res.Sources, ps.SourceLabel)
		}
	}
	span.SetAttributes(attribute.String("suggest.result", res.Kind.String()))
	return res, nil
}

func (p *Pipeline) retrieve(ctx context.Context, req Request) []Passage {
	if p.retriever == nil {
		return nil
	}
	passages, err := p.retriever.Search(ctx, req.Utterance.Text, req.Persona.DocumentIDs, p.cfg.RetrievalLimit)
	if err != nil {
		p.logger.Warn("retrieval failed; continuing without context", "error", err)
		return nil
	}
	return passages
}
