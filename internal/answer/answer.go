// Package answer wires extraction, filtering, aggregation, generation and the
// guard into a single question-answering call.
//
// The aggregate is computed locally while the model phrases its answer. The
// guard then decides whether the phrasing is kept. A model that is missing,
// slow or failing never fails the request; the grounded sentence is used
// instead.
package answer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/canvass/internal/aggregate"
	"github.com/hurttlocker/canvass/internal/contact"
	"github.com/hurttlocker/canvass/internal/extract"
	"github.com/hurttlocker/canvass/internal/filter"
	"github.com/hurttlocker/canvass/internal/guard"
	"github.com/hurttlocker/canvass/internal/llm"
)

// Model finish reasons set by the engine rather than a provider.
const (
	FinishUnavailable = "unavailable"
	FinishError       = "error"
	FinishNoRecords   = "no_records"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 30 * time.Second

// DefaultMaxTokens caps generated answers.
const DefaultMaxTokens = 512

// ErrNoSource is returned by Ask when the engine has no record source.
var ErrNoSource = errors.New("answer: no record source configured")

// RecordSource supplies the working set. The whole set is filtered in memory.
type RecordSource interface {
	Records(ctx context.Context) ([]contact.Record, error)
}

// Engine answers questions over a RecordSource.
type Engine struct {
	source   RecordSource
	provider llm.Provider
	guard    *guard.Guard
	logger   *zap.Logger
	timeout  time.Duration
	model    string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithGuard replaces the default guard, e.g. one built from a phrase file.
func WithGuard(g *guard.Guard) Option {
	return func(e *Engine) {
		if g != nil {
			e.guard = g
		}
	}
}

// WithTimeout bounds each generation call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithModel overrides the provider's default model per request.
func WithModel(name string) Option {
	return func(e *Engine) { e.model = strings.TrimSpace(name) }
}

// WithClock sets the clock used for relative dates and turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an answer engine. provider may be nil, in which case
// every answer is the grounded one.
func NewEngine(source RecordSource, provider llm.Provider, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		provider: provider,
		guard:    guard.Default(),
		logger:   zap.NewNop(),
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request is one question. Query fields, when set, override what extraction
// finds in Question.
type Request struct {
	Question     string
	Query        *contact.Query
	Conversation *Conversation
}

// Result is the trusted answer plus everything it was derived from.
type Result struct {
	Answer       string                 `json:"answer"`
	FinishReason string                 `json:"finishReason"`
	Substituted  bool                   `json:"substituted"`
	Reasons      []guard.Reason         `json:"reasons,omitempty"`
	ModelFinish  string                 `json:"modelFinish"`
	Query        contact.Query          `json:"query"`
	Extraction   extract.Result         `json:"extraction"`
	Metrics      aggregate.VoterMetrics `json:"metrics"`
	Scalar       int                    `json:"scalar"`
	ScalarLabel  string                 `json:"scalarLabel"`
	Matched      int                    `json:"matched"`
	Relaxed      bool                   `json:"relaxed"`
	Model        string                 `json:"model,omitempty"`
	Conversation string                 `json:"conversation,omitempty"`
	Duration     time.Duration          `json:"duration"`
	LLMTime      time.Duration          `json:"llmTime"`
}

// Ask answers one question. It only fails when the record source is missing
// or cannot be read.
func (e *Engine) Ask(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if e.source == nil {
		return nil, ErrNoSource
	}

	// 1. Load the working set
	records, err := e.source.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	// 2. Interpret the question
	extraction := extract.New(extract.WithClock(e.now), extract.WithTeams(teamNames(records)...)).Extract(req.Question)
	q := extraction.Query
	if req.Query != nil {
		q = q.Merge(*req.Query)
	}
	q.Tactic = contact.CanonicalTactic(q.Tactic)

	// 3. Filter, keeping the person-free set for not-found recovery
	outcome := filter.Apply(records, q)
	candidates := records
	if q.HasPerson() {
		candidates = filter.Filter(records, q.WithoutPerson())
	}

	// 4. Aggregate and generate in parallel
	prompt := buildPrompt(req.Question, q, outcome.Records)
	var history []llm.Message
	if req.Conversation != nil {
		history = req.Conversation.History()
	}

	var (
		metrics   aggregate.VoterMetrics
		scalar    int
		generated guard.Generated
		llmTime   time.Duration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		metrics = aggregate.Aggregate(outcome.Records)
		scalar = aggregate.ScalarTotal(outcome.Records, q.ResultType)
		return nil
	})
	g.Go(func() error {
		llmStart := time.Now()
		generated = e.generate(gctx, prompt, history, len(outcome.Records))
		llmTime = time.Since(llmStart)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("answering: %w", err)
	}

	// 5. Guard
	verdict := e.guard.Validate(guard.Input{
		Generated:  generated,
		Records:    outcome.Records,
		Prompt:     req.Question,
		Query:      q,
		Candidates: candidates,
		Universe:   records,
	})
	if verdict.Substituted {
		e.logger.Info("generated answer replaced",
			zap.String("model_finish", generated.FinishReason),
			zap.Any("reasons", verdict.Reasons),
			zap.Int("matched", len(outcome.Records)),
		)
	}

	label := ""
	if m, ok := aggregate.LookupMetric(q.ResultType); ok {
		label = m.Label()
	}

	result := &Result{
		Answer:       verdict.Text,
		FinishReason: verdict.FinishReason,
		Substituted:  verdict.Substituted,
		Reasons:      verdict.Reasons,
		ModelFinish:  generated.FinishReason,
		Query:        q,
		Extraction:   extraction,
		Metrics:      metrics,
		Scalar:       scalar,
		ScalarLabel:  label,
		Matched:      len(outcome.Records),
		Relaxed:      outcome.Relaxed,
		Model:        e.modelName(),
		LLMTime:      llmTime,
	}

	if req.Conversation != nil {
		req.Conversation.Append(Turn{Question: req.Question, Answer: verdict.Text, At: e.now()})
		result.Conversation = req.Conversation.ID()
	}

	result.Duration = time.Since(start)
	e.logger.Debug("answered",
		zap.String("question", req.Question),
		zap.Int("records", len(records)),
		zap.Int("matched", result.Matched),
		zap.Bool("relaxed", result.Relaxed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// generate asks the provider to phrase the answer. Failures become an empty
// text with an engine finish reason so the guard substitutes.
func (e *Engine) generate(ctx context.Context, prompt string, history []llm.Message, matched int) guard.Generated {
	if e.provider == nil {
		return guard.Generated{FinishReason: FinishUnavailable}
	}
	if matched == 0 {
		return guard.Generated{FinishReason: FinishNoRecords}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	completion, err := e.provider.Complete(ctx, prompt, llm.CompletionOpts{
		MaxTokens: DefaultMaxTokens,
		Model:     e.model,
		System:    systemPrompt,
		History:   history,
	})
	if err != nil {
		e.logger.Warn("generation failed", zap.String("provider", e.provider.Name()), zap.Error(err))
		return guard.Generated{FinishReason: FinishError}
	}
	return guard.Generated{Text: completion.Text, FinishReason: completion.FinishReason}
}

func (e *Engine) modelName() string {
	if e.provider == nil {
		return ""
	}
	if e.model != "" {
		return e.model
	}
	return e.provider.Name()
}

// teamNames returns the distinct non-empty teams in records, sorted.
func teamNames(records []contact.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		t := strings.TrimSpace(r.Team)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
