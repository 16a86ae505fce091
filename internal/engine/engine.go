package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tutorstack/tutord/internal/answer"
	"github.com/tutorstack/tutord/internal/composer"
	"github.com/tutorstack/tutord/internal/profile"
	"github.com/tutorstack/tutord/internal/provider"
	"github.com/tutorstack/tutord/internal/retrieval"
	"github.com/tutorstack/tutord/internal/storage"
	"github.com/tutorstack/tutord/internal/tooltip"
	"github.com/tutorstack/tutord/internal/usage"
)

// ErrEmptyQuery is returned when a query contains no non-whitespace content.
var ErrEmptyQuery = errors.New("empty query")

// CompletionClient is the slice of provider.Client the engine needs.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (provider.Completion, error)
}

// Retriever finds relevant course material for a query.
// Implemented by retrieval.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Chunk, error)
}

// InteractionStore records completed queries.
// Implemented by storage.Store.
type InteractionStore interface {
	SaveInteraction(in storage.Interaction) error
}

// Metadata describes how one answer was produced.
type Metadata struct {
	Sources         int    `json:"sources"`
	ResponseTimeMs  int64  `json:"response_time_ms"`
	EstimatedTokens int    `json:"estimated_tokens"`
	ContextLength   int    `json:"context_length"`
	UserID          string `json:"user_id"`
}

// Result is a fully processed answer.
type Result struct {
	Answer   string            `json:"answer"`
	Sections answer.Sections   `json:"sections"`
	Tooltips []tooltip.Tooltip `json:"tooltips"`
	Issues   []string          `json:"quality_issues"`
	Metadata Metadata          `json:"metadata"`
}

// Engine runs the full query pipeline: retrieve context, compose the prompt,
// call the provider, post-process the answer, extract tooltips, and record
// usage. Only the provider call is fatal; everything around it degrades.
type Engine struct {
	retriever Retriever
	client    CompletionClient
	composer  *composer.Composer
	processor *answer.Processor
	tooltips  *tooltip.Manager
	profiles  *profile.Manager
	tracker   *usage.Tracker
	store     InteractionStore // may be nil
	topK      int
	logger    *slog.Logger
}

// Options carries the engine's collaborators. Store may be nil to skip
// interaction recording.
type Options struct {
	Retriever Retriever
	Client    CompletionClient
	Composer  *composer.Composer
	Processor *answer.Processor
	Tooltips  *tooltip.Manager
	Profiles  *profile.Manager
	Tracker   *usage.Tracker
	Store     InteractionStore
	TopK      int
	Logger    *slog.Logger
}

// New assembles an Engine.
func New(opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		retriever: opts.Retriever,
		client:    opts.Client,
		composer:  opts.Composer,
		processor: opts.Processor,
		tooltips:  opts.Tooltips,
		profiles:  opts.Profiles,
		tracker:   opts.Tracker,
		store:     opts.Store,
		topK:      opts.TopK,
		logger:    opts.Logger,
	}
}

// Ready reports whether the engine can serve queries.
func (e *Engine) Ready() bool {
	return e.client != nil && e.retriever != nil
}

// Ask answers one query for one user. Retrieval and persistence failures
// degrade (empty context, lost record); a provider failure still counts
// toward the usage totals and is returned so callers can map ErrUnavailable.
func (e *Engine) Ask(ctx context.Context, query, userID string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}
	if userID == "" {
		userID = profile.DefaultUserID
	}
	started := time.Now()

	prof, err := e.profiles.Get(userID)
	if err != nil {
		e.logger.Warn("profile load failed, using defaults", "user_id", userID, "error", err)
		prof = profile.Defaults()
	}

	chunks, err := e.retriever.Retrieve(ctx, query, e.topK)
	if err != nil {
		e.logger.Warn("retrieval failed, answering without context", "error", err)
		chunks = nil
	}

	prompt := e.composer.Build(prof, chunks, query)

	completion, err := e.client.Complete(ctx, prompt.Text, prompt.MaxTokens)
	if err != nil {
		e.tracker.RecordFailure()
		return Result{}, fmt.Errorf("completing query: %w", err)
	}

	processed := e.processor.Process(completion.Text)

	var contextText strings.Builder
	for i, ch := range chunks {
		if i > 0 {
			contextText.WriteString("\n")
		}
		contextText.WriteString(ch.Text)
	}
	tips := e.tooltips.Extract(processed.CleanText, processed.Sections.ToolReferences, contextText.String())

	elapsed := time.Since(started)
	clean := len(processed.Issues) == 0
	e.tracker.Record(completion.Tokens, elapsed, clean)

	res := Result{
		Answer:   processed.CleanText,
		Sections: processed.Sections,
		Tooltips: tips,
		Issues:   processed.Issues,
		Metadata: Metadata{
			Sources:         len(chunks),
			ResponseTimeMs:  elapsed.Milliseconds(),
			EstimatedTokens: completion.Tokens,
			ContextLength:   prompt.ContextLength,
			UserID:          userID,
		},
	}

	e.recordInteraction(userID, query, res)

	e.logger.Info("query answered",
		"user_id", userID,
		"sources", len(chunks),
		"tokens", completion.Tokens,
		"duration_ms", elapsed.Milliseconds(),
		"clean", clean)

	return res, nil
}

// recordInteraction persists the interaction; failures are logged, never fatal.
func (e *Engine) recordInteraction(userID, query string, res Result) {
	if e.store == nil {
		return
	}

	issues := "[]"
	if len(res.Issues) > 0 {
		if b, err := json.Marshal(res.Issues); err == nil {
			issues = string(b)
		}
	}

	status := "clean"
	if len(res.Issues) > 0 {
		status = "flagged"
	}

	in := storage.Interaction{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		UserID:        userID,
		Query:         query,
		Answer:        res.Answer,
		Status:        status,
		Tokens:        res.Metadata.EstimatedTokens,
		DurationMs:    res.Metadata.ResponseTimeMs,
		QualityIssues: issues,
	}
	if err := e.store.SaveInteraction(in); err != nil {
		e.logger.Warn("could not record interaction", "error", err)
	}
}
