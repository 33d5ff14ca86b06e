package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Raivel16/gestor-tareas/internal/domain"
	"github.com/Raivel16/gestor-tareas/internal/llm"
	"github.com/Raivel16/gestor-tareas/internal/logger"
	"github.com/Raivel16/gestor-tareas/internal/ordering"
)

// FallbackExplanation accompanies the local ordering when no AI backend is configured.
const FallbackExplanation = "Ordered by due date (earliest first), then by priority (high, medium, low). " +
	"AI suggestions are not configured; set LLM_API_KEY to get smarter recommendations."

type columnLister interface {
	ListColumn(ctx context.Context, ownerID int64, column domain.Column) ([]domain.Task, error)
}

// Suggestion is a proposed order for the todo column. It is never applied here.
type Suggestion struct {
	Order       []int64
	Explanation string
	Fallback    bool
}

// SuggestionService proposes an order for the todo column, through the
// LLM when one is configured and through the local ordering otherwise.
type SuggestionService struct {
	tasks     columnLister
	completer llm.Completer
	audit     *AuditService
}

// NewSuggestionService takes a nil completer when no backend is configured.
func NewSuggestionService(tasks columnLister, completer llm.Completer, audit *AuditService) *SuggestionService {
	return &SuggestionService{tasks: tasks, completer: completer, audit: audit}
}

// SuggestForOwner loads the owner's todo column and proposes an order for it.
func (s *SuggestionService) SuggestForOwner(ctx context.Context, ownerID int64) (*Suggestion, error) {
	todo, err := s.tasks.ListColumn(ctx, ownerID, domain.ColumnTodo)
	if err != nil {
		return nil, fmt.Errorf("load todo tasks: %w", err)
	}

	res, err := s.Suggest(ctx, todo)
	switch {
	case err == nil && res.Fallback:
		s.audit.Log(ctx, ownerID, domain.AuditActionSuggestFallback, domain.AuditCategorySuggestion, map[string]interface{}{"count": len(res.Order)})
	case err == nil:
		s.audit.Log(ctx, ownerID, domain.AuditActionSuggestAI, domain.AuditCategorySuggestion, map[string]interface{}{"count": len(res.Order)})
	case errors.Is(err, ErrSuggestionUnavailable), errors.Is(err, ErrSuggestionMalformed):
		s.audit.Log(ctx, ownerID, domain.AuditActionSuggestFailed, domain.AuditCategorySuggestion, map[string]interface{}{"reason": err.Error()})
	}
	return res, err
}

// Suggest proposes an order for tasks. Transport and parse failures are
// returned as ErrSuggestionUnavailable and ErrSuggestionMalformed; neither
// falls back to the local ordering.
func (s *SuggestionService) Suggest(ctx context.Context, tasks []domain.Task) (*Suggestion, error) {
	if len(tasks) == 0 {
		SuggestionsTotal.WithLabelValues(outcomeEmpty).Inc()
		return nil, ErrNothingToOrder
	}

	fallback := ordering.Rank(tasks)
	if s.completer == nil {
		SuggestionsTotal.WithLabelValues(outcomeFallback).Inc()
		return &Suggestion{Order: fallback, Explanation: FallbackExplanation, Fallback: true}, nil
	}

	log := logger.WithContext(ctx)

	prompt, err := llm.BuildOrderPrompt(tasks)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	text, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyReply) {
			log.Warnw("llm reply had no content", "error", err)
			SuggestionsTotal.WithLabelValues(outcomeMalformed).Inc()
			return nil, ErrSuggestionMalformed
		}
		log.Errorw("llm request failed", "error", err)
		SuggestionsTotal.WithLabelValues(outcomeUnavailable).Inc()
		return nil, ErrSuggestionUnavailable
	}

	reply, err := llm.ParseOrderReply(text)
	if err != nil {
		log.Warnw("llm reply could not be parsed", "error", err, "reply", truncate(text, 500))
		SuggestionsTotal.WithLabelValues(outcomeMalformed).Inc()
		return nil, ErrSuggestionMalformed
	}

	order, ok := Reconcile(reply.Order, fallback)
	if !ok {
		log.Warnw("llm reply referenced no known task", "order", reply.Order)
		SuggestionsTotal.WithLabelValues(outcomeMalformed).Inc()
		return nil, ErrSuggestionMalformed
	}
	if len(order) != len(reply.Order) {
		log.Infow("llm order reconciled", "proposed", reply.Order, "result", order)
	}

	SuggestionsTotal.WithLabelValues(outcomeAI).Inc()
	return &Suggestion{Order: order, Explanation: reply.Explanation}, nil
}

// Reconcile turns a proposed order into a permutation of known: unknown
// and repeated ids are dropped and missing ones are appended in known's
// order. It reports false when the proposal names no known id at all.
func Reconcile(proposed, known []int64) ([]int64, bool) {
	valid := make(map[int64]bool, len(known))
	for _, id := range known {
		valid[id] = true
	}

	out := make([]int64, 0, len(known))
	seen := make(map[int64]bool, len(known))
	for _, id := range proposed {
		if valid[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, false
	}

	for _, id := range known {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
