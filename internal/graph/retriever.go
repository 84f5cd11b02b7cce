package graph

import (
	"context"
	"fmt"
	"strings"
)

// Default retrieval bounds, overridable via config.
const (
	DefaultRetrievalLimit = 10
	DefaultHistoryLimit   = 15
	DefaultHopLimit       = 2
)

// Retriever composes read statements into retrieval strategies and formats
// the rows into context for response generation. Each strategy is a pure
// function of graph state and parameters; empty results are a normal outcome.
type Retriever struct {
	store          *Store
	retrievalLimit int
	historyLimit   int
	hopLimit       int
}

// NewRetriever creates a retriever. Non-positive limits fall back to the
// defaults.
func NewRetriever(store *Store, retrievalLimit, historyLimit, hopLimit int) *Retriever {
	if retrievalLimit < 1 {
		retrievalLimit = DefaultRetrievalLimit
	}
	if historyLimit < 1 {
		historyLimit = DefaultHistoryLimit
	}
	if hopLimit < 1 {
		hopLimit = DefaultHopLimit
	}
	return &Retriever{
		store:          store,
		retrievalLimit: retrievalLimit,
		historyLimit:   historyLimit,
		hopLimit:       hopLimit,
	}
}

// EntityContext returns messages mentioning the entity, newest first, capped
// at the retrieval limit.
func (r *Retriever) EntityContext(ctx context.Context, kind NodeKind, entityID string) ([]Message, error) {
	return r.store.MessagesByEntity(ctx, kind, entityID, r.retrievalLimit)
}

// RecentHistory returns the conversation's last messages in chronological
// order.
func (r *Retriever) RecentHistory(ctx context.Context, conversationID string) ([]Message, error) {
	return r.store.RecentMessages(ctx, conversationID, r.historyLimit)
}

// CoMentions returns entities co-occurring with the given entity.
func (r *Retriever) CoMentions(ctx context.Context, kind NodeKind, entityID string) ([]EntityRef, error) {
	return r.store.CoMentions(ctx, kind, entityID)
}

// KnownPeople returns people within the hop limit over KNOWS edges.
func (r *Retriever) KnownPeople(ctx context.Context, personID string) ([]EntityRef, error) {
	return r.store.KnownPeople(ctx, personID, r.hopLimit)
}

// BuildContext assembles the memory context handed to the response generator:
// per-entity history, co-mentions, social reach for people, and the recent
// conversation window.
func (r *Retriever) BuildContext(ctx context.Context, conversationID string, resolutions []Resolution) (string, error) {
	var parts []string

	var people, topics, tasks []Resolution
	for _, res := range resolutions {
		switch res.Kind {
		case KindPerson:
			people = append(people, res)
		case KindTopic:
			topics = append(topics, res)
		case KindTask:
			tasks = append(tasks, res)
		}
	}

	if len(people) > 0 {
		parts = append(parts, "People mentioned: "+joinNames(people))
		for _, p := range people {
			if p.Created {
				continue
			}
			messages, err := r.EntityContext(ctx, KindPerson, p.ID)
			if err != nil {
				return "", err
			}
			if len(messages) > 0 {
				parts = append(parts, fmt.Sprintf("Previously about %s:", p.Name))
				parts = append(parts, formatMessages(messages))
			}
			known, err := r.KnownPeople(ctx, p.ID)
			if err != nil {
				return "", err
			}
			if len(known) > 0 {
				parts = append(parts, fmt.Sprintf("%s knows: %s", p.Name, joinRefNames(known)))
			}
		}
	}

	if len(topics) > 0 {
		parts = append(parts, "Topics discussed: "+joinNames(topics))
		for _, t := range topics {
			if t.Created {
				continue
			}
			related, err := r.CoMentions(ctx, KindTopic, t.ID)
			if err != nil {
				return "", err
			}
			if len(related) > 0 {
				parts = append(parts, fmt.Sprintf("Related to '%s': %s", t.Name, joinRefNames(related)))
			}
		}
	}

	if len(tasks) > 0 {
		parts = append(parts, "Tasks mentioned: "+joinNames(tasks))
	}

	history, err := r.RecentHistory(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if len(history) > 0 {
		parts = append(parts, "Recent conversation:")
		parts = append(parts, formatMessages(history))
	}

	if len(parts) == 0 {
		return "No specific context from previous conversations.", nil
	}
	return strings.Join(parts, "\n"), nil
}

func joinNames(resolutions []Resolution) string {
	names := make([]string, len(resolutions))
	for i, res := range resolutions {
		names[i] = res.Name
	}
	return strings.Join(names, ", ")
}

func joinRefNames(refs []EntityRef) string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name
	}
	return strings.Join(names, ", ")
}

func formatMessages(messages []Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = fmt.Sprintf("  [%s] %s: %s", m.Timestamp.Format("2006-01-02 15:04"), m.Role, m.Content)
	}
	return strings.Join(lines, "\n")
}
