package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"graphmem/internal/graph"
	"graphmem/internal/llm"
	apperrors "graphmem/pkg/errors"
	"graphmem/pkg/logger"
)

// EntityExtractor is the extraction collaborator contract.
type EntityExtractor interface {
	Extract(ctx context.Context, message string) (graph.ExtractedEntities, error)
	ExtractRelations(ctx context.Context, message string, entities graph.ExtractedEntities) ([]llm.RelationMention, error)
}

// TurnResult is what a completed turn hands back to the caller.
type TurnResult struct {
	AssistantText string                  `json:"assistant_text"`
	Entities      graph.ExtractedEntities `json:"entities"`
}

// Orchestrator sequences a conversation turn: extract, resolve, persist,
// retrieve, generate, persist the response. Turns are strictly sequential;
// nothing here runs in the background.
type Orchestrator struct {
	store     *graph.Store
	resolver  *graph.Resolver
	retriever *graph.Retriever
	extractor EntityExtractor
	client    llm.CompletionClient
	logger    *zap.Logger

	mu     sync.Mutex
	active map[string]bool
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(store *graph.Store, resolver *graph.Resolver, retriever *graph.Retriever, extractor EntityExtractor, client llm.CompletionClient) *Orchestrator {
	return &Orchestrator{
		store:     store,
		resolver:  resolver,
		retriever: retriever,
		extractor: extractor,
		client:    client,
		logger:    logger.Get(),
		active:    make(map[string]bool),
	}
}

// StartConversation creates a conversation node and marks it active.
func (o *Orchestrator) StartConversation(ctx context.Context, title string) (string, error) {
	conv, err := o.store.CreateConversation(ctx, title)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	o.active[conv.ID] = true
	o.mu.Unlock()
	return conv.ID, nil
}

// EndConversation deletes a conversation and the messages it owns.
func (o *Orchestrator) EndConversation(ctx context.Context, conversationID string) error {
	if err := o.store.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.active, conversationID)
	o.mu.Unlock()
	return nil
}

// History returns the conversation's recent messages in chronological order.
func (o *Orchestrator) History(ctx context.Context, conversationID string) ([]graph.Message, error) {
	return o.retriever.RecentHistory(ctx, conversationID)
}

// UpdateTaskStatus moves an already-known task to a new status. The mention
// is resolved through the same canonical-key path as extraction output.
func (o *Orchestrator) UpdateTaskStatus(ctx context.Context, mention, status string) error {
	res, err := o.resolver.Resolve(ctx, graph.KindTask, mention)
	if err != nil {
		return err
	}
	if res.Created {
		return apperrors.NewValidation("task", "no task with that description is known")
	}
	return o.store.SetTaskStatus(ctx, res.ID, status)
}

// ProcessTurn runs one user turn end to end. Extraction failure degrades to
// an empty entity set; persistence failure aborts the turn before any
// response is generated, so no reply exists for input that was not durably
// stored.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conversationID, userText string) (*TurnResult, error) {
	o.mu.Lock()
	isActive := o.active[conversationID]
	o.mu.Unlock()
	if !isActive {
		return nil, apperrors.NewValidation("conversation_id", "no active conversation with that id")
	}
	if userText == "" {
		return nil, apperrors.NewValidation("user_text", "must not be empty")
	}

	// 1. Extract entities, best-effort.
	entities, err := o.extractor.Extract(ctx, userText)
	if err != nil {
		o.logger.Warn("Entity extraction failed, continuing with empty set", zap.Error(err))
		entities = graph.EmptyEntities()
	}

	// 2. Resolve mentions against the graph.
	resolutions, err := o.resolveAll(ctx, entities)
	if err != nil {
		return nil, err
	}

	newEntities := make([]graph.EntityNode, 0, len(resolutions))
	mentions := make([]graph.Mention, 0, len(resolutions))
	for _, res := range resolutions {
		if res.Created {
			newEntities = append(newEntities, res.Node)
		}
		mentions = append(mentions, graph.Mention{Kind: res.Kind, EntityID: res.ID})
	}

	// 3. Persist the user message atomically.
	msg, err := o.store.AddMessage(ctx, conversationID, graph.RoleUser, userText, newEntities, mentions)
	if err != nil {
		return nil, err
	}
	for _, res := range resolutions {
		if res.Created {
			o.resolver.Remember(res)
		}
	}

	// 4. Persist extracted relationships. Best-effort, like extraction:
	// the user message is already durable.
	o.persistRelations(ctx, userText, entities, resolutions)

	// 5. Retrieve context for generation.
	memoryContext, err := o.retriever.BuildContext(ctx, conversationID, resolutions)
	if err != nil {
		return nil, err
	}

	// 6. Generate the reply.
	reply, err := o.client.Complete(ctx, generationPrompt(memoryContext), userText)
	if err != nil {
		return nil, err
	}

	// 7. Persist the assistant message with the same atomicity guarantee.
	if _, err := o.store.AddMessage(ctx, conversationID, graph.RoleAssistant, reply, nil, nil); err != nil {
		return nil, err
	}

	o.logger.Debug("Turn completed",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", msg.ID),
		zap.Int("resolutions", len(resolutions)),
	)
	return &TurnResult{AssistantText: reply, Entities: entities}, nil
}

// resolveAll resolves every mention, deduplicating by canonical key within
// the turn so a repeated mention cannot allocate two nodes.
func (o *Orchestrator) resolveAll(ctx context.Context, entities graph.ExtractedEntities) ([]graph.Resolution, error) {
	groups := []struct {
		kind     graph.NodeKind
		mentions []string
	}{
		{graph.KindPerson, entities.People},
		{graph.KindTopic, entities.Topics},
		{graph.KindTask, entities.Tasks},
		{graph.KindDocument, entities.Documents},
	}

	type dedupeKey struct {
		kind graph.NodeKind
		key  string
	}
	seen := make(map[dedupeKey]bool)

	var resolutions []graph.Resolution
	for _, group := range groups {
		for _, mention := range group.mentions {
			key := graph.CanonicalKey(mention)
			if key == "" || seen[dedupeKey{group.kind, key}] {
				continue
			}
			seen[dedupeKey{group.kind, key}] = true

			res, err := o.resolver.Resolve(ctx, group.kind, mention)
			if err != nil {
				return nil, err
			}
			resolutions = append(resolutions, res)
		}
	}
	return resolutions, nil
}

// persistRelations runs the relation extraction pass and stores edges whose
// endpoints resolve to entities from this turn. Failures are logged and
// swallowed; relationship edges are enrichment, not part of the write group.
func (o *Orchestrator) persistRelations(ctx context.Context, userText string, entities graph.ExtractedEntities, resolutions []graph.Resolution) {
	proposed, err := o.extractor.ExtractRelations(ctx, userText, entities)
	if err != nil {
		o.logger.Debug("Relation extraction failed", zap.Error(err))
		return
	}

	byKey := make(map[string][]graph.Resolution)
	for _, res := range resolutions {
		byKey[res.Key] = append(byKey[res.Key], res)
	}

	for _, rm := range proposed {
		fromCandidates := byKey[graph.CanonicalKey(rm.From)]
		toCandidates := byKey[graph.CanonicalKey(rm.To)]

		stored := false
		for _, from := range fromCandidates {
			for _, to := range toCandidates {
				rel, err := graph.NewRelation(from.Kind, from.ID, rm.Kind, to.Kind, to.ID)
				if err != nil {
					continue
				}
				if err := o.store.AddRelation(ctx, rel); err != nil {
					o.logger.Warn("Failed to persist relationship",
						zap.String("kind", string(rm.Kind)),
						zap.Error(err),
					)
				}
				stored = true
				break
			}
			if stored {
				break
			}
		}
	}
}
