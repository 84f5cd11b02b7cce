package graph

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	apperrors "graphmem/pkg/errors"
	"graphmem/pkg/logger"
)

// Store is the persistence layer: it executes builder-produced statements
// against the engine and translates engine results and errors into the core's
// typed kinds. It owns one long-lived session, acquired at construction and
// released exactly once by Close.
type Store struct {
	engine    Engine
	session   QuerySession
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error

	// lastStamp keeps message timestamps non-decreasing per conversation
	// even if the wall clock steps backwards between turns.
	mu        sync.Mutex
	lastStamp map[string]time.Time
}

// NewStore acquires a session from the engine and returns a ready store.
func NewStore(ctx context.Context, engine Engine) (*Store, error) {
	session, err := engine.OpenSession(ctx)
	if err != nil {
		return nil, apperrors.NewPersistence("failed to open engine session", err)
	}
	return &Store{
		engine:    engine,
		session:   session,
		logger:    logger.Get(),
		lastStamp: make(map[string]time.Time),
	}, nil
}

// NewStoreWithSession wraps an existing session. The caller keeps ownership
// of the engine; Close still releases the session.
func NewStoreWithSession(session QuerySession) *Store {
	return &Store{
		session:   session,
		logger:    logger.Get(),
		lastStamp: make(map[string]time.Time),
	}
}

// Close releases the session. Safe to call more than once; the session is
// released exactly once.
func (s *Store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.session.Close(ctx)
	})
	return s.closeErr
}

// nextStamp returns a timestamp for the next message in a conversation,
// clamped so the sequence never decreases.
func (s *Store) nextStamp(conversationID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := Now()
	if last, ok := s.lastStamp[conversationID]; ok && now.Before(last) {
		now = last
	}
	s.lastStamp[conversationID] = now
	return now
}

// CreateConversation creates a conversation node and returns it.
func (s *Store) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	conv := Conversation{
		ID:        NewID(),
		StartedAt: Now(),
		Title:     title,
	}

	statement, err := BuildCreateConversation(conv)
	if err != nil {
		return Conversation{}, err
	}
	if err := s.session.ExecuteGroup(ctx, []string{statement}); err != nil {
		return Conversation{}, apperrors.NewPersistence("failed to create conversation", err)
	}

	s.logger.Info("Conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("title", conv.Title),
	)
	return conv, nil
}

// AddMessage persists a message, its PART_OF edge, any newly resolved entity
// nodes and all MENTIONED_IN edges as a single write group. Either every
// statement commits or none do; callers never observe a message node without
// its relationships. The conversation must already exist: the PART_OF link
// would no-op on a MATCH miss and leave an orphan message otherwise.
func (s *Store) AddMessage(ctx context.Context, conversationID, role, content string, newEntities []EntityNode, mentions []Mention) (Message, error) {
	exists, err := s.conversationExists(ctx, conversationID)
	if err != nil {
		return Message{}, err
	}
	if !exists {
		return Message{}, apperrors.NewValidation("conversation_id", "no conversation with that id")
	}

	msg, err := NewMessage(role, content, s.nextStamp(conversationID))
	if err != nil {
		return Message{}, err
	}

	statements := make([]string, 0, 2+len(newEntities)+len(mentions))

	createMsg, err := BuildCreateMessage(msg)
	if err != nil {
		return Message{}, err
	}
	statements = append(statements, createMsg)

	link, err := BuildLinkMessageToConversation(msg.ID, conversationID)
	if err != nil {
		return Message{}, err
	}
	statements = append(statements, link)

	for _, entity := range newEntities {
		create, err := BuildCreateEntityNode(entity)
		if err != nil {
			return Message{}, err
		}
		statements = append(statements, create)
	}

	for _, mention := range mentions {
		edge, err := BuildCreateMentionEdge(mention, msg.ID)
		if err != nil {
			return Message{}, err
		}
		statements = append(statements, edge)
	}

	if err := s.session.ExecuteGroup(ctx, statements); err != nil {
		return Message{}, apperrors.NewPersistence("add_message write group failed", err)
	}

	s.logger.Debug("Message persisted",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", msg.ID),
		zap.String("role", role),
		zap.Int("new_entities", len(newEntities)),
		zap.Int("mentions", len(mentions)),
	)
	return msg, nil
}

func (s *Store) conversationExists(ctx context.Context, conversationID string) (bool, error) {
	statement, err := BuildConversationByID(conversationID)
	if err != nil {
		return false, err
	}
	rows, err := s.session.Execute(ctx, statement)
	if err != nil {
		return false, apperrors.NewPersistence("conversation lookup failed", err)
	}
	return len(rows) > 0, nil
}

// AddRelation persists a typed entity relationship edge.
func (s *Store) AddRelation(ctx context.Context, r Relation) error {
	statement, err := BuildCreateRelationshipEdge(r)
	if err != nil {
		return err
	}
	if err := s.session.ExecuteGroup(ctx, []string{statement}); err != nil {
		return apperrors.NewPersistence("failed to create relationship edge", err)
	}
	return nil
}

// SetTaskStatus updates the status of an existing task node.
func (s *Store) SetTaskStatus(ctx context.Context, taskID, status string) error {
	statement, err := BuildSetTaskStatus(taskID, status)
	if err != nil {
		return err
	}
	if err := s.session.ExecuteGroup(ctx, []string{statement}); err != nil {
		return apperrors.NewPersistence("failed to update task status", err)
	}
	return nil
}

// DeleteConversation removes a conversation and the messages it owns. Shared
// entity nodes survive.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	statement, err := BuildDeleteConversation(conversationID)
	if err != nil {
		return err
	}
	if err := s.session.ExecuteGroup(ctx, []string{statement}); err != nil {
		return apperrors.NewPersistence("failed to delete conversation", err)
	}

	s.mu.Lock()
	delete(s.lastStamp, conversationID)
	s.mu.Unlock()

	s.logger.Info("Conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}

// LookupEntity finds an entity node by canonical key. The second return value
// reports whether a node was found.
func (s *Store) LookupEntity(ctx context.Context, kind NodeKind, key string) (EntityRef, bool, error) {
	statement, err := BuildEntityByKey(kind, key)
	if err != nil {
		return EntityRef{}, false, err
	}
	rows, err := s.session.Execute(ctx, statement)
	if err != nil {
		return EntityRef{}, false, apperrors.NewPersistence("entity lookup failed", err)
	}
	if len(rows) == 0 {
		return EntityRef{}, false, nil
	}

	id, err := rows[0].StringColumn("id")
	if err != nil {
		return EntityRef{}, false, err
	}
	name, err := rows[0].StringColumn("name")
	if err != nil {
		return EntityRef{}, false, err
	}
	return EntityRef{ID: id, Kind: kind, Name: name}, true, nil
}

// MessagesByEntity returns messages mentioning an entity, newest first.
func (s *Store) MessagesByEntity(ctx context.Context, kind NodeKind, entityID string, limit int) ([]Message, error) {
	statement, err := BuildMessagesByEntity(kind, entityID, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.session.Execute(ctx, statement)
	if err != nil {
		return nil, apperrors.NewPersistence("by-entity read failed", err)
	}
	return rowsToMessages(rows)
}

// RecentMessages returns the last messages of a conversation in chronological
// order. The engine hands them back newest first; they are reversed here so
// the caller sees oldest first.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	statement, err := BuildRecentMessages(conversationID, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.session.Execute(ctx, statement)
	if err != nil {
		return nil, apperrors.NewPersistence("recent-history read failed", err)
	}
	messages, err := rowsToMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CoMentions returns entities that co-occur in the same messages as the given
// entity.
func (s *Store) CoMentions(ctx context.Context, kind NodeKind, entityID string) ([]EntityRef, error) {
	statement, err := BuildCoMentionedEntities(kind, entityID)
	if err != nil {
		return nil, err
	}
	rows, err := s.session.Execute(ctx, statement)
	if err != nil {
		return nil, apperrors.NewPersistence("co-mention read failed", err)
	}
	return rowsToEntityRefs(rows, true)
}

// KnownPeople returns people reachable over KNOWS edges within the hop limit.
func (s *Store) KnownPeople(ctx context.Context, personID string, hops int) ([]EntityRef, error) {
	statement, err := BuildKnowsWithinHops(personID, hops)
	if err != nil {
		return nil, err
	}
	rows, err := s.session.Execute(ctx, statement)
	if err != nil {
		return nil, apperrors.NewPersistence("traversal read failed", err)
	}
	refs, err := rowsToEntityRefs(rows, false)
	if err != nil {
		return nil, err
	}
	for i := range refs {
		refs[i].Kind = KindPerson
	}
	return refs, nil
}

func rowsToMessages(rows []Row) ([]Message, error) {
	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		id, err := row.StringColumn("id")
		if err != nil {
			return nil, err
		}
		role, err := row.StringColumn("role")
		if err != nil {
			return nil, err
		}
		content, err := row.StringColumn("content")
		if err != nil {
			return nil, err
		}
		timestamp, err := row.TimeColumn("timestamp")
		if err != nil {
			return nil, err
		}
		messages = append(messages, Message{
			ID:        id,
			Role:      role,
			Content:   content,
			Timestamp: timestamp,
		})
	}
	return messages, nil
}

func rowsToEntityRefs(rows []Row, withKind bool) ([]EntityRef, error) {
	refs := make([]EntityRef, 0, len(rows))
	for _, row := range rows {
		id, err := row.StringColumn("id")
		if err != nil {
			return nil, err
		}
		name, err := row.StringColumn("name")
		if err != nil {
			return nil, err
		}
		ref := EntityRef{ID: id, Name: name}
		if withKind {
			kind, err := row.StringColumn("kind")
			if err != nil {
				return nil, err
			}
			ref.Kind = NodeKind(kind)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
