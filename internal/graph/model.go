package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "graphmem/pkg/errors"
)

// NodeKind identifies a node label in the context graph.
type NodeKind string

const (
	KindConversation NodeKind = "Conversation"
	KindMessage      NodeKind = "Message"
	KindPerson       NodeKind = "Person"
	KindTopic        NodeKind = "Topic"
	KindTask         NodeKind = "Task"
	KindDocument     NodeKind = "Document"
)

// EntityKinds are the node kinds produced by extraction. They are shared
// across conversations and only ever referenced via MENTIONED_IN edges.
var EntityKinds = []NodeKind{KindPerson, KindTopic, KindTask, KindDocument}

// RelKind identifies a relationship type.
type RelKind string

const (
	RelPartOf      RelKind = "PART_OF"
	RelMentionedIn RelKind = "MENTIONED_IN"
	RelRelatesTo   RelKind = "RELATES_TO"
	RelKnows       RelKind = "KNOWS"
	RelWorksOn     RelKind = "WORKS_ON"
	RelDependsOn   RelKind = "DEPENDS_ON"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Task statuses
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Conversation is a session node. It is created once and never mutated except
// by appending messages.
type Conversation struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Title     string    `json:"title,omitempty"`
}

// Message is a single turn in a conversation, immutable once created.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage validates and constructs a message value.
func NewMessage(role, content string, timestamp time.Time) (Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return Message{}, apperrors.NewValidation("role", fmt.Sprintf("must be %q or %q, got %q", RoleUser, RoleAssistant, role))
	}
	if content == "" {
		return Message{}, apperrors.NewValidation("content", "must not be empty")
	}
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: timestamp.UTC(),
	}, nil
}

// EntityNode is a graph node for a shared entity (Person, Topic, Task,
// Document). Every entity node carries an id, a canonical key and a display
// name; kind-specific properties go in Props.
type EntityNode struct {
	ID    string            `json:"id"`
	Kind  NodeKind          `json:"kind"`
	Key   string            `json:"key"`
	Name  string            `json:"name"`
	Props map[string]string `json:"props,omitempty"`
}

// NewEntityNode validates and constructs an entity node.
func NewEntityNode(kind NodeKind, key, name string) (EntityNode, error) {
	if !isEntityKind(kind) {
		return EntityNode{}, apperrors.NewValidation("kind", fmt.Sprintf("%q is not an entity kind", kind))
	}
	if key == "" {
		return EntityNode{}, apperrors.NewValidation("key", "must not be empty")
	}
	if name == "" {
		return EntityNode{}, apperrors.NewValidation("name", "must not be empty")
	}
	node := EntityNode{
		ID:   NewID(),
		Kind: kind,
		Key:  key,
		Name: name,
	}
	if kind == KindTask {
		node.Props = map[string]string{
			"status":     StatusPending,
			"created_at": Now().Format(time.RFC3339),
		}
	}
	return node, nil
}

// ValidTaskStatus reports whether s is an allowed Task status value.
func ValidTaskStatus(s string) bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

func isEntityKind(kind NodeKind) bool {
	for _, k := range EntityKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Mention links an already-resolved entity to a message.
type Mention struct {
	Kind     NodeKind
	EntityID string
}

// EntityRef is a lightweight reference to an entity node returned by reads.
type EntityRef struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`
	Name string   `json:"name"`
}

// Relation is a typed, directed edge between two resolved entities.
type Relation struct {
	FromKind NodeKind
	FromID   string
	Kind     RelKind
	ToKind   NodeKind
	ToID     string
}

// NewRelation validates endpoint kinds against the relationship's schema.
func NewRelation(fromKind NodeKind, fromID string, kind RelKind, toKind NodeKind, toID string) (Relation, error) {
	if fromID == "" || toID == "" {
		return Relation{}, apperrors.NewValidation("relation", "endpoint ids must not be empty")
	}
	switch kind {
	case RelKnows:
		if fromKind != KindPerson || toKind != KindPerson {
			return Relation{}, apperrors.NewValidation("relation", fmt.Sprintf("KNOWS requires Person->Person, got %s->%s", fromKind, toKind))
		}
	case RelWorksOn:
		if fromKind != KindPerson || (toKind != KindTopic && toKind != KindTask) {
			return Relation{}, apperrors.NewValidation("relation", fmt.Sprintf("WORKS_ON requires Person->Topic|Task, got %s->%s", fromKind, toKind))
		}
	case RelDependsOn:
		if fromKind != KindTask || toKind != KindTask {
			return Relation{}, apperrors.NewValidation("relation", fmt.Sprintf("DEPENDS_ON requires Task->Task, got %s->%s", fromKind, toKind))
		}
	case RelRelatesTo:
		if !isEntityKind(fromKind) || !isEntityKind(toKind) {
			return Relation{}, apperrors.NewValidation("relation", "RELATES_TO requires entity endpoints")
		}
	default:
		return Relation{}, apperrors.NewValidation("relation", fmt.Sprintf("%q is not an entity relationship kind", kind))
	}
	return Relation{FromKind: fromKind, FromID: fromID, Kind: kind, ToKind: toKind, ToID: toID}, nil
}

// ExtractedEntities is the typed result of an extraction pass over one
// message. Slices are never nil.
type ExtractedEntities struct {
	People    []string `json:"people"`
	Topics    []string `json:"topics"`
	Tasks     []string `json:"tasks"`
	Documents []string `json:"documents"`
}

// EmptyEntities returns an ExtractedEntities with all slices empty.
func EmptyEntities() ExtractedEntities {
	return ExtractedEntities{
		People:    []string{},
		Topics:    []string{},
		Tasks:     []string{},
		Documents: []string{},
	}
}

// IsEmpty reports whether no entities were extracted.
func (e ExtractedEntities) IsEmpty() bool {
	return len(e.People) == 0 && len(e.Topics) == 0 && len(e.Tasks) == 0 && len(e.Documents) == 0
}

// NewID returns a new time-ordered unique identifier. Later allocations sort
// after earlier ones, which makes id order a valid tie-break for rows that
// share a timestamp.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does; fall back to v4
		return uuid.New().String()
	}
	return id.String()
}

// Now returns the current UTC time.
func Now() time.Time {
	return time.Now().UTC()
}
