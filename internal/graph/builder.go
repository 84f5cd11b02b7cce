package graph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "graphmem/pkg/errors"
)

// Statement construction. Every string value that ends up inside statement
// text passes through escapeLiteral; the engine never sees raw user input.
// All builders are pure functions: identical input yields identical text.

// maxHopLimit bounds variable-length traversals. The hop count is embedded as
// an integer because pattern bounds cannot be parameterized, so it is
// validated here instead.
const maxHopLimit = 10

// escapeLiteral escapes s for embedding in a single-quoted statement literal.
// Rejects control characters that have no escape in the literal grammar.
func escapeLiteral(param, s string) (string, error) {
	for _, r := range s {
		if (r < 0x20 && r != '\n' && r != '\r' && r != '\t') || r == 0x7f {
			return "", apperrors.NewQueryBuild(param, fmt.Sprintf("contains unescapable control character %U", r))
		}
	}
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return replacer.Replace(s), nil
}

// quote escapes s and wraps it in single quotes.
func quote(param, s string) (string, error) {
	escaped, err := escapeLiteral(param, s)
	if err != nil {
		return "", err
	}
	return "'" + escaped + "'", nil
}

func checkLimit(limit int) error {
	if limit < 1 {
		return apperrors.NewQueryBuild("limit", fmt.Sprintf("must be positive, got %d", limit))
	}
	return nil
}

func checkEntityKind(kind NodeKind) error {
	if !isEntityKind(kind) {
		return apperrors.NewQueryBuild("kind", fmt.Sprintf("%q is not an entity kind", kind))
	}
	return nil
}

// BuildCreateConversation produces the conversation insertion statement.
func BuildCreateConversation(c Conversation) (string, error) {
	id, err := quote("id", c.ID)
	if err != nil {
		return "", err
	}
	startedAt, err := quote("started_at", c.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	title, err := quote("title", c.Title)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE (:Conversation {id: %s, started_at: %s, title: %s})", id, startedAt, title), nil
}

// BuildCreateMessage produces the message node insertion statement.
func BuildCreateMessage(m Message) (string, error) {
	id, err := quote("id", m.ID)
	if err != nil {
		return "", err
	}
	role, err := quote("role", m.Role)
	if err != nil {
		return "", err
	}
	content, err := quote("content", m.Content)
	if err != nil {
		return "", err
	}
	timestamp, err := quote("timestamp", m.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE (:Message {id: %s, role: %s, content: %s, timestamp: %s})", id, role, content, timestamp), nil
}

// BuildLinkMessageToConversation produces the PART_OF edge statement.
func BuildLinkMessageToConversation(messageID, conversationID string) (string, error) {
	msgID, err := quote("message_id", messageID)
	if err != nil {
		return "", err
	}
	convID, err := quote("conversation_id", conversationID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (m:Message {id: %s}), (c:Conversation {id: %s}) CREATE (m)-[:PART_OF]->(c)", msgID, convID), nil
}

// BuildCreateEntityNode produces an entity node insertion statement for any
// entity kind. Kind-specific properties are emitted in sorted key order so
// identical input always yields identical text.
func BuildCreateEntityNode(n EntityNode) (string, error) {
	if err := checkEntityKind(n.Kind); err != nil {
		return "", err
	}
	id, err := quote("id", n.ID)
	if err != nil {
		return "", err
	}
	key, err := quote("key", n.Key)
	if err != nil {
		return "", err
	}
	name, err := quote("name", n.Name)
	if err != nil {
		return "", err
	}

	props := []string{
		"id: " + id,
		"key: " + key,
		"name: " + name,
	}
	extraKeys := make([]string, 0, len(n.Props))
	for k := range n.Props {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		v, err := quote(k, n.Props[k])
		if err != nil {
			return "", err
		}
		props = append(props, fmt.Sprintf("%s: %s", k, v))
	}

	return fmt.Sprintf("CREATE (:%s {%s})", n.Kind, strings.Join(props, ", ")), nil
}

// BuildCreateMentionEdge produces a MENTIONED_IN edge statement. Edges are
// append-only; a re-mention in a new message gets a new edge via CREATE.
func BuildCreateMentionEdge(m Mention, messageID string) (string, error) {
	if err := checkEntityKind(m.Kind); err != nil {
		return "", err
	}
	entityID, err := quote("entity_id", m.EntityID)
	if err != nil {
		return "", err
	}
	msgID, err := quote("message_id", messageID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (e:%s {id: %s}), (m:Message {id: %s}) CREATE (e)-[:MENTIONED_IN]->(m)", m.Kind, entityID, msgID), nil
}

// BuildCreateRelationshipEdge produces a typed entity relationship statement.
func BuildCreateRelationshipEdge(r Relation) (string, error) {
	if err := checkEntityKind(r.FromKind); err != nil {
		return "", err
	}
	if err := checkEntityKind(r.ToKind); err != nil {
		return "", err
	}
	fromID, err := quote("from_id", r.FromID)
	if err != nil {
		return "", err
	}
	toID, err := quote("to_id", r.ToID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (a:%s {id: %s}), (b:%s {id: %s}) MERGE (a)-[:%s]->(b)", r.FromKind, fromID, r.ToKind, toID, r.Kind), nil
}

// BuildSetTaskStatus produces the task status update statement.
func BuildSetTaskStatus(taskID, status string) (string, error) {
	if !ValidTaskStatus(status) {
		return "", apperrors.NewQueryBuild("status", fmt.Sprintf("%q is not a valid task status", status))
	}
	id, err := quote("task_id", taskID)
	if err != nil {
		return "", err
	}
	quoted, err := quote("status", status)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (t:Task {id: %s}) SET t.status = %s", id, quoted), nil
}

// BuildDeleteConversation produces the conversation teardown statement. The
// conversation owns its messages, so they go with it; shared entity nodes are
// untouched.
func BuildDeleteConversation(conversationID string) (string, error) {
	id, err := quote("conversation_id", conversationID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (c:Conversation {id: %s}) OPTIONAL MATCH (m:Message)-[:PART_OF]->(c) DETACH DELETE m, c", id), nil
}

// BuildConversationByID produces the conversation existence lookup.
func BuildConversationByID(conversationID string) (string, error) {
	id, err := quote("conversation_id", conversationID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (c:Conversation {id: %s}) RETURN c.id AS id", id), nil
}

// BuildEntityByKey produces the canonical-key lookup statement.
func BuildEntityByKey(kind NodeKind, key string) (string, error) {
	if err := checkEntityKind(kind); err != nil {
		return "", err
	}
	quoted, err := quote("key", key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (e:%s {key: %s}) RETURN e.id AS id, e.name AS name", kind, quoted), nil
}

// BuildMessagesByEntity produces the by-entity context read: all messages
// mentioning the entity, newest first, ties broken by id.
func BuildMessagesByEntity(kind NodeKind, entityID string, limit int) (string, error) {
	if err := checkEntityKind(kind); err != nil {
		return "", err
	}
	if err := checkLimit(limit); err != nil {
		return "", err
	}
	id, err := quote("entity_id", entityID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MATCH (e:%s {id: %s})-[:MENTIONED_IN]->(m:Message) RETURN m.id AS id, m.role AS role, m.content AS content, m.timestamp AS timestamp ORDER BY m.timestamp DESC, m.id DESC LIMIT %d",
		kind, id, limit), nil
}

// BuildRecentMessages produces the recent-history read for a conversation,
// newest first. Callers re-reverse into chronological order.
func BuildRecentMessages(conversationID string, limit int) (string, error) {
	if err := checkLimit(limit); err != nil {
		return "", err
	}
	id, err := quote("conversation_id", conversationID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MATCH (m:Message)-[:PART_OF]->(c:Conversation {id: %s}) RETURN m.id AS id, m.role AS role, m.content AS content, m.timestamp AS timestamp ORDER BY m.timestamp DESC, m.id DESC LIMIT %d",
		id, limit), nil
}

// BuildCoMentionedEntities produces the co-mention read: entities appearing in
// the same messages as the given entity.
func BuildCoMentionedEntities(kind NodeKind, entityID string) (string, error) {
	if err := checkEntityKind(kind); err != nil {
		return "", err
	}
	id, err := quote("entity_id", entityID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MATCH (e:%s {id: %s})-[:MENTIONED_IN]->(m:Message)<-[:MENTIONED_IN]-(o) WHERE o.id <> %s RETURN DISTINCT o.id AS id, o.name AS name, head(labels(o)) AS kind",
		kind, id, id), nil
}

// BuildKnowsWithinHops produces the bounded KNOWS traversal. The hop limit is
// a parameter of the builder, validated against maxHopLimit.
func BuildKnowsWithinHops(personID string, hops int) (string, error) {
	if hops < 1 || hops > maxHopLimit {
		return "", apperrors.NewQueryBuild("hops", fmt.Sprintf("must be in [1, %d], got %d", maxHopLimit, hops))
	}
	id, err := quote("person_id", personID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MATCH (p:Person {id: %s})-[:KNOWS*1..%d]->(q:Person) WHERE q.id <> %s RETURN DISTINCT q.id AS id, q.name AS name",
		id, hops, id), nil
}
