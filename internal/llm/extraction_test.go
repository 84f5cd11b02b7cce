package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"graphmem/internal/graph"
)

type fakeClient struct {
	response string
	err      error
	calls    []string
}

func (f *fakeClient) Complete(_ context.Context, _, userMessage string) (string, error) {
	f.calls = append(f.calls, userMessage)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestParseEntities_WellFormed(t *testing.T) {
	entities := ParseEntities(`{"people": ["Alice", "Bob"], "topics": ["GraphQL"], "tasks": [], "documents": ["spec.pdf"]}`)
	assert.Equal(t, []string{"Alice", "Bob"}, entities.People)
	assert.Equal(t, []string{"GraphQL"}, entities.Topics)
	assert.Empty(t, entities.Tasks)
	assert.Equal(t, []string{"spec.pdf"}, entities.Documents)
}

func TestParseEntities_EmbeddedInProse(t *testing.T) {
	raw := "Sure! Here are the entities:\n```json\n{\"people\": [\"Alice\"], \"topics\": [], \"tasks\": [], \"documents\": []}\n```\nLet me know if you need more."
	entities := ParseEntities(raw)
	assert.Equal(t, []string{"Alice"}, entities.People)
}

func TestParseEntities_MissingAndExtraKeys(t *testing.T) {
	entities := ParseEntities(`{"people": ["Alice"], "organizations": ["Acme"]}`)
	assert.Equal(t, []string{"Alice"}, entities.People)
	assert.Empty(t, entities.Topics)
	assert.Empty(t, entities.Tasks)
	assert.Empty(t, entities.Documents)
}

func TestParseEntities_NonArrayValues(t *testing.T) {
	entities := ParseEntities(`{"people": "Alice", "topics": 42, "tasks": null, "documents": [true, "notes.md"]}`)
	assert.Empty(t, entities.People)
	assert.Empty(t, entities.Topics)
	assert.Empty(t, entities.Tasks)
	assert.Equal(t, []string{"notes.md"}, entities.Documents)
}

func TestParseEntities_Garbage(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "[1, 2, 3]"} {
		entities := ParseEntities(raw)
		assert.True(t, entities.IsEmpty(), "input %q", raw)
		assert.NotNil(t, entities.People)
	}
}

func TestParseEntities_DedupPreservesOrder(t *testing.T) {
	entities := ParseEntities(`{"people": ["Alice", "Bob", "Alice", ""], "topics": [], "tasks": [], "documents": []}`)
	assert.Equal(t, []string{"Alice", "Bob"}, entities.People)
}

func TestParseRelations(t *testing.T) {
	raw := `{"relations": [
		{"from": "Alice", "kind": "works_on", "to": "GraphQL"},
		{"from": "Alice", "kind": "MANAGES", "to": "Bob"},
		{"from": "", "kind": "KNOWS", "to": "Bob"},
		{"from": "Alice", "kind": "KNOWS", "to": "Bob"}
	]}`
	relations := ParseRelations(raw)
	require.Len(t, relations, 2)
	assert.Equal(t, RelationMention{From: "Alice", Kind: graph.RelWorksOn, To: "GraphQL"}, relations[0])
	assert.Equal(t, RelationMention{From: "Alice", Kind: graph.RelKnows, To: "Bob"}, relations[1])
}

func TestParseRelations_Garbage(t *testing.T) {
	assert.Nil(t, ParseRelations("not json"))
	assert.Nil(t, ParseRelations(`{"relations": "none"}`))
	assert.Nil(t, ParseRelations(`{"relations": []}`))
}

func TestExtract_TransportFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	extractor := NewExtractor(client)

	entities, err := extractor.Extract(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, entities.IsEmpty())
	assert.NotNil(t, entities.People)
}

func TestExtractRelations_SkipsEmptyEntitySet(t *testing.T) {
	client := &fakeClient{response: `{"relations": []}`}
	extractor := NewExtractor(client)

	relations, err := extractor.ExtractRelations(context.Background(), "hello", graph.EmptyEntities())
	require.NoError(t, err)
	assert.Nil(t, relations)
	assert.Empty(t, client.calls, "no model call without entities")
}

func TestExtractRelations_PassesEntityNames(t *testing.T) {
	client := &fakeClient{response: `{"relations": [{"from": "Alice", "kind": "WORKS_ON", "to": "GraphQL"}]}`}
	extractor := NewExtractor(client)

	entities := graph.ExtractedEntities{People: []string{"Alice"}, Topics: []string{"GraphQL"}, Tasks: []string{}, Documents: []string{}}
	relations, err := extractor.ExtractRelations(context.Background(), "Alice is working on GraphQL", entities)
	require.NoError(t, err)
	require.Len(t, relations, 1)

	require.Len(t, client.calls, 1)
	assert.Contains(t, client.calls[0], "Entities: Alice, GraphQL")
	assert.Contains(t, client.calls[0], "Message: Alice is working on GraphQL")
}
