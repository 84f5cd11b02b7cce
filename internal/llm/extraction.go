package llm

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"graphmem/internal/graph"
	"graphmem/pkg/logger"
)

const entityExtractionPrompt = `You are an expert entity extractor for an AI agent's memory system.
Extract the following types of entities from the user's message:

1. PEOPLE: Names of individuals mentioned
2. TOPICS: Subjects, concepts, technologies, projects, or areas of interest
3. TASKS: Action items, todos, or work that needs to be done
4. DOCUMENTS: Files, links, resources, or references mentioned

Return your response as a JSON object with this exact structure:
{
  "people": ["name1", "name2"],
  "topics": ["topic1", "topic2"],
  "tasks": ["task1", "task2"],
  "documents": ["doc1", "doc2"]
}

Guidelines:
- Only extract entities that are explicitly mentioned or clearly implied
- For topics, include both specific technologies and general concepts
- For tasks, extract actionable items in imperative form
- If a category has no entities, use an empty array []
- Be precise and avoid over-extraction

Return ONLY the JSON object, no additional text.`

const relationExtractionPrompt = `You identify relationships between entities for an AI agent's memory graph.
Given a message and the entities found in it, propose relationships among those entities only.

Allowed relationship kinds:
- KNOWS: person -> person
- WORKS_ON: person -> topic or task
- DEPENDS_ON: task -> task
- RELATES_TO: any entity -> any entity

Return your response as a JSON object with this exact structure:
{
  "relations": [
    {"from": "entity name", "kind": "WORKS_ON", "to": "entity name"}
  ]
}

Only propose relationships the message states or clearly implies. If there are
none, return {"relations": []}. Return ONLY the JSON object, no additional text.`

// RelationMention is a proposed relationship between two extracted entity
// names, prior to resolution.
type RelationMention struct {
	From string
	Kind graph.RelKind
	To   string
}

// Extractor turns conversation text into typed entity sets via the language
// model. All interpretation of the model's output is best-effort: malformed
// output degrades to an empty result, never an error the caller must handle.
type Extractor struct {
	client CompletionClient
	logger *zap.Logger
}

// NewExtractor creates an extractor on top of a completion client.
func NewExtractor(client CompletionClient) *Extractor {
	return &Extractor{
		client: client,
		logger: logger.Get(),
	}
}

// Extract runs the entity extraction pass over one message. A transport
// failure is returned so the caller can log it, but the entity set is always
// usable.
func (e *Extractor) Extract(ctx context.Context, message string) (graph.ExtractedEntities, error) {
	raw, err := e.client.Complete(ctx, entityExtractionPrompt, message)
	if err != nil {
		return graph.EmptyEntities(), err
	}
	return ParseEntities(raw), nil
}

// ExtractRelations runs the relation pass over one message, constrained to
// the given entity names.
func (e *Extractor) ExtractRelations(ctx context.Context, message string, entities graph.ExtractedEntities) ([]RelationMention, error) {
	if entities.IsEmpty() {
		return nil, nil
	}

	var known []string
	known = append(known, entities.People...)
	known = append(known, entities.Topics...)
	known = append(known, entities.Tasks...)
	known = append(known, entities.Documents...)

	input := "Entities: " + strings.Join(known, ", ") + "\n\nMessage: " + message
	raw, err := e.client.Complete(ctx, relationExtractionPrompt, input)
	if err != nil {
		return nil, err
	}
	return ParseRelations(raw), nil
}

// ParseEntities interprets raw extraction output into a typed entity set.
// Pure function, tolerant of everything a language model gets wrong: missing
// keys become empty arrays, non-array values are ignored, extra keys are
// ignored, surrounding prose is stripped, and unparseable text yields an
// empty set. Exact duplicates within a key are removed.
func ParseEntities(raw string) graph.ExtractedEntities {
	parsed, ok := parseJSONObject(raw)
	if !ok {
		return graph.EmptyEntities()
	}
	return graph.ExtractedEntities{
		People:    stringArray(parsed, "people"),
		Topics:    stringArray(parsed, "topics"),
		Tasks:     stringArray(parsed, "tasks"),
		Documents: stringArray(parsed, "documents"),
	}
}

// ParseRelations interprets raw relation output. Entries with unknown kinds
// or missing endpoints are dropped.
func ParseRelations(raw string) []RelationMention {
	parsed, ok := parseJSONObject(raw)
	if !ok {
		return nil
	}
	items, ok := parsed["relations"].([]interface{})
	if !ok {
		return nil
	}

	var relations []RelationMention
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		from, _ := m["from"].(string)
		to, _ := m["to"].(string)
		kindStr, _ := m["kind"].(string)
		kind := graph.RelKind(strings.ToUpper(strings.TrimSpace(kindStr)))
		if from == "" || to == "" {
			continue
		}
		switch kind {
		case graph.RelKnows, graph.RelWorksOn, graph.RelDependsOn, graph.RelRelatesTo:
			relations = append(relations, RelationMention{From: from, Kind: kind, To: to})
		}
	}
	return relations
}

// parseJSONObject pulls the first {...} span out of raw and unmarshals it.
// Models routinely wrap their JSON in prose.
func parseJSONObject(raw string) (map[string]interface{}, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, false
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// stringArray extracts a deduplicated string array for a key, tolerating
// missing keys, null values and mixed-type arrays.
func stringArray(parsed map[string]interface{}, key string) []string {
	result := []string{}
	arr, ok := parsed[key].([]interface{})
	if !ok {
		return result
	}

	seen := make(map[string]bool)
	for _, v := range arr {
		s, ok := v.(string)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	return result
}
