package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "graphmem/pkg/errors"
)

// fakeSession records executed statements and serves canned rows. execFn, when
// set, dispatches on statement text so one fake can answer different reads;
// without it, conversation existence lookups succeed and everything else is
// empty. failOn rejects any group containing a matching statement, committing
// nothing, the way a transaction rollback leaves no partial state behind.
type fakeSession struct {
	execFn   func(statement string) ([]Row, error)
	groupErr error
	failOn   string
	executed []string
	groups   [][]string
	closed   int
}

func (f *fakeSession) Execute(_ context.Context, statement string) ([]Row, error) {
	f.executed = append(f.executed, statement)
	if f.execFn != nil {
		return f.execFn(statement)
	}
	if strings.Contains(statement, "RETURN c.id AS id") {
		return []Row{{"id": "c1"}}, nil
	}
	return nil, nil
}

func (f *fakeSession) ExecuteGroup(_ context.Context, statements []string) error {
	if f.groupErr != nil {
		return f.groupErr
	}
	if f.failOn != "" {
		for _, statement := range statements {
			if strings.Contains(statement, f.failOn) {
				return errors.New("statement failed, group rolled back")
			}
		}
	}
	f.groups = append(f.groups, statements)
	return nil
}

func (f *fakeSession) Close(_ context.Context) error {
	f.closed++
	return nil
}

func messageRow(id, role, content, timestamp string) Row {
	return Row{"id": id, "role": role, "content": content, "timestamp": timestamp}
}

func TestStore_AddMessage_SingleWriteGroup(t *testing.T) {
	session := &fakeSession{}
	store := NewStoreWithSession(session)

	person, err := NewEntityNode(KindPerson, "alice", "Alice")
	require.NoError(t, err)
	topic, err := NewEntityNode(KindTopic, "graphql", "GraphQL")
	require.NoError(t, err)

	_, err = store.AddMessage(context.Background(), "c1", RoleUser, "Alice is working on GraphQL",
		[]EntityNode{person, topic},
		[]Mention{{Kind: KindPerson, EntityID: person.ID}, {Kind: KindTopic, EntityID: topic.ID}},
	)
	require.NoError(t, err)

	require.Len(t, session.groups, 1)
	group := session.groups[0]
	require.Len(t, group, 6)
	assert.Contains(t, group[0], "CREATE (:Message {")
	assert.Contains(t, group[1], "CREATE (m)-[:PART_OF]->(c)")
	assert.Contains(t, group[2], "CREATE (:Person {")
	assert.Contains(t, group[3], "CREATE (:Topic {")
	assert.Contains(t, group[4], "[:MENTIONED_IN]")
	assert.Contains(t, group[5], "[:MENTIONED_IN]")
}

func TestStore_AddMessage_GroupFailureIsAtomic(t *testing.T) {
	session := &fakeSession{groupErr: errors.New("constraint violation")}
	store := NewStoreWithSession(session)

	_, err := store.AddMessage(context.Background(), "c1", RoleUser, "hello", nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypePersistence))
	assert.True(t, errors.Is(err, session.groupErr))
	assert.Empty(t, session.groups)
}

func TestStore_AddMessage_FailingLastStatementCommitsNothing(t *testing.T) {
	// the mention edge is the last statement of the group; its failure must
	// take the message and entity creates down with it
	session := &fakeSession{failOn: "[:MENTIONED_IN]"}
	store := NewStoreWithSession(session)

	person, err := NewEntityNode(KindPerson, "alice", "Alice")
	require.NoError(t, err)

	_, err = store.AddMessage(context.Background(), "c1", RoleUser, "Alice again",
		[]EntityNode{person},
		[]Mention{{Kind: KindPerson, EntityID: person.ID}},
	)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypePersistence))
	assert.Empty(t, session.groups)
}

func TestStore_AddMessage_UnknownConversation(t *testing.T) {
	session := &fakeSession{
		execFn: func(string) ([]Row, error) { return nil, nil },
	}
	store := NewStoreWithSession(session)

	_, err := store.AddMessage(context.Background(), "ghost", RoleUser, "hello", nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
	assert.Empty(t, session.groups)
}

func TestStore_AddMessage_InvalidRoleFailsBeforeWrite(t *testing.T) {
	session := &fakeSession{}
	store := NewStoreWithSession(session)

	_, err := store.AddMessage(context.Background(), "c1", "system", "hello", nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
	assert.Empty(t, session.groups)
}

func TestStore_MentionEdgesAppendOnly(t *testing.T) {
	session := &fakeSession{}
	store := NewStoreWithSession(session)

	mention := Mention{Kind: KindPerson, EntityID: "p1"}
	_, err := store.AddMessage(context.Background(), "c1", RoleUser, "first", nil, []Mention{mention})
	require.NoError(t, err)
	_, err = store.AddMessage(context.Background(), "c1", RoleUser, "second", nil, []Mention{mention})
	require.NoError(t, err)

	require.Len(t, session.groups, 2)
	first := session.groups[0][2]
	second := session.groups[1][2]
	assert.Contains(t, first, "CREATE (e)-[:MENTIONED_IN]->(m)")
	assert.Contains(t, second, "CREATE (e)-[:MENTIONED_IN]->(m)")
	// distinct message ids make these distinct edges, not an upsert
	assert.NotEqual(t, first, second)
}

func TestStore_TimestampsNonDecreasing(t *testing.T) {
	session := &fakeSession{}
	store := NewStoreWithSession(session)

	var stamps []time.Time
	for i := 0; i < 5; i++ {
		msg, err := store.AddMessage(context.Background(), "c1", RoleUser, "tick", nil, nil)
		require.NoError(t, err)
		stamps = append(stamps, msg.Timestamp)
	}
	for i := 1; i < len(stamps); i++ {
		assert.False(t, stamps[i].Before(stamps[i-1]))
	}
}

func TestStore_CreateConversation_DefaultTitle(t *testing.T) {
	session := &fakeSession{}
	store := NewStoreWithSession(session)

	conv, err := store.CreateConversation(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "New Conversation", conv.Title)
	assert.NotEmpty(t, conv.ID)

	require.Len(t, session.groups, 1)
	assert.Contains(t, session.groups[0][0], "CREATE (:Conversation {")
}

func TestStore_LookupEntity(t *testing.T) {
	session := &fakeSession{
		execFn: func(statement string) ([]Row, error) {
			if strings.Contains(statement, "'alice'") {
				return []Row{{"id": "p1", "name": "Alice"}}, nil
			}
			return nil, nil
		},
	}
	store := NewStoreWithSession(session)

	ref, found, err := store.LookupEntity(context.Background(), KindPerson, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, EntityRef{ID: "p1", Kind: KindPerson, Name: "Alice"}, ref)

	_, found, err = store.LookupEntity(context.Background(), KindPerson, "bob")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_LookupEntity_BadRowShape(t *testing.T) {
	session := &fakeSession{
		execFn: func(string) ([]Row, error) {
			return []Row{{"id": "p1"}}, nil
		},
	}
	store := NewStoreWithSession(session)

	_, _, err := store.LookupEntity(context.Background(), KindPerson, "alice")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeResultShape))
}

func TestStore_RecentMessages_ChronologicalOrder(t *testing.T) {
	// engine hands rows back newest first; the store reverses them
	session := &fakeSession{
		execFn: func(string) ([]Row, error) {
			return []Row{
				messageRow("m3", RoleUser, "third", "2026-08-01T12:02:00Z"),
				messageRow("m2", RoleAssistant, "second", "2026-08-01T12:01:00Z"),
				messageRow("m1", RoleUser, "first", "2026-08-01T12:00:00Z"),
			}, nil
		},
	}
	store := NewStoreWithSession(session)

	messages, err := store.RecentMessages(context.Background(), "c1", 15)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "third", messages[2].Content)
}

func TestStore_MessagesByEntity_TimeColumnVariants(t *testing.T) {
	native := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	session := &fakeSession{
		execFn: func(string) ([]Row, error) {
			return []Row{
				{"id": "m2", "role": RoleUser, "content": "b", "timestamp": native},
				messageRow("m1", RoleUser, "a", "2026-08-01T11:00:00Z"),
			}, nil
		},
	}
	store := NewStoreWithSession(session)

	messages, err := store.MessagesByEntity(context.Background(), KindPerson, "p1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, native, messages[0].Timestamp)
}

func TestStore_CoMentions(t *testing.T) {
	session := &fakeSession{
		execFn: func(string) ([]Row, error) {
			return []Row{
				{"id": "t1", "name": "GraphQL", "kind": "Topic"},
				{"id": "p2", "name": "Bob", "kind": "Person"},
			}, nil
		},
	}
	store := NewStoreWithSession(session)

	refs, err := store.CoMentions(context.Background(), KindPerson, "p1")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, KindTopic, refs[0].Kind)
	assert.Equal(t, "Bob", refs[1].Name)
}

func TestStore_KnownPeople(t *testing.T) {
	session := &fakeSession{
		execFn: func(string) ([]Row, error) {
			return []Row{{"id": "p2", "name": "Bob"}}, nil
		},
	}
	store := NewStoreWithSession(session)

	refs, err := store.KnownPeople(context.Background(), "p1", 2)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, KindPerson, refs[0].Kind)

	require.Len(t, session.executed, 1)
	assert.Contains(t, session.executed[0], "[:KNOWS*1..2]")
}

func TestStore_DeleteConversation(t *testing.T) {
	session := &fakeSession{}
	store := NewStoreWithSession(session)

	require.NoError(t, store.DeleteConversation(context.Background(), "c1"))
	require.Len(t, session.groups, 1)
	assert.Contains(t, session.groups[0][0], "DETACH DELETE m, c")
}

func TestStore_SetTaskStatus_InvalidStatus(t *testing.T) {
	session := &fakeSession{}
	store := NewStoreWithSession(session)

	err := store.SetTaskStatus(context.Background(), "t1", "done")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeQueryBuild))
	assert.Empty(t, session.groups)
}

func TestStore_CloseReleasesSessionOnce(t *testing.T) {
	session := &fakeSession{}
	store := NewStoreWithSession(session)

	require.NoError(t, store.Close(context.Background()))
	require.NoError(t, store.Close(context.Background()))
	assert.Equal(t, 1, session.closed)
}
