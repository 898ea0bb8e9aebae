package app

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawassist/internal/model"
)

type callLog struct {
	events []string
}

func (l *callLog) add(event string) {
	l.events = append(l.events, event)
}

type fakeConversationStore struct {
	conversations map[uint]*model.Conversation
	titles        map[uint]string
}

func newFakeConversationStore(conversations ...*model.Conversation) *fakeConversationStore {
	s := &fakeConversationStore{
		conversations: make(map[uint]*model.Conversation),
		titles:        make(map[uint]string),
	}
	for _, c := range conversations {
		s.conversations[c.ID] = c
	}
	return s
}

func (f *fakeConversationStore) Create(conversation *model.Conversation) error {
	f.conversations[conversation.ID] = conversation
	return nil
}

func (f *fakeConversationStore) ListByUserID(userID uint) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, c := range f.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConversationStore) GetByIDAndUserID(conversationID, userID uint) (*model.Conversation, error) {
	c := f.conversations[conversationID]
	if c == nil || c.UserID != userID {
		return nil, nil
	}
	return c, nil
}

func (f *fakeConversationStore) UpdateTitle(conversationID, _ uint, title string) error {
	f.titles[conversationID] = title
	return nil
}

func (f *fakeConversationStore) Touch(_, _ uint) error { return nil }

func (f *fakeConversationStore) DeleteByIDAndUserID(conversationID, _ uint) error {
	delete(f.conversations, conversationID)
	return nil
}

type fakeTurnStore struct {
	turns []model.Turn
}

func (f *fakeTurnStore) ListByConversationID(conversationID uint, limit int) ([]model.Turn, error) {
	all, _ := f.ListAllByConversationID(conversationID)
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeTurnStore) ListAllByConversationID(conversationID uint) ([]model.Turn, error) {
	var out []model.Turn
	for _, turn := range f.turns {
		if turn.ConversationID == conversationID {
			out = append(out, turn)
		}
	}
	return out, nil
}

func (f *fakeTurnStore) CountByConversationID(conversationID uint) (int64, error) {
	all, _ := f.ListAllByConversationID(conversationID)
	return int64(len(all)), nil
}

func (f *fakeTurnStore) DeleteByConversationID(conversationID uint) error {
	var kept []model.Turn
	for _, turn := range f.turns {
		if turn.ConversationID != conversationID {
			kept = append(kept, turn)
		}
	}
	f.turns = kept
	return nil
}

type fakeHistoryCache struct {
	log      *callLog
	getCalls int
}

func (f *fakeHistoryCache) GetHistory(_ context.Context, _ uint) ([]model.Turn, bool, error) {
	f.getCalls++
	return nil, false, nil
}

func (f *fakeHistoryCache) SetHistory(_ context.Context, _ uint, _ []model.Turn) error { return nil }

func (f *fakeHistoryCache) DeleteHistory(_ context.Context, _ uint) error {
	f.log.add("purge")
	return nil
}

func (f *fakeHistoryCache) MarkDirty(_ context.Context, _ uint) error {
	f.log.add("dirty")
	return nil
}

func (f *fakeHistoryCache) IsDirty(_ context.Context, _ uint) (bool, error) { return false, nil }

type fakeTurnPublisher struct {
	log       *callLog
	published []model.Turn
}

func (f *fakeTurnPublisher) Publish(_ context.Context, turn model.Turn) error {
	f.log.add("publish " + turn.Role)
	f.published = append(f.published, turn)
	return nil
}

type fakeAnswerPipeline struct {
	log   *callLog
	reply string
}

func (f *fakeAnswerPipeline) Answer(_ context.Context, _ string, _ map[string]string) string {
	f.log.add("answer")
	return f.reply
}

func TestAskRemarksDirtyAroundSlowPipeline(t *testing.T) {
	log := &callLog{}
	cache := &fakeHistoryCache{log: log}
	publisher := &fakeTurnPublisher{log: log}
	pipeline := &fakeAnswerPipeline{log: log, reply: "Here is my advice."}
	conversations := newFakeConversationStore(&model.Conversation{ID: 1, UserID: 1, Title: "New Conversation"})

	s := NewChatService(
		conversations,
		&fakeTurnStore{},
		publisher,
		cache,
		pipeline,
		&fakeGenerator{reply: "Arrest Rights Question"},
		NewUploadService(),
	)

	result, err := s.Ask(context.Background(), AskInput{UserID: 1, ConversationID: 1, Query: "what are my rights during arrest"})
	require.NoError(t, err)
	require.Len(t, result.Turns, 2)

	// The marker must be refreshed after the pipeline runs, just before the
	// assistant turn is published; the first marker can expire meanwhile.
	assert.Equal(t, []string{
		"dirty", "purge", "publish user",
		"answer",
		"dirty", "purge", "publish assistant",
	}, log.events)
	assert.Equal(t, "Arrest Rights Question", result.Title)
}

func TestExportTranscriptCoversAllTurns(t *testing.T) {
	turns := &fakeTurnStore{}
	for i := 0; i < 250; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		turns.turns = append(turns.turns, model.Turn{
			ConversationID: 1,
			UserID:         1,
			Role:           role,
			Content:        fmt.Sprintf("turn %d", i),
		})
	}
	cache := &fakeHistoryCache{log: &callLog{}}
	s := &ChatService{
		conversationRepo: newFakeConversationStore(&model.Conversation{ID: 1, UserID: 1}),
		turnRepo:         turns,
		historyCache:     cache,
	}

	transcript, err := s.ExportTranscript(1, 1)
	require.NoError(t, err)

	// Every turn appears, beyond the history list clamp, and the cache is
	// never consulted.
	assert.Equal(t, 250, strings.Count(transcript, "\n"))
	assert.True(t, strings.HasPrefix(transcript, "user: turn 0\n"))
	assert.Contains(t, transcript, "assistant: turn 249\n")
	assert.Equal(t, 0, cache.getCalls)
}

func TestExportTranscriptUnknownConversation(t *testing.T) {
	s := &ChatService{
		conversationRepo: newFakeConversationStore(),
		turnRepo:         &fakeTurnStore{},
	}

	_, err := s.ExportTranscript(1, 99)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestTrimTurns(t *testing.T) {
	turns := []model.Turn{
		{Content: "one"},
		{Content: "two"},
		{Content: "three"},
	}

	assert.Len(t, trimTurns(turns, 0), 3)
	assert.Len(t, trimTurns(turns, 5), 3)

	trimmed := trimTurns(turns, 2)
	assert.Len(t, trimmed, 2)
	// Keeps the most recent turns.
	assert.Equal(t, "two", trimmed[0].Content)
	assert.Equal(t, "three", trimmed[1].Content)
}
