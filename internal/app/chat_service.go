package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lawassist/internal/model"
	"lawassist/internal/rag"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrQueryEmpty           = errors.New("query content is empty")
	ErrTurnEnqueue          = errors.New("turn enqueue failed")
)

type AsyncTurnPublisher interface {
	Publish(ctx context.Context, turn model.Turn) error
}

type ConversationStore interface {
	Create(conversation *model.Conversation) error
	ListByUserID(userID uint) ([]model.Conversation, error)
	GetByIDAndUserID(conversationID, userID uint) (*model.Conversation, error)
	UpdateTitle(conversationID, userID uint, title string) error
	Touch(conversationID, userID uint) error
	DeleteByIDAndUserID(conversationID, userID uint) error
}

type TurnStore interface {
	ListByConversationID(conversationID uint, limit int) ([]model.Turn, error)
	ListAllByConversationID(conversationID uint) ([]model.Turn, error)
	CountByConversationID(conversationID uint) (int64, error)
	DeleteByConversationID(conversationID uint) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID uint) ([]model.Turn, bool, error)
	SetHistory(ctx context.Context, conversationID uint, turns []model.Turn) error
	DeleteHistory(ctx context.Context, conversationID uint) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
}

// AnswerPipeline is the RAG pipeline contract. It degrades internally and
// never fails; see rag.Pipeline.
type AnswerPipeline interface {
	Answer(ctx context.Context, query string, uploads map[string]string) string
}

type ChatService struct {
	conversationRepo ConversationStore
	turnRepo         TurnStore
	publisher        AsyncTurnPublisher
	historyCache     HistoryCache
	pipeline         AnswerPipeline
	generator        rag.Generator
	uploads          *UploadService
}

func NewChatService(
	conversationRepo ConversationStore,
	turnRepo TurnStore,
	publisher AsyncTurnPublisher,
	historyCache HistoryCache,
	pipeline AnswerPipeline,
	generator rag.Generator,
	uploads *UploadService,
) *ChatService {
	return &ChatService{
		conversationRepo: conversationRepo,
		turnRepo:         turnRepo,
		publisher:        publisher,
		historyCache:     historyCache,
		pipeline:         pipeline,
		generator:        generator,
		uploads:          uploads,
	}
}

type CreateConversationInput struct {
	UserID uint
	Title  string
}

func (s *ChatService) CreateConversation(input CreateConversationInput) (*model.Conversation, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultConversationTitle
	}

	conversation := &model.Conversation{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.conversationRepo.Create(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *ChatService) ListConversations(userID uint) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.conversationRepo.ListByUserID(userID)
}

// DeleteConversation removes the conversation, its turns, its cached
// history, and any uploads attached to it.
func (s *ChatService) DeleteConversation(userID, conversationID uint) error {
	if userID == 0 || conversationID == 0 {
		return ErrInvalidInput
	}
	conversation, err := s.conversationRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return ErrConversationNotFound
	}
	if err := s.turnRepo.DeleteByConversationID(conversationID); err != nil {
		return err
	}
	if err := s.conversationRepo.DeleteByIDAndUserID(conversationID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(context.Background(), conversationID)
	}
	if s.uploads != nil {
		s.uploads.Clear(userID, conversationID)
	}
	return nil
}

type AskInput struct {
	UserID         uint
	ConversationID uint
	Query          string
}

type AskResult struct {
	Turns []model.Turn `json:"turns"`
	Title string       `json:"title,omitempty"`
}

// Ask runs the RAG pipeline for one user question and records both turns.
// After the first user turn the conversation title is derived and set.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	if input.UserID == 0 || input.ConversationID == 0 {
		return nil, ErrInvalidInput
	}

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrQueryEmpty
	}

	conversation, err := s.conversationRepo.GetByIDAndUserID(input.ConversationID, input.UserID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	priorTurns, err := s.turnRepo.CountByConversationID(input.ConversationID)
	if err != nil {
		return nil, err
	}

	var uploads map[string]string
	if s.uploads != nil {
		uploads = s.uploads.List(input.UserID, input.ConversationID)
	}

	userTurn := &model.Turn{
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           model.RoleUser,
		Content:        query,
		CreatedAt:      time.Now(),
	}
	if s.publisher == nil {
		return nil, ErrTurnEnqueue
	}
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, input.ConversationID)
		_ = s.historyCache.DeleteHistory(ctx, input.ConversationID)
	}
	if err := s.publisher.Publish(ctx, *userTurn); err != nil {
		return nil, ErrTurnEnqueue
	}

	answer := s.pipeline.Answer(ctx, query, uploads)

	assistantTurn := &model.Turn{
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           model.RoleAssistant,
		Content:        answer,
		CreatedAt:      time.Now(),
	}
	// The pipeline can take long enough for the first dirty marker to
	// expire; re-mark so a concurrent read cannot cache a history missing
	// the assistant turn.
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, input.ConversationID)
		_ = s.historyCache.DeleteHistory(ctx, input.ConversationID)
	}
	if err := s.publisher.Publish(ctx, *assistantTurn); err != nil {
		return nil, ErrTurnEnqueue
	}

	_ = s.conversationRepo.Touch(input.ConversationID, input.UserID)

	result := &AskResult{Turns: []model.Turn{*userTurn, *assistantTurn}}
	if priorTurns == 0 {
		title := s.deriveTitle(ctx, query, uploads)
		if err := s.conversationRepo.UpdateTitle(input.ConversationID, input.UserID, title); err == nil {
			result.Title = title
		}
	}
	return result, nil
}

func (s *ChatService) GetHistory(userID, conversationID uint, limit int) ([]model.Turn, error) {
	if userID == 0 || conversationID == 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	ctx := context.Background()
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, conversationID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, conversationID); cacheErr == nil && hit {
				return trimTurns(cached, limit), nil
			}
		}
	}

	turns, err := s.turnRepo.ListByConversationID(conversationID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, conversationID, turns)
		}
	}
	return turns, nil
}

// ExportTranscript renders the conversation as plain text, one turn per
// line, formatted "<role>: <content>". It reads the database directly,
// bypassing both the history cache and the list clamp: the export must
// cover every turn and never serve stale history.
func (s *ChatService) ExportTranscript(userID, conversationID uint) (string, error) {
	if userID == 0 || conversationID == 0 {
		return "", ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return "", err
	}
	if conversation == nil {
		return "", ErrConversationNotFound
	}

	turns, err := s.turnRepo.ListAllByConversationID(conversationID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	return b.String(), nil
}

func trimTurns(turns []model.Turn, limit int) []model.Turn {
	if limit <= 0 || limit >= len(turns) {
		return turns
	}
	return turns[len(turns)-limit:]
}
