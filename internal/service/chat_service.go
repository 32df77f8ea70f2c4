package service

import (
	"context"
	"strings"
	"time"

	"chatsync-be/internal/dto"
	"chatsync-be/internal/entity"
	"chatsync-be/internal/pkg/logger"
	"chatsync-be/internal/pkg/serverutils"
	"chatsync-be/internal/repository/memory"
	"chatsync-be/internal/repository/unitofwork"
	"chatsync-be/pkg/apperror"
	"chatsync-be/pkg/events"

	"github.com/google/uuid"
)

const (
	defaultMessagePageSize = 100
	defaultChatPageSize    = 50
)

// EventPublisher puts domain events on the bus. Implemented by pkg/nats.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IChatService interface {
	CreateChat(ctx context.Context, userId uuid.UUID, req *dto.CreateChatRequest) (*dto.CreateChatResponse, error)
	ListChats(ctx context.Context, userId uuid.UUID, req *dto.ListChatsRequest) (*dto.ListChatsResponse, error)
	GetMessages(ctx context.Context, userId uuid.UUID, req *dto.GetMessagesRequest) (*dto.GetMessagesResponse, error)
	// VerifyOwnership returns NotFound for unknown chats and Forbidden for chats
	// owned by someone else.
	VerifyOwnership(ctx context.Context, userId, chatId uuid.UUID) error
}

type chatService struct {
	uowFactory unitofwork.RepositoryFactory
	ownership  *memory.OwnershipCache
	events     EventPublisher
	logger     logger.ILogger
	now        func() time.Time
}

// NewChatService wires the chat catalog. eventPublisher may be nil when no bus is configured.
func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	ownership *memory.OwnershipCache,
	eventPublisher EventPublisher,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory: uowFactory,
		ownership:  ownership,
		events:     eventPublisher,
		logger:     log,
		now:        time.Now,
	}
}

func (s *chatService) CreateChat(ctx context.Context, userId uuid.UUID, req *dto.CreateChatRequest) (*dto.CreateChatResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, apperror.Validation("title must not be empty")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	chat := entity.Chat{
		Id:           uuid.New(),
		UserId:       userId,
		Title:        req.Title,
		LastActivity: now,
		CreatedAt:    now,
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ChatRepository().Create(ctx, &chat); err != nil {
		return nil, err
	}
	s.ownership.Put(chat.Id, userId)

	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewChatCreated(userId, chat.Id, chat.Title, now)); err != nil {
			s.logger.Warn("ChatService", "Failed to publish chat created event", map[string]interface{}{"chat_id": chat.Id, "error": err})
		}
	}

	s.logger.Info("ChatService", "Chat created", map[string]interface{}{"chat_id": chat.Id, "user_id": userId})
	return &dto.CreateChatResponse{Chat: toChatResponse(&chat)}, nil
}

func (s *chatService) ListChats(ctx context.Context, userId uuid.UUID, req *dto.ListChatsRequest) (*dto.ListChatsResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultChatPageSize
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	chats, err := uow.ChatRepository().FindAllByUser(ctx, userId, limit, req.Offset)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ChatResponse, 0, len(chats))
	for _, chat := range chats {
		s.ownership.Put(chat.Id, chat.UserId)
		res = append(res, toChatResponse(chat))
	}
	out := &dto.ListChatsResponse{Chats: res}
	if len(chats) == limit {
		next := req.Offset + len(chats)
		out.NextOffset = &next
	}
	return out, nil
}

func (s *chatService) GetMessages(ctx context.Context, userId uuid.UUID, req *dto.GetMessagesRequest) (*dto.GetMessagesResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := s.VerifyOwnership(ctx, userId, req.ChatId); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultMessagePageSize
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.MessageRepository().ListByChat(ctx, req.ChatId, req.AfterSeq, limit)
	if err != nil {
		return nil, err
	}

	res := &dto.GetMessagesResponse{Messages: make([]*dto.MessageResponse, 0, len(messages))}
	for _, m := range messages {
		res.Messages = append(res.Messages, toMessageResponse(m))
	}
	if len(messages) == limit {
		next := messages[len(messages)-1].Seq
		res.NextCursor = &next
	}
	return res, nil
}

func (s *chatService) VerifyOwnership(ctx context.Context, userId, chatId uuid.UUID) error {
	owner, ok := s.ownership.Owner(chatId)
	if !ok {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		chat, err := uow.ChatRepository().FindByID(ctx, chatId)
		if err != nil {
			return err
		}
		if chat == nil {
			return apperror.NotFound("chat not found")
		}
		owner = chat.UserId
		s.ownership.Put(chatId, owner)
	}

	if owner != userId {
		return apperror.Forbidden("chat belongs to another user")
	}
	return nil
}

func toChatResponse(chat *entity.Chat) *dto.ChatResponse {
	return &dto.ChatResponse{
		Id:           chat.Id,
		Title:        chat.Title,
		LastActivity: chat.LastActivity,
		CreatedAt:    chat.CreatedAt,
		UpdatedAt:    chat.UpdatedAt,
	}
}

func toMessageResponse(m *entity.Message) *dto.MessageResponse {
	return &dto.MessageResponse{
		Id:              m.Id,
		Seq:             m.Seq,
		Role:            string(m.Role),
		Content:         m.Content,
		ClientMessageId: m.ClientMessageId,
		CreatedAt:       m.CreatedAt,
	}
}
