package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatsync-be/internal/dto"
	"chatsync-be/internal/entity"
	"chatsync-be/internal/pkg/logger"
	"chatsync-be/internal/pkg/serverutils"
	"chatsync-be/internal/repository/unitofwork"
	"chatsync-be/pkg/apperror"
	"chatsync-be/pkg/events"
	"chatsync-be/pkg/realtime"

	"github.com/google/uuid"
)

type ISendService interface {
	// HandleSend persists a user message and queues the reply job. It returns
	// as soon as the message is stored; the reply arrives later on connId.
	HandleSend(ctx context.Context, userId, connId uuid.UUID, payload realtime.SendPayload) (*entity.Message, error)
}

type sendService struct {
	uowFactory       unitofwork.RepositoryFactory
	chatService      IChatService
	publisherService IPublisherService
	events           EventPublisher
	logger           logger.ILogger
	now              func() time.Time
}

func NewSendService(
	uowFactory unitofwork.RepositoryFactory,
	chatService IChatService,
	publisherService IPublisherService,
	eventPublisher EventPublisher,
	log logger.ILogger,
) ISendService {
	return &sendService{
		uowFactory:       uowFactory,
		chatService:      chatService,
		publisherService: publisherService,
		events:           eventPublisher,
		logger:           log,
		now:              time.Now,
	}
}

func (s *sendService) HandleSend(ctx context.Context, userId, connId uuid.UUID, payload realtime.SendPayload) (*entity.Message, error) {
	req := dto.SendChatRequest{
		ChatId:          payload.ChatId,
		Content:         strings.TrimSpace(payload.Content),
		ClientMessageId: payload.ClientMessageId,
	}
	if req.Content == "" {
		return nil, apperror.Validation("message content must not be empty")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	// cached check before taking the row lock
	if err := s.chatService.VerifyOwnership(ctx, userId, req.ChatId); err != nil {
		return nil, err
	}

	msg, err := s.appendUserMessage(ctx, userId, &req)
	if err != nil {
		return nil, err
	}

	job := dto.ReplyJob{
		UserId:          userId,
		ConnId:          connId,
		ChatId:          msg.ChatId,
		UserMessageId:   msg.Id,
		UserMessageSeq:  msg.Seq,
		ClientMessageId: msg.ClientMessageId,
	}
	if err := s.publisherService.PublishReplyJob(ctx, job); err != nil {
		s.logger.Error("SendService", "Failed to queue reply job", map[string]interface{}{"chat_id": msg.ChatId, "message_id": msg.Id, "error": err})
		return nil, apperror.Wrap(apperror.KindInternal, "could not queue reply", err)
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewChatActivity(userId, msg.ChatId, msg.CreatedAt)); err != nil {
			s.logger.Warn("SendService", "Failed to publish chat activity event", map[string]interface{}{"chat_id": msg.ChatId, "error": err})
		}
	}

	s.logger.Debug("SendService", "User message accepted", map[string]interface{}{
		"chat_id": msg.ChatId,
		"seq":     msg.Seq,
		"conn_id": connId,
	})
	return msg, nil
}

// appendUserMessage stores the message and bumps last_activity in one transaction
// under the chat row lock, so concurrent sends to a chat get consecutive seqs.
func (s *sendService) appendUserMessage(ctx context.Context, userId uuid.UUID, req *dto.SendChatRequest) (*entity.Message, error) {
	var msg *entity.Message
	err := unitofwork.InTransaction(ctx, s.uowFactory.NewUnitOfWork(ctx), func(uow unitofwork.UnitOfWork) error {
		chat, err := uow.ChatRepository().FindByIDForUpdate(ctx, req.ChatId)
		if err != nil {
			return err
		}
		if chat == nil {
			return apperror.NotFound("chat not found")
		}
		if !chat.IsOwnedBy(userId) {
			return apperror.Forbidden("chat belongs to another user")
		}

		now := s.now().UTC()
		msg = &entity.Message{
			Id:              uuid.New(),
			ChatId:          chat.Id,
			Role:            entity.MessageRoleUser,
			Content:         req.Content,
			ClientMessageId: req.ClientMessageId,
			CreatedAt:       now,
		}
		if err := uow.MessageRepository().Append(ctx, msg); err != nil {
			return fmt.Errorf("append user message: %w", err)
		}
		if _, err := uow.ChatRepository().TouchActivity(ctx, chat.Id, now); err != nil {
			return fmt.Errorf("touch chat activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
