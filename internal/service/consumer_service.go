package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"chatsync-be/internal/dto"
	"chatsync-be/internal/entity"
	"chatsync-be/internal/pkg/logger"
	"chatsync-be/internal/repository/unitofwork"
	"chatsync-be/pkg/apperror"
	"chatsync-be/pkg/llm"
	"chatsync-be/pkg/realtime"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// ReplyDelivery pushes a frame to one live connection. Implemented by the websocket Hub.
type ReplyDelivery interface {
	// SendToConnection reports false when the connection is gone.
	SendToConnection(userId, connId uuid.UUID, data []byte) bool
}

type IConsumerService interface {
	Consume(ctx context.Context) error
	// Wait blocks until in-flight replies finish.
	Wait()
}

type ConsumerOptions struct {
	// Timeout bounds one responder call. Zero leaves it unbounded.
	Timeout       time.Duration
	Concurrency   int
	HistoryWindow int
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	responder  llm.LLMProvider
	delivery   ReplyDelivery
	logger     logger.ILogger
	opts       ConsumerOptions

	slots chan struct{}
	wg    sync.WaitGroup
	now   func() time.Time
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	responder llm.LLMProvider,
	delivery ReplyDelivery,
	log logger.ILogger,
	opts ConsumerOptions,
) IConsumerService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 20
	}
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		uowFactory: uowFactory,
		responder:  responder,
		delivery:   delivery,
		logger:     log,
		opts:       opts,
		slots:      make(chan struct{}, opts.Concurrency),
		now:        time.Now,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var job dto.ReplyJob
			if err := json.Unmarshal(msg.Payload, &job); err != nil {
				cs.logger.Error("ReplyConsumer", "Dropping undecodable reply job", map[string]interface{}{"error": err})
				msg.Ack()
				continue
			}
			// Ack first: a reply job is never retried, failures surface as `failed` events.
			msg.Ack()

			select {
			case cs.slots <- struct{}{}:
			case <-ctx.Done():
				cs.logger.Warn("ReplyConsumer", "Dropping reply job on shutdown", map[string]interface{}{
					"chat_id":           job.ChatId,
					"client_message_id": job.ClientMessageId,
				})
				return
			}
			cs.wg.Add(1)
			go func() {
				defer func() {
					<-cs.slots
					cs.wg.Done()
				}()
				cs.processJob(ctx, job)
			}()
		}
	}()

	return nil
}

func (cs *consumerService) Wait() {
	cs.wg.Wait()
}

func (cs *consumerService) processJob(ctx context.Context, job dto.ReplyJob) {
	start := cs.now()
	details := map[string]interface{}{"chat_id": job.ChatId, "seq": job.UserMessageSeq}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	recent, err := uow.MessageRepository().ListRecent(ctx, job.ChatId, cs.opts.HistoryWindow)
	if err != nil {
		cs.logger.Error("ReplyConsumer", "Failed to load history", withError(details, err))
		cs.deliverFailure(job, apperror.Wrap(apperror.KindInternal, "could not load conversation", err))
		return
	}

	reply, err := cs.ask(ctx, recent)
	if err != nil {
		cs.logger.Error("ReplyConsumer", "Responder failed", withError(details, err))
		cs.deliverFailure(job, apperror.Responder(err))
		return
	}

	msg, err := cs.appendAssistantMessage(ctx, job.ChatId, reply)
	if err != nil {
		cs.logger.Error("ReplyConsumer", "Failed to store reply", withError(details, err))
		cs.deliverFailure(job, err)
		return
	}

	frame, err := realtime.Encode(realtime.EventReply, realtime.ReplyPayload{
		ChatId:          msg.ChatId,
		MessageId:       msg.Id,
		Seq:             msg.Seq,
		Content:         msg.Content,
		ClientMessageId: job.ClientMessageId,
	})
	if err != nil {
		cs.logger.Error("ReplyConsumer", "Failed to encode reply", withError(details, err))
		return
	}

	if !cs.delivery.SendToConnection(job.UserId, job.ConnId, frame) {
		// stored already; the client picks it up on its next history fetch
		cs.logger.Info("ReplyConsumer", "Reply undeliverable, connection gone", details)
		return
	}

	details["latency_ms"] = cs.now().Sub(start).Milliseconds()
	cs.logger.Info("ReplyConsumer", "Reply delivered", details)
}

func (cs *consumerService) ask(ctx context.Context, recent []*entity.Message) (string, error) {
	if cs.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.opts.Timeout)
		defer cancel()
	}

	history := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		role := llm.RoleUser
		if m.Role == entity.MessageRoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}

	reply, err := cs.responder.Chat(ctx, history)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("responder returned an empty reply")
	}
	return reply, nil
}

func (cs *consumerService) appendAssistantMessage(ctx context.Context, chatId uuid.UUID, content string) (*entity.Message, error) {
	msg := &entity.Message{
		Id:        uuid.New(),
		ChatId:    chatId,
		Role:      entity.MessageRoleAssistant,
		Content:   content,
		CreatedAt: cs.now().UTC(),
	}
	err := unitofwork.InTransaction(ctx, cs.uowFactory.NewUnitOfWork(ctx), func(uow unitofwork.UnitOfWork) error {
		// the row lock orders this append against concurrent sends to the chat
		chat, err := uow.ChatRepository().FindByIDForUpdate(ctx, chatId)
		if err != nil {
			return err
		}
		if chat == nil {
			return apperror.NotFound("chat not found")
		}
		return uow.MessageRepository().Append(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (cs *consumerService) deliverFailure(job dto.ReplyJob, cause error) {
	frame, err := realtime.Encode(realtime.EventFailed, realtime.FailedPayload{
		ChatId:          job.ChatId,
		ClientMessageId: job.ClientMessageId,
		Kind:            string(apperror.KindOf(cause)),
		Reason:          "the assistant could not answer this message",
	})
	if err != nil {
		return
	}
	if !cs.delivery.SendToConnection(job.UserId, job.ConnId, frame) {
		cs.logger.Info("ReplyConsumer", "Failure notice undeliverable, connection gone", map[string]interface{}{"chat_id": job.ChatId})
	}
}

func withError(details map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out["error"] = err
	return out
}
