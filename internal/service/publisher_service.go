package service

import (
	"context"
	"encoding/json"
	"fmt"

	"chatsync-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IPublisherService interface {
	PublishReplyJob(ctx context.Context, job dto.ReplyJob) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (ps *publisherService) PublishReplyJob(ctx context.Context, job dto.ReplyJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal reply job: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("chat_id", job.ChatId.String())

	if err := ps.publisher.Publish(ps.topicName, msg); err != nil {
		return fmt.Errorf("publish reply job: %w", err)
	}
	return nil
}
