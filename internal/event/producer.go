package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nerdbug/user-service/internal/domain"
	pkgkafka "github.com/nerdbug/user-service/pkg/kafka"
)

// Kafka topic constants for user domain events.
const (
	TopicUserRegistered = "user.registered"
	TopicUserUpdated    = "user.updated"
	TopicUserDeleted    = "user.deleted"
)

const (
	aggregateTypeUser = "user"
	sourceUserService = "user-service"
)

// UserEventData is the payload shared by user.registered and user.updated
// events. It deliberately carries no credential material.
type UserEventData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// UserDeletedData is the payload for a user.deleted event.
type UserDeletedData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Producer publishes user domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the user service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publishUserEvent(ctx, TopicUserRegistered, user)
}

// PublishUserUpdated publishes a user.updated event.
func (p *Producer) PublishUserUpdated(ctx context.Context, user *domain.User) error {
	return p.publishUserEvent(ctx, TopicUserUpdated, user)
}

// PublishUserDeleted publishes a user.deleted event.
func (p *Producer) PublishUserDeleted(ctx context.Context, userID, email string) error {
	data := UserDeletedData{ID: userID, Email: email}

	event, err := pkgkafka.NewEvent(TopicUserDeleted, userID, aggregateTypeUser, sourceUserService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", TopicUserDeleted, err)
	}

	if err := p.kafka.Publish(ctx, TopicUserDeleted, event); err != nil {
		return fmt.Errorf("publish %s event: %w", TopicUserDeleted, err)
	}

	p.logger.DebugContext(ctx, "published user event",
		slog.String("topic", TopicUserDeleted),
		slog.String("user_id", userID),
	)

	return nil
}

func (p *Producer) publishUserEvent(ctx context.Context, topic string, user *domain.User) error {
	data := UserEventData{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}

	event, err := pkgkafka.NewEvent(topic, user.ID, aggregateTypeUser, sourceUserService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published user event",
		slog.String("topic", topic),
		slog.String("user_id", user.ID),
	)

	return nil
}
