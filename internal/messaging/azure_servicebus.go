package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/gurpos/services/sync/config"
)

// ServiceBusClient sends push batches to the sync queue. Devices on
// unreliable links enqueue instead of holding an HTTP request open.
type ServiceBusClient interface {
	SendMessage(ctx context.Context, body interface{}) error
	Close() error
}

type serviceBusClient struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// NewServiceBusClient creates a new Azure Service Bus sender client
func NewServiceBusClient(cfg config.AzureConfig) (ServiceBusClient, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusClient{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// SendMessage sends a message to the Service Bus queue
func (s *serviceBusClient) SendMessage(ctx context.Context, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message body")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "sync-service",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return s.sender.SendMessage(ctx, msg, nil)
}

// Close closes the Service Bus client
func (s *serviceBusClient) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if s.client != nil {
		return s.client.Close(context.Background())
	}
	return nil
}

// MessageHandler processes one received queue message.
type MessageHandler func(ctx context.Context, message *azservicebus.ReceivedMessage) error

// Receiver consumes push batches off the sync queue and hands them to a
// handler. Failed messages are abandoned so the bus redelivers them.
type Receiver struct {
	client    *azservicebus.Client
	receiver  *azservicebus.Receiver
	queueName string
}

// NewReceiver creates a queue receiver.
func NewReceiver(cfg config.AzureConfig) (*Receiver, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	receiver, err := client.NewReceiverForQueue(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus receiver")
	}

	return &Receiver{
		client:    client,
		receiver:  receiver,
		queueName: cfg.QueueName,
	}, nil
}

// Run receives messages until the context is canceled.
func (r *Receiver) Run(ctx context.Context, handler MessageHandler) error {
	log.Info().Str("queue", r.queueName).Msg("Service Bus receiver started")

	for {
		messages, err := r.receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("Failed to receive messages")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, message := range messages {
			if err := handler(ctx, message); err != nil {
				log.Error().Err(err).Msg("Failed to process message")
				if abandonErr := r.receiver.AbandonMessage(ctx, message, nil); abandonErr != nil {
					log.Error().Err(abandonErr).Msg("Failed to abandon message")
				}
				continue
			}
			if err := r.receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Msg("Failed to complete message")
			}
		}
	}
}

// Close closes the receiver and its client.
func (r *Receiver) Close() error {
	if r.receiver != nil {
		if err := r.receiver.Close(context.Background()); err != nil {
			return err
		}
	}
	if r.client != nil {
		return r.client.Close(context.Background())
	}
	return nil
}
