package settlement

import (
	"context"
	"time"

	commonaws "franchise-ledger/internal/common/aws"
	"franchise-ledger/internal/models"
)

const (
	EventSettlementConfirmed = "settlement.confirmed"
	EventSettlementFailed    = "settlement.failed"
)

// Event announces the final settlement state of a ledger record.
type Event struct {
	Type        string            `json:"type"`
	Ledger      models.LedgerName `json:"ledger"`
	RecordID    string            `json:"recordId"`
	FranchiseID string            `json:"franchiseId"`
	Reference   string            `json:"reference,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// SNSPublisher publishes ledger events to an SNS topic.
type SNSPublisher struct {
	client   *commonaws.SNSClient
	topicARN string
}

func NewSNSPublisher(client *commonaws.SNSClient, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) Publish(ctx context.Context, event Event) error {
	_, err := p.client.PublishJSON(ctx, p.topicARN, event.Type, event, map[string]string{
		"eventType":   event.Type,
		"ledger":      string(event.Ledger),
		"franchiseId": event.FranchiseID,
	})
	return err
}
