package tracking

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// EventType enumerates engagement event kinds carried on the queue.
type EventType string

const (
	EventOpen  EventType = "opened"
	EventClick EventType = "clicked"
)

// Event is one engagement hit against a campaign send.
type Event struct {
	EventType EventType `json:"event_type"`
	SendID    string    `json:"send_id"`
	LinkURL   string    `json:"link_url,omitempty"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher pushes engagement events onto SQS. Publishing is
// fire-and-forget: the HTTP handlers must answer pixel and redirect
// requests immediately regardless of queue health.
type Publisher struct {
	client   *sqs.Client
	queueURL string
}

func NewPublisher(client *sqs.Client, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

func (p *Publisher) Publish(ctx context.Context, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("ERROR marshal tracking event: %v", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			log.Printf("ERROR publishing tracking event to SQS: %v", err)
		}
	}()
}
