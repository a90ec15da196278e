package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

// Consumer drains the tracking queue and persists engagement state onto
// campaign send rows. Open/click timestamps are first-touch: repeated
// hits on the same send never overwrite the original timestamp.
type Consumer struct {
	sqsClient *sqs.Client
	queueURL  string
	db        *sql.DB
	done      chan struct{}
}

func NewConsumer(sqsClient *sqs.Client, queueURL string, db *sql.DB) *Consumer {
	return &Consumer{
		sqsClient: sqsClient,
		queueURL:  queueURL,
		db:        db,
		done:      make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	log.Printf("tracking consumer started (queue=%s)", c.queueURL)
	go c.poll(ctx)
}

func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("SQS receive error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			var evt Event
			if err := json.Unmarshal([]byte(*msg.Body), &evt); err != nil {
				log.Printf("SQS bad message: %v", err)
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			if err := c.processEvent(ctx, evt); err != nil {
				log.Printf("SQS process error (%s): %v", evt.EventType, err)
				continue
			}

			c.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
}

func (c *Consumer) processEvent(ctx context.Context, evt Event) error {
	sendID, err := uuid.Parse(evt.SendID)
	if err != nil {
		log.Printf("tracking event with bad send id %q dropped", evt.SendID)
		return nil
	}

	switch evt.EventType {
	case EventOpen:
		return c.processOpen(ctx, sendID, evt)
	case EventClick:
		return c.processClick(ctx, sendID, evt)
	default:
		log.Printf("unknown tracking event type: %s", evt.EventType)
		return nil
	}
}

func (c *Consumer) processOpen(ctx context.Context, sendID uuid.UUID, evt Event) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE crm_campaign_sends
		SET opened_at = COALESCE(opened_at, $2)
		WHERE id = $1
	`, sendID.String(), evt.Timestamp)
	if err != nil {
		return err
	}

	log.Printf("PROCESSED OPEN: send=%s", sendID)
	return nil
}

func (c *Consumer) processClick(ctx context.Context, sendID uuid.UUID, evt Event) error {
	// A click also proves the message was opened, even when the pixel
	// was blocked by the mail client.
	_, err := c.db.ExecContext(ctx, `
		UPDATE crm_campaign_sends
		SET clicked_at = COALESCE(clicked_at, $2),
		    opened_at  = COALESCE(opened_at, $2)
		WHERE id = $1
	`, sendID.String(), evt.Timestamp)
	if err != nil {
		return err
	}

	log.Printf("PROCESSED CLICK: send=%s url=%s", sendID, evt.LinkURL)
	return nil
}
