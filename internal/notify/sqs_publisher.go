package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"secretsweep/internal/logger"
	"secretsweep/models"
)

const eventType = "secretsweep.run.finished"

// SQSAPI is the part of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// RunEvent is the message body published once per run.
type RunEvent struct {
	RunID      string               `json:"run_id"`
	Status     string               `json:"status"`
	Mode       string               `json:"mode"`
	Keywords   []string             `json:"keywords"`
	Stats      models.RunStatistics `json:"stats"`
	Files      []string             `json:"files"`
	FinishedAt time.Time            `json:"finished_at"`
}

type SQSPublisher struct {
	client   SQSAPI
	queueURL string
	log      *zap.SugaredLogger
}

func NewSQSPublisher(client SQSAPI, queueURL string, log *zap.SugaredLogger) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL, log: logger.OrDefault(log)}
}

func (p *SQSPublisher) Publish(ctx context.Context, ev RunEvent) error {
	start := time.Now()
	defer logger.Trace("SQSPublisher.Publish", start)

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(eventType)},
			"run_id":     {DataType: aws.String("String"), StringValue: aws.String(ev.RunID)},
		},
	})
	if err != nil {
		return fmt.Errorf("erro ao publicar evento na SQS: %w", err)
	}
	p.log.Debugf("Evento %s publicado na SQS (MessageId %s)", ev.RunID, aws.ToString(out.MessageId))
	return nil
}
