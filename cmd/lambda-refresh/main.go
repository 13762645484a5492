//go:build lambda

package main

import (
	"context"
	"faucetdrops/cmd/faucetdrops/cmds"
	"faucetdrops/internal/dashboard"
	"faucetdrops/internal/types"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// LambdaHandler runs refresh requests delivered through SQS, typically from an EventBridge schedule.
type LambdaHandler struct {
	Service *dashboard.Service
}

// refreshMessage is the SQS message body. An empty body refreshes everything.
type refreshMessage struct {
	DataType types.DataType `json:"dataType"`
}

func main() {
	ctx := context.Background()
	app, _, err := cmds.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	handler := &LambdaHandler{Service: app.Service}
	lambda.Start(handler.HandleSQSEvent)
}

// HandleSQSEvent runs one refresh per message and reports the failed ones for redelivery.
func (h *LambdaHandler) HandleSQSEvent(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	log.Infof("Processing batch of %d messages", len(sqsEvent.Records))

	var batchItemFailures []events.SQSBatchItemFailure
	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			log.WithError(err).Errorf("Failed to process message %s", record.MessageId)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}
	return events.SQSEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func (h *LambdaHandler) processMessage(ctx context.Context, record events.SQSMessage) error {
	msg := refreshMessage{DataType: types.DataAll}
	if record.Body != "" {
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			return fmt.Errorf("parse message body: %w", err)
		}
	}
	if msg.DataType == "" {
		msg.DataType = types.DataAll
	}

	id, err := h.Service.Refresh(ctx, msg.DataType)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", msg.DataType, err)
	}
	log.WithFields(log.Fields{
		"jobID":     id,
		"dataType":  msg.DataType,
		"messageID": record.MessageId,
	}).Info("Refresh completed")
	return nil
}
