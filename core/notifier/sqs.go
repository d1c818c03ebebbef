// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notifier

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/logger"
)

// sqsAPI is the part of the SQS client the notifier uses
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS sends notifications to an AWS SQS queue
type SQS struct {
	client   sqsAPI
	queueURL string
}

// NewSQS returns a notifier for the queue with queueURL, using the default AWS
// credential chain
func NewSQS(ctx context.Context, queueURL string) (*SQS, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger.Default().Debugln("sqs notifier for queue", queueURL)
	return &SQS{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

func sqsMessage(queueURL, resource string, operation core.Operation, payload []byte) *sqs.SendMessageInput {
	return &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"resource": {
				DataType:    aws.String("String"),
				StringValue: aws.String(resource),
			},
			"operation": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(operation)),
			},
		},
	}
}

// Notify implements core.Notifier
func (s *SQS) Notify(resource string, operation core.Operation, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := s.client.SendMessage(ctx, sqsMessage(s.queueURL, resource, operation, payload)); err != nil {
		logger.Default().WithError(err).Errorln("sqs notifier: cannot send", operation, resource)
	}
}
