package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/notification"
)

var (
	_ notification.ReminderLog  = &DB{}
	_ notification.EmailHistory = &DB{}
)

type emailLogDynamo struct {
	PK             string
	SK             string
	RegistrationID uuid.UUID
	EmailType      notification.EmailType
	SentAt         time.Time
	MessageID      string
}

// latestEmailDynamo tracks the newest record per (registration, email type) so
// the cool-down can be enforced with a single conditional write.
type latestEmailDynamo struct {
	PK             string
	SK             string
	RegistrationID uuid.UUID
	EmailType      notification.EmailType
	SentAt         time.Time
	SentAtUnixNano int64
	MessageID      string
}

const (
	emailEntityName       = "EMAIL"
	latestEmailEntityName = "EMAIL_LATEST"
)

func emailLogSK(emailType notification.EmailType, sentAt time.Time) string {
	return fmt.Sprintf("%s#%s#%s", emailEntityName, emailType, sentAt.UTC().Format(createdAtKeyLayout))
}

func latestEmailSK(emailType notification.EmailType) string {
	return fmt.Sprintf("%s#%s", latestEmailEntityName, emailType)
}

func (d *DB) RecordReminder(ctx context.Context, rec notification.ReminderRecord, coolDown time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	logItem, err := attributevalue.MarshalMap(emailLogDynamo{
		PK:             registrationPK(rec.RegistrationID),
		SK:             emailLogSK(rec.EmailType, rec.SentAt),
		RegistrationID: rec.RegistrationID,
		EmailType:      rec.EmailType,
		SentAt:         rec.SentAt,
		MessageID:      rec.MessageID,
	})
	if err != nil {
		return notification.NewFailedToWriteError("Failed to translate email log to dynamo model", err)
	}
	logExpr := exprMustBuild(expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()))

	latestItem, err := attributevalue.MarshalMap(latestEmailDynamo{
		PK:             registrationPK(rec.RegistrationID),
		SK:             latestEmailSK(rec.EmailType),
		RegistrationID: rec.RegistrationID,
		EmailType:      rec.EmailType,
		SentAt:         rec.SentAt,
		SentAtUnixNano: rec.SentAt.UnixNano(),
		MessageID:      rec.MessageID,
	})
	if err != nil {
		return notification.NewFailedToWriteError("Failed to translate latest email marker to dynamo model", err)
	}
	latestExpr := exprMustBuild(expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists().
			Or(expression.Name("SentAtUnixNano").LessThanEqual(expression.Value(rec.SentAt.Add(-coolDown).UnixNano())))))

	_, err = d.dynamoClient.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:                 aws.String(d.tableName),
					Item:                      latestItem,
					ConditionExpression:       latestExpr.Condition(),
					ExpressionAttributeNames:  latestExpr.Names(),
					ExpressionAttributeValues: latestExpr.Values(),
				},
			},
			{
				Put: &types.Put{
					TableName:                 aws.String(d.tableName),
					Item:                      logItem,
					ConditionExpression:       logExpr.Condition(),
					ExpressionAttributeNames:  logExpr.Names(),
					ExpressionAttributeValues: logExpr.Values(),
				},
			},
		},
	})
	if err != nil {
		if conditionFailedAt(err, 0, 1) {
			return notification.NewReminderTooSoonError(fmt.Sprintf("A %s email was sent to registration %q less than %s ago", rec.EmailType, rec.RegistrationID, coolDown), err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return notification.NewTimeoutError("RecordReminder timed out")
		}
		return notification.NewFailedToWriteError("Failed TransactWriteItems call", err)
	}

	return nil
}

// ReleaseReminder deletes the log entry for rec and the latest marker when rec
// still owns it. Earlier records were outside the cool-down when rec was
// written, so dropping the marker leaves eligibility as it was before.
func (d *DB) ReleaseReminder(ctx context.Context, rec notification.ReminderRecord) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	pk := &types.AttributeValueMemberS{Value: registrationPK(rec.RegistrationID)}
	logKey := map[string]types.AttributeValue{
		"PK": pk,
		"SK": &types.AttributeValueMemberS{Value: emailLogSK(rec.EmailType, rec.SentAt)},
	}
	ownsMarker := exprMustBuild(expression.NewBuilder().
		WithCondition(expression.Name("MessageID").Equal(expression.Value(rec.MessageID))))

	_, err := d.dynamoClient.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName: aws.String(d.tableName),
					Key: map[string]types.AttributeValue{
						"PK": pk,
						"SK": &types.AttributeValueMemberS{Value: latestEmailSK(rec.EmailType)},
					},
					ConditionExpression:       ownsMarker.Condition(),
					ExpressionAttributeNames:  ownsMarker.Names(),
					ExpressionAttributeValues: ownsMarker.Values(),
				},
			},
			{
				Delete: &types.Delete{
					TableName: aws.String(d.tableName),
					Key:       logKey,
				},
			},
		},
	})
	if err != nil && conditionFailedAt(err, 0) {
		_, err = d.dynamoClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.tableName),
			Key:       logKey,
		})
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return notification.NewTimeoutError("ReleaseReminder timed out")
		}
		return notification.NewFailedToWriteError(fmt.Sprintf("Failed to release %s email for registration %q", rec.EmailType, rec.RegistrationID), err)
	}

	return nil
}

func (d *DB) GetLatestReminder(ctx context.Context, registrationID uuid.UUID, emailType notification.EmailType) (notification.ReminderRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: registrationPK(registrationID)},
			"SK": &types.AttributeValueMemberS{Value: latestEmailSK(emailType)},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return notification.ReminderRecord{}, false, notification.NewTimeoutError("GetLatestReminder timed out")
		}
		return notification.ReminderRecord{}, false, notification.NewFailedToFetchError(fmt.Sprintf("Failed to fetch latest %s email for registration %q", emailType, registrationID), err)
	}

	if len(resp.Item) == 0 {
		return notification.ReminderRecord{}, false, nil
	}

	var latest latestEmailDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &latest)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal latest email marker from dynamo: %s", err))
	}

	return notification.ReminderRecord{
		RegistrationID: latest.RegistrationID,
		EmailType:      latest.EmailType,
		SentAt:         latest.SentAt,
		MessageID:      latest.MessageID,
	}, true, nil
}

// GetEmailLog returns every record for a registration, oldest first.
func (d *DB) GetEmailLog(ctx context.Context, registrationID uuid.UUID) ([]notification.ReminderRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	keyCond := expression.Key("PK").Equal(expression.Value(registrationPK(registrationID))).
		And(expression.Key("SK").BeginsWith(emailEntityName + "#"))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build dynamo key expression: %s", err))
	}

	result, err := d.dynamoClient.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, notification.NewTimeoutError("GetEmailLog timed out")
		}
		return nil, notification.NewFailedToFetchError(fmt.Sprintf("Failed to fetch email log for registration %q", registrationID), err)
	}

	var items []emailLogDynamo
	err = attributevalue.UnmarshalListOfMaps(result.Items, &items)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal email log from dynamo: %s", err))
	}

	records := make([]notification.ReminderRecord, 0, len(items))
	for _, item := range items {
		records = append(records, notification.ReminderRecord{
			RegistrationID: item.RegistrationID,
			EmailType:      item.EmailType,
			SentAt:         item.SentAt,
			MessageID:      item.MessageID,
		})
	}
	return records, nil
}
