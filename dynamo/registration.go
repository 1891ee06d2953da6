package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/payment"
	"github.com/hanna-agency/workshop-registration/registration"
	"github.com/hanna-agency/workshop-registration/slices"
)

var _ registration.Repository = &DB{}

type registrationDynamo struct {
	PK     string
	SK     string
	GSI1PK string
	GSI1SK string

	ID                 uuid.UUID
	Version            int
	Email              string
	FullName           string
	Phone              *string `dynamodbav:",omitempty"`
	Country            *string `dynamodbav:",omitempty"`
	PaymentStatus      registration.PaymentStatus
	PaymentMethod      payment.Provider
	PaymentID          string
	AlternatePaymentID string `dynamodbav:",omitempty"`
	AmountMinor        int64
	Currency           string
	RegistrationStatus registration.Status
	ProfileCompleted   bool
	Profile            profileDynamo
	Attribution        map[string]string `dynamodbav:",omitempty"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type profileDynamo struct {
	Company   string
	JobTitle  string
	Goals     string
	UpdatedAt *time.Time `dynamodbav:",omitempty"`
}

// paymentAliasDynamo maps a provider payment handle to the registration it
// created. Its existence is what makes a payment id unique.
type paymentAliasDynamo struct {
	PK             string
	SK             string
	RegistrationID uuid.UUID
}

const (
	registrationEntityName = "REGISTRATION"
	paymentEntityName      = "PAYMENT"

	// fixed width so GSI1SK sorts by creation time
	createdAtKeyLayout = "2006-01-02T15:04:05.000000000Z"
)

func registrationPK(id uuid.UUID) string {
	return fmt.Sprintf("%s#%s", registrationEntityName, id)
}

func registrationSK(id uuid.UUID) string {
	return registrationPK(id)
}

func registrationGSI1SK(createdAt time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s#%s", createdAtKey(createdAt), id)
}

func createdAtKey(t time.Time) string {
	return fmt.Sprintf("CREATED#%s", t.UTC().Format(createdAtKeyLayout))
}

func paymentAliasPK(paymentID string) string {
	return fmt.Sprintf("%s#%s", paymentEntityName, paymentID)
}

func registrationToDynamo(reg registration.Registration) registrationDynamo {
	var amountMinor int64
	var currency string
	if reg.AmountPaid != nil {
		amountMinor = reg.AmountPaid.Amount()
		currency = reg.AmountPaid.Currency().Code
	}

	return registrationDynamo{
		PK:                 registrationPK(reg.ID),
		SK:                 registrationSK(reg.ID),
		GSI1PK:             registrationEntityName,
		GSI1SK:             registrationGSI1SK(reg.CreatedAt, reg.ID),
		ID:                 reg.ID,
		Version:            reg.Version,
		Email:              reg.Email,
		FullName:           reg.FullName,
		Phone:              reg.Phone,
		Country:            reg.Country,
		PaymentStatus:      reg.PaymentStatus,
		PaymentMethod:      reg.PaymentMethod,
		PaymentID:          reg.PaymentID,
		AlternatePaymentID: reg.AlternatePaymentID,
		AmountMinor:        amountMinor,
		Currency:           currency,
		RegistrationStatus: reg.RegistrationStatus,
		ProfileCompleted:   reg.ProfileCompleted,
		Profile: profileDynamo{
			Company:   reg.Profile.Company,
			JobTitle:  reg.Profile.JobTitle,
			Goals:     reg.Profile.Goals,
			UpdatedAt: reg.Profile.UpdatedAt,
		},
		Attribution: reg.Attribution,
		CreatedAt:   reg.CreatedAt,
		UpdatedAt:   reg.UpdatedAt,
	}
}

func dynamoToRegistration(dynReg registrationDynamo) registration.Registration {
	var amount *money.Money
	if dynReg.Currency != "" {
		amount = money.New(dynReg.AmountMinor, dynReg.Currency)
	}

	return registration.Registration{
		ID:                 dynReg.ID,
		Version:            dynReg.Version,
		Email:              dynReg.Email,
		FullName:           dynReg.FullName,
		Phone:              dynReg.Phone,
		Country:            dynReg.Country,
		PaymentStatus:      dynReg.PaymentStatus,
		PaymentMethod:      dynReg.PaymentMethod,
		PaymentID:          dynReg.PaymentID,
		AlternatePaymentID: dynReg.AlternatePaymentID,
		AmountPaid:         amount,
		RegistrationStatus: dynReg.RegistrationStatus,
		ProfileCompleted:   dynReg.ProfileCompleted,
		Profile: registration.Profile{
			Company:   dynReg.Profile.Company,
			JobTitle:  dynReg.Profile.JobTitle,
			Goals:     dynReg.Profile.Goals,
			UpdatedAt: dynReg.Profile.UpdatedAt,
		},
		Attribution: dynReg.Attribution,
		CreatedAt:   dynReg.CreatedAt,
		UpdatedAt:   dynReg.UpdatedAt,
	}
}

func (d *DB) paymentAliasPut(paymentID string, regID uuid.UUID) (*types.Put, error) {
	item, err := attributevalue.MarshalMap(paymentAliasDynamo{
		PK:             paymentAliasPK(paymentID),
		SK:             paymentAliasPK(paymentID),
		RegistrationID: regID,
	})
	if err != nil {
		return nil, err
	}
	expr := exprMustBuild(expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()))

	return &types.Put{
		TableName:                 aws.String(d.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

func (d *DB) CreateRegistration(ctx context.Context, reg registration.Registration) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	dynamoReg := registrationToDynamo(reg)

	regItem, err := attributevalue.MarshalMap(dynamoReg)
	if err != nil {
		return registration.NewFailedToTranslateToDBModelError("Failed to translate registration to dynamo model", err)
	}
	regExpr := exprMustBuild(expression.NewBuilder().
		WithCondition(newEntityVersionConditional(dynamoReg.Version)))

	items := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:                 aws.String(d.tableName),
				Item:                      regItem,
				ConditionExpression:       regExpr.Condition(),
				ExpressionAttributeNames:  regExpr.Names(),
				ExpressionAttributeValues: regExpr.Values(),
			},
		},
	}

	for _, paymentID := range []string{reg.PaymentID, reg.AlternatePaymentID} {
		if paymentID == "" {
			continue
		}
		put, err := d.paymentAliasPut(paymentID, reg.ID)
		if err != nil {
			return registration.NewFailedToTranslateToDBModelError("Failed to translate payment alias to dynamo model", err)
		}
		items = append(items, types.TransactWriteItem{Put: put})
	}

	_, err = d.dynamoClient.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		if conditionFailedAt(err, 0, 1, 2) {
			return registration.NewRegistrationAlreadyExistsError(fmt.Sprintf("Registration for payment %q already exists", reg.PaymentID), err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.NewTimeoutError("CreateRegistration timed out")
		}
		return registration.NewFailedToWriteError("Failed TransactWriteItems call", err)
	}

	return nil
}

func (d *DB) UpdateRegistration(ctx context.Context, reg registration.Registration) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	dynamoReg := registrationToDynamo(reg)

	regItem, err := attributevalue.MarshalMap(dynamoReg)
	if err != nil {
		return registration.NewFailedToTranslateToDBModelError("Failed to translate registration to dynamo model", err)
	}
	expr := exprMustBuild(expression.NewBuilder().
		WithCondition(existingEntityVersionConditional(dynamoReg.Version)))

	_, err = d.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(d.tableName),
		Item:                      regItem,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return registration.NewVersionConflictError(fmt.Sprintf("Registration %q changed since it was read", reg.ID), err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.NewTimeoutError("UpdateRegistration timed out")
		}
		return registration.NewFailedToWriteError("Failed PutItem call", err)
	}

	return nil
}

func (d *DB) GetRegistration(ctx context.Context, id uuid.UUID) (registration.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: registrationPK(id)},
			"SK": &types.AttributeValueMemberS{Value: registrationSK(id)},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.Registration{}, registration.NewTimeoutError("GetRegistration timed out")
		}
		return registration.Registration{}, registration.NewFailedToFetchError(fmt.Sprintf("Failed to fetch registration with id %q", id), err)
	}

	if len(resp.Item) == 0 {
		return registration.Registration{}, registration.NewRegistrationDoesNotExistsError(fmt.Sprintf("Registration with id %q not found", id), nil)
	}

	var dynReg registrationDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &dynReg)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal registration from dynamo: %s", err))
	}

	return dynamoToRegistration(dynReg), nil
}

func (d *DB) GetRegistrationByPaymentID(ctx context.Context, paymentID string) (registration.Registration, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(timeoutCtx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: paymentAliasPK(paymentID)},
			"SK": &types.AttributeValueMemberS{Value: paymentAliasPK(paymentID)},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.Registration{}, registration.NewTimeoutError("GetRegistrationByPaymentID timed out")
		}
		return registration.Registration{}, registration.NewFailedToFetchError(fmt.Sprintf("Failed to fetch payment %q", paymentID), err)
	}

	if len(resp.Item) == 0 {
		return registration.Registration{}, registration.NewRegistrationDoesNotExistsError(fmt.Sprintf("No registration for payment %q", paymentID), nil)
	}

	var alias paymentAliasDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &alias)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal payment alias from dynamo: %s", err))
	}

	return d.GetRegistration(ctx, alias.RegistrationID)
}

func (d *DB) GetAllRegistrations(ctx context.Context, limit int32, cursor *string) (registration.GetAllRegistrationsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	keyCond := expression.Key("GSI1PK").Equal(expression.Value(registrationEntityName))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build dynamo key expression: %s", err))
	}

	var startKey map[string]types.AttributeValue
	if cursor != nil {
		startKey, err = cursorToLastEval(*cursor)
		if err != nil {
			return registration.GetAllRegistrationsResponse{}, registration.NewInvalidCursorError("Invalid cursor", err)
		}
	}

	result, err := d.dynamoClient.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(gsi1),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		// Fetch 1 more than limit to check if there is another page or not
		Limit:             aws.Int32(limit + 1),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.GetAllRegistrationsResponse{}, registration.NewTimeoutError("GetAllRegistrations timed out")
		}
		return registration.GetAllRegistrationsResponse{}, registration.NewFailedToFetchError("Failed to fetch registrations from dynamo", err)
	}

	var dynamoItems []registrationDynamo
	err = attributevalue.UnmarshalListOfMaps(result.Items, &dynamoItems)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal dynamo registrations: %s", err))
	}

	hasNextPage := len(dynamoItems) > int(limit)

	var newCursor *string
	if hasNextPage && len(result.LastEvaluatedKey) > 0 {
		// Can't use LastEvalKey directly because we grabbed an extra item to check for next page
		lastItemGivenToUser := result.Items[len(result.Items)-2]
		lastItemKey := getKeyFromItem(result.LastEvaluatedKey, lastItemGivenToUser)
		c, err := lastEvalKeyToCursor(lastItemKey)
		if err != nil {
			panic(fmt.Sprintf("failed to make cursor from lastEvalKey: %s", err))
		}
		newCursor = &c
	}

	return registration.GetAllRegistrationsResponse{
		Data: slices.Map(dynamoItems, func(v registrationDynamo) registration.Registration {
			return dynamoToRegistration(v)
		})[:min(int(limit), len(dynamoItems))],
		Cursor:      newCursor,
		HasNextPage: hasNextPage,
	}, nil
}

// GetReminderCandidates walks the creation-time index between the two bounds
// and keeps paid registrations whose profile is still incomplete.
func (d *DB) GetReminderCandidates(ctx context.Context, createdAfter, createdBefore time.Time) ([]registration.Registration, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(registrationEntityName)).
		And(expression.Key("GSI1SK").Between(
			expression.Value(createdAtKey(createdAfter)),
			// "~" sorts after every id suffix
			expression.Value(createdAtKey(createdBefore)+"~"),
		))
	filter := expression.Name("PaymentStatus").Equal(expression.Value(registration.PAYMENT_COMPLETED)).
		And(expression.Name("ProfileCompleted").Equal(expression.Value(false)))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build dynamo key expression: %s", err))
	}

	var candidates []registration.Registration
	paginator := dynamodb.NewQueryPaginator(d.dynamoClient, &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(gsi1),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		pageCtx, cancel := context.WithTimeout(ctx, time.Second)
		page, err := paginator.NextPage(pageCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, registration.NewTimeoutError("GetReminderCandidates timed out")
			}
			return nil, registration.NewFailedToFetchError("Failed to query reminder candidates", err)
		}

		var dynamoItems []registrationDynamo
		err = attributevalue.UnmarshalListOfMaps(page.Items, &dynamoItems)
		if err != nil {
			panic(fmt.Sprintf("failed to unmarshal dynamo registrations: %s", err))
		}

		inWindow := slices.Filter(dynamoItems, func(item registrationDynamo) bool {
			return item.CreatedAt.After(createdAfter) && !item.CreatedAt.After(createdBefore)
		})
		candidates = append(candidates, slices.Map(inWindow, dynamoToRegistration)...)
	}

	return candidates, nil
}
