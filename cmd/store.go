package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/hanna-agency/workshop-registration/config"
	"github.com/hanna-agency/workshop-registration/dynamo"
	"github.com/hanna-agency/workshop-registration/ledger"
	"github.com/hanna-agency/workshop-registration/notification"
	"github.com/hanna-agency/workshop-registration/postgres"
	"github.com/hanna-agency/workshop-registration/registration"
	"github.com/hanna-agency/workshop-registration/reminder"
)

type store interface {
	registration.Repository
	notification.ReminderLog
	notification.EmailHistory
	reminder.CandidateStore
}

var (
	_ store = (*dynamo.DB)(nil)
	_ store = (*postgres.DB)(nil)
)

func createStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, func(), error) {
	switch cfg.StoreBackend {
	case config.STORE_POSTGRES:
		db, err := postgres.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		err = db.RunMigrations(migrateCtx)
		if err != nil {
			db.Close()
			return nil, nil, err
		}

		logger.Info("Using postgres store")
		return db, db.Close, nil
	default:
		client, err := createDynamoClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		db := dynamo.NewDB(client, cfg.DynamoTableName)
		// a local endpoint starts empty; deployed tables are provisioned outside the service
		if cfg.DynamoEndpoint != "" {
			err = db.CreateTable(ctx)
			if err != nil {
				return nil, nil, err
			}
		}

		logger.Info("Using dynamo store", slog.String("table", cfg.DynamoTableName))
		return db, func() {}, nil
	}
}

func createDynamoClient(ctx context.Context, cfg config.Config) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.DynamoEndpoint != "" {
		opts = append(opts,
			awsconfig.WithRegion("us-east-1"),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	}), nil
}

func createLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (ledger.Ledger, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("No REDIS_URL set, redeliveries are resolved by the store alone")
		return ledger.NoopLedger{}, func() {}, nil
	}

	l, err := ledger.NewRedisLedger(ctx, cfg.RedisURL, ledger.DefaultTTL)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { l.Close() }, nil
}
