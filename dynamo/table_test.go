package dynamo

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTable(t *testing.T) {
	ctx := context.Background()

	t.Run("existing table is left in place", func(t *testing.T) {
		require.NoError(t, db.CreateTable(ctx))
	})

	t.Run("fresh table has the creation-time index", func(t *testing.T) {
		fresh := NewDB(dynamoClient, tableName+"-Fresh")
		require.NoError(t, fresh.CreateTable(ctx))
		t.Cleanup(func() {
			_, _ = dynamoClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(tableName + "-Fresh")})
		})

		out, err := dynamoClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName + "-Fresh")})
		require.NoError(t, err)
		require.Len(t, out.Table.GlobalSecondaryIndexes, 1)
		assert.Equal(t, gsi1, aws.ToString(out.Table.GlobalSecondaryIndexes[0].IndexName))
		assert.Len(t, out.Table.KeySchema, 2)
	})
}
