package dynamo

import (
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Cursors travel in query strings, so they use the URL-safe alphabet.
var cursorEncoding = base64.RawURLEncoding

const maxCursorLength = 1024

func lastEvalKeyToCursor(lastEvalKey map[string]types.AttributeValue) (string, error) {
	bytesJSON, err := attributevalue.MarshalMapJSON(lastEvalKey)
	if err != nil {
		return "", fmt.Errorf("failed to encode to JSON: %w", err)
	}

	return cursorEncoding.EncodeToString(bytesJSON), nil
}

func cursorToLastEval(cursor string) (map[string]types.AttributeValue, error) {
	if len(cursor) > maxCursorLength {
		return nil, fmt.Errorf("cursor longer than %d bytes", maxCursorLength)
	}

	bytesJSON, err := cursorEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to b64 decode: %w", err)
	}

	startKey, err := attributevalue.UnmarshalMapJSON(bytesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to json decode: %w", err)
	}

	if _, ok := startKey["GSI1SK"]; !ok {
		return nil, fmt.Errorf("cursor is not a registration listing key")
	}

	return startKey, nil
}

// getKeyFromItem projects item onto the attribute names present in key.
func getKeyFromItem(key map[string]types.AttributeValue, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(key))
	for k := range key {
		result[k] = item[k]
	}
	return result
}
