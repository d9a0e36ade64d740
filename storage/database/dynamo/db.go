// Package dynamorepos implements the entity repositories on Amazon DynamoDB.
// Each entity lives in its own table, named by prefixing the configured table
// prefix; items are (un)marshaled with the attributevalue feature package.
package dynamorepos

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
)

// batchSize is the hard BatchWriteItem cap.
const batchSize = 25

// Client is the subset of the DynamoDB API the repositories use.
// Satisfied by *dynamodb.Client; narrowed for tests.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type DB struct {
	client       Client
	studentTable string
	teacherTable string
	gameTable    string
}

// Open loads the ambient AWS configuration (env, shared config, instance
// role) and returns a DB bound to the configured region and table prefix.
func Open(ctx context.Context, conf core.DatabaseConfig) (*DB, error) {
	awsConf, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	return New(dynamodb.NewFromConfig(awsConf), conf.TablePrefix), nil
}

func New(client Client, tablePrefix string) *DB {
	return &DB{
		client:       client,
		studentTable: tablePrefix + "student",
		teacherTable: tablePrefix + "teacher",
		gameTable:    tablePrefix + "game",
	}
}

// chunkWrites yields [start, end) index pairs over n items in batches of
// batchSize.
func chunkWrites(n int) [][2]int {
	var chunks [][2]int
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		chunks = append(chunks, [2]int{start, end})
	}
	return chunks
}

// stringKey builds the primary key map for a string hash key.
func stringKey(attr, val string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attr: &types.AttributeValueMemberS{Value: val},
	}
}

func timeAttr(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339Nano)}
}

// applyFilter ANDs equality conditions for the non-empty values onto a scan.
func applyFilter(input *dynamodb.ScanInput, fields map[string]string) {
	var expr string
	names := make(map[string]string)
	values := make(map[string]types.AttributeValue)
	for _, attr := range sortedKeys(fields) {
		val := fields[attr]
		if val == "" {
			continue
		}
		if expr != "" {
			expr += " AND "
		}
		expr += "#" + attr + " = :" + attr
		names["#"+attr] = attr
		values[":"+attr] = &types.AttributeValueMemberS{Value: val}
	}
	if expr == "" {
		return
	}
	input.FilterExpression = aws.String(expr)
	input.ExpressionAttributeNames = names
	input.ExpressionAttributeValues = values
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// trapConditionErr translates a failed attribute_exists condition into the
// entity's not-found error.
func trapConditionErr(err error, notFound error, msg string) error {
	var condErr *types.ConditionalCheckFailedException
	if stderrors.As(err, &condErr) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// batchWrite sends put requests for one table, retrying items the service
// returns as unprocessed. The caller falls back to individual writes when an
// error comes back.
func (db *DB) batchWrite(ctx context.Context, table string, items []map[string]types.AttributeValue) error {
	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	for attempt := 0; len(requests) > 0; attempt++ {
		if attempt >= 3 {
			return errors.Errorf("%d write(s) still unprocessed after %d attempts", len(requests), attempt)
		}
		out, err := db.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{table: requests},
		})
		if err != nil {
			return errors.Wrap(err, "writing batch")
		}
		requests = out.UnprocessedItems[table]
	}
	return nil
}
