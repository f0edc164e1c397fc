// Package dynamo stores transactions in a DynamoDB table keyed by pk/sk.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"finapi/internal/core"
	"finapi/internal/store"
)

// API is the subset of *dynamodb.Client the store calls.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	dynamodb.QueryAPIClient
}

var _ store.Store = (*Client)(nil)

type Client struct {
	db    API
	table string
}

// Options configures NewFromConfig.
type Options struct {
	Table  string
	Region string
	// Endpoint overrides the service URL, e.g. DynamoDB Local.
	Endpoint string
}

// New wraps an existing API client.
func New(db API, table string) (*Client, error) {
	if db == nil {
		return nil, errors.New("dynamodb client is nil")
	}
	if table == "" {
		return nil, errors.New("missing table name")
	}
	return &Client{db: db, table: table}, nil
}

// NewFromConfig loads the default AWS configuration chain and builds a client.
func NewFromConfig(ctx context.Context, opts Options) (*Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	db := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return New(db, opts.Table)
}

// item is the table layout.
type item struct {
	PK       string `dynamodbav:"pk"`
	SK       string `dynamodbav:"sk"`
	Amount   amount `dynamodbav:"amount"`
	Category string `dynamodbav:"category"`
	Note     string `dynamodbav:"note"`
	IsoDate  string `dynamodbav:"isoDate"`
}

// amount is stored as a DynamoDB number so the exact decimal string survives.
type amount struct {
	decimal.Decimal
}

func (a amount) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: a.Decimal.String()}, nil
}

func (a *amount) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	default:
		return fmt.Errorf("amount: unsupported attribute type %T", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	a.Decimal = d
	return nil
}

func itemFromRecord(r core.TransactionRecord) item {
	return item{
		PK:       r.PartitionKey,
		SK:       r.SortKey,
		Amount:   amount{r.Amount},
		Category: r.Category,
		Note:     r.Note,
		IsoDate:  r.IsoTimestamp,
	}
}

func (it item) toRecord() core.TransactionRecord {
	owner, period, _ := core.SplitPartitionKey(it.PK)
	return core.TransactionRecord{
		Owner:        owner,
		Period:       period,
		PartitionKey: it.PK,
		SortKey:      it.SK,
		Amount:       it.Amount.Decimal,
		Category:     it.Category,
		Note:         it.Note,
		IsoTimestamp: it.IsoDate,
	}
}

// Put writes r with a single unconditional PutItem.
func (c *Client) Put(ctx context.Context, r core.TransactionRecord) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	av, err := attributevalue.MarshalMap(itemFromRecord(r))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = c.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put item %s/%s: %w", r.PartitionKey, r.SortKey, err)
	}

	slog.DebugContext(ctx, "Transaction saved to DynamoDB", "table", c.table, "pk", r.PartitionKey, "sk", r.SortKey)
	return nil
}

// QueryByPartition reads every page of the partition in sort key order.
func (c *Client) QueryByPartition(ctx context.Context, partitionKey string) ([]core.TransactionRecord, error) {
	p := dynamodb.NewQueryPaginator(c.db, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partitionKey},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	})

	out := make([]core.TransactionRecord, 0)
	pages := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query partition %s: %w", partitionKey, err)
		}
		pages++

		var items []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		for _, it := range items {
			out = append(out, it.toRecord())
		}
	}

	slog.DebugContext(ctx, "Queried DynamoDB partition", "table", c.table, "pk", partitionKey, "count", len(out), "pages", pages)
	return out, nil
}
