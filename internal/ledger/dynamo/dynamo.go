package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"rewards/internal/core"
	"rewards/internal/ledger"
)

// Ensure interface conformance
var (
	_ ledger.TransactionSource = (*Repository)(nil)
	_ ledger.CustomerLister    = (*Repository)(nil)
	_ ledger.TransactionWriter = (*Repository)(nil)
	_ ledger.Pinger            = (*Repository)(nil)
)

// Table layout: customer_id is the partition key and sk ("<date>#<id>") the
// sort key, so a customer's window is a single key-range Query.
const (
	attrCustomerID = "customer_id"
	attrSortKey    = "sk"
	attrDate       = "date"
	attrNextID     = "next_id"

	// counterCustomer holds the id sequence item. Real customers are positive.
	counterCustomer = 0
	counterSortKey  = "#counter"
)

// Client is the subset of the DynamoDB API the ledger uses.
type Client interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// record is the stored item shape.
type record struct {
	CustomerID int64  `json:"customer_id"`
	SortKey    string `json:"sk"`
	ID         int64  `json:"id"`
	Amount     string `json:"amount"`
	Date       string `json:"date"`
}

type Repository struct {
	client    Client
	tableName string
}

func NewRepository(opts ...func(*Repository)) *Repository {
	repo := &Repository{tableName: "transactions"}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

func WithDynamoDBClient(client Client) func(*Repository) {
	return func(repo *Repository) {
		repo.client = client
	}
}

func WithTableName(tableName string) func(*Repository) {
	return func(repo *Repository) {
		repo.tableName = tableName
	}
}

// NewClient loads the default AWS configuration for region. A non-empty
// endpoint points the client at DynamoDB Local or another compatible service.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           endpoint,
				SigningRegion: region,
			}, nil
		})
		opts = append(opts, config.WithEndpointResolverWithOptions(resolver))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// EnsureTable creates the ledger table when it does not exist.
func (repo *Repository) EnsureTable(ctx context.Context) error {
	_, err := repo.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &repo.tableName})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table: %w", err)
	}

	_, err = repo.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(repo.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrCustomerID), AttributeType: types.ScalarAttributeTypeN},
			{AttributeName: aws.String(attrSortKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrCustomerID), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSortKey), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Ping implements ledger.Pinger
func (repo *Repository) Ping(ctx context.Context) error {
	if _, err := repo.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &repo.tableName}); err != nil {
		return fmt.Errorf("describe table: %w", err)
	}
	return nil
}

// ListCustomerTransactions implements ledger.TransactionSource
func (repo *Repository) ListCustomerTransactions(ctx context.Context, customerID int64, rng core.DateRange) ([]core.Transaction, error) {
	low, high := sortKeyBounds(rng)
	keyExpr := expression.Key(attrCustomerID).Equal(expression.Value(customerID)).
		And(expression.Key(attrSortKey).Between(expression.Value(low), expression.Value(high)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 &repo.tableName,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var items []map[string]types.AttributeValue
	for {
		output, err := repo.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query transactions: %w", err)
		}
		items = append(items, output.Items...)
		if len(output.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
	return decode(items)
}

// ListTransactions implements ledger.TransactionSource
func (repo *Repository) ListTransactions(ctx context.Context, rng core.DateRange) ([]core.Transaction, error) {
	items, err := repo.scanWindow(ctx, rng, nil)
	if err != nil {
		return nil, err
	}
	return decode(items)
}

// ListCustomerIDs implements ledger.CustomerLister
func (repo *Repository) ListCustomerIDs(ctx context.Context, rng core.DateRange) ([]int64, error) {
	proj := expression.NamesList(expression.Name(attrCustomerID))
	items, err := repo.scanWindow(ctx, rng, &proj)
	if err != nil {
		return nil, err
	}

	var rows []record
	if err := unmarshal(items, &rows); err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.CustomerID]; ok {
			continue
		}
		seen[row.CustomerID] = struct{}{}
		ids = append(ids, row.CustomerID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (repo *Repository) scanWindow(ctx context.Context, rng core.DateRange, proj *expression.ProjectionBuilder) ([]map[string]types.AttributeValue, error) {
	filter := expression.Name(attrDate).Between(expression.Value(rng.Start.String()), expression.Value(rng.End.String()))
	builder := expression.NewBuilder().WithFilter(filter)
	if proj != nil {
		builder = builder.WithProjection(*proj)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 &repo.tableName,
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var items []map[string]types.AttributeValue
	for {
		output, err := repo.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan transactions: %w", err)
		}
		items = append(items, output.Items...)
		if len(output.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
	return items, nil
}

// RecordTransaction implements ledger.TransactionWriter. Ids come from an
// atomic counter item.
func (repo *Repository) RecordTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.CustomerID <= 0 {
		return core.Transaction{}, fmt.Errorf("invalid customer id %d", tx.CustomerID)
	}
	id, err := repo.nextID(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = id
	if err := repo.put(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// Seed writes transactions with their own ids and moves the counter past
// the largest one.
func (repo *Repository) Seed(ctx context.Context, txs []core.Transaction) (int, error) {
	var maxID int64
	for _, tx := range txs {
		if err := repo.put(ctx, tx); err != nil {
			return 0, err
		}
		if tx.ID > maxID {
			maxID = tx.ID
		}
	}

	update := expression.Set(expression.Name(attrNextID), expression.Value(maxID))
	cond := expression.Or(
		expression.AttributeNotExists(expression.Name(attrNextID)),
		expression.Name(attrNextID).LessThan(expression.Value(maxID)),
	)
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return 0, fmt.Errorf("build counter update: %w", err)
	}
	_, err = repo.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &repo.tableName,
		Key:                       counterKey(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var condFailed *types.ConditionalCheckFailedException
	if err != nil && !errors.As(err, &condFailed) {
		return 0, fmt.Errorf("advance id counter: %w", err)
	}
	return len(txs), nil
}

func (repo *Repository) put(ctx context.Context, tx core.Transaction) error {
	av, err := attributevalue.MarshalMapWithOptions(toRecord(tx), func(opts *attributevalue.EncoderOptions) {
		opts.TagKey = "json"
	})
	if err != nil {
		return fmt.Errorf("marshal transaction %d: %w", tx.ID, err)
	}
	if _, err := repo.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &repo.tableName, Item: av}); err != nil {
		return fmt.Errorf("put transaction %d: %w", tx.ID, err)
	}
	return nil
}

func (repo *Repository) nextID(ctx context.Context) (int64, error) {
	update := expression.Add(expression.Name(attrNextID), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, fmt.Errorf("build counter update: %w", err)
	}
	output, err := repo.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &repo.tableName,
		Key:                       counterKey(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("increment id counter: %w", err)
	}
	n, ok := output.Attributes[attrNextID].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("id counter missing from update output")
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

func counterKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrCustomerID: &types.AttributeValueMemberN{Value: strconv.Itoa(counterCustomer)},
		attrSortKey:    &types.AttributeValueMemberS{Value: counterSortKey},
	}
}

// sortKey orders a customer's items by date, then id.
func sortKey(date core.Date, id int64) string {
	return fmt.Sprintf("%s#%012d", date, id)
}

// sortKeyBounds covers every sort key of rng's dates. '$' sorts right after '#'.
func sortKeyBounds(rng core.DateRange) (string, string) {
	return rng.Start.String(), rng.End.String() + "$"
}

func toRecord(tx core.Transaction) record {
	return record{
		CustomerID: tx.CustomerID,
		SortKey:    sortKey(tx.Date, tx.ID),
		ID:         tx.ID,
		Amount:     tx.Amount.StringFixed(2),
		Date:       tx.Date.String(),
	}
}

func (r record) toCore() (core.Transaction, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: invalid amount %q: %w", r.ID, r.Amount, err)
	}
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", r.ID, err)
	}
	return core.Transaction{ID: r.ID, CustomerID: r.CustomerID, Amount: amount, Date: date}, nil
}

func unmarshal(items []map[string]types.AttributeValue, out *[]record) error {
	err := attributevalue.UnmarshalListOfMapsWithOptions(items, out, func(opts *attributevalue.DecoderOptions) {
		opts.TagKey = "json"
	})
	if err != nil {
		return fmt.Errorf("unmarshal items: %w", err)
	}
	return nil
}

func decode(items []map[string]types.AttributeValue) ([]core.Transaction, error) {
	var rows []record
	if err := unmarshal(items, &rows); err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	// Scans return items in partition order.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
