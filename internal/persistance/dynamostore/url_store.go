package dynamostore

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

const keyAttribute = "shortCode"

// API описывает используемые методы клиента DynamoDB.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// ClientOptions задает параметры подключения к DynamoDB.
type ClientOptions struct {
	Region   string
	Endpoint string // пустой для AWS, адрес dynamodb-local для локального запуска
}

// NewClient создает клиента DynamoDB. Для локального адреса используются статические ключи.
func NewClient(ctx context.Context, opts ClientOptions) (*dynamodb.Client, error) {
	const op = "new dynamodb client"

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// Store хранит ссылки в таблице DynamoDB с ключом shortCode.
type Store struct {
	api   API
	table string
}

type item struct {
	ShortCode string `dynamodbav:"shortCode"`
	LongURL   string `dynamodbav:"longUrl"`
	CreatedAt string `dynamodbav:"createdAt"`
	Clicks    int64  `dynamodbav:"clicks"`
}

// New создает хранилище для таблицы table.
func New(api API, table string) *Store {
	return &Store{api: api, table: table}
}

// CreateTable создает таблицу, если ее еще нет.
func (s *Store) CreateTable(ctx context.Context) error {
	const op = "create table"

	_, err := s.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(keyAttribute), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(keyAttribute), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})

	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return errors.Wrap(err, op)
	}

	return nil
}

// Get возвращает ссылку по коду.
func (s *Store) Get(ctx context.Context, code string) (domain.ShortLink, error) {
	const op = "get link"

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(code),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ShortLink{}, domain.NewStoreError(op, err)
	}
	if len(out.Item) == 0 {
		return domain.ShortLink{}, domain.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return domain.ShortLink{}, domain.NewStoreError(op, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return domain.ShortLink{}, domain.NewStoreError(op, err)
	}

	return domain.ShortLink{
		Code:      it.ShortCode,
		LongURL:   it.LongURL,
		Clicks:    it.Clicks,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// PutIfAbsent сохраняет ссылку условной записью. Если код занят, возвращает ErrAlreadyExists.
func (s *Store) PutIfAbsent(ctx context.Context, link domain.ShortLink) error {
	const op = "put link"

	av, err := attributevalue.MarshalMap(item{
		ShortCode: link.Code,
		LongURL:   link.LongURL,
		CreatedAt: link.CreatedAt.UTC().Format(time.RFC3339Nano),
		Clicks:    link.Clicks,
	})
	if err != nil {
		return domain.NewStoreError(op, err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#code)"),
		ExpressionAttributeNames: map[string]string{"#code": keyAttribute},
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return domain.ErrAlreadyExists
		}
		return domain.NewStoreError(op, err)
	}

	return nil
}

// IncrementClicks атомарно увеличивает счетчик переходов. Отсутствующий счетчик считается нулевым.
func (s *Store) IncrementClicks(ctx context.Context, code string, delta int64) (int64, error) {
	const op = "increment clicks"

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 key(code),
		UpdateExpression:    aws.String("SET #clicks = if_not_exists(#clicks, :zero) + :inc"),
		ConditionExpression: aws.String("attribute_exists(#code)"),
		ExpressionAttributeNames: map[string]string{
			"#clicks": "clicks",
			"#code":   keyAttribute,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":inc":  &types.AttributeValueMemberN{Value: strconv.FormatInt(delta, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.NewStoreError(op, err)
	}

	var updated struct {
		Clicks int64 `dynamodbav:"clicks"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, domain.NewStoreError(op, err)
	}

	return updated.Clicks, nil
}

// IsAvailable проверяет доступность таблицы.
func (s *Store) IsAvailable(ctx context.Context) bool {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	return err == nil
}

func key(code string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttribute: &types.AttributeValueMemberS{Value: code},
	}
}
