package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"book-companion/internal/domain"
)

const (
	pkPrefixDay = "DAY#"
	skPrefixReq = "REQ#"
	dayLayout   = "2006-01-02"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client writes relay usage records to a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// dayPK returns the partition key grouping all records of one UTC day.
func dayPK(ts time.Time) string {
	return pkPrefixDay + ts.UTC().Format(dayLayout)
}

// reqSK orders records by time; the correlation ID keeps concurrent writes distinct.
func reqSK(ts time.Time, correlationID string) string {
	return skPrefixReq + ts.UTC().Format(time.RFC3339Nano) + "#" + correlationID
}

func ttlValue(ts time.Time) int64 {
	return ts.Add(ttlDuration).Unix()
}

// NewUsageRecord builds a record keyed by the given timestamp.
func NewUsageRecord(ts time.Time, correlationID, model string, status, inputTokens, outputTokens int, latency time.Duration) domain.UsageRecord {
	return domain.UsageRecord{
		PK:            dayPK(ts),
		SK:            reqSK(ts, correlationID),
		CorrelationID: correlationID,
		Model:         model,
		Status:        status,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		LatencyMillis: latency.Milliseconds(),
		TTL:           ttlValue(ts),
	}
}

// RecordUsage persists one usage record. Keys are derived when missing.
func (c *Client) RecordUsage(ctx context.Context, rec domain.UsageRecord) error {
	if rec.PK == "" || rec.SK == "" {
		now := c.now()
		rec.PK = dayPK(now)
		rec.SK = reqSK(now, rec.CorrelationID)
		if rec.TTL == 0 {
			rec.TTL = ttlValue(now)
		}
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                usageItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: RecordUsage: %w", err)
	}
	return nil
}

// GetDailyUsage sums every record stored for the UTC day containing day.
func (c *Client) GetDailyUsage(ctx context.Context, day time.Time) (domain.DailyUsage, error) {
	out := domain.DailyUsage{Day: day.UTC().Format(dayLayout)}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: dayPK(day)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixReq},
		},
	}

	for {
		page, err := c.api.Query(ctx, in)
		if err != nil {
			return domain.DailyUsage{}, fmt.Errorf("repository: GetDailyUsage query: %w", err)
		}
		for _, item := range page.Items {
			rec, err := itemToUsage(item)
			if err != nil {
				return domain.DailyUsage{}, fmt.Errorf("repository: GetDailyUsage unmarshal: %w", err)
			}
			out.Requests++
			out.InputTokens += rec.InputTokens
			out.OutputTokens += rec.OutputTokens
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
	return out, nil
}

func usageItem(rec domain.UsageRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: rec.PK},
		"SK":            &types.AttributeValueMemberS{Value: rec.SK},
		"correlationId": &types.AttributeValueMemberS{Value: rec.CorrelationID},
		"model":         &types.AttributeValueMemberS{Value: rec.Model},
		"status":        &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Status)},
		"inputTokens":   &types.AttributeValueMemberN{Value: strconv.Itoa(rec.InputTokens)},
		"outputTokens":  &types.AttributeValueMemberN{Value: strconv.Itoa(rec.OutputTokens)},
		"latencyMs":     &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.LatencyMillis, 10)},
		"ttl":           &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.TTL, 10)},
	}
}

func itemToUsage(item map[string]types.AttributeValue) (domain.UsageRecord, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.UsageRecord{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.UsageRecord{}, err
	}
	inputTokens, err := intAttr(item, "inputTokens")
	if err != nil {
		return domain.UsageRecord{}, err
	}
	outputTokens, err := intAttr(item, "outputTokens")
	if err != nil {
		return domain.UsageRecord{}, err
	}
	status, _ := intAttr(item, "status")             // allow missing
	correlationID, _ := strAttr(item, "correlationId") // allow missing
	model, _ := strAttr(item, "model")                 // allow missing

	return domain.UsageRecord{
		PK:            pk,
		SK:            sk,
		CorrelationID: correlationID,
		Model:         model,
		Status:        status,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
