package ddb

import (
	"context"
	"faucetdrops/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// JobStore keeps each job twice: under its own key for lookups and in the JOBS partition, sorted by start
// time, for listing. Both copies are written in one transaction.
type JobStore struct {
	table string
	cli   *dynamodb.Client
}

func NewJobStore(table string, cli *dynamodb.Client) *JobStore {
	createTableIfNotExists(cli, table)
	return &JobStore{table: table, cli: cli}
}

func (s *JobStore) item(pk, sk string, job types.BackgroundJob) (map[string]ddbTypes.AttributeValue, error) {
	return attributevalue.MarshalMap(struct {
		PK string `dynamodbav:"PK"`
		SK string `dynamodbav:"SK"`
		types.BackgroundJob
	}{
		PK:            pk,
		SK:            sk,
		BackgroundJob: job,
	})
}

func (s *JobStore) PutJob(ctx context.Context, job types.BackgroundJob) error {
	byID, err := s.item(pkJob(job.ID), skJob(), job)
	if err != nil {
		return err
	}
	listed, err := s.item(pkJobList(), skJobList(job.StartedAt.UnixMilli(), job.ID), job)
	if err != nil {
		return err
	}
	_, err = s.cli.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbTypes.TransactWriteItem{
			{Put: &ddbTypes.Put{TableName: &s.table, Item: byID}},
			{Put: &ddbTypes.Put{TableName: &s.table, Item: listed}},
		},
	})
	if err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "put job %s", job.ID)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (types.BackgroundJob, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		ConsistentRead: awsBool(true),
		Key:            keyOf(pkJob(id), skJob()),
	})
	if err != nil {
		return types.BackgroundJob{}, types.Err(types.ErrDataStoreAccess, err, "get job %s", id)
	}
	if out.Item == nil {
		return types.BackgroundJob{}, types.ErrNotFound
	}
	var job types.BackgroundJob
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return types.BackgroundJob{}, err
	}
	return job, nil
}

func (s *JobStore) ListJobs(ctx context.Context, limit int) ([]types.BackgroundJob, error) {
	if limit <= 0 {
		return []types.BackgroundJob{}, nil
	}
	out, err := s.cli.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: awsString("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pkJobList()},
			":sk": &ddbTypes.AttributeValueMemberS{Value: SJob + "#"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "list jobs")
	}
	jobs := make([]types.BackgroundJob, 0, len(out.Items))
	for _, item := range out.Items {
		var job types.BackgroundJob
		if err := attributevalue.UnmarshalMap(item, &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
