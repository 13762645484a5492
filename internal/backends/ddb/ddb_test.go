package ddb

import (
	"context"
	"errors"
	"faucetdrops/internal/types"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

const TestTableName = "faucetdrops_test"

// DDBTestSuite needs a local DynamoDB mock (moto or dynamodb-local) at DDB_ENDPOINT.
type DDBTestSuite struct {
	suite.Suite

	cache *CacheStore
	jobs  *JobStore
}

func TestDDBTestSuite(t *testing.T) {
	if os.Getenv("DDB_ENDPOINT") == "" {
		t.Skip("DDB_ENDPOINT not set")
	}
	suite.Run(t, new(DDBTestSuite))
}

func (s *DDBTestSuite) SetupSuite() {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		s.FailNow("Failed to load AWS config", err)
	}
	cli := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(os.Getenv("DDB_ENDPOINT"))
		if o.Region == "" {
			o.Region = "us-east-1"
		}
		o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
	})
	s.cache = NewCacheStore(TestTableName, cli)
	s.jobs = NewJobStore(TestTableName, cli)
}

func (s *DDBTestSuite) TestCacheRoundTrip() {
	ctx := context.Background()
	k := fmt.Sprintf("test:%s", uuid.NewString())
	_, err := s.cache.Get(ctx, k)
	s.True(errors.Is(err, types.ErrNotFound))

	s.NoError(s.cache.Set(ctx, k, []byte(`{"a":1}`), time.Minute))
	s.NoError(s.cache.Set(ctx, k, []byte(`{"b":2}`), time.Minute))
	e, err := s.cache.Get(ctx, k)
	s.Require().NoError(err)
	s.JSONEq(`{"b":2}`, string(e.Data))

	ok, err := s.cache.Delete(ctx, k)
	s.NoError(err)
	s.True(ok)
	ok, err = s.cache.Delete(ctx, k)
	s.NoError(err)
	s.False(ok)
}

func (s *DDBTestSuite) TestCacheExpired() {
	ctx := context.Background()
	k := fmt.Sprintf("test:%s", uuid.NewString())
	s.NoError(s.cache.Set(ctx, k, []byte(`1`), time.Second))
	s.cache.now = func() time.Time { return time.Now().Add(time.Minute) }
	defer func() { s.cache.now = time.Now }()
	_, err := s.cache.Get(ctx, k)
	s.True(errors.Is(err, types.ErrNotFound))
}

func (s *DDBTestSuite) TestJobs() {
	ctx := context.Background()
	job := types.BackgroundJob{
		ID:        uuid.NewString(),
		Type:      types.JobDashboardRefresh,
		Status:    types.JobRunning,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	s.NoError(s.jobs.PutJob(ctx, job))
	s.NoError(job.Apply(types.JobCompleted, "", time.Now().UTC()))
	s.NoError(s.jobs.PutJob(ctx, job))

	got, err := s.jobs.GetJob(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(types.JobCompleted, got.Status)
	s.NotNil(got.CompletedAt)

	list, err := s.jobs.ListJobs(ctx, 50)
	s.NoError(err)
	s.NotEmpty(list)
}
