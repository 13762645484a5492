package ddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	SCache   = "CACHE"
	SJob     = "JOB"
	SJobList = "JOBS"
)

func pkCache(key string) string { return fmt.Sprintf("%s#%s", SCache, key) }
func skEntry() string           { return "ENTRY" }
func pkJob(id string) string    { return fmt.Sprintf("%s#%s", SJob, id) }
func skJob() string             { return "RECORD" }
func pkJobList() string         { return SJobList }

// skJobList orders the job index by start time; the id keeps rows started in the same millisecond apart.
func skJobList(startedMs int64, id string) string {
	return fmt.Sprintf("%s#%013d#%s", SJob, startedMs, id)
}

func createTableIfNotExists(client *dynamodb.Client, table string) {
	_, err := client.CreateTable(context.Background(), &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		log.Fatalf("Failed to create table %s: %v", table, err)
	}
}

func keyOf(pk, sk string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pk},
		"SK": &ddbTypes.AttributeValueMemberS{Value: sk},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
