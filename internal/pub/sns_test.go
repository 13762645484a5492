package pub

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topic = "arn:aws:sns:us-east-1:000000000000:faucetdrops-jobs"

// fakeSNS answers Publish in either the query or the JSON wire protocol.
type fakeSNS struct {
	mu       sync.Mutex
	topics   []string
	messages []string
}

func (f *fakeSNS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var topicArn, message string
	jsonProto := strings.Contains(r.Header.Get("Content-Type"), "json")
	if jsonProto {
		var in struct {
			TopicArn string
			Message  string
		}
		_ = json.Unmarshal(body, &in)
		topicArn, message = in.TopicArn, in.Message
	} else {
		form, _ := url.ParseQuery(string(body))
		topicArn, message = form.Get("TopicArn"), form.Get("Message")
	}
	f.mu.Lock()
	f.topics = append(f.topics, topicArn)
	f.messages = append(f.messages, message)
	f.mu.Unlock()

	if jsonProto {
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		_, _ = io.WriteString(w, `{"MessageId":"m-1"}`)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = io.WriteString(w, `<PublishResponse xmlns="http://sns.amazonaws.com/doc/2010-03-31/">`+
		`<PublishResult><MessageId>m-1</MessageId></PublishResult>`+
		`<ResponseMetadata><RequestId>r-1</RequestId></ResponseMetadata></PublishResponse>`)
}

func TestPublishRaw(t *testing.T) {
	fake := &fakeSNS{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cli := sns.New(sns.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
	})
	p := NewSNS(cli)

	payload := []byte(`{"id":"job-1","status":"completed"}`)
	require.NoError(t, p.PublishRaw(context.Background(), topic, payload))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.topics, 1)
	assert.Equal(t, topic, fake.topics[0])
	assert.JSONEq(t, string(payload), fake.messages[0])
}

func TestPublishRawServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cli := sns.New(sns.Options{
		Region:           "us-east-1",
		BaseEndpoint:     aws.String(srv.URL),
		Credentials:      credentials.NewStaticCredentialsProvider("test", "test", ""),
		RetryMaxAttempts: 1,
	})
	assert.Error(t, NewSNS(cli).PublishRaw(context.Background(), topic, []byte(`{}`)))
}
