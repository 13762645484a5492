package ports

import "context"

// Publisher pushes raw JSON notifications to a topic.
type Publisher interface {
	PublishRaw(ctx context.Context, arn string, payload []byte) error
}
