package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/graphweave/graphrag/internal/util"
)

// IndexRequest asks a worker to run one indexing pass. Runs are idempotent,
// so duplicate requests only cost an empty pass.
type IndexRequest struct {
	RequestID   string    `json:"request_id"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewIndexRequest(reason string) IndexRequest {
	return IndexRequest{
		RequestID:   util.NewRunID(),
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
}

// PublishIndexRequest queues req on IndexQueue.
func PublishIndexRequest(ctx context.Context, ch Publisher, req IndexRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode index request: %w", err)
	}
	return PublishFIFO(ctx, ch, IndexQueue, data)
}

// DecodeIndexRequest parses a message body. Malformed bodies are permanent
// failures.
func DecodeIndexRequest(body []byte) (IndexRequest, error) {
	var req IndexRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return IndexRequest{}, util.Permanent(fmt.Errorf("decode index request: %w", err))
	}
	return req, nil
}
