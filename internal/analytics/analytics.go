// Package analytics records completed conversation turns.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	chaterrors "chatbot-parser/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndex = "chatbot-turns"

// TurnRecord is one user message and the reply it produced.
type TurnRecord struct {
	ID              string            `json:"id"`
	SessionID       string            `json:"sessionId"`
	UserMessage     string            `json:"userMessage"`
	Intent          string            `json:"intent"`
	Entities        map[string]string `json:"entities"`
	ChatbotResponse string            `json:"chatbotResponse"`
	Timestamp       time.Time         `json:"timestamp"`
}

type Recorder interface {
	Record(ctx context.Context, record TurnRecord) error
}

// NopRecorder drops every record.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, TurnRecord) error { return nil }

// TurnIndexer writes records to an Elasticsearch index, one document per
// turn keyed by the record ID.
type TurnIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewTurnIndexer(client *elasticsearch.Client, index string) *TurnIndexer {
	if index == "" {
		index = DefaultIndex
	}
	return &TurnIndexer{client: client, index: index}
}

func (i *TurnIndexer) Index() string { return i.index }

func (i *TurnIndexer) Record(ctx context.Context, record TurnRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return chaterrors.NewTurnIndexingFailedError(fmt.Errorf("marshal turn: %w", err))
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: record.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return chaterrors.NewTurnIndexingFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return chaterrors.NewTurnIndexingFailedError(fmt.Errorf("index %s: %s: %s", i.index, res.Status(), msg))
	}
	return nil
}
