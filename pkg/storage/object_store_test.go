package storage

import (
	"context"
	"encoding/json"
	"io"
	"testing"
)

type recordingStore struct {
	key         string
	body        []byte
	size        int64
	contentType string
}

func (r *recordingStore) Put(_ context.Context, key string, rd io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(rd)
	if err != nil {
		return err
	}
	r.key, r.body, r.size, r.contentType = key, data, size, contentType
	return nil
}

func TestPutJSON(t *testing.T) {
	rec := &recordingStore{}
	items := []map[string]any{{"title": "Need a CRM", "upVotes": 3}}
	if err := PutJSON(context.Background(), rec, "scrapes/ws-1/run.json", items); err != nil {
		t.Fatalf("put json: %v", err)
	}
	if rec.key != "scrapes/ws-1/run.json" || rec.contentType != "application/json" {
		t.Fatalf("unexpected put: key=%q type=%q", rec.key, rec.contentType)
	}
	if rec.size != int64(len(rec.body)) {
		t.Fatalf("size %d does not match body length %d", rec.size, len(rec.body))
	}
	var decoded []map[string]any
	if err := json.Unmarshal(rec.body, &decoded); err != nil || decoded[0]["title"] != "Need a CRM" {
		t.Fatalf("unexpected body %s (%v)", rec.body, err)
	}
}

func TestNewMinioStoreRequiresBucket(t *testing.T) {
	if _, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
