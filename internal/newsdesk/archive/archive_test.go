package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestKey(t *testing.T) {
	at := time.Date(2024, 3, 7, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	if got := Key("research", 42, at); got != "research/2024/03/08/task-42.json" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestS3_Put(t *testing.T) {
	f := &fakePutter{}
	a := newS3(f, "news-bucket", "/archive/")

	at := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	key, err := a.Put(context.Background(), 5, at, map[string]any{"topic": "ai"})
	if err != nil {
		t.Fatal(err)
	}
	if key != "archive/2024/01/02/task-5.json" {
		t.Fatalf("unexpected key %q", key)
	}
	if aws.ToString(f.in.Bucket) != "news-bucket" || aws.ToString(f.in.ContentType) != "application/json" {
		t.Fatalf("unexpected input %+v", f.in)
	}
	var got map[string]any
	if err := json.Unmarshal(f.body, &got); err != nil || got["topic"] != "ai" {
		t.Fatalf("unexpected body %s", f.body)
	}
}

func TestS3_PutError(t *testing.T) {
	a := newS3(&fakePutter{err: errors.New("access denied")}, "b", "")
	if _, err := a.Put(context.Background(), 1, time.Now(), struct{}{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
