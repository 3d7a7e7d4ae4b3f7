package deploy

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/deploykit/envresolve/refs"
)

type fakeS3 struct {
	objects map[string]string // "bucket/key" -> body
	calls   int
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	body, ok := f.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s/%s", *params.Bucket, *params.Key)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3SecretsFetcher_Fetch(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"storefront-secrets/bundle.json": `{"SHOPIFY_API_KEY":"abc","SHOPIFY_API_SECRET":"def"}`,
	}}
	f := NewS3SecretsFetcherWithClient(fake)

	secrets, err := f.Fetch(context.Background(), refs.SecretsLocation{
		Scheme: "s3", Bucket: "storefront-secrets", Key: "bundle.json",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if secrets["SHOPIFY_API_KEY"] != "abc" || secrets["SHOPIFY_API_SECRET"] != "def" {
		t.Errorf("secrets = %v", secrets)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
}

func TestS3SecretsFetcher_UnsupportedScheme(t *testing.T) {
	f := NewS3SecretsFetcherWithClient(&fakeS3{})
	_, err := f.Fetch(context.Background(), refs.SecretsLocation{Scheme: "gs", Bucket: "b", Key: "k"})
	if err == nil || !strings.Contains(err.Error(), "unsupported scheme") {
		t.Fatalf("expected scheme error, got %v", err)
	}
}

func TestS3SecretsFetcher_MissingObject(t *testing.T) {
	f := NewS3SecretsFetcherWithClient(&fakeS3{objects: map[string]string{}})
	_, err := f.Fetch(context.Background(), refs.SecretsLocation{Scheme: "s3", Bucket: "b", Key: "missing.json"})
	if err == nil {
		t.Fatal("expected error for missing object")
	}
}

func TestS3SecretsFetcher_MalformedBundle(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"b/k": "not json"}}
	f := NewS3SecretsFetcherWithClient(fake)
	_, err := f.Fetch(context.Background(), refs.SecretsLocation{Scheme: "s3", Bucket: "b", Key: "k"})
	if err == nil {
		t.Fatal("expected error for malformed bundle")
	}
}
