package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/deploykit/envresolve/refs"
)

// SecretsFetcher retrieves the secret material a resolved secrets location
// points at. Fetching happens at deploy time, never during resolution.
type SecretsFetcher interface {
	Fetch(ctx context.Context, loc refs.SecretsLocation) (map[string]string, error)
}

// S3API is the slice of the S3 client used by S3SecretsFetcher. Satisfied
// by *s3.Client; swap in a fake for tests.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3SecretsFetcher reads a JSON secrets bundle from S3. The bundle is a
// flat string-to-string object of secret names to values.
type S3SecretsFetcher struct {
	client S3API
}

// NewS3SecretsFetcher builds a fetcher from the ambient AWS configuration
// (environment, shared config files, instance role).
func NewS3SecretsFetcher(ctx context.Context, region string) (*S3SecretsFetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("secrets fetcher: load aws config: %w", err)
	}
	return &S3SecretsFetcher{client: s3.NewFromConfig(cfg)}, nil
}

// NewS3SecretsFetcherWithClient builds a fetcher around an existing client.
func NewS3SecretsFetcherWithClient(client S3API) *S3SecretsFetcher {
	return &S3SecretsFetcher{client: client}
}

// Fetch downloads and decodes the secrets bundle at loc. The location's
// scheme must be s3.
func (f *S3SecretsFetcher) Fetch(ctx context.Context, loc refs.SecretsLocation) (map[string]string, error) {
	if loc.Scheme != "s3" {
		return nil, fmt.Errorf("secrets fetcher: unsupported scheme %q (only s3)", loc.Scheme)
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &loc.Bucket,
		Key:    &loc.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("secrets fetcher: get s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("secrets fetcher: read s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}

	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("secrets fetcher: decode bundle s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}
	return secrets, nil
}
