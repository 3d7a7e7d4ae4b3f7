// Package refs validates and parses the location-style reference fields of
// an environment descriptor: the secrets bundle locator, the TLS
// certificate identifier, and the artifact storage bucket. Resolution is
// purely syntactic — references locate external material but are never
// dereferenced here.
package refs

import (
	"fmt"
	"regexp"
	"strings"
)

// ReferenceError reports a malformed reference string.
type ReferenceError struct {
	Env    string // environment name, may be empty when validating in isolation
	Field  string // descriptor field holding the reference
	Value  string // offending value
	Reason string
}

func (e *ReferenceError) Error() string {
	if e.Env != "" {
		return fmt.Sprintf("environment %q: %s: malformed reference %q: %s", e.Env, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: malformed reference %q: %s", e.Field, e.Value, e.Reason)
}

// SecretsLocation is the parsed form of a secrets bundle locator
// ("<scheme>://<bucket>/<key>"). It identifies where a secrets bundle is
// stored; fetching and decrypting the bundle is the secrets fetcher's job
// at deploy time.
type SecretsLocation struct {
	Scheme string `json:"scheme" yaml:"scheme"`
	Bucket string `json:"bucket" yaml:"bucket"`
	Key    string `json:"key" yaml:"key"`
}

// String reassembles the locator in its canonical URI form.
func (l SecretsLocation) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// IsZero reports whether the location is unset.
func (l SecretsLocation) IsZero() bool {
	return l.Scheme == "" && l.Bucket == "" && l.Key == ""
}

var schemePattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)

// ParseSecretsLocation parses a "<scheme>://<bucket>/<key>" locator.
// The key may itself contain slashes.
func ParseSecretsLocation(field, value string) (SecretsLocation, error) {
	scheme, rest, ok := strings.Cut(value, "://")
	if !ok {
		return SecretsLocation{}, &ReferenceError{Field: field, Value: value, Reason: "expected <scheme>://<bucket>/<key>"}
	}
	if !schemePattern.MatchString(scheme) {
		return SecretsLocation{}, &ReferenceError{Field: field, Value: value, Reason: fmt.Sprintf("invalid scheme %q", scheme)}
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return SecretsLocation{}, &ReferenceError{Field: field, Value: value, Reason: "missing object key after bucket"}
	}
	if err := checkBucketName(field, value, bucket); err != nil {
		return SecretsLocation{}, err
	}
	return SecretsLocation{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// certificatePattern matches an ACM certificate ARN:
// arn:aws:acm:<region>:<account>:certificate/<id>.
var certificatePattern = regexp.MustCompile(`^arn:aws:acm:[a-z]{2}(?:-[a-z]+)+-\d:\d{12}:certificate/[A-Za-z0-9-]+$`)

// ValidateCertificateRef checks that value is a well-formed TLS certificate
// resource identifier.
func ValidateCertificateRef(field, value string) error {
	if !certificatePattern.MatchString(value) {
		return &ReferenceError{Field: field, Value: value, Reason: "not a recognized certificate identifier (expected arn:aws:acm:<region>:<account>:certificate/<id>)"}
	}
	return nil
}

// bucketPattern covers S3 bucket naming rules: 3-63 characters, lowercase
// letters, digits, dots and hyphens, starting and ending alphanumeric.
var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// ValidateBucketRef checks that value is a syntactically valid storage
// bucket name.
func ValidateBucketRef(field, value string) error {
	return checkBucketName(field, value, value)
}

func checkBucketName(field, value, bucket string) error {
	if !bucketPattern.MatchString(bucket) {
		return &ReferenceError{Field: field, Value: value, Reason: fmt.Sprintf("invalid bucket name %q", bucket)}
	}
	if strings.Contains(bucket, "..") {
		return &ReferenceError{Field: field, Value: value, Reason: fmt.Sprintf("invalid bucket name %q: consecutive dots", bucket)}
	}
	return nil
}
