package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config locates the users object in an S3-compatible bucket.
type S3Config struct {
	Bucket       string
	Key          string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// S3Store keeps the collection as one JSON object. Writes are conditional
// on the ETag seen by the last read, so a concurrent writer elsewhere
// surfaces as common.ErrVersionConflict instead of a lost update.
type S3Store struct {
	client s3API
	bucket string
	key    string

	mu   sync.Mutex
	etag *string
}

// NewS3Store builds a client with static credentials and a path-style
// endpoint, as MinIO expects.
func NewS3Store(ctx context.Context, c S3Config) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return newS3Store(client, c.Bucket, c.Key), nil
}

func newS3Store(client s3API, bucket, key string) *S3Store {
	return &S3Store{client: client, bucket: bucket, key: key}
}

func (s *S3Store) ReadAll(ctx context.Context) ([]*models.User, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) || apiErrorCode(err) == "NoSuchKey" {
			s.setETag(nil)
			return []*models.User{}, nil
		}
		return nil, storageError("get users object", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, storageError("read users object", err)
	}
	s.setETag(out.ETag)

	return decodeUsers("decode users object", data)
}

func (s *S3Store) SaveAll(ctx context.Context, users []*models.User) error {
	if err := validateRecords(users); err != nil {
		return err
	}
	if users == nil {
		users = []*models.User{}
	}
	data, err := json.Marshal(users)
	if err != nil {
		return storageError("encode users", err)
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if etag := s.currentETag(); etag != nil {
		in.IfMatch = etag
	} else {
		in.IfNoneMatch = aws.String("*")
	}

	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		if code := apiErrorCode(err); code == "PreconditionFailed" || code == "ConditionalRequestConflict" {
			return fmt.Errorf("put users object: %w", common.ErrVersionConflict)
		}
		return storageError("put users object", err)
	}
	s.setETag(out.ETag)
	return nil
}

func (s *S3Store) setETag(etag *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if etag == nil {
		s.etag = nil
		return
	}
	v := *etag
	s.etag = &v
}

func (s *S3Store) currentETag() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.etag
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
