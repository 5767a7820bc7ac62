package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

var ErrObjectTooLarge = errors.New("object exceeds size limit")

type ItfS3 interface {
	UploadModel(ctx context.Context, file *multipart.FileHeader) (string, error)
	GetObject(ctx context.Context, bucket, key string, limit int64) ([]byte, error)
	PresignUrl(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

type s3Client struct {
	client     *s3.S3
	session    *session.Session
	bucketName string
	prefix     string
}

func New() (ItfS3, error) {
	sess, err := newSession()
	if err != nil {
		return nil, err
	}

	prefix := os.Getenv("AWS_MODEL_PREFIX")
	if prefix == "" {
		prefix = "tryon-models"
	}

	return &s3Client{
		client:     s3.New(sess),
		session:    sess,
		bucketName: os.Getenv("AWS_BUCKET_NAME"),
		prefix:     prefix,
	}, nil
}

func (s *s3Client) UploadModel(ctx context.Context, file *multipart.FileHeader) (string, error) {
	uploader := s3manager.NewUploader(s.session)

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer func(src multipart.File) {
		if err := src.Close(); err != nil {
			fmt.Println("Failed to close file")
		}
	}(src)

	key := s.objectKey(file.Filename)
	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String("model/gltf-binary"),
	})
	if err != nil {
		return "", err
	}

	// The bucket is private; browsers get a presigned URL per session.
	return fmt.Sprintf("s3://%s/%s", s.bucketName, key), nil
}

func (s *s3Client) GetObject(ctx context.Context, bucket, key string, limit int64) ([]byte, error) {
	if bucket == "" {
		bucket = s.bucketName
	}

	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if limit > 0 && out.ContentLength != nil && *out.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes", ErrObjectTooLarge, *out.ContentLength)
	}

	reader := io.Reader(out.Body)
	if limit > 0 {
		reader = io.LimitReader(out.Body, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, ErrObjectTooLarge
	}
	return data, nil
}

func (s *s3Client) PresignUrl(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if bucket == "" {
		bucket = s.bucketName
	}

	decodedKey, err := url.QueryUnescape(key)
	if err != nil {
		return "", fmt.Errorf("failed to decode S3 key: %w", err)
	}

	_, err = s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(decodedKey),
	})
	if err != nil {
		return "", fmt.Errorf("file does not exist: %w", err)
	}

	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(decodedKey),
	})

	urlStr, err := req.Presign(expiry)
	if err != nil {
		return "", err
	}

	return urlStr, nil
}

func (s *s3Client) objectKey(fileName string) string {
	base := strings.ReplaceAll(path.Base(fileName), " ", "-")
	return fmt.Sprintf("%s/%d-%s", s.prefix, time.Now().UnixNano(), base)
}

func newSession() (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
		Credentials: credentials.NewStaticCredentials(
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			"",
		),
	})

	if err != nil {
		return nil, err
	}

	return sess, nil
}
