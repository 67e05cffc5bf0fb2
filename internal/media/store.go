package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	cfg "github.com/postloom/postloom/configs"
)

// Store resolves stored media references. A reference is either an R2 object
// key or a plain https URL left over from external imports.
type Store struct {
	config  cfg.Config
	client  *s3.Client
	presign *s3.PresignClient
}

func NewStore(c cfg.Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})

	return &Store{
		config:  c,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

// Fetch downloads the asset and sniffs its content type.
func (s *Store) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	var data []byte
	var err error

	if isURL(ref) {
		data, err = s.fetchURL(ctx, ref)
	} else {
		data, err = s.fetchObject(ctx, ref)
	}
	if err != nil {
		return nil, "", err
	}

	mime := http.DetectContentType(data)
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		mime = kind.MIME.Value
	}

	return data, mime, nil
}

// ResolveURL returns a URL a platform can pull the asset from directly.
// R2 keys get a short-lived presigned GET.
func (s *Store) ResolveURL(ctx context.Context, ref string) (string, error) {
	if isURL(ref) {
		return ref, nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.R2.BucketName),
		Key:    aws.String(ref),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return req.URL, nil
}

func (s *Store) fetchObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return data, nil
}

func (s *Store) fetchURL(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status fetching media: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
