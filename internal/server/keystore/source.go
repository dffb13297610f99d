package keystore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/keys"
)

// Source yields PEM-encoded private key material.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads the key from a local file.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(s.Path)
}

func (s FileSource) String() string { return "file://" + s.Path }

// DatabaseSource reads the newest row of the keys table. With Generate set,
// an empty table gets a freshly generated key, which is stored and returned.
type DatabaseSource struct {
	Repo     keys.Repository
	Generate bool
	Bits     int
}

func (s DatabaseSource) Load(ctx context.Context) ([]byte, error) {
	k, err := s.Repo.Latest(ctx)
	if err == nil {
		return k.PrivatePEM, nil
	}
	if !errors.Is(err, common.ErrorNotFound) || !s.Generate {
		return nil, err
	}

	bits := s.Bits
	if bits == 0 {
		bits = MinKeyBits
	}
	priv, err := Generate(bits)
	if err != nil {
		return nil, err
	}
	data := EncodePrivateKey(priv)
	if _, err := s.Repo.Insert(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s DatabaseSource) String() string { return "db:keys" }

// S3ObjectGetter is the part of *s3.Client the S3 source needs.
type S3ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the key from an object in an S3-compatible store.
type S3Source struct {
	Client S3ObjectGetter
	Bucket string
	Key    string
}

func (s S3Source) Load(ctx context.Context) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

// S3Options configures the client used for s3:// sources.
type S3Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) S3ObjectGetter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Client builds an S3 client. Static credentials and a custom endpoint
// (MinIO and friends, path-style addressing) are used when set.
func NewS3Client(ctx context.Context, o S3Options) (S3ObjectGetter, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	}), nil
}

// SourceDeps carries what NewSource may need for a given scheme.
type SourceDeps struct {
	Keys        keys.Repository
	GenerateKey bool
	S3          S3Options
}

// NewSource picks a Source for uri:
//
//	db:                     keys table (DatabaseSource)
//	file:///etc/key.pem     local file; a bare path works too
//	s3://bucket/path/key    S3 object
func NewSource(ctx context.Context, uri string, deps SourceDeps) (Source, error) {
	if uri == "db:" || uri == "db" {
		if deps.Keys == nil {
			return nil, errors.New("db key source needs a keys repository")
		}
		return DatabaseSource{Repo: deps.Keys, Generate: deps.GenerateKey}, nil
	}

	if !strings.Contains(uri, "://") {
		return FileSource{Path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("key source %q: %w", uri, err)
	}

	switch u.Scheme {
	case "file":
		return FileSource{Path: u.Path}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("key source %q: want s3://bucket/key", uri)
		}
		client, err := NewS3Client(ctx, deps.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return S3Source{Client: client, Bucket: u.Host, Key: key}, nil
	default:
		return nil, fmt.Errorf("key source %q: unsupported scheme %q", uri, u.Scheme)
	}
}
