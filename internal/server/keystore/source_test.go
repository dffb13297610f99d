package keystore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeysRepo struct {
	stored    []byte
	latestErr error
	insertErr error
	inserts   int
}

func (f *fakeKeysRepo) Latest(ctx context.Context) (*models.StoredKey, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	if f.stored == nil {
		return nil, common.ErrorNotFound
	}
	return &models.StoredKey{ID: 1, PrivatePEM: f.stored}, nil
}

func (f *fakeKeysRepo) Insert(ctx context.Context, privatePEM []byte) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserts++
	f.stored = privatePEM
	return int64(f.inserts), nil
}

func TestDatabaseSource_ExistingKey(t *testing.T) {
	data := EncodePrivateKey(sharedKey(t))
	repo := &fakeKeysRepo{stored: data}

	got, err := DatabaseSource{Repo: repo, Generate: true}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Zero(t, repo.inserts)
}

func TestDatabaseSource_GeneratesWhenEmpty(t *testing.T) {
	repo := &fakeKeysRepo{}

	got, err := DatabaseSource{Repo: repo, Generate: true}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, repo.stored, got)

	_, err = New(got)
	assert.NoError(t, err)
}

func TestDatabaseSource_Errors(t *testing.T) {
	_, err := DatabaseSource{Repo: &fakeKeysRepo{}}.Load(context.Background())
	assert.ErrorIs(t, err, common.ErrorNotFound)

	boom := errors.New("db down")
	_, err = DatabaseSource{Repo: &fakeKeysRepo{latestErr: boom}, Generate: true}.Load(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = DatabaseSource{Repo: &fakeKeysRepo{insertErr: boom}, Generate: true}.Load(context.Background())
	assert.ErrorIs(t, err, boom)
}

type fakeS3 struct {
	body   []byte
	err    error
	bucket string
	key    string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestS3Source_Load(t *testing.T) {
	fs := &fakeS3{body: []byte("pem-bytes")}
	src := S3Source{Client: fs, Bucket: "keys", Key: "prod/authgate.pem"}

	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pem-bytes", string(got))
	assert.Equal(t, "keys", fs.bucket)
	assert.Equal(t, "prod/authgate.pem", fs.key)
	assert.Equal(t, "s3://keys/prod/authgate.pem", src.String())

	fs.err = errors.New("access denied")
	_, err = src.Load(context.Background())
	assert.Error(t, err)
}

func stubS3(t *testing.T, loadErr error) *s3.Options {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "eu-west-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		if lo.Credentials == nil {
			t.Fatalf("static credentials not applied")
		}
		return aws.Config{}, loadErr
	}

	captured := &s3.Options{}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) S3ObjectGetter {
		for _, fn := range optFns {
			fn(captured)
		}
		return &fakeS3{}
	}
	return captured
}

func TestNewS3Client_AppliesOptions(t *testing.T) {
	captured := stubS3(t, nil)

	c, err := NewS3Client(context.Background(), S3Options{
		Region:    "eu-west-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	assert.NotNil(t, c)
	require.NotNil(t, captured.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *captured.BaseEndpoint)
	assert.True(t, captured.UsePathStyle)
}

func TestNewS3Client_ConfigError(t *testing.T) {
	stubS3(t, errors.New("no config"))

	_, err := NewS3Client(context.Background(), S3Options{Region: "eu-west-1", AccessKey: "a", SecretKey: "b"})
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	stubS3(t, nil)
	deps := SourceDeps{
		Keys:        &fakeKeysRepo{},
		GenerateKey: true,
		S3:          S3Options{Region: "eu-west-1", AccessKey: "a", SecretKey: "b"},
	}

	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "db:", want: "db:keys"},
		{uri: "/etc/authgate/key.pem", want: "file:///etc/authgate/key.pem"},
		{uri: "file:///etc/authgate/key.pem", want: "file:///etc/authgate/key.pem"},
		{uri: "s3://keys/prod/authgate.pem", want: "s3://keys/prod/authgate.pem"},
		{uri: "s3://keys", wantErr: true},
		{uri: "http://example.com/key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			src, err := NewSource(context.Background(), tt.uri, deps)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.String())
		})
	}
}

func TestNewSource_DBWithoutRepo(t *testing.T) {
	_, err := NewSource(context.Background(), "db:", SourceDeps{})
	assert.Error(t, err)
}
