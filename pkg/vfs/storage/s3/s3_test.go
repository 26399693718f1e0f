package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

// Mock S3 client for unit testing
type mockS3Client struct {
	mock.Mock
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

func (m *mockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*s3.HeadBucketOutput), args.Error(1)
}

func (m *mockS3Client) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*s3.CreateBucketOutput), args.Error(1)
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(*manager.UploadOutput), args.Error(1)
}

func newTestBackend(config Config) (*Backend, *mockS3Client, *mockUploader) {
	client := new(mockS3Client)
	uploader := new(mockUploader)
	return &Backend{client: client, uploader: uploader, bucket: config.Bucket, config: config}, client, uploader
}

func keyIs(key string) interface{} {
	return mock.MatchedBy(func(in *s3.PutObjectInput) bool { return *in.Key == key })
}

func TestNew(t *testing.T) {
	t.Run("bucket is required", func(t *testing.T) {
		_, err := New(Config{Region: "us-west-2"})
		assert.Error(t, err)
	})

	t.Run("static credentials and custom endpoint", func(t *testing.T) {
		b, err := New(Config{
			Bucket:          "vfs",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, "vfs", b.bucket)
		assert.Equal(t, "us-east-1", b.config.Region)
	})
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("small payloads use a single put", func(t *testing.T) {
		b, client, uploader := newTestBackend(Config{Bucket: "vfs", Prefix: "tenant/"})
		client.On("PutObject", ctx, keyIs("tenant/offline/abc")).Return(&s3.PutObjectOutput{}, nil)

		require.NoError(t, b.Upload(ctx, "offline/abc", bytes.NewReader([]byte("hello"))))
		client.AssertExpectations(t)
		uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)

		in := client.Calls[0].Arguments.Get(1).(*s3.PutObjectInput)
		assert.Equal(t, int64(5), *in.ContentLength)
		assert.Equal(t, "vfs", *in.Bucket)
	})

	t.Run("large payloads are streamed", func(t *testing.T) {
		b, client, uploader := newTestBackend(Config{Bucket: "vfs"})
		uploader.On("Upload", ctx, keyIs("offline/big")).Return(&manager.UploadOutput{}, nil)

		data := bytes.Repeat([]byte("x"), vfs.InlineContentThreshold)
		require.NoError(t, b.Upload(ctx, "offline/big", bytes.NewReader(data)))
		uploader.AssertExpectations(t)
		client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
	})

	t.Run("unsized readers are streamed", func(t *testing.T) {
		b, _, uploader := newTestBackend(Config{Bucket: "vfs"})
		uploader.On("Upload", ctx, keyIs("k")).Return(&manager.UploadOutput{}, nil)

		require.NoError(t, b.Upload(ctx, "k", strings.NewReader("tiny")))
		uploader.AssertExpectations(t)
	})

	t.Run("server side encryption", func(t *testing.T) {
		b, client, _ := newTestBackend(Config{Bucket: "vfs", EnableSSE: true, SSEAlgorithm: "aws:kms", SSEKMSKeyID: "key-1"})
		client.On("PutObject", ctx, mock.Anything).Return(&s3.PutObjectOutput{}, nil)

		require.NoError(t, b.Upload(ctx, "k", bytes.NewReader([]byte("x"))))
		in := client.Calls[0].Arguments.Get(1).(*s3.PutObjectInput)
		assert.Equal(t, types.ServerSideEncryptionAwsKms, in.ServerSideEncryption)
		assert.Equal(t, "key-1", *in.SSEKMSKeyId)
	})

	t.Run("failure", func(t *testing.T) {
		b, client, _ := newTestBackend(Config{Bucket: "vfs"})
		client.On("PutObject", ctx, mock.Anything).Return((*s3.PutObjectOutput)(nil), errors.New("access denied"))

		err := b.Upload(ctx, "k", bytes.NewReader([]byte("x")))
		assert.ErrorContains(t, err, "access denied")
	})
}

func TestDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		b, client, _ := newTestBackend(Config{Bucket: "vfs"})
		client.On("GetObject", ctx, mock.Anything).Return(&s3.GetObjectOutput{
			Body: io.NopCloser(strings.NewReader("payload")),
		}, nil)

		rc, err := b.Download(ctx, "offline/abc")
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	notFound := []error{
		&types.NoSuchKey{},
		&types.NotFound{},
		&smithy.GenericAPIError{Code: "NoSuchKey"},
	}
	for _, cause := range notFound {
		t.Run("missing "+cause.Error(), func(t *testing.T) {
			b, client, _ := newTestBackend(Config{Bucket: "vfs"})
			client.On("GetObject", ctx, mock.Anything).Return((*s3.GetObjectOutput)(nil), cause)

			_, err := b.Download(ctx, "offline/abc")
			assert.ErrorIs(t, err, vfs.ErrNotFound)
		})
	}

	t.Run("other failure", func(t *testing.T) {
		b, client, _ := newTestBackend(Config{Bucket: "vfs"})
		client.On("GetObject", ctx, mock.Anything).Return((*s3.GetObjectOutput)(nil), errors.New("timeout"))

		_, err := b.Download(ctx, "offline/abc")
		assert.Error(t, err)
		assert.False(t, errors.Is(err, vfs.ErrNotFound))
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	b, client, _ := newTestBackend(Config{Bucket: "vfs", Prefix: "p"})
	client.On("DeleteObject", ctx, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "p/offline/abc"
	})).Return(&s3.DeleteObjectOutput{}, nil)

	require.NoError(t, b.Delete(ctx, "offline/abc"))
	client.AssertExpectations(t)
}

func TestCreateBucketIfNotExists(t *testing.T) {
	ctx := context.Background()

	t.Run("existing bucket", func(t *testing.T) {
		b, client, _ := newTestBackend(Config{Bucket: "vfs", Region: "us-east-1"})
		client.On("HeadBucket", ctx, mock.Anything).Return(&s3.HeadBucketOutput{}, nil)

		require.NoError(t, b.createBucketIfNotExists(ctx))
		client.AssertNotCalled(t, "CreateBucket", mock.Anything, mock.Anything)
	})

	t.Run("missing bucket outside us-east-1", func(t *testing.T) {
		b, client, _ := newTestBackend(Config{Bucket: "vfs", Region: "eu-west-1"})
		client.On("HeadBucket", ctx, mock.Anything).Return((*s3.HeadBucketOutput)(nil), &types.NotFound{})
		client.On("CreateBucket", ctx, mock.MatchedBy(func(in *s3.CreateBucketInput) bool {
			return in.CreateBucketConfiguration != nil &&
				in.CreateBucketConfiguration.LocationConstraint == types.BucketLocationConstraint("eu-west-1")
		})).Return(&s3.CreateBucketOutput{}, nil)

		require.NoError(t, b.createBucketIfNotExists(ctx))
		client.AssertExpectations(t)
	})

	t.Run("head failure", func(t *testing.T) {
		b, client, _ := newTestBackend(Config{Bucket: "vfs"})
		client.On("HeadBucket", ctx, mock.Anything).Return((*s3.HeadBucketOutput)(nil), errors.New("forbidden"))

		assert.Error(t, b.createBucketIfNotExists(ctx))
	})
}
