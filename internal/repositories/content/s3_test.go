package content

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, _ := io.ReadAll(in.Body)
	f.objects[*in.Bucket+"/"+*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_SaveLoadDelete(t *testing.T) {
	fake := newFakeS3()
	s := &S3Store{client: fake, bucket: "b", prefix: "org"}
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "notes/2024/01/n.json", record{ID: "n", Body: "x"}))
	assert.Contains(t, fake.objects, "b/org/notes/2024/01/n.json")

	var got record
	require.NoError(t, s.Load(ctx, "notes/2024/01/n.json", &got))
	assert.Equal(t, "x", got.Body)

	require.NoError(t, s.Delete(ctx, "notes/2024/01/n.json"))
	require.ErrorIs(t, s.Load(ctx, "notes/2024/01/n.json", &got), common.ErrContentCorrupt)
	require.NoError(t, s.Delete(ctx, "notes/2024/01/n.json"))
}

func TestS3Store_Errors(t *testing.T) {
	fake := newFakeS3()
	s := &S3Store{client: fake, bucket: "b"}
	ctx := context.Background()

	fake.objects["b/bad.json"] = []byte("nope")
	var got record
	require.ErrorIs(t, s.Load(ctx, "bad.json", &got), common.ErrContentCorrupt)

	fake.putErr = errors.New("access denied")
	require.ErrorIs(t, s.Save(ctx, "x.json", record{}), common.ErrStorage)

	fake.getErr = errors.New("timeout")
	err := s.Load(ctx, "x.json", &got)
	require.ErrorIs(t, err, common.ErrStorage)
	assert.NotErrorIs(t, err, common.ErrContentCorrupt)
}

func TestNewS3Store_UsesInjectedClient(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	fake := newFakeS3()
	var gotEndpoint string
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		var o s3.Options
		for _, fn := range optFns {
			fn(&o)
		}
		gotEndpoint = aws.ToString(o.BaseEndpoint)
		return fake
	}

	s, err := NewS3Store(context.Background(), S3Options{Bucket: "b", Region: "us-east-1", Endpoint: "http://minio:9000", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", gotEndpoint)
	require.NoError(t, s.Save(context.Background(), "k.json", record{ID: "1"}))
	assert.Contains(t, fake.objects, "b/k.json")

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}
	_, err = NewS3Store(context.Background(), S3Options{})
	require.Error(t, err)
}
