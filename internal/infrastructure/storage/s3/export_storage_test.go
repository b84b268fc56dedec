package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	pages   [][]types.Object
	putKeys []string
	putBody string
	putDisp string
	putErr  error
	listErr error
}

func (f *fakeObjectAPI) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(params.Body)
	f.putKeys = append(f.putKeys, aws.ToString(params.Key))
	f.putBody = string(body)
	f.putDisp = aws.ToString(params.ContentDisposition)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	page := 0
	if params.ContinuationToken != nil {
		page = len(aws.ToString(params.ContinuationToken))
	}

	output := &s3.ListObjectsV2Output{Contents: f.pages[page]}
	if page+1 < len(f.pages) {
		output.IsTruncated = aws.Bool(true)
		output.NextContinuationToken = aws.String(strings.Repeat("x", page+1))
	}
	return output, nil
}

func object(key string, modified time.Time, size int64) types.Object {
	return types.Object{Key: aws.String(key), LastModified: aws.Time(modified), Size: aws.Int64(size)}
}

func publicStorage(api objectAPI) *ExportStorage {
	return newExportStorage(api, Config{
		Bucket:       "water-exports",
		Endpoint:     "http://localhost:9000/",
		UsePathStyle: true,
		URLMode:      URLModePublic,
	})
}

func TestExportStorage_PutObject(t *testing.T) {
	api := &fakeObjectAPI{}
	storage := publicStorage(api)

	url, err := storage.PutObject(context.Background(), "exports/pier-1/2026/02/07/20260207T123456Z_abc.csv", "text/csv", []byte("id\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/water-exports/exports/pier-1/2026/02/07/20260207T123456Z_abc.csv", url)
	assert.Equal(t, "id\n", api.putBody)
	assert.Equal(t, `attachment; filename="20260207T123456Z_abc.csv"`, api.putDisp)

	_, err = storage.PutObject(context.Background(), " ", "text/csv", nil)
	assert.Error(t, err)

	api.putErr = errors.New("access denied")
	_, err = storage.PutObject(context.Background(), "k.csv", "text/csv", nil)
	assert.ErrorContains(t, err, "put object failed")
}

func TestExportStorage_ListObjectsNewestFirstAcrossPages(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeObjectAPI{pages: [][]types.Object{
		{
			object("exports/pier-1/2026/02/01/a.csv", base, 10),
			object("exports/pier-1/2026/02/02/b.csv", base.Add(24*time.Hour), 20),
		},
		{
			object("exports/pier-1/2026/02/03/c.csv", base.Add(48*time.Hour), 30),
		},
	}}
	storage := publicStorage(api)

	objects, err := storage.ListObjects(context.Background(), "exports/pier-1/", 2)
	require.NoError(t, err)
	require.Len(t, objects, 2)

	assert.Equal(t, "exports/pier-1/2026/02/03/c.csv", objects[0].Key)
	assert.Equal(t, int64(30), objects[0].SizeBytes)
	assert.Equal(t, "exports/pier-1/2026/02/02/b.csv", objects[1].Key)
	assert.True(t, strings.HasSuffix(objects[1].URL, "/water-exports/exports/pier-1/2026/02/02/b.csv"))
}

func TestExportStorage_ListObjectsErrors(t *testing.T) {
	storage := publicStorage(&fakeObjectAPI{listErr: errors.New("boom")})

	_, err := storage.ListObjects(context.Background(), "", 10)
	assert.Error(t, err)

	_, err = storage.ListObjects(context.Background(), "exports/pier-1/", 10)
	assert.ErrorContains(t, err, "list objects failed")
}

func TestExportStorage_VirtualHostedURL(t *testing.T) {
	storage := newExportStorage(&fakeObjectAPI{}, Config{
		Bucket:   "water-exports",
		Endpoint: "https://s3.eu-central-1.amazonaws.com",
		URLMode:  URLModePublic,
	})

	url, err := storage.GetObjectURL(context.Background(), "exports/pier 1/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "https://water-exports.s3.eu-central-1.amazonaws.com/exports/pier%201/a.csv", url)
}
