package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	_, err := New(context.Background(), &config.StorageConfig{})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = New(context.Background(), &config.StorageConfig{Driver: "s3"})
	assert.ErrorIs(t, err, ErrDisabled, "bucket is required")
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), &config.StorageConfig{Driver: "ftp", Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}

func TestNew_S3WithStaticKeys(t *testing.T) {
	store, err := New(context.Background(), &config.StorageConfig{
		Driver:          "s3",
		Bucket:          "marks-media",
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	defer store.Close()

	s3Store, ok := store.(*S3Store)
	require.True(t, ok)
	assert.Equal(t, "https://marks-media.s3.eu-west-1.amazonaws.com/", s3Store.baseURL)
}

func TestObjectKey(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		filename string
		wantExt  string
	}{
		{"keeps extension", "Screenshot.PNG", ".png"},
		{"no extension", "README", ""},
		{"strips directories", `C:\Users\me\photo.jpg`, ".jpg"},
		{"drops absurd extension", "file.averyveryverylongext", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ObjectKey(id, tt.filename)
			assert.True(t, strings.HasPrefix(key, "bookmarks/"+id.String()+"/"))
			assert.True(t, strings.HasSuffix(key, tt.wantExt))
			assert.NotContains(t, key, "Users")
		})
	}

	assert.NotEqual(t, ObjectKey(id, "a.png"), ObjectKey(id, "a.png"))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("https://cdn.example.com/")

	url, err := m.Put(ctx, "bookmarks/x/1.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/bookmarks/x/1.txt", url)

	data, ct, ok := m.Get("bookmarks/x/1.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", ct)

	require.NoError(t, m.Delete(ctx, "bookmarks/x/1.txt"))
	assert.ErrorIs(t, m.Delete(ctx, "bookmarks/x/1.txt"), ErrNotFound)
	assert.Equal(t, 0, m.Len())
}
