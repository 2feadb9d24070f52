package storage

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidhub/apiserver/config"
)

func TestMinioBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", minioBaseURL(config.MinioConfig{Endpoint: "localhost:9000"}))
	assert.Equal(t, "https://cdn.example.com", minioBaseURL(config.MinioConfig{Endpoint: "cdn.example.com/", UseSSL: true}))
}

func TestNewMinioClient_Validation(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", Bucket: "b"})
	assert.ErrorContains(t, err, "access key")

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket")
}

func TestNewMinioClient(t *testing.T) {
	client, err := NewMinioClient(config.MinioConfig{
		Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "assets",
	})
	require.NoError(t, err)
	assert.Equal(t, "assets", client.Bucket())
	assert.Equal(t, "http://localhost:9000", client.PublicBaseURL())
}

func TestPublicReadPolicyIsValidJSON(t *testing.T) {
	var policy map[string]any
	require.NoError(t, json.Unmarshal([]byte(fmt.Sprintf(publicReadPolicy, "assets")), &policy))
	assert.Equal(t, "2012-10-17", policy["Version"])
}
