package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_parseBucketAndPrefix(t *testing.T) {
	tests := map[string]struct {
		path           string
		expectedBucket string
		expectedPrefix string
	}{
		"empty path": {
			path:           "",
			expectedBucket: "",
			expectedPrefix: "",
		},
		"just slash": {
			path:           "/",
			expectedBucket: "",
			expectedPrefix: "",
		},
		"bucket only": {
			path:           "/snapshots",
			expectedBucket: "snapshots",
			expectedPrefix: "",
		},
		"bucket only without leading slash": {
			path:           "snapshots",
			expectedBucket: "snapshots",
			expectedPrefix: "",
		},
		"bucket with single path segment": {
			path:           "/snapshots/guilds",
			expectedBucket: "snapshots",
			expectedPrefix: "guilds",
		},
		"bucket with multi-segment path": {
			path:           "/snapshots/prod/discord/guilds",
			expectedBucket: "snapshots",
			expectedPrefix: "prod/discord/guilds",
		},
		"bucket with trailing slash": {
			path:           "/snapshots/",
			expectedBucket: "snapshots",
			expectedPrefix: "",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			bucket, prefix := parseBucketAndPrefix(tt.path)
			assert.Equal(t, tt.expectedBucket, bucket)
			assert.Equal(t, tt.expectedPrefix, prefix)
		})
	}
}

func Test_S3_objectPath(t *testing.T) {
	tests := map[string]struct {
		prefix       string
		name         string
		expectedPath string
	}{
		"no prefix": {
			prefix:       "",
			name:         "42_1704164645000.tar.gz",
			expectedPath: "42_1704164645000.tar.gz",
		},
		"with prefix": {
			prefix:       "prod/guilds",
			name:         "42_1704164645000.tar.gz",
			expectedPath: "prod/guilds/42_1704164645000.tar.gz",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := &S3{prefix: tt.prefix}
			assert.Equal(t, tt.expectedPath, s.objectPath(tt.name))
		})
	}
}

func Test_S3_Connect_RejectsInvalidEndpoints(t *testing.T) {
	tests := map[string]struct {
		endpoint      string
		expectedError string
	}{
		"GivenFTPScheme_ThenError": {
			endpoint:      "ftp://minio:9000/snapshots",
			expectedError: "wrong scheme",
		},
		"GivenNoBucket_ThenError": {
			endpoint:      "http://minio:9000/",
			expectedError: "does not name a bucket",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := NewS3(tt.endpoint, "access", "secret").Connect(context.Background())
			assert.ErrorContains(t, err, tt.expectedError)
		})
	}
}
