package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/zapr"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/icon.png":
			_, _ = w.Write([]byte("png-bytes"))
		case "/gone.png":
			w.WriteHeader(http.StatusNotFound)
		case "/broken.png":
			w.WriteHeader(http.StatusInternalServerError)
		case "/empty.png":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	tests := map[string]struct {
		url      string
		expected []byte
	}{
		"GivenAvailableAsset_ThenReturnBody": {
			url:      server.URL + "/icon.png",
			expected: []byte("png-bytes"),
		},
		"GivenMissingAsset_ThenReturnNil": {
			url: server.URL + "/gone.png",
		},
		"GivenServerError_ThenReturnNil": {
			url: server.URL + "/broken.png",
		},
		"GivenEmptyBody_ThenReturnNil": {
			url: server.URL + "/empty.png",
		},
		"GivenEmptyURL_ThenReturnNil": {
			url: "",
		},
		"GivenMalformedURL_ThenReturnNil": {
			url: "://nope",
		},
		"GivenUnreachableHost_ThenReturnNil": {
			url: "http://127.0.0.1:1/icon.png",
		},
	}
	f := New(5*time.Second, zapr.NewLogger(zaptest.NewLogger(t)))
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			actual := f.Fetch(context.Background(), tt.url)
			if tt.expected == nil {
				assert.Nil(t, actual)
				return
			}
			assert.Equal(t, tt.expected, actual)
		})
	}
}
