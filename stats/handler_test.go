package stats

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testReport struct {
	json []byte
}

func (r testReport) ToJSON() []byte { return r.json }

func (r testReport) ToProm() []prometheus.Collector {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "guildsnap_test_total", Help: "test"})
	g.Set(7)
	return []prometheus.Collector{g}
}

func TestHandler_SendWebhook(t *testing.T) {
	tests := map[string]struct {
		status        int
		report        testReport
		expectedError string
	}{
		"GivenAcceptingServer_ThenPostJSON": {
			status: http.StatusOK,
			report: testReport{json: []byte(`{"runId":"1"}`)},
		},
		"GivenServerAcceptsWithNoContent_ThenSucceed": {
			status: http.StatusNoContent,
			report: testReport{json: []byte(`{"runId":"1"}`)},
		},
		"GivenServerError_ThenError": {
			status:        http.StatusInternalServerError,
			report:        testReport{json: []byte(`{"runId":"1"}`)},
			expectedError: "500",
		},
		"GivenEmptyReport_ThenError": {
			status:        http.StatusOK,
			expectedError: "empty",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var received string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				received = string(body)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			h := NewHandler("", "host", server.URL, zapr.NewLogger(zaptest.NewLogger(t)))
			err := h.SendWebhook(context.Background(), tt.report)
			if tt.expectedError != "" {
				assert.ErrorContains(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(tt.report.json), received)
		})
	}
}

func TestHandler_SendPrometheus(t *testing.T) {
	var path, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	h := NewHandler(server.URL, "worker-1", "", zapr.NewLogger(zaptest.NewLogger(t)))
	require.NoError(t, h.SendPrometheus(testReport{}))

	assert.True(t, strings.HasPrefix(path, "/metrics/job/guildsnap/instance/worker-1"), path)
	assert.NotEmpty(t, body)
}

func TestHandler_DisabledSinks(t *testing.T) {
	h := NewHandler("", "", "", zapr.NewLogger(zaptest.NewLogger(t)))
	assert.NoError(t, h.SendPrometheus(testReport{}))
	assert.NoError(t, h.SendWebhook(context.Background(), testReport{}))
}
