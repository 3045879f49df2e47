// Package stats delivers capture and restore reports to a Prometheus Pushgateway and a webhook.
package stats

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const job = "guildsnap"

// PrometheusProvider returns collectors that describe a finished run.
type PrometheusProvider interface {
	ToProm() []prometheus.Collector
}

// WebhookProvider returns the JSON body posted to the webhook.
type WebhookProvider interface {
	ToJSON() []byte
}

// Report is delivered to both sinks.
type Report interface {
	PrometheusProvider
	WebhookProvider
}

// Handler is a no-op for every sink whose URL is empty.
type Handler struct {
	promURL      string
	promHostname string
	webhookURL   string
	client       *http.Client
	log          logr.Logger
}

func NewHandler(promURL, promHostname, webhookURL string, log logr.Logger) *Handler {
	return &Handler{
		promURL:      promURL,
		promHostname: promHostname,
		webhookURL:   webhookURL,
		client:       http.DefaultClient,
		log:          log.WithName("statsHandler"),
	}
}

func (h *Handler) SendPrometheus(promStats PrometheusProvider) error {
	if h.promURL == "" {
		return nil
	}

	promLogger := h.log.WithName("promStats")
	promLogger.Info("sending prometheus stats", "url", h.promURL)

	pusher := push.New(h.promURL, job).Client(h.client).Grouping("instance", h.promHostname)
	for _, stat := range promStats.ToProm() {
		pusher = pusher.Collector(stat)
	}
	return pusher.Add()
}

func (h *Handler) SendWebhook(ctx context.Context, hook WebhookProvider) error {
	if h.webhookURL == "" {
		return nil
	}

	webhookLogger := h.log.WithName("webhookStats")
	webhookLogger.Info("sending webhook", "url", h.webhookURL)

	data := hook.ToJSON()
	if len(data) == 0 {
		return fmt.Errorf("webhook data is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("could not send webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("could not send webhook: http status code: %v", resp.Status)
	}
	return nil
}

// Send delivers the report to every configured sink. Failures are logged, never returned.
func (h *Handler) Send(ctx context.Context, report Report) {
	if err := h.SendPrometheus(report); err != nil {
		h.log.Error(err, "cannot send prometheus stats")
	}
	if err := h.SendWebhook(ctx, report); err != nil {
		h.log.Error(err, "cannot send webhook")
	}
}
