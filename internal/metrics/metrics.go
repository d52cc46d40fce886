// Package metrics экспортирует счётчики Prometheus редиректного ядра.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы конвейера редиректа
const (
	OutcomeRedirect  = "redirect"
	OutcomeCrawler   = "crawler_preview"
	OutcomeNotFound  = "not_found"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

// RedirectsTotal счётчик терминальных состояний конвейера
var RedirectsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "smartlink_redirects_total",
		Help: "Terminal outcomes of the redirect pipeline",
	},
	[]string{"outcome"},
)
