package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inspeaker/smartlink/internal/metrics"
	"github.com/inspeaker/smartlink/internal/service"
	"github.com/inspeaker/smartlink/internal/traffic"
	"go.uber.org/zap"
)

// errorPage единая статическая страница для 404 и 403: снаружи причины
// неразличимы, чтобы не раскрывать, существует ли код и чем он закрыт
const errorPage = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>Enlace no disponible</title>
<style>body{font-family:sans-serif;text-align:center;padding:4rem}h1{color:#1a1a2e}</style>
</head>
<body>
<h1>Enlace no disponible</h1>
<p>El enlace que intentas abrir no está disponible o ha expirado.</p>
<p><a href="https://inspeaker.com.co">Volver a INSPEAKER</a></p>
</body>
</html>`

type RedirectHandler struct {
	resolver service.Resolver
	reporter service.ErrorReporter
	logger   *zap.Logger
}

func NewRedirectHandler(resolver service.Resolver, reporter service.ErrorReporter, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		resolver: resolver,
		reporter: reporter,
		logger:   logger,
	}
}

// Redirect godoc
// @Summary Resolve a masked token and redirect
// @Description Decode the public token, apply publish/expiry gates and redirect to the target URL
// @Tags redirect
// @Produce html
// @Param token path string true "Masked token or raw short code"
// @Success 302 {object} nil
// @Failure 404 {string} string "Error page"
// @Failure 403 {string} string "Error page"
// @Router /l/{token} [get]
func (h *RedirectHandler) Redirect(c *gin.Context) {
	publicToken := c.Param("token")

	res, err := h.resolver.Resolve(c.Request.Context(), publicToken, c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenNotFound):
			metrics.RedirectsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(errorPage))

		case errors.Is(err, service.ErrLinkGated):
			metrics.RedirectsTotal.WithLabelValues(metrics.OutcomeForbidden).Inc()
			c.Data(http.StatusForbidden, "text/html; charset=utf-8", []byte(errorPage))

		default:
			// Недоступное хранилище: 500 без повторов, ошибка уходит
			// коллаборатору независимо от пути ответа
			metrics.RedirectsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			h.logger.Error("Сбой резолва", zap.String("token", publicToken), zap.Error(err))
			h.reporter.Report(c.FullPath(), c.Request.Method, err.Error(), c.ClientIP())
			c.String(http.StatusInternalServerError, "internal error")
		}
		return
	}

	if res.Kind == traffic.Automated {
		metrics.RedirectsTotal.WithLabelValues(metrics.OutcomeCrawler).Inc()
	} else {
		metrics.RedirectsTotal.WithLabelValues(metrics.OutcomeRedirect).Inc()
	}

	c.Redirect(http.StatusFound, res.TargetURL)
}
