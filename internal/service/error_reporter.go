package service

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/inspeaker/smartlink/internal/models"
	"github.com/inspeaker/smartlink/internal/repository"
	"go.uber.org/zap"
)

// ErrorReporter коллаборатор логирования ошибок (таблица error_logs).
// Fire-and-forget: путь ответа никогда не ждёт записи и не видит её сбоев.
type ErrorReporter interface {
	Report(endpoint, method, message, requestContext string)
}

type errorReporter struct {
	repo   repository.ErrorLogRepository
	logger *zap.Logger
}

func NewErrorReporter(repo repository.ErrorLogRepository, logger *zap.Logger) ErrorReporter {
	return &errorReporter{repo: repo, logger: logger}
}

func (r *errorReporter) Report(endpoint, method, message, requestContext string) {
	entry := &models.ErrorLog{
		Endpoint:       endpoint,
		Method:         method,
		Message:        message,
		Stacktrace:     string(debug.Stack()),
		RequestContext: requestContext,
		CreatedAt:      time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.repo.Insert(ctx, entry); err != nil {
			// Запасной канал — локальный лог; дальше ошибка не идёт
			r.logger.Warn("Не удалось записать error log",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
		}
	}()
}
