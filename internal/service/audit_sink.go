package service

import (
	"context"
	"sync"
	"time"

	"github.com/inspeaker/smartlink/internal/models"
	"github.com/inspeaker/smartlink/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool журнала аудита
const (
	defaultAuditWorkers = 3    // Количество воркеров
	defaultAuditBuffer  = 1000 // Размер буфера канала
	maxAuditRetries     = 3    // Максимальное количество попыток записи
)

// AuditSink асинхронный приёмник записей аудита. Запись никогда не блокирует
// и не роняет вызывающего: при переполненном буфере событие теряется с
// предупреждением в логе.
type AuditSink interface {
	Start()
	Stop()
	Record(record *models.AuditRecord)
}

// auditSink реализация на Worker Pool: буферизованный канал + N воркеров
type auditSink struct {
	auditRepo repository.AuditRepository
	logger    *zap.Logger
	records   chan *models.AuditRecord
	workers   int
	wg        sync.WaitGroup

	// stopMu держится на чтение во время отправки в канал: Stop не может
	// закрыть канал, пока Record посылает в него
	stopMu  sync.RWMutex
	stopped bool
}

// NewAuditSink создаёт новый приёмник аудита.
// workers/buffer <= 0 заменяются значениями по умолчанию.
func NewAuditSink(auditRepo repository.AuditRepository, logger *zap.Logger, workers, buffer int) AuditSink {
	if workers <= 0 {
		workers = defaultAuditWorkers
	}
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}
	return &auditSink{
		auditRepo: auditRepo,
		logger:    logger,
		records:   make(chan *models.AuditRecord, buffer),
		workers:   workers,
	}
}

// Start запускает воркеров
func (s *auditSink) Start() {
	s.logger.Info("Запуск воркеров журнала аудита", zap.Int("count", s.workers))

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop корректно останавливает worker pool, дописав буфер.
// Повторный Stop безопасен.
func (s *auditSink) Stop() {
	s.stopMu.Lock()
	if s.stopped {
		s.stopMu.Unlock()
		return
	}
	s.stopped = true
	close(s.records)
	s.stopMu.Unlock()

	s.logger.Info("Остановка журнала аудита...")
	s.wg.Wait()
	s.logger.Info("Журнал аудита остановлен")
}

// worker вычитывает записи из канала до его закрытия
func (s *auditSink) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("Воркер аудита запущен", zap.Int("id", id))

	for record := range s.records {
		s.write(record)
	}

	s.logger.Debug("Воркер аудита остановлен", zap.Int("id", id))
}

// write пишет одну запись с ограниченным числом повторов
func (s *auditSink) write(record *models.AuditRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	for i := 0; i < maxAuditRetries; i++ {
		if err = s.auditRepo.Insert(ctx, record); err == nil {
			return
		}
		if i < maxAuditRetries-1 {
			s.logger.Debug("Повторная попытка записи аудита",
				zap.String("entity_id", record.EntityID),
				zap.String("action", record.Action),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	// Сбой журналирования проглатывается: основной операции он не мешает
	s.logger.Error("Не удалось записать аудит после всех попыток",
		zap.String("entity_type", record.EntityType),
		zap.String("entity_id", record.EntityID),
		zap.String("action", record.Action),
		zap.Error(err),
	)
}

// Record отправляет запись в worker pool (неблокирующая операция).
// После Stop записи теряются с предупреждением, вызывающий не падает.
func (s *auditSink) Record(record *models.AuditRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.ActorEmail == "" {
		record.ActorEmail = models.SystemActor
	}

	s.stopMu.RLock()
	defer s.stopMu.RUnlock()

	if s.stopped {
		s.logger.Warn("Журнал аудита остановлен, запись потеряна",
			zap.String("entity_id", record.EntityID),
			zap.String("action", record.Action),
		)
		return
	}

	select {
	case s.records <- record:
	default:
		// Канал заполнен: теряем запись, но не блокируем запрос
		s.logger.Warn("Буфер журнала аудита заполнен, запись потеряна",
			zap.String("entity_id", record.EntityID),
			zap.String("action", record.Action),
		)
	}
}
