package service_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/inspeaker/smartlink/internal/models"
	"github.com/inspeaker/smartlink/internal/service"
	"github.com/inspeaker/smartlink/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuditSink_StopDrainsBuffer Stop дописывает всё, что уже в буфере
func TestAuditSink_StopDrainsBuffer(t *testing.T) {
	auditRepo := mocks.NewMockAuditRepository()
	sink := service.NewAuditSink(auditRepo, zap.NewNop(), 2, 100)
	sink.Start()

	for i := 0; i < 10; i++ {
		sink.Record(&models.AuditRecord{
			EntityType: "link",
			EntityID:   "l1",
			Action:     models.ActionClickReal,
		})
	}
	sink.Stop()

	require.Len(t, auditRepo.Records(), 10)
}

// TestAuditSink_RecordAfterStop_DoesNotPanic запись после остановки
// теряется молча: вызывающий не должен знать о жизненном цикле sink'а
func TestAuditSink_RecordAfterStop_DoesNotPanic(t *testing.T) {
	auditRepo := mocks.NewMockAuditRepository()
	sink := service.NewAuditSink(auditRepo, zap.NewNop(), 1, 10)
	sink.Start()
	sink.Stop()

	assert.NotPanics(t, func() {
		sink.Record(&models.AuditRecord{
			EntityType: "link",
			EntityID:   "l1",
			Action:     models.ActionClickReal,
		})
	})
	assert.Empty(t, auditRepo.Records())
}

// TestAuditSink_DoubleStop_IsSafe повторный Stop не паникует на закрытом канале
func TestAuditSink_DoubleStop_IsSafe(t *testing.T) {
	sink := service.NewAuditSink(mocks.NewMockAuditRepository(), zap.NewNop(), 1, 10)
	sink.Start()
	sink.Stop()

	assert.NotPanics(t, func() { sink.Stop() })
}

// TestAuditSink_DefaultsApplied пустой актор и нулевое время заполняются
// сентинелом и текущим моментом
func TestAuditSink_DefaultsApplied(t *testing.T) {
	auditRepo := mocks.NewMockAuditRepository()
	sink := service.NewAuditSink(auditRepo, zap.NewNop(), 1, 10)
	sink.Start()

	sink.Record(&models.AuditRecord{
		EntityType: "group",
		EntityID:   "g1",
		Action:     models.ActionCreate,
	})
	sink.Stop()

	records := auditRepo.Records()
	require.Len(t, records, 1)
	assert.Equal(t, models.SystemActor, records[0].ActorEmail)
	assert.False(t, records[0].Timestamp.IsZero())
}
