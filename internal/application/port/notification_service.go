package port

import "github.com/dreschagin/water-quality-dashboard/internal/application/dto"

// NotificationService определяет интерфейс для отправки уведомлений (Port)
// Реализация будет в Infrastructure слое (WebSocket Hub)
type NotificationService interface {
	// Broadcast отправляет snapshot последних показаний всем подключенным клиентам
	Broadcast(snapshot *dto.SnapshotDTO)

	// BroadcastRejection сообщает клиентам об отклоненных показаниях пакета
	BroadcastRejection(report *dto.RejectionReportDTO)

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
