package ports

import "github.com/alejandrodnm/papertrader/internal/domain"

// CycleObserver recibe el resultado de cada ciclo (consola, métricas).
// Implementations must not block the tick loop.
type CycleObserver interface {
	ObserveCycle(report domain.CycleReport)
}
