package usecase

import (
	"fmt"
	"time"
)

const (
	historyCachePrefix = "readings:history"
	latestCacheKey     = "readings:latest"
)

func historyCacheKey(sensorID string, duration time.Duration) string {
	return fmt.Sprintf("%s:%s:%s", historyCachePrefix, sensorID, duration.String())
}

func historyCachePattern(sensorID string) string {
	return fmt.Sprintf("%s:%s:*", historyCachePrefix, sensorID)
}
