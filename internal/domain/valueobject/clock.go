package valueobject

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock общий источник времени домена; тесты подменяют его через SetClock
var clock = clockwork.NewRealClock()

// SetClock подменяет источник времени. nil возвращает реальные часы.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now возвращает текущее время по часам домена
func Now() time.Time {
	return clock.Now()
}
