package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// MonitorLogger logs the periodic escrow audit.
type MonitorLogger struct {
	*logrus.Entry
}

// NewMonitorLogger creates a new monitor logger.
func NewMonitorLogger(baseLogger *logrus.Logger) *MonitorLogger {
	return &MonitorLogger{
		Entry: baseLogger.WithField("component", "monitor"),
	}
}

// LogAuditSummary logs one pass over all race accounts.
func (ml *MonitorLogger) LogAuditSummary(races int, byStatus map[string]int, lockedSOL string, stalled int, duration time.Duration) {
	ml.WithFields(logrus.Fields{
		"races":       races,
		"by_status":   byStatus,
		"locked_sol":  lockedSOL,
		"stalled":     stalled,
		"duration_ms": duration.Milliseconds(),
	}).Info("Escrow audit completed")
}

// LogStalledRace logs an active race that is still missing a result.
func (ml *MonitorLogger) LogStalledRace(raceAddress, raceID string, age time.Duration, escrowAmount uint64) {
	ml.WithFields(logrus.Fields{
		"race_address":  raceAddress,
		"race_id":       raceID,
		"age_minutes":   int64(age.Minutes()),
		"escrow_amount": escrowAmount,
	}).Warn("Race stalled waiting for results")
}

// LogUnreadableAccount logs a program-owned account that failed to decode.
func (ml *MonitorLogger) LogUnreadableAccount(address string, err error) {
	ml.WithFields(logrus.Fields{
		"address": address,
		"error":   err.Error(),
	}).Error("Program account could not be decoded")
}
