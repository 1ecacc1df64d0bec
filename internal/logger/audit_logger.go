package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for escrow transitions.
// Every entry carries the race address so that a race's history can be
// reassembled from the log alone.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogRaceCreated logs a race creation and the creator's escrowed fee.
func (al *AuditLogger) LogRaceCreated(opID, raceAddress, raceID, creator string, entryFee uint64) {
	al.WithFields(logrus.Fields{
		"op_id":        opID,
		"race_address": raceAddress,
		"race_id":      raceID,
		"creator":      creator,
		"entry_fee":    entryFee,
	}).Info("Race created")
}

// LogRaceJoined logs the second participant joining.
func (al *AuditLogger) LogRaceJoined(opID, raceAddress, player string, escrowAmount uint64) {
	al.WithFields(logrus.Fields{
		"op_id":         opID,
		"race_address":  raceAddress,
		"player":        player,
		"escrow_amount": escrowAmount,
	}).Info("Player joined race")
}

// LogResultSubmitted logs a participant's result.
func (al *AuditLogger) LogResultSubmitted(opID, raceAddress, player string, finishTimeMs, coinsCollected uint64, inputHash string) {
	al.WithFields(logrus.Fields{
		"op_id":           opID,
		"race_address":    raceAddress,
		"player":          player,
		"finish_time_ms":  finishTimeMs,
		"coins_collected": coinsCollected,
		"input_hash":      inputHash,
	}).Info("Result submitted")
}

// LogRaceSettled logs the winner decision. caller is empty when the settler
// did not identify itself.
func (al *AuditLogger) LogRaceSettled(opID, raceAddress, caller, winner string) {
	al.WithFields(logrus.Fields{
		"op_id":        opID,
		"race_address": raceAddress,
		"caller":       caller,
		"winner":       winner,
	}).Info("Race settled")
}

// LogPrizeClaimed logs a payout. A zero amount is a repeated claim.
func (al *AuditLogger) LogPrizeClaimed(opID, raceAddress, winner string, lamports uint64) {
	entry := al.WithFields(logrus.Fields{
		"op_id":        opID,
		"race_address": raceAddress,
		"winner":       winner,
		"lamports":     lamports,
	})
	if lamports == 0 {
		entry.Warn("Prize already claimed, nothing paid")
		return
	}
	entry.Info("Prize claimed")
}

// LogOperationRejected logs a transition the state machine refused.
func (al *AuditLogger) LogOperationRejected(opID, op, raceAddress, caller, code string, err error) {
	al.WithFields(logrus.Fields{
		"op_id":        opID,
		"op":           op,
		"race_address": raceAddress,
		"caller":       caller,
		"error_code":   code,
		"error":        err.Error(),
	}).Warn("Operation rejected")
}
