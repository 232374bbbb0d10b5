package logger

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// LoggerWithCaller adds caller information to the logger
func LoggerWithCaller(skip int) Logger {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return GetLogger()
	}

	// Extract just the filename without the full path
	parts := strings.Split(file, "/")
	filename := parts[len(parts)-1]

	return GetLogger().WithField("caller", fmt.Sprintf("%s:%d", filename, line))
}

// LogScrape logs the outcome of one profile scrape attempt
func LogScrape(profileURL, accountEmail string, success bool, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"profile_url": profileURL,
		"account":     accountEmail,
		"success":     success,
		"duration":    duration,
	}

	logger := GetLogger().WithFields(fields)

	if err != nil {
		logger.WithError(err).Error("Scrape failed")
	} else if success {
		logger.Info("Scrape completed")
	} else {
		logger.Warn("Scrape skipped")
	}
}

// LogCheckpoint logs an anti-bot checkpoint encountered on an account
func LogCheckpoint(accountEmail, profileURL string) {
	GetLogger().WithFields(map[string]interface{}{
		"account":     accountEmail,
		"profile_url": profileURL,
		"action":      "checkpoint",
	}).Warn("Checkpoint detected, flagging account")
}

// LogAccountRotation logs a rotation from one account to the next
func LogAccountRotation(fromEmail, toEmail, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"from":   fromEmail,
		"to":     toEmail,
		"reason": reason,
	}).Info("Rotating scraper account")
}

// LogPDFUpload logs a PDF snapshot upload
func LogPDFUpload(externalID, key string, sizeBytes int64, err error) {
	fields := map[string]interface{}{
		"external_id": externalID,
		"key":         key,
		"size_bytes":  sizeBytes,
	}

	logger := GetLogger().WithFields(fields)

	if err != nil {
		logger.WithError(err).Warn("PDF upload failed")
	} else {
		logger.Info("PDF snapshot uploaded")
	}
}

// LogQueueProgress logs progress through a scraping run
func LogQueueProgress(processed, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(processed) / float64(total) * 100
	}

	GetLogger().WithFields(map[string]interface{}{
		"processed":  processed,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Queue progress")
}

// LogRetry logs retry attempts
func LogRetry(operation string, attempt, maxAttempts int, err error) {
	GetLogger().WithFields(map[string]interface{}{
		"operation":    operation,
		"attempt":      attempt,
		"max_attempts": maxAttempts,
	}).WithError(err).Warn("Retrying operation")
}
