// Package logger provides a structured logging interface for the profile scraper.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - File output
// - Context support for request tracing
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "liscraper/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/liscraper.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Application started")
//	logger.WithField("profile_url", url).Info("Scraping profile")
//	logger.WithError(err).Error("Failed to scrape profile")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "orchestrator").
//	    WithField("run_id", runID)
//
//	// Use structured logging
//	log.InfoWithFields("Scrape completed", map[string]interface{}{
//	    "profile_url": url,
//	    "account":     email,
//	    "duration":    time.Second * 12,
//	})
package logger
