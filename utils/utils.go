package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// GenerateSecureToken returns a 32-byte random token as hex
func GenerateSecureToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(userID uint, projectID, path string) string {
	return fmt.Sprintf("rl:%d:%s:%s", userID, projectID, path)
}

// LogEvent logs an event with structured data
func LogEvent(eventType string, data map[string]interface{}) {
	logrus.WithFields(logrus.Fields(data)).Info(eventType)
}

// LogError logs an error with structured data and reports it to Sentry
func LogError(message string, err error, data map[string]interface{}) {
	fields := logrus.Fields(data)
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["error"] = err
	logrus.WithFields(fields).Error(message)
	if err != nil {
		sentry.CaptureException(err)
	}
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}
