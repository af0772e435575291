package tool

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateTransactionID returns the local correlation key sent to the gateway as its transaction id.
// UUIDv7 keeps ids time ordered, so two ids never share a prefix for long.
func GenerateTransactionID() string {
	return "IFT" + strings.ToUpper(strings.ReplaceAll(GenerateUUIDV7(), "-", ""))
}

// GenerateQRCode builds an access credential: prefix + participant id + nanosecond timestamp.
func GenerateQRCode(prefix, participantID string, now time.Time) string {
	return prefix + participantID + "-" + strconv.FormatInt(now.UnixNano(), 10)
}
