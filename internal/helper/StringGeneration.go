package helper

/**
Generates / annotates strings
*/

import (
	"github.com/dustin/go-humanize"
	"github.com/forceu/rangeupload/internal/models"
)

// ByteCount converts bytes to a human-readable format using binary prefixes
func ByteCount(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// SpeedString returns the speed of a session snapshot, e.g. "1.2 MiB/s", "idle" or "paused"
func SpeedString(info models.SessionInfo) string {
	switch info.SpeedState {
	case models.SpeedPaused:
		return "paused"
	case models.SpeedActive:
		return ByteCount(int64(info.BytesPerSecond)) + "/s"
	default:
		return "idle"
	}
}

// ProgressString returns e.g. "1.0 MiB / 2.4 MiB (41%)"
func ProgressString(info models.SessionInfo) string {
	return ByteCount(info.Offset) + " / " + ByteCount(info.TotalSize) + " (" + humanize.Ftoa(float64(int(info.Percent))) + "%)"
}
