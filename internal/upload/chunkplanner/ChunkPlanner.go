package chunkplanner

import "github.com/forceu/rangeupload/internal/models"

// NextRange returns the inclusive range to send next, starting at offset. The range is empty if
// offset >= totalSize
func NextRange(offset, totalSize, chunkSize int64) models.ByteRange {
	end := offset + chunkSize
	if end > totalSize {
		end = totalSize
	}
	return models.ByteRange{Start: offset, End: end - 1}
}

// Ranges returns every range of a file in the order it is sent. Returns nil for an empty file
func Ranges(totalSize, chunkSize int64) []models.ByteRange {
	if chunkSize < 1 || totalSize < 1 {
		return nil
	}
	result := make([]models.ByteRange, 0, (totalSize+chunkSize-1)/chunkSize)
	for offset := int64(0); offset < totalSize; {
		next := NextRange(offset, totalSize, chunkSize)
		result = append(result, next)
		offset = next.End + 1
	}
	return result
}
