package models

// ChunkSession is the state the backend keeps for a partially received file
type ChunkSession struct {
	// Id is the value of the Session-ID header
	Id        string `json:"id" redis:"id"`
	FileName  string `json:"file_name" redis:"file_name"`
	TotalSize int64  `json:"total_size" redis:"total_size"`
	// Received is the amount of contiguous bytes written, starting at 0
	Received    int64  `json:"received" redis:"received"`
	Description string `json:"description" redis:"description"`
	LastUpdate  int64  `json:"last_update" redis:"last_update"`
}

// IsComplete returns true if every byte of the file has been received
func (c ChunkSession) IsComplete() bool {
	return c.Received >= c.TotalSize
}
