package models

import "time"

// DigestLimit is the transport cap on a composed message, in characters.
const DigestLimit = 2000

// DigestMessage is the composed, length-capped earnings summary.
type DigestMessage string

// NewDigestMessage caps s at DigestLimit characters. The cut is not word aware.
func NewDigestMessage(s string) DigestMessage {
	runes := []rune(s)
	if len(runes) > DigestLimit {
		runes = runes[:DigestLimit]
	}
	return DigestMessage(runes)
}

func (m DigestMessage) String() string {
	return string(m)
}

// Len returns the length in characters.
func (m DigestMessage) Len() int {
	return len([]rune(m))
}

// StoredMessage is the persisted record of a sent digest.
type StoredMessage struct {
	MessageID string    `json:"message_id" badgerhold:"key"`
	Ticker    string    `json:"ticker" badgerhold:"index"`
	Quarter   int       `json:"quarter"`
	Year      int       `json:"year"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
