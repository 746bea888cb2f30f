package signature

import (
	"crypto/hmac"
	"time"
)

// DefaultTolerance is the default replay-protection window. Signatures with
// a timestamp further than this from the current time are rejected.
const DefaultTolerance = 5 * time.Minute

// Verify checks whether sig matches the expected HMAC-SHA256 signature for
// the payload, secret, and timestamp, and that the timestamp is within
// tolerance of the current time. Comparison is constant time.
//
// A tolerance <= 0 falls back to DefaultTolerance.
func Verify(payload []byte, secret string, timestamp int64, sig string, tolerance time.Duration) bool {
	return verifyAt(payload, secret, timestamp, sig, tolerance, time.Now())
}

// VerifyHeader parses a combined "t=...,v1=..." header and verifies it
// against the payload. Malformed headers verify as false.
func VerifyHeader(payload []byte, secret, header string, tolerance time.Duration) bool {
	ts, sig, err := ParseHeader(header)
	if err != nil {
		return false
	}
	return Verify(payload, secret, ts, sig, tolerance)
}

func verifyAt(payload []byte, secret string, timestamp int64, sig string, tolerance time.Duration, now time.Time) bool {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	drift := now.Unix() - timestamp
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(tolerance.Seconds()) {
		return false
	}

	expected := Sign(payload, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}
