// Package signature provides HMAC-SHA256 webhook signing and verification.
//
// The signed content is "{timestamp}.{payload}" where timestamp is unix
// seconds. The wire format carries both values in a single header:
//
//	X-Hookline-Signature: t=1700000000,v1=5257a869e7...
//
// Receivers recompute the HMAC with the shared endpoint secret and compare
// in constant time, rejecting signatures whose timestamp falls outside the
// tolerance window (replay protection).
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Version is the signature scheme version carried in the header.
const Version = "v1"

// Sign generates the hex-encoded HMAC-SHA256 signature for the given
// payload. The content to sign is "{timestamp}.{payload}".
func Sign(payload []byte, secret string, timestamp int64) string {
	content := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

// Header serializes a timestamp and signature into the combined header
// format "t=<unix-seconds>,v1=<hex>".
func Header(timestamp int64, sig string) string {
	return "t=" + strconv.FormatInt(timestamp, 10) + "," + Version + "=" + sig
}

// ParseHeader splits a combined signature header back into its timestamp
// and signature components. Malformed input returns an error, never panics.
func ParseHeader(header string) (timestamp int64, sig string, err error) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return 0, "", fmt.Errorf("signature: malformed header element %q", part)
		}
		switch k {
		case "t":
			timestamp, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("signature: non-numeric timestamp %q", v)
			}
		case Version:
			sig = v
		}
	}

	if timestamp == 0 || sig == "" {
		return 0, "", fmt.Errorf("signature: header %q missing t or %s component", header, Version)
	}

	return timestamp, sig, nil
}
