package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// CheckInSignature computes the signed check-in parameters:
// HmacSHA256("{timestamp}:{userID}", secret) in hex.
func CheckInSignature(userID, secret string, at time.Time) (int64, string) {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:%s", ts, userID)
	return ts, hex.EncodeToString(mac.Sum(nil))
}

// SignedCheckInURL builds the check-in URL with timestamp, signature and
// timezone query parameters.
func SignedCheckInURL(origin, userID, secret, timezone string, at time.Time) string {
	if timezone == "" {
		timezone = "Asia/Shanghai"
	}
	ts, sig := CheckInSignature(userID, secret, at)

	q := url.Values{}
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("signature", sig)
	q.Set("timezone", timezone)
	return origin + "/api/user/checkin?" + q.Encode()
}
