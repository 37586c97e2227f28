// Package signing produces presigned HTTPS links for objects in
// S3-compatible storage, so exported workbooks can be shared without
// handing out credentials.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	algorithm = "AWS4-HMAC-SHA256"
	service   = "s3"
)

// Credentials holds an HMAC key pair for the storage service.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// PresignGET builds a presigned GET URL for bucket/object, valid for the
// given duration from now. The endpoint is the service host, for example
// "s3.us-south.cloud-object-storage.appdomain.cloud".
func PresignGET(endpoint, bucket, object, region string, creds Credentials, expires time.Duration, now time.Time) (string, error) {
	if endpoint == "" || bucket == "" || object == "" {
		return "", fmt.Errorf("endpoint, bucket and object are required")
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return "", fmt.Errorf("credentials are required")
	}
	seconds := int(expires.Seconds())
	if seconds <= 0 {
		return "", fmt.Errorf("expiry must be positive")
	}

	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	now = now.UTC()
	amzDate := now.Format("20060102T150405Z")
	datestamp := now.Format("20060102")

	scope := strings.Join([]string{datestamp, region, service, "aws4_request"}, "/")
	canonicalURI := "/" + bucket + "/" + uriEncode(object, true)

	query := map[string]string{
		"X-Amz-Algorithm":     algorithm,
		"X-Amz-Credential":    creds.AccessKeyID + "/" + scope,
		"X-Amz-Date":          amzDate,
		"X-Amz-Expires":       fmt.Sprintf("%d", seconds),
		"X-Amz-SignedHeaders": "host",
	}
	canonicalQuery := canonicalQueryString(query)

	canonicalRequest := strings.Join([]string{
		"GET",
		canonicalURI,
		canonicalQuery,
		"host:" + host + "\n",
		"host",
		"UNSIGNED-PAYLOAD",
	}, "\n")

	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hashHex(canonicalRequest),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(signingKey(creds.SecretAccessKey, datestamp, region), stringToSign))

	return fmt.Sprintf("https://%s%s?%s&X-Amz-Signature=%s", host, canonicalURI, canonicalQuery, signature), nil
}

// signingKey derives the per-day signing key by chaining HMACs over the
// date, region and service.
func signingKey(secret, datestamp, region string) []byte {
	key := hmacSHA256([]byte("AWS4"+secret), datestamp)
	key = hmacSHA256(key, region)
	key = hmacSHA256(key, service)
	return hmacSHA256(key, "aws4_request")
}

func hmacSHA256(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func canonicalQueryString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, uriEncode(k, false)+"="+uriEncode(params[k], false))
	}
	return strings.Join(parts, "&")
}

// uriEncode percent-encodes per the sigv4 rules: unreserved characters
// pass through, everything else is uppercase-hex encoded. Slashes are
// preserved only in object paths.
func uriEncode(s string, keepSlash bool) string {
	var b strings.Builder
	for _, c := range []byte(s) {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		case c == '/' && keepSlash:
			b.WriteByte(c)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

// ParseExpiry reads a duration like "15m" or "24h", defaulting to one hour
// for an empty value.
func ParseExpiry(s string) (time.Duration, error) {
	if s == "" {
		return time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse expiry %q: %w", s, err)
	}
	return d, nil
}
