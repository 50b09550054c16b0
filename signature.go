package inngestgo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/gowebpki/jcs"
)

var (
	ErrExpiredSignature = fmt.Errorf("expired signature")
	ErrInvalidSignature = fmt.Errorf("invalid signature")
	ErrInvalidTimestamp = fmt.Errorf("invalid timestamp")

	ErrMissingSignature  = fmt.Errorf("missing signature header")
	ErrMissingSigningKey = fmt.Errorf("missing signing key")

	// signingKeyPrefixRegexp matches the "signkey-<env>-" prefix of a signing
	// key.  The prefix identifies the key's environment and is not part of the
	// MAC key material.
	signingKeyPrefixRegexp = regexp.MustCompile(`^signkey-[a-zA-Z0-9]+-`)
)

// signatureExpiry is how far a request signature's timestamp may drift from
// the local clock before the signature is rejected.
const signatureExpiry = 5 * time.Minute

// normalizeKey strips the "signkey-<env>-" prefix, leaving the raw key
// material used as the MAC key.  Keys signed with different env prefixes
// produce identical signatures.
func normalizeKey(key []byte) []byte {
	return signingKeyPrefixRegexp.ReplaceAll(key, nil)
}

// canonicalizeBody transforms a JSON body into its RFC 8785 canonical form, so
// that signatures survive re-serialization (whitespace, key order) between the
// signer and us.  Non-JSON and empty bodies pass through verbatim.
func canonicalizeBody(body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	if trans, err := jcs.Transform(body); err == nil {
		return trans
	}
	return body
}

// Sign signs a request body with the given key at the given time, returning
// the signature header value "t=<unix seconds>&s=<hex hmac-sha256>".
func Sign(ctx context.Context, at time.Time, key, body []byte) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, normalizeKey(key))
	_, _ = mac.Write(canonicalizeBody(body))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	return fmt.Sprintf("t=%d&s=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// ValidateSignature ensures that the given signature header is valid for the
// body with the given key: well formed, within the timestamp window, and with
// a matching MAC.
func ValidateSignature(ctx context.Context, sig string, key, body []byte) (bool, error) {
	val, err := url.ParseQuery(sig)
	if err != nil {
		return false, fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}
	if val.Get("s") == "" || val.Get("t") == "" {
		return false, fmt.Errorf("%w: missing timestamp or signature", ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(val.Get("t"), 10, 64)
	if err != nil || ts <= 0 {
		return false, fmt.Errorf("%w: %s", ErrInvalidTimestamp, val.Get("t"))
	}
	at := time.Unix(ts, 0)
	if delta := time.Since(at); delta > signatureExpiry || delta < -signatureExpiry {
		return false, ErrExpiredSignature
	}

	expected, err := url.ParseQuery(Sign(ctx, at, key, body))
	if err != nil {
		return false, fmt.Errorf("error computing expected signature: %w", err)
	}
	if !hmac.Equal([]byte(expected.Get("s")), []byte(val.Get("s"))) {
		return false, ErrInvalidSignature
	}
	return true, nil
}

// validateRequestSignature verifies an inbound request against the configured
// keys, trying the fallback key when the primary does not match.  Dev-mode
// handling is the caller's concern; here a key is always required.
func validateRequestSignature(ctx context.Context, sig string, key, keyFallback string, body []byte) (bool, error) {
	if key == "" {
		return false, ErrMissingSigningKey
	}
	if sig == "" {
		return false, ErrMissingSignature
	}

	ok, err := ValidateSignature(ctx, sig, []byte(key), body)
	if ok {
		return true, nil
	}
	if keyFallback != "" {
		// The primary key may have rotated out; accept requests signed with
		// the fallback.
		if ok, ferr := ValidateSignature(ctx, sig, []byte(keyFallback), body); ok {
			return true, nil
		} else if err == nil {
			err = ferr
		}
	}
	return false, err
}

// hashedSigningKey hashes a signing key for use as a bearer token on outgoing
// API requests: the hex key material is decoded, SHA-256 hashed, re-encoded,
// and the env prefix preserved.
func hashedSigningKey(key []byte) ([]byte, error) {
	prefix := signingKeyPrefixRegexp.FindString(string(key))
	raw, err := hex.DecodeString(string(normalizeKey(key)))
	if err != nil {
		return nil, fmt.Errorf("unable to decode signing key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return []byte(prefix + hex.EncodeToString(sum[:])), nil
}
