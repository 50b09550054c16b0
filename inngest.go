// Package inngestgo provides the Inngest SDK for Go: durable, event-driven
// step functions served over HTTP and driven by the Inngest executor.
package inngestgo

import (
	"time"

	"github.com/inngest/inngestgo/internal/event"
	"github.com/inngest/inngestgo/internal/fn"
)

const (
	SDKAuthor   = "inngest"
	SDKLanguage = "go"
	SDKVersion  = "0.9.0"
)

const (
	// HeaderKeyAuthorization is the header name for authorization.
	HeaderKeyAuthorization = "Authorization"
	// HeaderKeyContentType is the header name for the content type.
	HeaderKeyContentType = "Content-Type"
	// HeaderKeyEnv is the header used to pass the env name to Inngest.
	HeaderKeyEnv = "X-Inngest-Env"
	// HeaderKeyExpectedServerKind is the header used to indicate which server
	// kind (cloud, dev) the SDK expects to talk to.
	HeaderKeyExpectedServerKind = "X-Inngest-Expected-Server-Kind"
	// HeaderKeyNoRetry indicates whether the orchestrator should retry the
	// current attempt.
	HeaderKeyNoRetry = "X-Inngest-No-Retry"
	// HeaderKeyReqVersion is the execution request version header.
	HeaderKeyReqVersion = "X-Inngest-Req-Version"
	// HeaderKeyRetryAfter mirrors the standard Retry-After header, used to
	// delay the next attempt of a function.
	HeaderKeyRetryAfter = "Retry-After"
	// HeaderKeySDK identifies this SDK and its version to Inngest.
	HeaderKeySDK = "X-Inngest-SDK"
	// HeaderKeyServerKind is set by the server on each request, indicating
	// whether the request came from the dev server or Inngest cloud.
	HeaderKeyServerKind = "X-Inngest-Server-Kind"
	// HeaderKeySignature carries the HMAC request signature.
	HeaderKeySignature = "X-Inngest-Signature"
)

// HeaderValueSDK is sent in the X-Inngest-SDK header on every response and
// outgoing API request.
const HeaderValueSDK = SDKLanguage + ":v" + SDKVersion

const (
	// ExecutionVersion is the request version this SDK implements, echoed back
	// to the executor via the X-Inngest-Req-Version header.
	ExecutionVersion = "1"

	// SyncKindPing is the deploy type sent when registering functions; the SDK
	// asks Inngest to ping the serve handler in order to sync.
	SyncKindPing = "ping"
)

// Event represents an event sent to or received from Inngest, with arbitrary
// map-based data.
type Event = event.Event

// GenericEvent is a fully typed event, with generic types for the event data
// and user payloads.
type GenericEvent[DATA any, USER any] = event.GenericEvent[DATA, USER]

// Input is the input data passed to a function's handler on each call.
type Input[T any] = fn.Input[T]

// InputCtx is the call context present within each Input.
type InputCtx = fn.InputCtx

// NowMillis returns a timestamp with millisecond precision used for event
// timestamps.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Timestamp converts a go time.Time into a timestamp with millisecond
// precision used for event timestamps.
func Timestamp(t time.Time) int64 {
	return t.UnixMilli()
}

// StrPtr returns the pointer to the given string.
func StrPtr(i string) *string { return &i }

// IntPtr returns the pointer to the given int.
func IntPtr(i int) *int { return &i }

// BoolPtr returns the pointer to the given boolean.
func BoolPtr(b bool) *bool { return &b }

// DurationPtr returns the pointer to the given duration.
func DurationPtr(d time.Duration) *time.Duration { return &d }
