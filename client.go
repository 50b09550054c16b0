package inngestgo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/inngest/inngestgo/pkg/env"
	"github.com/oklog/ulid/v2"
)

// devEventKey is used as the event key in dev mode when none is configured;
// the dev server accepts any key.
const devEventKey = "NO_EVENT_KEY_SET"

// Client enables sending events to Inngest and serving this app's functions.
type Client interface {
	// AppID returns the ID of the app this client serves.
	AppID() string

	// Send sends the given event to Inngest, returning its ID.
	Send(ctx context.Context, evt any) (string, error)

	// SendMany sends a batch of events to Inngest in a single request,
	// returning their IDs.
	SendMany(ctx context.Context, evt []any) ([]string, error)

	// Serve returns the HTTP handler hosting this app's functions.  Mount it
	// wherever your router allows; pass the mount point via
	// ClientOpts.ServePath so syncs advertise the right URL.
	Serve() http.Handler
}

// ClientOpts configures a client.  Every field except AppID is optional; when
// unset, values resolve from the INNGEST_* environment and then defaults.
type ClientOpts struct {
	// AppID uniquely identifies this app within Inngest.  Function IDs are
	// prefixed with the app ID during registration.
	AppID string

	// Env is the branch environment name, sent with every request.
	Env *string

	// EventKey is the credential used to send events.
	EventKey *string

	// SigningKey authenticates requests between Inngest and this SDK.
	SigningKey *string

	// SigningKeyFallback is checked whenever the primary signing key fails,
	// allowing zero-downtime key rotation.
	SigningKeyFallback *string

	// APIBaseURL overrides the Inngest API host used for function syncs.
	APIBaseURL *string

	// EventAPIBaseURL overrides the host events are sent to.
	EventAPIBaseURL *string

	// RegisterURL overrides the full URL syncs are sent to, for self-hosted
	// deployments.
	RegisterURL *string

	// ServeOrigin is the externally-visible origin of the serve handler,
	// eg. "https://api.example.com".
	ServeOrigin *string

	// ServePath is the externally-visible path the serve handler is mounted
	// at, eg. "/api/inngest".
	ServePath *string

	// Dev forces dev (true) or cloud (false) mode for signature checks, the
	// event key and introspection, overriding INNGEST_DEV.  It does not change
	// the default API and event API base URLs, which follow INNGEST_DEV only.
	Dev *bool

	// Logger is used for all SDK logging.  Defaults to slog with the level
	// taken from INNGEST_LOG_LEVEL.
	Logger *slog.Logger
}

// NewClient returns a Client configured with the given options.
func NewClient(opts ClientOpts) (Client, error) {
	if opts.AppID == "" {
		return nil, fmt.Errorf("an app ID is required")
	}
	c := &apiClient{ClientOpts: opts}
	c.h = newHandler(c, handlerOpts{
		ServeOrigin: opts.ServeOrigin,
		ServePath:   opts.ServePath,
	})
	return c, nil
}

// apiClient is a concrete client implementation talking to the Inngest event
// and registration APIs.
type apiClient struct {
	ClientOpts

	h *handler

	restOnce sync.Once
	rest     *resty.Client
}

func (a *apiClient) AppID() string {
	return a.ClientOpts.AppID
}

func (a *apiClient) Serve() http.Handler {
	return a.h
}

func (a *apiClient) restClient() *resty.Client {
	a.restOnce.Do(func() {
		a.rest = resty.New().
			SetTimeout(30*time.Second).
			SetHeader(HeaderKeySDK, HeaderValueSDK).
			SetHeader(HeaderKeyContentType, "application/json")
	})
	return a.rest
}

// isDev resolves the operational mode: the Dev option wins, else INNGEST_DEV.
func (a *apiClient) isDev() bool {
	if a.Dev != nil {
		return *a.Dev
	}
	return IsDev()
}

// GetEventKey returns the event key, preferring the explicit option over the
// environment.  Dev mode works without a key.
func (a *apiClient) GetEventKey() string {
	if a.EventKey != nil {
		return *a.EventKey
	}
	if key := os.Getenv(envKeyEventKey); key != "" {
		return key
	}
	if a.isDev() {
		return devEventKey
	}
	return ""
}

// GetSigningKey returns the signing key, preferring the explicit option over
// the environment.
func (a *apiClient) GetSigningKey() string {
	if a.SigningKey != nil {
		return *a.SigningKey
	}
	return os.Getenv(envKeySigningKey)
}

// GetSigningKeyFallback returns the rotation fallback signing key, preferring
// the explicit option over the environment.
func (a *apiClient) GetSigningKeyFallback() string {
	if a.SigningKeyFallback != nil {
		return *a.SigningKeyFallback
	}
	return os.Getenv(envKeySigningKeyFallback)
}

// GetEnv returns the branch environment name, preferring the explicit option
// over the environment variable.
func (a *apiClient) GetEnv() string {
	if a.Env != nil {
		return *a.Env
	}
	return os.Getenv(envKeyEnv)
}

// GetAPIBaseURL returns the base URL for the Inngest API.
func (a *apiClient) GetAPIBaseURL() string {
	if a.APIBaseURL != nil {
		return *a.APIBaseURL
	}
	if url := os.Getenv(envKeyAPIBaseURL); url != "" {
		return url
	}
	return env.APIServerURL()
}

// GetEventAPIBaseURL returns the base URL for the Inngest event API.
func (a *apiClient) GetEventAPIBaseURL() string {
	if a.EventAPIBaseURL != nil {
		return *a.EventAPIBaseURL
	}
	if url := os.Getenv(envKeyEventAPIBaseURL); url != "" {
		return url
	}
	return env.EventAPIServerURL()
}

// Logger returns the configured logger, or a default slog logger honoring
// INNGEST_LOG_LEVEL.
func (a *apiClient) Logger() *slog.Logger {
	if a.ClientOpts.Logger != nil {
		return a.ClientOpts.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: envLogLevel(),
	}))
}

// eventAPIResponse is the event API's response shape for one or many events.
type eventAPIResponse struct {
	IDs    []string `json:"ids"`
	Status int      `json:"status"`
	Error  string   `json:"error,omitempty"`
}

func (a *apiClient) Send(ctx context.Context, evt any) (string, error) {
	ids, err := a.SendMany(ctx, []any{evt})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("no event ID returned")
	}
	return ids[0], nil
}

func (a *apiClient) SendMany(ctx context.Context, evts []any) ([]string, error) {
	key := a.GetEventKey()
	if key == "" {
		return nil, fmt.Errorf("no event key configured; set ClientOpts.EventKey or %s", envKeyEventKey)
	}

	payload := make([]map[string]any, len(evts))
	for i, evt := range evts {
		norm, err := normalizeEvent(evt)
		if err != nil {
			return nil, fmt.Errorf("invalid event at index %d: %w", i, err)
		}
		payload[i] = norm
	}

	out := eventAPIResponse{}
	req := a.restClient().R().
		SetContext(ctx).
		SetBody(payload).
		// Parse replies as JSON whatever content type they are labeled with.
		ForceContentType("application/json").
		SetResult(&out).
		SetError(&out)
	if e := a.GetEnv(); e != "" {
		req.SetHeader(HeaderKeyEnv, e)
	}

	resp, err := req.Post(fmt.Sprintf("%s/e/%s", a.GetEventAPIBaseURL(), key))
	if err != nil {
		return nil, fmt.Errorf("error sending events: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("error sending events: %s", out.Error)
		}
		return nil, fmt.Errorf("error sending events: status %d", resp.StatusCode())
	}
	return out.IDs, nil
}

// normalizeEvent converts any typed event into its wire map, ensuring a name
// is present and filling in the ID and timestamp when absent.
func normalizeEvent(evt any) (map[string]any, error) {
	byt, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	data := map[string]any{}
	if err := json.Unmarshal(byt, &data); err != nil {
		return nil, fmt.Errorf("events must serialize to JSON objects: %w", err)
	}
	if name, _ := data["name"].(string); name == "" {
		return nil, fmt.Errorf("event name must be present")
	}
	if id, ok := data["id"].(string); !ok || id == "" {
		data["id"] = ulid.MustNew(ulid.Now(), ulid.DefaultEntropy()).String()
	}
	if ts, ok := data["ts"].(float64); !ok || ts == 0 {
		data["ts"] = NowMillis()
	}
	return data, nil
}
