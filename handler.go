package inngestgo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	sdkerrors "github.com/inngest/inngestgo/errors"
	"github.com/inngest/inngestgo/internal"
	"github.com/inngest/inngestgo/internal/fn"
	"github.com/inngest/inngestgo/internal/sdkrequest"
)

const (
	// framework reported during syncs and introspection.  The handler serves
	// plain net/http; framework adapters mount it without changing this.
	frameworkName = "http"

	// introspectionSchemaVersion is the version of the introspection payload
	// shape below.
	introspectionSchemaVersion = "2024-05-24"
)

type handlerOpts struct {
	// ServeOrigin overrides the origin advertised during syncs.
	ServeOrigin *string
	// ServePath overrides the path advertised during syncs.
	ServePath *string
	// URL overrides the full serve URL, with lower precedence than the
	// origin/path fields.
	URL *url.URL
}

// serveOriginOverride resolves the advertised serve origin: the explicit
// option, then the URL option, then INNGEST_SERVE_ORIGIN.
func serveOriginOverride(h handlerOpts) *string {
	if h.ServeOrigin != nil {
		return h.ServeOrigin
	}
	if h.URL != nil {
		return StrPtr(fmt.Sprintf("%s://%s", h.URL.Scheme, h.URL.Host))
	}
	if v := os.Getenv(envKeyServeOrigin); v != "" {
		return &v
	}
	return nil
}

// servePathOverride resolves the advertised serve path with the same
// precedence as serveOriginOverride.
func servePathOverride(h handlerOpts) *string {
	if h.ServePath != nil {
		return h.ServePath
	}
	if h.URL != nil {
		return StrPtr(h.URL.Path)
	}
	if v := os.Getenv(envKeyServePath); v != "" {
		return &v
	}
	return nil
}

// overrideURL applies the configured origin/path overrides to the URL derived
// from an inbound request, falling back to the given URL's own parts.
func overrideURL(u *url.URL, h handlerOpts) (*url.URL, error) {
	origin := serveOriginOverride(h)
	path := servePathOverride(h)
	if origin == nil && path == nil {
		return u, nil
	}

	out := ""
	if origin != nil {
		out = *origin
	} else if u != nil {
		out = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	if path != nil {
		out += *path
	} else if u != nil {
		out += u.Path
	}
	return url.Parse(out)
}

// handler is the HTTP state machine hosting an app's functions: GET serves
// introspection, PUT syncs the app's functions with Inngest, and POST executes
// one attempt of a function run.
type handler struct {
	client *apiClient
	handlerOpts

	l     sync.RWMutex
	funcs []fn.ServableFunction
}

func newHandler(c *apiClient, opts handlerOpts) *handler {
	return &handler{
		client:      c,
		handlerOpts: opts,
	}
}

// registerFunc adds a function to the handler.  Function IDs must be unique
// within the app.
func (h *handler) registerFunc(sf fn.ServableFunction) error {
	h.l.Lock()
	defer h.l.Unlock()
	for _, existing := range h.funcs {
		if existing.ID() == sf.ID() {
			return fmt.Errorf("a function with ID %q is already registered", sf.ID())
		}
	}
	h.funcs = append(h.funcs, sf)
	return nil
}

// findFunction resolves a function from the executor-visible ID, accepting
// both the fully qualified "<app>-<fn>" form and the bare function ID.
func (h *handler) findFunction(fnID string) (fn.ServableFunction, bool) {
	h.l.RLock()
	defer h.l.RUnlock()
	for _, sf := range h.funcs {
		if sf.FullyQualifiedID() == fnID || sf.ID() == fnID {
			return sf, true
		}
	}
	return nil, false
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(HeaderKeySDK, HeaderValueSDK)
	w.Header().Set(HeaderKeyReqVersion, ExecutionVersion)

	switch r.Method {
	case http.MethodGet:
		h.introspect(w, r)
	case http.MethodPut:
		h.sync(w, r)
	case http.MethodPost:
		h.call(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(HeaderKeyContentType, "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// verifyRequest authenticates an inbound request.  Dev mode always passes,
// warning when the request names a server kind other than "dev".
func (h *handler) verifyRequest(ctx context.Context, r *http.Request, body []byte) (bool, error) {
	if h.client.isDev() {
		if kind := r.Header.Get(HeaderKeyServerKind); kind != "" && kind != "dev" {
			h.client.Logger().Warn(
				"in dev mode, skipping signature validation for a non-dev server",
				"server_kind", kind,
			)
		}
		return true, nil
	}
	return validateRequestSignature(
		ctx,
		r.Header.Get(HeaderKeySignature),
		h.client.GetSigningKey(),
		h.client.GetSigningKeyFallback(),
		body,
	)
}

// requestURL reconstructs the externally-visible URL of an inbound request.
func requestURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return &url.URL{
		Scheme: scheme,
		Host:   r.Host,
		Path:   r.URL.Path,
	}
}

// mode returns "dev" or "cloud" for introspection.
func (h *handler) mode() string {
	if h.client.isDev() {
		return "dev"
	}
	return "cloud"
}

// introspect reports the handler's configuration.  Sensitive details are only
// included when the caller proves knowledge of the signing key by signing the
// request body (empty for GET).  In dev mode every caller is treated as
// authenticated and receives them.
func (h *handler) introspect(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	authed, _ := h.verifyRequest(r.Context(), r, body)

	h.l.RLock()
	count := len(h.funcs)
	h.l.RUnlock()

	eventKey := h.client.GetEventKey()
	if eventKey == devEventKey {
		eventKey = ""
	}
	signingKey := h.client.GetSigningKey()
	signingKeyFallback := h.client.GetSigningKeyFallback()

	resp := map[string]any{
		"authentication_succeeded": authed,
		"function_count":           count,
		"has_event_key":            eventKey != "",
		"has_signing_key":          signingKey != "",
		"has_signing_key_fallback": signingKeyFallback != "",
		"mode":                     h.mode(),
		"schema_version":           introspectionSchemaVersion,
	}

	if authed {
		resp["api_origin"] = h.client.GetAPIBaseURL()
		resp["app_id"] = h.client.AppID()
		resp["env"] = h.client.GetEnv()
		resp["event_api_origin"] = h.client.GetEventAPIBaseURL()
		resp["event_key_hash"] = keyHash(eventKey)
		resp["framework"] = frameworkName
		resp["sdk_language"] = SDKLanguage
		resp["sdk_version"] = SDKVersion
		resp["serve_origin"] = serveOriginOverride(h.handlerOpts)
		resp["serve_path"] = servePathOverride(h.handlerOpts)
		resp["signing_key_hash"] = signingKeyHash(signingKey)
		resp["signing_key_fallback_hash"] = signingKeyHash(signingKeyFallback)
	}

	writeJSON(w, http.StatusOK, resp)
}

func keyHash(key string) *string {
	if key == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(key))
	return StrPtr(hex.EncodeToString(sum[:]))
}

func signingKeyHash(key string) *string {
	if key == "" {
		return nil
	}
	hashed, err := hashedSigningKey([]byte(key))
	if err != nil {
		return nil
	}
	return StrPtr(string(hashed))
}

// registerRequest is the payload sent to Inngest when syncing the app.
type registerRequest struct {
	URL        string        `json:"url"`
	DeployType string        `json:"deployType"`
	AppName    string        `json:"appName"`
	SDK        string        `json:"sdk"`
	V          string        `json:"v"`
	Framework  string        `json:"framework"`
	Functions  []sdkFunction `json:"functions"`
}

type registerResponse struct {
	OK       bool   `json:"ok"`
	Modified bool   `json:"modified"`
	Error    string `json:"error,omitempty"`
}

// sdkFunction is a function's sync-time wire config.
type sdkFunction struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Triggers    []fn.Trigger       `json:"triggers"`
	Concurrency []fn.Concurrency   `json:"concurrency,omitempty"`
	Debounce    *fn.Debounce       `json:"debounce,omitempty"`
	Priority    *fn.Priority       `json:"priority,omitempty"`
	Singleton   *fn.Singleton      `json:"singleton,omitempty"`
	Idempotency *string            `json:"idempotency,omitempty"`
	Timeouts    *fn.Timeouts       `json:"timeouts,omitempty"`
	Steps       map[string]sdkStep `json:"steps"`
}

type sdkStep struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Runtime map[string]any `json:"runtime"`
	Retries sdkStepRetries `json:"retries"`
}

type sdkStepRetries struct {
	Attempts int `json:"attempts"`
}

// funcConfig builds the sync-time config for one function, pointing its single
// logical step back at this handler.
func funcConfig(sf fn.ServableFunction, serveURL *url.URL) sdkFunction {
	c := sf.Config()

	stepURL := *serveURL
	q := stepURL.Query()
	q.Set("fnId", sf.FullyQualifiedID())
	q.Set("stepId", "step")
	stepURL.RawQuery = q.Encode()

	return sdkFunction{
		ID:          sf.FullyQualifiedID(),
		Name:        sf.Name(),
		Description: c.Description,
		Triggers:    sf.Triggers(),
		Concurrency: c.Concurrency,
		Debounce:    c.Debounce,
		Priority:    c.Priority,
		Singleton:   c.Singleton,
		Idempotency: c.Idempotency,
		Timeouts:    c.Timeouts,
		Steps: map[string]sdkStep{
			"step": {
				ID:   "step",
				Name: "step",
				Runtime: map[string]any{
					"type": "http",
					"url":  stepURL.String(),
				},
				Retries: sdkStepRetries{
					// Attempts include the initial call.
					Attempts: c.GetRetries() + 1,
				},
			},
		},
	}
}

// sync registers this app's functions with Inngest, advertising the serve URL
// the executor should call back on.
func (h *handler) sync(w http.ResponseWriter, r *http.Request) {
	serveURL, err := overrideURL(requestURL(r), h.handlerOpts)
	if err != nil || serveURL == nil || serveURL.Host == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "unable to determine the serve URL; set ServeOrigin or INNGEST_SERVE_ORIGIN",
		})
		return
	}

	h.l.RLock()
	functions := make([]sdkFunction, len(h.funcs))
	for i, sf := range h.funcs {
		functions[i] = funcConfig(sf, serveURL)
	}
	h.l.RUnlock()

	payload := registerRequest{
		URL:        serveURL.String(),
		DeployType: SyncKindPing,
		AppName:    h.client.AppID(),
		SDK:        HeaderValueSDK,
		V:          "0.1",
		Framework:  frameworkName,
		Functions:  functions,
	}

	endpoint := fmt.Sprintf("%s/fn/register", h.client.GetAPIBaseURL())
	if h.client.RegisterURL != nil {
		endpoint = *h.client.RegisterURL
	}

	out := registerResponse{}
	req := h.client.restClient().R().
		SetContext(r.Context()).
		SetBody(payload).
		// Parse replies as JSON whatever content type they are labeled with.
		ForceContentType("application/json").
		SetResult(&out).
		SetError(&out)
	if deployID := r.URL.Query().Get("deployId"); deployID != "" {
		req.SetQueryParam("deployId", deployID)
	}
	if e := h.client.GetEnv(); e != "" {
		req.SetHeader(HeaderKeyEnv, e)
	}
	if key := h.client.GetSigningKey(); key != "" {
		hashed, err := hashedSigningKey([]byte(key))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error": fmt.Sprintf("invalid signing key: %s", err),
			})
			return
		}
		req.SetHeader(HeaderKeyAuthorization, fmt.Sprintf("Bearer %s", hashed))
	} else if !h.client.isDev() {
		h.client.Logger().Warn("syncing without a signing key; set INNGEST_SIGNING_KEY")
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("error performing sync: %s", err),
		})
		return
	}
	if resp.StatusCode() != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("sync returned status %d", resp.StatusCode())
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": msg})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Successfully synced",
		"modified": out.Modified,
	})
}

// errorResponse is the body returned for any failed attempt.
type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// call executes a single attempt of a function run.
func (h *handler) call(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unable to read request body"})
		return
	}

	if ok, err := h.verifyRequest(ctx, r, body); !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Name:    "Unauthorized",
			Message: fmt.Sprintf("error validating signature: %s", err),
		})
		return
	}

	fnID := r.URL.Query().Get("fnId")
	if fnID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing fnId parameter"})
		return
	}
	sf, ok := h.findFunction(fnID)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Function not found"})
		return
	}

	request := &sdkrequest.Request{}
	if err := json.Unmarshal(body, request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": fmt.Sprintf("malformed request body: %s", err),
		})
		return
	}

	// Make the client available for step.Send within handlers.
	ctx = internal.ContextWithEventSender(ctx, h.client)

	resp, ops, err := invoke(ctx, sf, request)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(ops) > 0 {
		w.Header().Set(HeaderKeyNoRetry, "false")
		writeJSON(w, http.StatusPartialContent, ops)
		return
	}

	w.Header().Set(HeaderKeyNoRetry, "false")
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps a handler error onto the orchestrator-visible response:
// status code, retry headers, and the serialized error body.
func (h *handler) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{
		Name:    "Error",
		Message: err.Error(),
	}

	serr := sdkerrors.StepError{}
	if errors.As(err, &serr) {
		resp.Name = serr.Name
		resp.Stack = serr.Stack
		w.Header().Set(HeaderKeyNoRetry, "true")
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	if isNoRetryError(err) {
		resp.Name = "NonRetriableError"
		w.Header().Set(HeaderKeyNoRetry, "true")
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	w.Header().Set(HeaderKeyNoRetry, "false")
	if at := getRetryAtTime(err); at != nil {
		w.Header().Set(HeaderKeyRetryAfter, at.Format(time.RFC3339))
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

// invoke builds the handler input from the request, runs the function with a
// fresh invocation manager, and interprets the outcome: a non-empty op list
// containing deferred work trumps the handler's return value.
func invoke(
	ctx context.Context,
	sf fn.ServableFunction,
	request *sdkrequest.Request,
) (any, []sdkrequest.GeneratorOpcode, error) {
	mgr := sdkrequest.NewManager(request)
	ctx = sdkrequest.SetManager(ctx, mgr)

	fv := reflect.ValueOf(sf.Func())
	inputVal, err := buildInput(fv.Type().In(1), request)
	if err != nil {
		return nil, nil, err
	}

	var (
		res    any
		runErr error
	)
	func() {
		defer func() {
			if rcv := recover(); rcv != nil {
				runErr = fmt.Errorf("function panicked: %v\n%s", rcv, debug.Stack())
			}
		}()
		out := fv.Call([]reflect.Value{reflect.ValueOf(ctx), inputVal})
		if !out[1].IsNil() {
			runErr = out[1].Interface().(error)
		}
		res = out[0].Interface()
	}()

	if err := mgr.Err(); err != nil {
		return nil, nil, err
	}
	if runErr != nil {
		return nil, nil, runErr
	}

	ops := mgr.Ops()
	for _, op := range ops {
		if op.Deferred() {
			return nil, ops, nil
		}
	}
	// Every discovered step ran inline, so the run is complete; its final
	// value is the attempt's outcome.
	return res, nil, nil
}

// buildInput unmarshals the request's event payloads into the handler's typed
// Input[T] value.
func buildInput(inputType reflect.Type, request *sdkrequest.Request) (reflect.Value, error) {
	input := reflect.New(inputType).Elem()

	evtField := input.FieldByName("Event")
	if len(request.Event) > 0 {
		if err := json.Unmarshal(request.Event, evtField.Addr().Interface()); err != nil {
			return input, fmt.Errorf("error unmarshalling event: %w", err)
		}
	}

	evtsField := input.FieldByName("Events")
	if len(request.Events) > 0 {
		evts := reflect.MakeSlice(evtsField.Type(), 0, len(request.Events))
		for _, raw := range request.Events {
			evt := reflect.New(evtsField.Type().Elem())
			if err := json.Unmarshal(raw, evt.Interface()); err != nil {
				return input, fmt.Errorf("error unmarshalling event batch: %w", err)
			}
			evts = reflect.Append(evts, evt.Elem())
		}
		evtsField.Set(evts)
	} else {
		// Non-batched functions still see a single-element batch.
		evts := reflect.MakeSlice(evtsField.Type(), 0, 1)
		evts = reflect.Append(evts, evtField)
		evtsField.Set(evts)
	}

	input.FieldByName("InputCtx").Set(reflect.ValueOf(fn.InputCtx{
		Env:        request.CallCtx.Env,
		FunctionID: request.CallCtx.FunctionID,
		RunID:      request.CallCtx.RunID,
		StepID:     request.CallCtx.StepID,
		Attempt:    request.CallCtx.Attempt,
	}))

	return input, nil
}
