package server

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fitlink/internal/dispatch"
	"github.com/desertthunder/fitlink/internal/extract"
)

// statePattern recovers the echoed OAuth state nonce from the reflected
// redirect URL, tolerating fragment or query placement like the extractor.
var statePattern = regexp.MustCompile(`[#?&]state=([^&]+)`)

// BridgeHandler serves the redirect capture flow. Implements [Handler].
type BridgeHandler struct {
	store     PendingStore
	encodings []dispatch.Encoding
	policy    dispatch.Policy
	ttl       time.Duration
	logger    *log.Logger
}

// BridgeOpts configures a BridgeHandler.
type BridgeOpts struct {
	Store     PendingStore
	Encodings []dispatch.Encoding
	Policy    dispatch.Policy
	TTL       time.Duration
	Logger    *log.Logger
}

// NewBridgeHandler creates the capture handler.
func NewBridgeHandler(opts BridgeOpts) *BridgeHandler {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	return &BridgeHandler{
		store:     opts.Store,
		encodings: opts.Encodings,
		policy:    opts.Policy,
		ttl:       opts.TTL,
		logger:    opts.Logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *BridgeHandler) Routes() []string {
	return []string{"/auth", "/auth/capture", "/auth/pending", "/health"}
}

func (h *BridgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth":
		h.serveShim(w, r)
	case "/auth/capture":
		h.serveCapture(w, r)
	case "/auth/pending":
		h.servePending(w, r)
	case "/health":
		h.serveHealth(w, r)
	default:
		http.NotFound(w, r)
	}
}

// serveShim renders the reflection page. The provider delivers the token
// in the URL fragment, which never reaches the server; the shim's only job
// is to reflect the full location into a query the capture route can read.
func (h *BridgeHandler) serveShim(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := shimPage.Execute(w, nil); err != nil {
		h.logger.Warn("failed to render shim page", "error", err)
	}
}

// serveCapture runs extraction over the reflected URL and renders the
// hand-off page. The token field and copy control render before any
// transport attempt because the page never learns whether a hand-off
// succeeded; manual copy must be available from the first paint.
func (h *BridgeHandler) serveCapture(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("u")
	res := extract.Extract(rawURL)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	switch res.Kind {
	case extract.ProviderError:
		h.logger.Info("provider returned an error redirect", "code", res.Err.Code)
		h.render(w, errorPage, map[string]any{
			"Code":        res.Err.Code,
			"Description": res.Err.Description,
		})
	case extract.NoToken:
		h.logger.Info("redirect reached with no extractable token")
		h.render(w, noTokenPage, nil)
	case extract.TokenFound:
		h.renderHandoff(w, rawURL, res.Grant)
	}
}

func (h *BridgeHandler) renderHandoff(w http.ResponseWriter, rawURL string, g extract.Grant) {
	state := captureState(rawURL)

	d := dispatch.NewDispatcher(dispatch.Opts{
		Encodings: h.encodings,
		Policy:    h.policy,
		Transport: logTransport{h.logger},
		Parker:    parkAdapter{store: h.store, ttl: h.ttl},
		Logger:    h.logger,
	})

	// The request context dies with the response; the attempt schedule
	// runs on its own clock.
	attempts, parkErr := d.Dispatch(context.Background(), state, g)

	type attemptView struct {
		Method  string `json:"method"`
		URI     string `json:"uri"`
		DelayMS int64  `json:"delay_ms"`
	}
	views := make([]attemptView, len(attempts))
	var windowMS int64
	for i, a := range attempts {
		views[i] = attemptView{Method: a.Method, URI: a.URI, DelayMS: a.Delay.Milliseconds()}
		if ms := a.Delay.Milliseconds(); ms > windowMS {
			windowMS = ms
		}
	}
	schedule, err := json.Marshal(views)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.render(w, handoffPage, map[string]any{
		"Token":      g.AccessToken,
		"Schedule":   template.JS(schedule),
		"WindowMS":   windowMS + 1500,
		"ParkFailed": parkErr != nil,
	})
}

func (h *BridgeHandler) servePending(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		http.Error(w, "state parameter required", http.StatusBadRequest)
		return
	}

	g, err := h.store.Take(r.Context(), state)
	if err != nil {
		h.logger.Warn("pending store read failed", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	if g == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pendingResponse{
		AccessToken: g.AccessToken,
		ExpiresIn:   g.ExpiresIn,
		UserID:      g.UserID,
		Scope:       g.Scope,
	}); err != nil {
		h.logger.Warn("failed to encode pending response", "error", err)
	}
}

func (h *BridgeHandler) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":        "ok",
		"pending_store": h.store.Kind(),
	})
}

func (h *BridgeHandler) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	if err := tmpl.Execute(w, data); err != nil {
		h.logger.Warn("failed to render page", "template", tmpl.Name(), "error", err)
	}
}

// pendingResponse is the poll endpoint's wire shape, mirroring the
// provider's redirect field names.
type pendingResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

func captureState(rawURL string) string {
	m := statePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// logTransport is the server-side transport sink. The real navigations
// happen in the rendered page; the sink keeps the dispatcher's schedule
// observable in bridge logs.
type logTransport struct {
	logger *log.Logger
}

func (t logTransport) Attempt(method, uri string) {
	t.logger.Debug("hand-off attempt scheduled", "method", method)
}

// parkAdapter binds the handler's TTL onto the PendingStore for the
// dispatcher's Parker contract.
type parkAdapter struct {
	store PendingStore
	ttl   time.Duration
}

func (p parkAdapter) Park(ctx context.Context, state string, g extract.Grant) error {
	if state == "" {
		// No echoed nonce: the grant cannot be keyed for polling, but the
		// deep-link attempts and manual copy still proceed.
		return nil
	}
	return p.store.Park(ctx, state, g, p.ttl)
}

var shimPage = template.Must(template.New("shim").Parse(`<!DOCTYPE html>
<html>
<head><title>Linking your account…</title></head>
<body>
    <noscript><p>JavaScript is required to finish linking your account.</p></noscript>
    <script>
        location.replace('/auth/capture?u=' + encodeURIComponent(location.href));
    </script>
</body>
</html>
`))

var handoffPage = template.Must(template.New("handoff").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Almost done</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; min-height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); max-width: 28rem; }
        h1 { color: #00B0B9; margin: 0 0 1rem 0; }
        input { width: 100%; font-family: monospace; padding: 0.5rem; }
        button { margin-top: 0.5rem; padding: 0.5rem 1rem; }
        #manual { display: none; color: #b00; margin-top: 1rem; }
        .hint { color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Opening the app…</h1>
        <p class="hint">If nothing happens, copy this token and paste it in the app:</p>
        <input id="token" type="text" readonly value="{{.Token}}" onclick="this.select()">
        <button onclick="copyToken()">Copy token</button>
        {{if .ParkFailed}}<p class="hint">Automatic pickup is unavailable; use the token above.</p>{{end}}
        <p id="manual">The app did not open. Paste the token above into the app's manual entry screen.</p>
    </div>
    <script>
        var attempts = {{.Schedule}};
        var windowMs = {{.WindowMS}};
        var started = Date.now();

        function copyToken() {
            var field = document.getElementById('token');
            field.select();
            document.execCommand('copy');
        }

        // Each attempt gets a transient invisible frame so a failed scheme
        // never navigates the visible page away from the token.
        attempts.forEach(function (a) {
            setTimeout(function () {
                var frame = document.createElement('iframe');
                frame.style.display = 'none';
                frame.src = a.uri;
                document.body.appendChild(frame);
                setTimeout(function () { frame.remove(); }, 1000);
            }, a.delay_ms);
        });

        // Visibility churn during the attempt window is the OS flipping
        // focus around; only a return to visibility after the window is
        // evidence the hand-off failed.
        document.addEventListener('visibilitychange', function () {
            if (document.visibilityState === 'visible' && Date.now() - started > windowMs) {
                document.getElementById('manual').style.display = 'block';
            }
        });
    </script>
</body>
</html>
`))

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorization failed</title></head>
<body>
    <h1>Authorization failed</h1>
    <p><strong>{{.Code}}</strong>{{if .Description}}: {{.Description}}{{end}}</p>
    <p>Return to the app and try again.</p>
</body>
</html>
`))

var noTokenPage = template.Must(template.New("notoken").Parse(`<!DOCTYPE html>
<html>
<head><title>No token received</title></head>
<body>
    <h1>No token received</h1>
    <p>The redirect did not carry an access token. Return to the app and retry,
       or use manual entry with the full address of this page.</p>
</body>
</html>
`))
