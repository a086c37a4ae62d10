package confidential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPDispatcher forwards requests to a remote confidential-compute service.
// The service settles by calling back CallbackURL.
type HTTPDispatcher struct {
	client      *http.Client
	endpoint    string
	callbackURL string
	token       string
	clusterKey  PublicKey
	log         *logrus.Entry
}

type dispatchBody struct {
	Request     Request `json:"request"`
	CallbackURL string  `json:"callback_url"`
}

type clusterKeyBody struct {
	PublicKey PublicKey `json:"public_key"`
}

// NewHTTPDispatcher fetches the cluster key from endpoint and returns a
// dispatcher posting to it. token is sent as a bearer credential.
func NewHTTPDispatcher(ctx context.Context, endpoint, callbackURL, token string, timeout time.Duration, log *logrus.Entry) (*HTTPDispatcher, error) {
	d := &HTTPDispatcher{
		client:      &http.Client{Timeout: timeout},
		endpoint:    strings.TrimRight(endpoint, "/"),
		callbackURL: callbackURL,
		token:       token,
		log:         log,
	}

	var body clusterKeyBody
	if err := d.do(ctx, http.MethodGet, "/cluster-key", nil, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch cluster key: %w", err)
	}
	if body.PublicKey.IsZero() {
		return nil, fmt.Errorf("compute service returned an empty cluster key")
	}
	d.clusterKey = body.PublicKey
	return d, nil
}

func (d *HTTPDispatcher) ClusterKey() PublicKey { return d.clusterKey }

func (d *HTTPDispatcher) Dispatch(ctx context.Context, req Request) error {
	payload, err := json.Marshal(dispatchBody{Request: req, CallbackURL: d.callbackURL})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := d.do(ctx, http.MethodPost, "/computations", payload, nil); err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", req.Circuit, err)
	}
	d.log.WithFields(logrus.Fields{"handle": req.Handle, "circuit": req.Circuit}).Debug("computation queued")
	return nil
}

func (d *HTTPDispatcher) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.endpoint+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("compute service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
