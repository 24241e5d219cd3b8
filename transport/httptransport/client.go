// Package httptransport implements the HTTP transport binding (spec §4.6).
// Client dispatch is blocking HTTP I/O submitted to an executor so the
// caller's completion resolves asynchronously, same as every other
// transport's Dispatch contract; Server is a minimal embedded net/http
// server recognizing exactly POST / and GET /ping.
package httptransport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"switchboard/client"
	"switchboard/codec"
	"switchboard/envelope"
	"switchboard/executor"
	"switchboard/future"
	"switchboard/rpcerr"
)

const userAgent = "Boson-Service-Transport"

// Client dispatches every call as a fresh HTTP connection to a single
// configured URI.
type Client struct {
	uri   string
	codec codec.Codec
	http  *http.Client
	exec  executor.Executor
}

// NewClient returns a Client dialing uri (e.g. "http://api.internal:8080")
// for every dispatch. acceptSelfSigned opts out of certificate verification
// for https:// URIs, per spec §4.6's explicit self-signed opt-in.
func NewClient(uri string, c codec.Codec, exec executor.Executor, timeout time.Duration, acceptSelfSigned bool) *Client {
	transport := &http.Transport{DisableKeepAlives: true}
	if acceptSelfSigned {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		uri:   uri,
		codec: c,
		exec:  exec,
		http:  &http.Client{Transport: transport, Timeout: timeout},
	}
}

// Dispatch implements client.Transport. The HTTP round trip runs on the
// configured executor; Dispatch itself returns immediately with an
// unresolved completion, per spec §4.6 ("because HTTP I/O is blocking,
// dispatch submits the work to the executor").
func (c *Client) Dispatch(ctx context.Context, req *envelope.Request) *future.Completion[*envelope.Response] {
	completion := future.New[*envelope.Response]()
	c.exec.Submit(func() {
		resp, err := c.roundTrip(ctx, req)
		if err != nil {
			completion.Fulfill(envelope.Fail(req, err))
			return
		}
		completion.Fulfill(resp)
	})
	return completion
}

func (c *Client) roundTrip(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	body, err := envelope.EncodeRequest(c.codec, req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uri+"/", bytes.NewReader(body))
	if err != nil {
		return nil, rpcerr.Transportf(err, "building http request")
	}
	httpReq.Header.Set("User-Agent", userAgent)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		// ctx.Err() catches caller cancellation/deadline; a *url.Error with
		// Timeout() true is the client's own http.Client.Timeout firing
		// (e.g. a socket read timing out), which never sets ctx.Err() since
		// ctx itself was never cancelled. Spec §4.6/§7 require TimeoutError
		// for both.
		var ue *url.Error
		if ctx.Err() != nil || (errors.As(err, &ue) && ue.Timeout()) {
			return nil, rpcerr.Timeoutf("http dispatch to %s timed out: %v", c.uri, err)
		}
		return nil, rpcerr.Transportf(err, "http dispatch to %s failed", c.uri)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, rpcerr.Transportf(err, "reading http response body")
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, rpcerr.Transportf(nil, "http dispatch to %s returned status %d", c.uri, httpResp.StatusCode)
	}

	return envelope.DecodeResponse(c.codec, respBody)
}

var _ client.Transport = (*Client)(nil)
