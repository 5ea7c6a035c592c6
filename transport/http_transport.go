package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"github.com/juju/loggo/v2"

	"softlayer-rpc/codec"
	"softlayer-rpc/message"
)

var logger = loggo.GetLogger("softlayer.transport")

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 64 << 20

// HTTPTransport posts encoded calls to {Request.Endpoint}/{Request.Service}.
// It is safe for concurrent use; connections are pooled by the HTTP client.
type HTTPTransport struct {
	client    *http.Client
	codec     codec.Codec
	userAgent string
}

// soapActioner is implemented by codecs that need a SOAPAction header.
type soapActioner interface {
	SOAPAction(req *message.Request) string
}

// NewHTTPTransport creates a transport for the given wire format. Timeouts are
// not set on the HTTP client: they are applied per call through the context.
func NewHTTPTransport(codecType codec.CodecType, userAgent string) *HTTPTransport {
	return &HTTPTransport{
		client:    DefaultHTTPClient(),
		codec:     codec.GetCodec(codecType),
		userAgent: userAgent,
	}
}

// DefaultHTTPClient returns a pooled HTTP client with a TLS 1.2 minimum.
func DefaultHTTPClient() *http.Client {
	client := cleanhttp.DefaultPooledClient()
	setMinimumTLSVersion(client)
	return client
}

func setMinimumTLSVersion(client *http.Client) {
	if tr, ok := client.Transport.(*http.Transport); tr != nil && ok {
		if tr.TLSClientConfig == nil {
			tr.TLSClientConfig = &tls.Config{}
		}
		tr.TLSClientConfig.MinVersion = tls.VersionTLS12
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	setMinimumTLSVersion(client)
	t.client = client
}

// Codec returns the wire codec used by this transport.
func (t *HTTPTransport) Codec() codec.Codec {
	return t.codec
}

// Call encodes req, posts it and decodes the answer.
func (t *HTTPTransport) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	url := ServiceURL(req.Endpoint, req.Service)

	// Step 1: Encode the call with the configured wire format
	body, err := t.codec.EncodeRequest(req)
	if err != nil {
		return nil, &Error{Op: "encode", URL: url, Err: err}
	}

	// Step 2: Build the HTTP request; the context carries the per-call deadline
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Op: "post", URL: url, Err: err}
	}
	httpReq.Header.Set("Content-Type", t.codec.ContentType())
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	if sa, ok := t.codec.(soapActioner); ok {
		httpReq.Header.Set("SOAPAction", sa.SOAPAction(req))
	}

	// Step 3: Send and read the whole body
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Op: "post", URL: url, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{Op: "read", URL: url, StatusCode: httpResp.StatusCode, Err: err}
	}
	logger.Tracef("%s %s -> HTTP %d, %d bytes", req.Method, url, httpResp.StatusCode, len(data))

	// Step 4: Decode. A fault in the body wins over the HTTP status: both
	// wire formats report faults with non-2xx codes on some endpoints.
	var resp message.Response
	if err := t.codec.DecodeResponse(data, req, &resp); err != nil {
		if httpResp.StatusCode/100 != 2 {
			return nil, &Error{
				Op:         "post",
				URL:        url,
				StatusCode: httpResp.StatusCode,
				Err:        fmt.Errorf("unexpected status %q", httpResp.Status),
			}
		}
		return nil, &Error{Op: "decode", URL: url, StatusCode: httpResp.StatusCode, Err: err}
	}
	if resp.Fault != nil {
		return nil, resp.Fault
	}
	return &resp, nil
}

// ServiceURL joins an endpoint base URL and a service name.
func ServiceURL(endpoint, service string) string {
	return strings.TrimRight(endpoint, "/") + "/" + service
}
