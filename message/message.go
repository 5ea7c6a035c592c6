// Package message defines the envelopes exchanged with the SoftLayer API.
//
// A Request is the "envelope" for every remote call. It gets serialized by the
// codec layer into an XML-RPC or SOAP body and posted by the transport to the
// service endpoint:
//
//	{Endpoint}/{Service}  <-  Method + Headers + Args
//
// A Response carries the decoded, normalized result or the Fault the remote
// side reported.
package message

// Request carries the data for a single remote call.
type Request struct {
	Endpoint string         // Base URL, e.g. "https://api.softlayer.com/xmlrpc/v3"
	Service  string         // Fully prefixed service name, e.g. "SoftLayer_Account"
	Method   string         // Remote method name as the caller wrote it, e.g. "getOpenTickets"
	Headers  map[string]any // Authentication, mask, filter, pagination and init parameters
	Args     []any          // Positional arguments, already normalized
}

// Response carries the outcome of a single remote call.
//
//   - On success: Result holds the normalized value. nil is a valid result.
//   - On failure: Fault is set and Result is ignored.
type Response struct {
	Result any
	Fault  *Fault
}

// Header returns the header value stored under key, or nil.
func (r *Request) Header(key string) any {
	if r == nil || r.Headers == nil {
		return nil
	}
	return r.Headers[key]
}
