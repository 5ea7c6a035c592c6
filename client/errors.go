package client

import (
	"softlayer-rpc/message"
	"softlayer-rpc/transport"
)

// ConfigurationError reports a client that cannot be built as configured:
// missing credentials, a bad endpoint, conflicting options.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ProgrammingError reports misuse of the API by the caller: malformed builder
// arguments, unsupported argument values, runaway recursion.
type ProgrammingError struct {
	Reason string
}

func (e *ProgrammingError) Error() string {
	return "programming error: " + e.Reason
}

// RemoteFault is the fault the API reported for a well-formed call.
type RemoteFault = message.Fault

// TransportError is a failure to exchange the call with the API at all.
type TransportError = transport.Error
