// Package codec serializes API calls for the two SoftLayer wire formats.
//
//   - XMLRPCCodec: positional arguments, exact method names, <nil/> support.
//   - SOAPCodec:   typed elements, sequences re-shaped into keyed arrays,
//     operations addressed by their underscored name.
//
// Both directions are implemented so the same codec serves the client
// transport and the in-process test server.
package codec

import (
	"fmt"
	"strings"

	"softlayer-rpc/message"
)

type CodecType byte

const (
	CodecTypeXMLRPC CodecType = 0
	CodecTypeSOAP   CodecType = 1
)

type Codec interface {
	EncodeRequest(req *message.Request) ([]byte, error)
	DecodeRequest(data []byte, req *message.Request) error
	EncodeResponse(req *message.Request, resp *message.Response) ([]byte, error)
	DecodeResponse(data []byte, req *message.Request, resp *message.Response) error
	ContentType() string
	Type() CodecType // 0=XML-RPC, 1=SOAP
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeSOAP {
		return &SOAPCodec{}
	}

	return &XMLRPCCodec{}
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeXMLRPC:
		return "xmlrpc"
	case CodecTypeSOAP:
		return "soap"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

// ParseCodecType accepts the names used in configuration files and flags.
func ParseCodecType(name string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "xmlrpc", "xml-rpc":
		return CodecTypeXMLRPC, nil
	case "soap":
		return CodecTypeSOAP, nil
	}
	return 0, fmt.Errorf("unknown transport %q", name)
}
