package codec

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"softlayer-rpc/message"
	"softlayer-rpc/protocol"
)

// XMLRPCCodec speaks XML-RPC with the <nil/> extension.
//
// The first positional parameter of every call is a struct holding the header
// bag ({headers: {...}}); the caller's arguments follow unchanged. Method names
// go on the wire exactly as given.
type XMLRPCCodec struct{}

func (c *XMLRPCCodec) EncodeRequest(req *message.Request) ([]byte, error) {
	headers, err := protocol.Normalize(req.Headers)
	if err != nil {
		return nil, fmt.Errorf("XMLRPCCodec: headers: %w", err)
	}

	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<methodCall><methodName>")
	escapeText(&b, req.Method)
	b.WriteString("</methodName><params>")

	if err := writeXMLRPCParam(&b, map[string]any{"headers": headers}); err != nil {
		return nil, err
	}
	for i, arg := range req.Args {
		n, err := protocol.Normalize(arg)
		if err != nil {
			return nil, fmt.Errorf("XMLRPCCodec: argument %d: %w", i, err)
		}
		if err := writeXMLRPCParam(&b, n); err != nil {
			return nil, fmt.Errorf("XMLRPCCodec: argument %d: %w", i, err)
		}
	}

	b.WriteString("</params></methodCall>")
	return []byte(b.String()), nil
}

func (c *XMLRPCCodec) DecodeRequest(data []byte, req *message.Request) error {
	root, err := parseXML(data)
	if err != nil {
		return err
	}
	if root.name() != "methodCall" {
		return fmt.Errorf("XMLRPCCodec: unexpected root element <%s>", root.name())
	}
	methodName := root.child("methodName")
	if methodName == nil || methodName.text() == "" {
		return fmt.Errorf("XMLRPCCodec: missing methodName")
	}
	req.Method = methodName.text()
	req.Headers = map[string]any{}
	req.Args = nil

	params := root.child("params")
	if params == nil {
		return nil
	}
	for i := range params.Nodes {
		v, err := decodeXMLRPCParam(&params.Nodes[i])
		if err != nil {
			return err
		}
		if i == 0 {
			if m, ok := v.(map[string]any); ok {
				if h, ok := m["headers"].(map[string]any); ok && len(m) == 1 {
					req.Headers = h
					continue
				}
			}
		}
		req.Args = append(req.Args, v)
	}
	return nil
}

func (c *XMLRPCCodec) EncodeResponse(req *message.Request, resp *message.Response) ([]byte, error) {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<methodResponse>")

	if resp.Fault != nil {
		code, err := protocol.Normalize(resp.Fault.Code)
		if err != nil {
			return nil, fmt.Errorf("XMLRPCCodec: fault code: %w", err)
		}
		b.WriteString("<fault>")
		fault := map[string]any{"faultCode": code, "faultString": resp.Fault.Message}
		if err := writeXMLRPCValue(&b, fault); err != nil {
			return nil, err
		}
		b.WriteString("</fault></methodResponse>")
		return []byte(b.String()), nil
	}

	result, err := protocol.Normalize(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("XMLRPCCodec: result: %w", err)
	}
	b.WriteString("<params>")
	if err := writeXMLRPCParam(&b, result); err != nil {
		return nil, err
	}
	b.WriteString("</params></methodResponse>")
	return []byte(b.String()), nil
}

func (c *XMLRPCCodec) DecodeResponse(data []byte, req *message.Request, resp *message.Response) error {
	root, err := parseXML(data)
	if err != nil {
		return err
	}
	if root.name() != "methodResponse" {
		return fmt.Errorf("XMLRPCCodec: unexpected root element <%s>", root.name())
	}

	if fault := root.child("fault"); fault != nil {
		value := fault.child("value")
		if value == nil {
			return fmt.Errorf("XMLRPCCodec: fault without value")
		}
		v, err := decodeXMLRPCValue(value)
		if err != nil {
			return err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("XMLRPCCodec: fault value is %T, not a struct", v)
		}
		msg, _ := m["faultString"].(string)
		resp.Fault = &message.Fault{Code: m["faultCode"], Message: msg}
		resp.Result = nil
		return nil
	}

	resp.Result = nil
	params := root.child("params")
	if params == nil || len(params.Nodes) == 0 {
		return nil
	}
	v, err := decodeXMLRPCParam(&params.Nodes[0])
	if err != nil {
		return err
	}
	resp.Result = v
	return nil
}

func (c *XMLRPCCodec) ContentType() string {
	return "text/xml; charset=utf-8"
}

func (c *XMLRPCCodec) Type() CodecType {
	return CodecTypeXMLRPC
}

func writeXMLRPCParam(b *strings.Builder, v any) error {
	b.WriteString("<param>")
	if err := writeXMLRPCValue(b, v); err != nil {
		return err
	}
	b.WriteString("</param>")
	return nil
}

// writeXMLRPCValue expects a value already passed through protocol.Normalize.
func writeXMLRPCValue(b *strings.Builder, v any) error {
	b.WriteString("<value>")
	switch x := v.(type) {
	case nil:
		b.WriteString("<nil/>")
	case bool:
		if x {
			b.WriteString("<boolean>1</boolean>")
		} else {
			b.WriteString("<boolean>0</boolean>")
		}
	case int:
		// <int> is 32-bit; wider values need the i8 extension
		tag := "int"
		if x > math.MaxInt32 || x < math.MinInt32 {
			tag = "i8"
		}
		b.WriteString("<" + tag + ">")
		b.WriteString(strconv.Itoa(x))
		b.WriteString("</" + tag + ">")
	case float64:
		b.WriteString("<double>")
		b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
		b.WriteString("</double>")
	case string:
		b.WriteString("<string>")
		escapeText(b, x)
		b.WriteString("</string>")
	case []byte:
		b.WriteString("<base64>")
		b.WriteString(base64.StdEncoding.EncodeToString(x))
		b.WriteString("</base64>")
	case time.Time:
		b.WriteString("<dateTime.iso8601>")
		b.WriteString(x.Format(time.RFC3339))
		b.WriteString("</dateTime.iso8601>")
	case map[string]any:
		if err := writeXMLRPCStruct(b, x); err != nil {
			return err
		}
	case protocol.KeyedArray:
		if err := writeXMLRPCStruct(b, x); err != nil {
			return err
		}
	case []any:
		b.WriteString("<array><data>")
		for _, e := range x {
			if err := writeXMLRPCValue(b, e); err != nil {
				return err
			}
		}
		b.WriteString("</data></array>")
	default:
		return fmt.Errorf("XMLRPCCodec: cannot encode %T", v)
	}
	b.WriteString("</value>")
	return nil
}

func writeXMLRPCStruct(b *strings.Builder, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("<struct>")
	for _, k := range keys {
		b.WriteString("<member><name>")
		escapeText(b, k)
		b.WriteString("</name>")
		if err := writeXMLRPCValue(b, m[k]); err != nil {
			return err
		}
		b.WriteString("</member>")
	}
	b.WriteString("</struct>")
	return nil
}

func decodeXMLRPCParam(param *node) (any, error) {
	if param.name() != "param" {
		return nil, fmt.Errorf("XMLRPCCodec: unexpected element <%s> in params", param.name())
	}
	value := param.child("value")
	if value == nil {
		return nil, fmt.Errorf("XMLRPCCodec: param without value")
	}
	return decodeXMLRPCValue(value)
}

func decodeXMLRPCValue(value *node) (any, error) {
	if len(value.Nodes) == 0 {
		// An untyped <value> is a string; whitespace is significant.
		return value.Content, nil
	}

	typed := &value.Nodes[0]
	switch typed.name() {
	case "nil":
		return nil, nil
	case "string":
		return typed.Content, nil
	case "int", "i4", "i8":
		i, err := strconv.Atoi(typed.text())
		if err != nil {
			return nil, fmt.Errorf("XMLRPCCodec: invalid integer %q", typed.text())
		}
		return i, nil
	case "boolean":
		switch typed.text() {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("XMLRPCCodec: invalid boolean %q", typed.text())
	case "double":
		f, err := strconv.ParseFloat(typed.text(), 64)
		if err != nil {
			return nil, fmt.Errorf("XMLRPCCodec: invalid double %q", typed.text())
		}
		return f, nil
	case "dateTime.iso8601":
		return parseTime(typed.text())
	case "base64":
		return parseBase64(typed.Content)
	case "struct":
		out := make(map[string]any, len(typed.Nodes))
		for i := range typed.Nodes {
			member := &typed.Nodes[i]
			name, val := member.child("name"), member.child("value")
			if member.name() != "member" || name == nil || val == nil {
				return nil, fmt.Errorf("XMLRPCCodec: malformed struct member")
			}
			v, err := decodeXMLRPCValue(val)
			if err != nil {
				return nil, err
			}
			out[name.Content] = v
		}
		return out, nil
	case "array":
		data := typed.child("data")
		out := []any{}
		if data == nil {
			return out, nil
		}
		for i := range data.Nodes {
			v, err := decodeXMLRPCValue(&data.Nodes[i])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("XMLRPCCodec: unsupported value type <%s>", typed.name())
}
