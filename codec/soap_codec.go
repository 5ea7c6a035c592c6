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

// Namespaces used in the SOAP envelope.
const (
	NamespaceEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceEncoding = "http://schemas.xmlsoap.org/soap/encoding/"
	NamespaceXSI      = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceXSD      = "http://www.w3.org/2001/XMLSchema"
	NamespaceAPI      = "http://api.service.softlayer.com/soap/v3/"
)

const envelopeOpen = `<SOAP-ENV:Envelope` +
	` xmlns:SOAP-ENV="` + NamespaceEnvelope + `"` +
	` xmlns:SOAP-ENC="` + NamespaceEncoding + `"` +
	` xmlns:xsi="` + NamespaceXSI + `"` +
	` xmlns:xsd="` + NamespaceXSD + `"` +
	` xmlns:slapi="` + NamespaceAPI + `">`

// SOAPCodec speaks SOAP 1.1 with section-5 style typed values.
//
// Differences from XML-RPC that live here and nowhere else:
//   - sequences travel as SOAP-ENC:Array elements whose children are item0..itemN
//     (protocol.ToKeyed on the way out, protocol.FromKeyed on the way in)
//   - the operation element is the underscored method name (get_open_tickets)
//   - the response is read from {method}Response/{method}Return using the
//     caller's original method name
type SOAPCodec struct{}

func (c *SOAPCodec) EncodeRequest(req *message.Request) ([]byte, error) {
	headers, err := protocol.Normalize(req.Headers)
	if err != nil {
		return nil, fmt.Errorf("SOAPCodec: headers: %w", err)
	}
	keyedHeaders := protocol.ToKeyed(headers).(map[string]any)

	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(envelopeOpen)

	if len(keyedHeaders) > 0 {
		b.WriteString("<SOAP-ENV:Header>")
		for _, k := range sortedKeys(keyedHeaders) {
			if err := writeSOAPValue(&b, k, keyedHeaders[k]); err != nil {
				return nil, err
			}
		}
		b.WriteString("</SOAP-ENV:Header>")
	}

	op := c.Operation(req.Method)
	if !validElementName(op) {
		return nil, fmt.Errorf("SOAPCodec: invalid method name %q", req.Method)
	}
	b.WriteString("<SOAP-ENV:Body><slapi:")
	b.WriteString(op)
	b.WriteString(">")
	for i, arg := range req.Args {
		n, err := protocol.Normalize(arg)
		if err != nil {
			return nil, fmt.Errorf("SOAPCodec: argument %d: %w", i, err)
		}
		if err := writeSOAPValue(&b, "arg"+strconv.Itoa(i), protocol.ToKeyed(n)); err != nil {
			return nil, err
		}
	}
	b.WriteString("</slapi:")
	b.WriteString(op)
	b.WriteString("></SOAP-ENV:Body></SOAP-ENV:Envelope>")
	return []byte(b.String()), nil
}

// DecodeRequest leaves the underscored operation name in req.Method; the
// receiving side maps it back to one of its own method names.
func (c *SOAPCodec) DecodeRequest(data []byte, req *message.Request) error {
	body, header, err := openEnvelope(data)
	if err != nil {
		return err
	}
	if len(body.Nodes) == 0 {
		return fmt.Errorf("SOAPCodec: empty body")
	}

	req.Headers = map[string]any{}
	if header != nil {
		for i := range header.Nodes {
			h := &header.Nodes[i]
			v, err := decodeSOAPValue(h)
			if err != nil {
				return err
			}
			if v, err = protocol.FromKeyed(v); err != nil {
				return fmt.Errorf("SOAPCodec: header %s: %w", h.name(), err)
			}
			req.Headers[h.name()] = v
		}
	}

	op := &body.Nodes[0]
	req.Method = op.name()
	req.Args = nil
	for i := range op.Nodes {
		v, err := decodeSOAPValue(&op.Nodes[i])
		if err != nil {
			return err
		}
		if v, err = protocol.FromKeyed(v); err != nil {
			return fmt.Errorf("SOAPCodec: argument %d: %w", i, err)
		}
		req.Args = append(req.Args, v)
	}
	return nil
}

func (c *SOAPCodec) EncodeResponse(req *message.Request, resp *message.Response) ([]byte, error) {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(envelopeOpen)
	b.WriteString("<SOAP-ENV:Body>")

	if resp.Fault != nil {
		b.WriteString("<SOAP-ENV:Fault><faultcode>")
		escapeText(&b, resp.Fault.CodeString())
		b.WriteString("</faultcode><faultstring>")
		escapeText(&b, resp.Fault.Message)
		b.WriteString("</faultstring></SOAP-ENV:Fault>")
	} else {
		result, err := protocol.Normalize(resp.Result)
		if err != nil {
			return nil, fmt.Errorf("SOAPCodec: result: %w", err)
		}
		if !validElementName(req.Method) {
			return nil, fmt.Errorf("SOAPCodec: invalid method name %q", req.Method)
		}
		b.WriteString("<slapi:")
		b.WriteString(req.Method)
		b.WriteString("Response>")
		if err := writeSOAPValue(&b, req.Method+"Return", protocol.ToKeyed(result)); err != nil {
			return nil, err
		}
		b.WriteString("</slapi:")
		b.WriteString(req.Method)
		b.WriteString("Response>")
	}

	b.WriteString("</SOAP-ENV:Body></SOAP-ENV:Envelope>")
	return []byte(b.String()), nil
}

func (c *SOAPCodec) DecodeResponse(data []byte, req *message.Request, resp *message.Response) error {
	body, _, err := openEnvelope(data)
	if err != nil {
		return err
	}
	resp.Result = nil

	if fault := body.child("Fault"); fault != nil {
		var code, msg string
		if n := fault.child("faultcode"); n != nil {
			code = n.text()
		}
		if n := fault.child("faultstring"); n != nil {
			msg = n.text()
		}
		resp.Fault = &message.Fault{Code: code, Message: msg}
		return nil
	}

	// Response keys keep the original method name, not the underscored one.
	wrapper := body.child(req.Method + "Response")
	if wrapper == nil {
		return fmt.Errorf("SOAPCodec: missing %sResponse element", req.Method)
	}
	ret := wrapper.child(req.Method + "Return")
	if ret == nil {
		return nil
	}
	v, err := decodeSOAPValue(ret)
	if err != nil {
		return err
	}
	if resp.Result, err = protocol.FromKeyed(v); err != nil {
		return fmt.Errorf("SOAPCodec: result: %w", err)
	}
	return nil
}

func (c *SOAPCodec) ContentType() string {
	return "text/xml; charset=utf-8"
}

func (c *SOAPCodec) Type() CodecType {
	return CodecTypeSOAP
}

// Operation returns the element name the SOAP endpoint dispatches on.
func (c *SOAPCodec) Operation(method string) string {
	return protocol.Underscore(method)
}

// SOAPAction returns the value of the SOAPAction HTTP header for req.
func (c *SOAPCodec) SOAPAction(req *message.Request) string {
	return `"` + NamespaceAPI + req.Service + "#" + c.Operation(req.Method) + `"`
}

func openEnvelope(data []byte) (body, header *node, err error) {
	root, err := parseXML(data)
	if err != nil {
		return nil, nil, err
	}
	if root.name() != "Envelope" {
		return nil, nil, fmt.Errorf("SOAPCodec: unexpected root element <%s>", root.name())
	}
	body = root.child("Body")
	if body == nil {
		return nil, nil, fmt.Errorf("SOAPCodec: missing Body")
	}
	return body, root.child("Header"), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeTyped(b *strings.Builder, name, xsdType, text string) {
	b.WriteString("<")
	b.WriteString(name)
	b.WriteString(` xsi:type="`)
	b.WriteString(xsdType)
	b.WriteString(`">`)
	escapeText(b, text)
	b.WriteString("</")
	b.WriteString(name)
	b.WriteString(">")
}

// writeSOAPValue expects a normalized value with sequences already keyed.
func writeSOAPValue(b *strings.Builder, name string, v any) error {
	if !validElementName(name) {
		return fmt.Errorf("SOAPCodec: %q is not a valid element name", name)
	}
	switch x := v.(type) {
	case nil:
		b.WriteString("<" + name + ` xsi:nil="true"/>`)
	case bool:
		writeTyped(b, name, "xsd:boolean", strconv.FormatBool(x))
	case int:
		typ := "xsd:int"
		if x > math.MaxInt32 || x < math.MinInt32 {
			typ = "xsd:long"
		}
		writeTyped(b, name, typ, strconv.Itoa(x))
	case float64:
		writeTyped(b, name, "xsd:double", strconv.FormatFloat(x, 'f', -1, 64))
	case string:
		writeTyped(b, name, "xsd:string", x)
	case []byte:
		writeTyped(b, name, "xsd:base64Binary", base64.StdEncoding.EncodeToString(x))
	case time.Time:
		writeTyped(b, name, "xsd:dateTime", x.Format(time.RFC3339))
	case protocol.KeyedArray:
		fmt.Fprintf(b, `<%s xsi:type="SOAP-ENC:Array" SOAP-ENC:arrayType="xsd:anyType[%d]">`, name, len(x))
		for i := 0; i < len(x); i++ {
			key := protocol.ItemKey(i)
			elem, ok := x[key]
			if !ok {
				return fmt.Errorf("SOAPCodec: keyed array %s is missing %s", name, key)
			}
			if err := writeSOAPValue(b, key, elem); err != nil {
				return err
			}
		}
		b.WriteString("</" + name + ">")
	case map[string]any:
		b.WriteString("<" + name + ` xsi:type="SOAP-ENC:Struct">`)
		for _, k := range sortedKeys(x) {
			if err := writeSOAPValue(b, k, x[k]); err != nil {
				return err
			}
		}
		b.WriteString("</" + name + ">")
	case []any:
		return writeSOAPValue(b, name, protocol.ToKeyed(x))
	default:
		return fmt.Errorf("SOAPCodec: cannot encode %T", v)
	}
	return nil
}

func decodeSOAPValue(n *node) (any, error) {
	if isNil, ok := n.attr("nil"); ok && (isNil == "true" || isNil == "1") {
		return nil, nil
	}
	typ, _ := n.attr("type")
	typ = localPart(typ)
	if _, ok := n.attr("arrayType"); ok || strings.HasSuffix(typ, "Array") {
		typ = "Array"
	}
	switch typ {
	case "Array":
		out := make(protocol.KeyedArray, len(n.Nodes))
		for i := range n.Nodes {
			item := &n.Nodes[i]
			key := item.name()
			if _, ok := protocol.ItemIndex(key); !ok {
				key = protocol.ItemKey(i)
			}
			v, err := decodeSOAPValue(item)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	case "Struct":
		return decodeSOAPStruct(n)
	case "int", "long", "short", "byte", "integer", "unsignedInt", "unsignedLong", "unsignedShort":
		i, err := strconv.Atoi(n.text())
		if err != nil {
			return nil, fmt.Errorf("SOAPCodec: invalid integer %q in <%s>", n.text(), n.name())
		}
		return i, nil
	case "double", "float", "decimal":
		f, err := strconv.ParseFloat(n.text(), 64)
		if err != nil {
			return nil, fmt.Errorf("SOAPCodec: invalid number %q in <%s>", n.text(), n.name())
		}
		return f, nil
	case "boolean":
		switch n.text() {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("SOAPCodec: invalid boolean %q in <%s>", n.text(), n.name())
	case "dateTime", "date":
		return parseTime(n.text())
	case "base64Binary":
		return parseBase64(n.Content)
	case "string":
		return n.Content, nil
	}
	if len(n.Nodes) > 0 {
		return decodeSOAPStruct(n)
	}
	return n.Content, nil
}

func decodeSOAPStruct(n *node) (map[string]any, error) {
	out := make(map[string]any, len(n.Nodes))
	for i := range n.Nodes {
		child := &n.Nodes[i]
		v, err := decodeSOAPValue(child)
		if err != nil {
			return nil, err
		}
		out[child.name()] = v
	}
	return out, nil
}
