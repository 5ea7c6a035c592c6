package server

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"softlayer-rpc/message"
	"softlayer-rpc/protocol"
)

// MethodFunc implements one remote method.
type MethodFunc func(ctx context.Context, req *message.Request) (any, error)

type methodType struct {
	name string
	fn   MethodFunc
}

type service struct {
	name   string
	method map[string]*methodType
}

func newService(name string) *service {
	return &service{name: name, method: make(map[string]*methodType)}
}

// NewService 创建 service 并扫描所有合法方法
//
// name may be short ("Account") or qualified; when empty the receiver's type
// name is used.
func NewService(name string, rcvr any) (*service, error) {
	// 1. 用 reflect.TypeOf / ValueOf 获取类型和值
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("server: rcvr must be a pointer, got %T", rcvr)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("server: rcvr must point to a struct, got %s", typ.Elem().Kind())
	}
	// 2. 没有显式名字时用类型名作为 service name
	if name == "" {
		name = typ.Elem().Name()
	}
	svc := newService(protocol.QualifiedServiceName(name))
	// 3. 扫描方法
	svc.registerMethods(reflect.ValueOf(rcvr))
	if len(svc.method) == 0 {
		return nil, fmt.Errorf("server: %s has no exported methods of type func(context.Context, *message.Request) (any, error)", typ)
	}
	return svc, nil
}

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	requestType = reflect.TypeOf((*message.Request)(nil))
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
)

// registerMethods 扫描 struct 的导出方法，过滤出符合签名的
//
//	func (r *T) GetObject(ctx context.Context, req *message.Request) (any, error)
//
// is served as "getObject".
func (s *service) registerMethods(rcvr reflect.Value) {
	typ := rcvr.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		mt := method.Type
		if mt.NumIn() != 3 || mt.NumOut() != 2 ||
			mt.In(1) != contextType || mt.In(2) != requestType ||
			mt.Out(0) != anyType || mt.Out(1) != errorType {
			continue
		}
		fn := rcvr.Method(i).Interface().(func(context.Context, *message.Request) (any, error))
		s.add(remoteName(method.Name), fn)
	}
}

func (s *service) add(name string, fn MethodFunc) {
	s.method[name] = &methodType{name: name, fn: fn}
}

// lookup resolves a wire method name: the exact name for XML-RPC, the
// underscored form for SOAP.
func (s *service) lookup(name string) (*methodType, bool) {
	if m, ok := s.method[name]; ok {
		return m, true
	}
	for _, m := range s.method {
		if protocol.Underscore(m.name) == name {
			return m, true
		}
	}
	return nil, false
}

// remoteName lower-cases the leading rune: GetObject → getObject.
func remoteName(goName string) string {
	r, size := utf8.DecodeRuneInString(goName)
	return string(unicode.ToLower(r)) + goName[size:]
}

// call 调用方法，recover 住 panic 转成 fault
func (m *methodType) call(ctx context.Context, req *message.Request) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &message.Fault{Code: "SoftLayer_Exception", Message: strings.TrimSpace(fmt.Sprint(p))}
		}
	}()
	return m.fn(ctx, req)
}
