package client

import (
	"context"
	"fmt"
	"maps"
	"reflect"

	"softlayer-rpc/objectfilter"
	"softlayer-rpc/protocol"
)

type params struct {
	id       any
	hasID    bool
	mask     string
	filter   map[string]any
	offset   int
	limit    int
	hasLimit bool
}

// Filter is a Service with call parameters attached. It is immutable: every
// builder returns a new Filter, so chains built from the same base never
// interfere.
//
// Builder misuse is not reported by the builder itself; the next remote call
// through the Filter returns it as a *ProgrammingError.
type Filter struct {
	service *Service
	params  params
	err     error
}

// Service returns the decorated service.
func (f *Filter) Service() *Service {
	return f.service
}

// Err returns the deferred builder error, if any.
func (f *Filter) Err() error {
	return f.err
}

func (f *Filter) with(update func(p *params) error) *Filter {
	next := &Filter{service: f.service, params: f.params, err: f.err}
	if next.err != nil {
		return next
	}
	next.err = update(&next.params)
	return next
}

func misuse(format string, args ...any) error {
	return &ProgrammingError{Reason: fmt.Sprintf(format, args...)}
}

// ObjectWithID scopes calls to one object. The last id set wins.
func (f *Filter) ObjectWithID(id any) *Filter {
	return f.with(func(p *params) error {
		if id == nil {
			return misuse("objectWithId requires an id")
		}
		p.id, p.hasID = id, true
		return nil
	})
}

// ObjectMask sets the object mask; a later mask replaces an earlier one.
// Blank expressions are dropped and an all-blank mask sends no header.
func (f *Filter) ObjectMask(masks ...string) *Filter {
	return f.with(func(p *params) error {
		if len(masks) == 0 {
			return misuse("objectMask requires at least one mask expression")
		}
		p.mask = protocol.FormatMask(masks...)
		return nil
	})
}

// ObjectFilter sets the object filter; a later filter replaces an earlier one.
func (f *Filter) ObjectFilter(filter any) *Filter {
	return f.with(func(p *params) error {
		switch v := filter.(type) {
		case map[string]any:
			if v == nil {
				return misuse("objectFilter requires a filter")
			}
			p.filter = maps.Clone(v)
		case *objectfilter.Filter:
			if v == nil {
				return misuse("objectFilter requires a filter")
			}
			p.filter = v.Map()
		default:
			return misuse("objectFilter requires a map[string]any or *objectfilter.Filter, got %T", filter)
		}
		return nil
	})
}

// ResultLimit requests limit results starting at offset.
func (f *Filter) ResultLimit(offset, limit int) *Filter {
	return f.with(func(p *params) error {
		if offset < 0 || limit < 0 {
			return misuse("resultLimit requires non-negative offset and limit, got %d, %d", offset, limit)
		}
		p.offset, p.limit, p.hasLimit = offset, limit, true
		return nil
	})
}

// Call is the dispatcher: builder names are resolved locally and return a
// *Filter, every other name is a remote call with this Filter's parameters.
// Malformed builder arguments fail immediately.
func (f *Filter) Call(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case "objectWithId":
		if len(args) != 1 || args[0] == nil {
			return nil, misuse("objectWithId takes exactly one non-nil id")
		}
		return f.ObjectWithID(args[0]), nil

	case "objectMask":
		if len(args) == 0 {
			return nil, misuse("objectMask takes at least one mask expression")
		}
		masks := make([]string, len(args))
		for i, a := range args {
			s, ok := a.(string)
			if !ok {
				return nil, misuse("objectMask takes strings, argument %d is %T", i, a)
			}
			masks[i] = s
		}
		return f.ObjectMask(masks...), nil

	case "objectFilter":
		if len(args) != 1 {
			return nil, misuse("objectFilter takes exactly one filter")
		}
		next := f.ObjectFilter(args[0])
		if next.err != nil && f.err == nil {
			return nil, next.err
		}
		return next, nil

	case "resultLimit":
		var offset, limit int
		switch len(args) {
		case 1:
			l, ok := args[0].(int)
			if !ok {
				return nil, misuse("resultLimit takes integers, got %T", args[0])
			}
			limit = l
		case 2:
			o, ok1 := args[0].(int)
			l, ok2 := args[1].(int)
			if !ok1 || !ok2 {
				return nil, misuse("resultLimit takes integers, got %T, %T", args[0], args[1])
			}
			offset, limit = o, l
		default:
			return nil, misuse("resultLimit takes a limit or an offset and a limit")
		}
		next := f.ResultLimit(offset, limit)
		if next.err != nil && f.err == nil {
			return nil, next.err
		}
		return next, nil
	}

	if f.err != nil {
		return nil, f.err
	}
	return f.service.invoke(ctx, f.params, method, args)
}

// maxPages bounds AllPages when every page keeps coming back full.
const maxPages = 10000

// AllPages calls method repeatedly, pageSize results at a time, until a page
// comes back short. Paging starts at this Filter's offset.
//
// A method that ignores resultLimit is detected: a page longer than pageSize
// is returned on its own, and a page repeating the previous one ends paging
// with a *ProgrammingError.
func (f *Filter) AllPages(ctx context.Context, method string, pageSize int, args ...any) ([]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	if pageSize <= 0 {
		return nil, misuse("page size must be positive, got %d", pageSize)
	}

	var all, prev []any
	offset := f.params.offset
	for n := 0; ; n++ {
		if n == maxPages {
			return all, misuse("%s::%s still returning full pages after %d pages", f.service.name, method, maxPages)
		}
		page := f.ResultLimit(offset, pageSize)
		result, err := f.service.invoke(ctx, page.params, method, args)
		if err != nil {
			return all, err
		}
		if result == nil {
			return all, nil
		}
		items, ok := result.([]any)
		if !ok {
			return all, misuse("%s::%s returned %T, not a list", f.service.name, method, result)
		}
		if len(items) > pageSize {
			return items, nil
		}
		if prev != nil && reflect.DeepEqual(items, prev) {
			return all, misuse("%s::%s ignores resultLimit: offset %d repeated the previous page", f.service.name, method, offset)
		}
		prev = items
		all = append(all, items...)
		if len(items) < pageSize {
			return all, nil
		}
		offset += pageSize
	}
}
