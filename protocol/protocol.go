// Package protocol holds the wire conventions shared by every SoftLayer API
// transport: service naming, header keys, object mask formatting, method name
// casing and the keyed-array shape used by the structured transport.
//
// Header bag sent with every call:
//
//	authenticate                     {username, apiKey}       always
//	{Service}ObjectFilter            nested filter map        if a filter is set
//	SoftLayer_ObjectMask             {mask: "mask[...]"}      if a mask is set
//	resultLimit                      {offset, limit}          if a window is set
//	{Service}InitParameters          {id}                     if an object id is set
package protocol

import "strings"

// ServicePrefix is prepended to short service names ("Account" -> "SoftLayer_Account").
const ServicePrefix = "SoftLayer_"

// Fixed header keys.
const (
	AuthenticateHeader = "authenticate"
	ObjectMaskHeader   = "SoftLayer_ObjectMask"
	ResultLimitHeader  = "resultLimit"
)

// InitParametersHeader returns the key of the object-id header for service.
func InitParametersHeader(service string) string {
	return service + "InitParameters"
}

// ObjectFilterHeader returns the key of the object-filter header for service.
func ObjectFilterHeader(service string) string {
	return service + "ObjectFilter"
}

// InitParameters builds the value of the object-id header.
func InitParameters(id any) map[string]any {
	return map[string]any{"id": id}
}

// ObjectMask builds the value of the object-mask header.
func ObjectMask(mask string) map[string]any {
	return map[string]any{"mask": mask}
}

// ResultLimit builds the value of the pagination header.
func ResultLimit(offset, limit int) map[string]any {
	return map[string]any{"offset": offset, "limit": limit}
}

// QualifiedServiceName adds ServicePrefix to name unless it is already there.
func QualifiedServiceName(name string) string {
	if strings.HasPrefix(name, ServicePrefix) {
		return name
	}
	return ServicePrefix + name
}
