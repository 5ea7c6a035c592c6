package message

import "fmt"

// Fault is an application-level error reported by the remote API for a
// well-formed request.
//
// Code is kept exactly as the wire delivered it: SoftLayer sends symbolic codes
// such as "SoftLayer_Exception_ObjectNotFound", other endpoints send numbers.
type Fault struct {
	Code    any
	Message string
}

func (f *Fault) Error() string {
	if f.Code == nil {
		return fmt.Sprintf("remote fault: %s", f.Message)
	}
	return fmt.Sprintf("remote fault (%v): %s", f.Code, f.Message)
}

// CodeString renders the fault code for logging and comparisons.
func (f *Fault) CodeString() string {
	if f.Code == nil {
		return ""
	}
	return fmt.Sprint(f.Code)
}
