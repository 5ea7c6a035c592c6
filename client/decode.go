package client

import (
	"time"

	"github.com/mitchellh/mapstructure"
)

// Decode copies a call result onto out, a pointer to a struct, slice or map.
// Struct fields are matched by their json tag, then case-insensitively by
// name; numbers and strings convert where the target type asks for it.
//
//	var tickets []Ticket
//	err := client.Decode(result, &tickets)
func Decode(result any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return &ProgrammingError{Reason: "decode target: " + err.Error()}
	}
	return dec.Decode(result)
}
