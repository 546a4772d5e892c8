package packable

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/quickwritereader/PackGraph/types"
)

// Into copies a record graph into dst, usually a pointer to a struct, using
// `json` tags to match field names. The graph goes through Objectify first,
// so a repeated record arrives as a {"$ref": id} map and fills nothing.
func Into(rec *types.Record, dst any) error {
	cfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return fmt.Errorf("Into: %w", err)
	}
	if err := decoder.Decode(Objectify(rec)); err != nil {
		return fmt.Errorf("Into: %w", err)
	}
	return nil
}
