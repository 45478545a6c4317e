package portabletext

import (
	iSchemas "github.com/jonathan/nirman-site/internal/schemas"
	"github.com/jonathan/nirman-site/schemas"
)

// Validate checks raw Portable Text against the embedded JSON Schema.
func Validate(raw []byte) error {
	return iSchemas.Validate(schemas.PortableText, raw)
}

// DecodeStrict validates raw against the schema before decoding. Use it
// where malformed content should be rejected instead of degraded, such as
// the CLI validate command.
func DecodeStrict(raw []byte) (Document, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	return Decode(raw)
}
