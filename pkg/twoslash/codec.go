package twoslash

import (
	"encoding/json"

	"gitlab.com/tozd/go/errors"
)

// Attribute is the one field that carries a serialized Record from the extractor to
// the renderer.
const Attribute = "data-twoslash"

// MetaAttribute carries the block meta string, updated with the processing flags.
const MetaAttribute = "twoslash-meta"

func Encode(r *Record) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", errors.Errorf("encoding twoslash record: %w", err)
	}
	return string(data), nil
}

// Decode accepts a record in any form it can cross the render boundary in: the
// record itself or its JSON encoding as a string or bytes.
func Decode(v any) (*Record, error) {
	switch rec := v.(type) {
	case nil:
		return nil, errors.New("no twoslash record")
	case *Record:
		if rec == nil {
			return nil, errors.New("no twoslash record")
		}
		return rec, nil
	case Record:
		return &rec, nil
	case string:
		return decodeJSON([]byte(rec))
	case []byte:
		return decodeJSON(rec)
	default:
		return nil, errors.Errorf("unsupported twoslash record type %T", v)
	}
}

func decodeJSON(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Errorf("decoding twoslash record: %w", err)
	}
	if rec.Queries == nil {
		rec.Queries = []Query{}
	}
	if rec.Errors == nil {
		rec.Errors = []Error{}
	}
	return &rec, nil
}
