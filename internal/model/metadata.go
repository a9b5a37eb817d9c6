package model

import "github.com/rotisserie/eris"

// ExtraFields is the residual JSON object left after an artifact's modeled
// keys are extracted. It round-trips byte-for-byte: key order and number
// formatting are preserved, and the content is never interpreted.
type ExtraFields []byte

// MarshalJSON returns the preserved bytes unchanged.
func (e ExtraFields) MarshalJSON() ([]byte, error) {
	if len(e) == 0 {
		return []byte("{}"), nil
	}
	return e, nil
}

// UnmarshalJSON stores a copy of the raw bytes.
func (e *ExtraFields) UnmarshalJSON(data []byte) error {
	if e == nil {
		return eris.New("model: unmarshal into nil ExtraFields")
	}
	*e = append((*e)[0:0], data...)
	return nil
}

// IsEmpty reports whether the bag holds no fields beyond an empty object.
func (e ExtraFields) IsEmpty() bool {
	if len(e) == 0 {
		return true
	}
	for _, b := range e {
		switch b {
		case '{', '}', ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

func (e ExtraFields) String() string { return string(e) }

// RunMetadata is the scraper's run configuration (meta.json, or the legacy
// config.json). Model is the only required field; everything the decoder
// does not model explicitly is preserved in Extra.
type RunMetadata struct {
	Model     string      `json:"model"`
	RateLimit *int64      `json:"llm_service_rate_limit,omitempty"`
	Extra     ExtraFields `json:"extra,omitempty"`
}
