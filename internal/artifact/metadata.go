package artifact

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/NREL/COMPASS/internal/model"
)

// modeledMetadataKeys are the keys the decoder lifts into RunMetadata.
// Everything else stays in the Extra bag verbatim.
var modeledMetadataKeys = []string{"model", "llm_service_rate_limit"}

// decodeMetadata decodes the run metadata artifact. The extra bag is carved
// out of the original bytes by deleting the modeled keys, so unknown fields
// keep their order and exact formatting.
func decodeMetadata(name string, data []byte) (*model.RunMetadata, error) {
	if !gjson.ValidBytes(data) {
		return nil, &MalformedArtifactError{Artifact: name, Reason: "invalid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: "top-level value is not an object"}
	}

	modelField := root.Get("model")
	if !modelField.Exists() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: `required field "model" is absent`}
	}
	if modelField.Type != gjson.String || modelField.String() == "" {
		return nil, &MalformedArtifactError{Artifact: name, Reason: `field "model" must be a non-empty string`}
	}

	md := &model.RunMetadata{Model: modelField.String()}

	if rl := root.Get("llm_service_rate_limit"); rl.Exists() {
		if rl.Type != gjson.Number {
			return nil, &MalformedArtifactError{Artifact: name, Reason: `field "llm_service_rate_limit" must be a number`}
		}
		v := rl.Int()
		md.RateLimit = &v
	}

	extra := data
	for _, key := range modeledMetadataKeys {
		var err error
		if extra, err = sjson.DeleteBytes(extra, key); err != nil {
			return nil, &MalformedArtifactError{Artifact: name, Reason: "strip modeled fields", Err: err}
		}
	}
	if bag := model.ExtraFields(extra); !bag.IsEmpty() {
		md.Extra = bag
	}

	return md, nil
}
