package artifact

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/NREL/COMPASS/internal/model"
)

// decodeJurisdictions decodes the run manifest. The manifest is an object
// with a single "jurisdictions" array; each entry names one jurisdiction and
// the source documents archived for it.
func decodeJurisdictions(name string, data []byte) ([]model.Jurisdiction, error) {
	if !gjson.ValidBytes(data) {
		return nil, &MalformedArtifactError{Artifact: name, Reason: "invalid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: "top-level value is not an object"}
	}

	list := root.Get("jurisdictions")
	if !list.Exists() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: `required field "jurisdictions" is absent`}
	}
	if !list.IsArray() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: `field "jurisdictions" must be an array`}
	}

	var (
		out       []model.Jurisdiction
		decodeErr error
	)
	list.ForEach(func(_, entry gjson.Result) bool {
		i := len(out)
		j, err := decodeJurisdiction(name, i, entry)
		if err != nil {
			decodeErr = err
			return false
		}
		out = append(out, *j)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	return out, nil
}

func decodeJurisdiction(name string, index int, entry gjson.Result) (*model.Jurisdiction, error) {
	pos := "jurisdiction " + strconv.Itoa(index)
	if !entry.IsObject() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: pos + " is not an object"}
	}

	j := &model.Jurisdiction{}

	for _, field := range []struct {
		key string
		dst *string
	}{
		{"full_name", &j.FullName},
		{"county", &j.County},
		{"state", &j.State},
	} {
		v := entry.Get(field.key)
		if !v.Exists() || v.Type != gjson.String {
			return nil, &MalformedArtifactError{
				Artifact: name,
				Reason:   pos + ` is missing "` + field.key + `"`,
			}
		}
		*field.dst = v.String()
	}
	if j.FullName != "" {
		pos = "jurisdiction " + strconv.Quote(j.FullName)
	}

	// Older manifests spell the FIPS key in caps.
	fips := entry.Get("fips")
	if !fips.Exists() {
		fips = entry.Get("FIPS")
	}
	if !fips.Exists() || fips.Type != gjson.Number {
		return nil, &MalformedArtifactError{Artifact: name, Reason: pos + ` is missing "fips"`}
	}
	j.FIPS = fips.Int()

	found := entry.Get("found")
	if !found.IsBool() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: pos + ` is missing "found"`}
	}
	j.Found = found.Bool()

	total := entry.Get("total_time")
	if !total.Exists() || total.Type != gjson.Number {
		return nil, &MalformedArtifactError{Artifact: name, Reason: pos + ` is missing "total_time"`}
	}
	j.TotalTime = total.Float()
	j.TotalTimeString = entry.Get("total_time_string").String()

	for _, field := range []struct {
		key string
		dst **string
	}{
		{"subdivision", &j.Subdivision},
		{"jurisdiction_type", &j.JurisdictionType},
	} {
		if v := entry.Get(field.key); v.Type == gjson.String {
			s := v.String()
			*field.dst = &s
		}
	}

	docs := entry.Get("documents")
	if docs.IsArray() {
		var docErr error
		docs.ForEach(func(_, doc gjson.Result) bool {
			d, err := decodeDocument(name, pos, doc)
			if err != nil {
				docErr = err
				return false
			}
			j.Documents = append(j.Documents, *d)
			return true
		})
		if docErr != nil {
			return nil, docErr
		}
	}

	return j, nil
}

func decodeDocument(name, pos string, doc gjson.Result) (*model.Document, error) {
	if !doc.IsObject() {
		return nil, &MalformedArtifactError{Artifact: name, Reason: "document of " + pos + " is not an object"}
	}

	d := &model.Document{}
	for _, field := range []struct {
		key string
		dst *string
	}{
		{"source", &d.Source},
		{"ord_filename", &d.Filename},
		{"checksum", &d.Checksum},
	} {
		v := doc.Get(field.key)
		if !v.Exists() || v.Type != gjson.String {
			return nil, &MalformedArtifactError{
				Artifact: name,
				Reason:   "document of " + pos + ` is missing "` + field.key + `"`,
			}
		}
		*field.dst = v.String()
	}

	for _, field := range []struct {
		key string
		dst *int
	}{
		{"ord_year", &d.OrdYear},
		{"num_pages", &d.NumPages},
	} {
		v := doc.Get(field.key)
		if !v.Exists() || v.Type != gjson.Number {
			return nil, &MalformedArtifactError{
				Artifact: name,
				Reason:   "document of " + pos + ` is missing "` + field.key + `"`,
			}
		}
		*field.dst = int(v.Int())
	}

	d.AccessTime = doc.Get("access_time").String()

	return d, nil
}
