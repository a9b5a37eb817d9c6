package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
  "jurisdictions": [
    {
      "full_name": "Decatur County, Indiana",
      "county": "Decatur",
      "state": "Indiana",
      "subdivision": null,
      "jurisdiction_type": "county",
      "fips": 18031,
      "found": true,
      "total_time": 642.1,
      "total_time_string": "0:10:42",
      "documents": [
        {
          "source": "https://decaturcounty.in.gov/ordinance.pdf",
          "ord_year": 2022,
          "ord_filename": "Decatur County, Indiana.pdf",
          "num_pages": 14,
          "checksum": "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
          "access_time": "2025-12-06 15:20:11"
        }
      ]
    },
    {
      "full_name": "Box Elder County, Utah",
      "county": "Box Elder",
      "state": "Utah",
      "FIPS": 49003,
      "found": false,
      "total_time": 12.9
    }
  ]
}`

func TestDecodeJurisdictions(t *testing.T) {
	js, err := decodeJurisdictions(manifestFile, []byte(sampleManifest))
	require.NoError(t, err)
	require.Len(t, js, 2)

	decatur := js[0]
	assert.Equal(t, "Decatur County, Indiana", decatur.FullName)
	assert.Equal(t, "Decatur", decatur.County)
	assert.Equal(t, "Indiana", decatur.State)
	assert.Nil(t, decatur.Subdivision) // null stays absent
	require.NotNil(t, decatur.JurisdictionType)
	assert.Equal(t, "county", *decatur.JurisdictionType)
	assert.Equal(t, int64(18031), decatur.FIPS)
	assert.True(t, decatur.Found)
	assert.Equal(t, 642.1, decatur.TotalTime)
	assert.Equal(t, "0:10:42", decatur.TotalTimeString)

	require.Len(t, decatur.Documents, 1)
	doc := decatur.Documents[0]
	assert.Equal(t, "Decatur County, Indiana.pdf", doc.Filename)
	assert.Equal(t, 2022, doc.OrdYear)
	assert.Equal(t, 14, doc.NumPages)
	assert.Equal(t, "2025-12-06 15:20:11", doc.AccessTime)

	boxElder := js[1]
	assert.Equal(t, int64(49003), boxElder.FIPS) // legacy caps FIPS key
	assert.False(t, boxElder.Found)
	assert.Nil(t, boxElder.JurisdictionType)
	assert.Empty(t, boxElder.Documents)
}

func TestDecodeJurisdictions_Empty(t *testing.T) {
	js, err := decodeJurisdictions(manifestFile, []byte(`{"jurisdictions": []}`))
	require.NoError(t, err)
	assert.Empty(t, js)
}

func TestDecodeJurisdictions_Malformed(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		reason string
	}{
		{"invalid JSON", `{`, "invalid JSON"},
		{"top-level array", `[]`, "not an object"},
		{"missing list", `{}`, `"jurisdictions"`},
		{"list wrong type", `{"jurisdictions": {}}`, "must be an array"},
		{"entry not object", `{"jurisdictions": [7]}`, "jurisdiction 0 is not an object"},
		{
			"missing county",
			`{"jurisdictions": [{"full_name": "Nowhere", "state": "Kansas", "fips": 1, "found": true, "total_time": 0}]}`,
			`missing "county"`,
		},
		{
			"missing fips",
			`{"jurisdictions": [{"full_name": "Nowhere", "county": "No", "state": "Kansas", "found": true, "total_time": 0}]}`,
			`missing "fips"`,
		},
		{
			"missing found",
			`{"jurisdictions": [{"full_name": "Nowhere", "county": "No", "state": "Kansas", "fips": 1, "total_time": 0}]}`,
			`missing "found"`,
		},
		{
			"document missing checksum",
			`{"jurisdictions": [{"full_name": "Nowhere", "county": "No", "state": "Kansas", "fips": 1, "found": true, "total_time": 0,
				"documents": [{"source": "s", "ord_year": 2020, "ord_filename": "f.pdf", "num_pages": 3}]}]}`,
			`missing "checksum"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeJurisdictions(manifestFile, []byte(tc.input))
			require.Error(t, err)
			assert.True(t, IsMalformed(err))
			assert.Contains(t, err.Error(), tc.reason)
		})
	}
}
