package main

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NREL/COMPASS/internal/model"
)

func TestWriteOrdinanceCSV(t *testing.T) {
	value := 500.0
	offset := 50.0
	minDist := 200.0
	value2 := 1.1
	year := 2022

	records := []model.OrdinanceRecord{
		{
			County:           "Decatur",
			State:            "Indiana",
			JurisdictionType: "county",
			FIPS:             18031,
			Feature:          "turbine height",
			Value:            &value,
			Units:            "feet",
			Summary:          "Maximum height, measured to blade tip, is 500 feet.",
			OrdYear:          &year,
			Section:          "5.2",
			Source:           "https://example.com/decatur.pdf",
		},
		{
			County:           "Box Elder",
			State:            "Utah",
			JurisdictionType: "county",
			FIPS:             49003,
			Feature:          "setback to property line",
			Value:            &value2,
			Units:            "multiplier",
			Offset:           &offset,
			MinDist:          &minDist,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeOrdinanceCSV(&buf, records))

	g := goldie.New(t)
	g.Assert(t, "ordinances", buf.Bytes())
}

func TestWriteOrdinanceCSV_NoRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOrdinanceCSV(&buf, nil))

	// An empty database still yields the canonical header line.
	assert.Equal(t,
		"county,state,subdivision,jurisdiction_type,fips,feature,value,units,offset,min_dist,max_dist,summary,ord_year,section,source\n",
		buf.String())
}

func TestFormatOptFloat(t *testing.T) {
	assert.Equal(t, "", formatOptFloat(nil))

	v := 1.1
	assert.Equal(t, "1.1", formatOptFloat(&v))

	whole := 500.0
	assert.Equal(t, "500", formatOptFloat(&whole))
}

func TestFormatOptInt(t *testing.T) {
	assert.Equal(t, "", formatOptInt(nil))

	v := 2022
	assert.Equal(t, "2022", formatOptInt(&v))
}
