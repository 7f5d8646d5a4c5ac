package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inthetow/backend/internal/domain/entities"
)

func TestRootCmd_RegistersCommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"reindex", "replay-aggregates", "active", "seed"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestReindexCmd_RejectsNegativeInterval(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"reindex", "--interval", "-1m"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval")
}

func TestPrintActive(t *testing.T) {
	var buf bytes.Buffer
	active := []*entities.ActiveFacility{
		{Facility: &entities.Facility{Name: "Acme Cold Storage", Address: entities.Address{City: "Reno", State: "NV"}}, Activity: 12},
		{Facility: &entities.Facility{Name: "Bolt DC", Address: entities.Address{City: "Sparks", State: "NV"}}, Activity: 3},
	}

	require.NoError(t, printActive(&buf, active))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "RANK")
	assert.Contains(t, lines[1], "Acme Cold Storage")
	assert.Contains(t, lines[1], "Reno, NV")
	assert.True(t, strings.HasPrefix(lines[2], "2"))
}

func TestPrintFacilityScore(t *testing.T) {
	var buf bytes.Buffer
	printFacilityScore(&buf, &entities.Facility{ID: "f-1", Name: "Acme", FacilityStats: entities.FacilityStats{NumRatings: 3, AvgRating: 4.5, InTheTowScore: 71.25}})

	assert.Equal(t, "f-1\tAcme\treviews=3\tavg=4.50\tscore=71.2\n", buf.String())
}

func TestReadSeedFile(t *testing.T) {
	inputs, err := readSeedFile(strings.NewReader(`[{"name":"Acme","city":"Reno","state":"NV"}]`))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "Acme", inputs[0].Name)

	_, err = readSeedFile(strings.NewReader(`[]`))
	assert.Error(t, err)

	_, err = readSeedFile(strings.NewReader(`[{"name":"Acme","in_the_tow_score":99}]`))
	assert.Error(t, err)
}
