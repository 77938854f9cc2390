package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norloworld/internal/core"
	"norloworld/internal/sheets/memory"
	"norloworld/internal/snapshot"
)

func fixtureLoader() SnapshotFunc {
	records := []core.Record{
		{core.FieldDriverName: "Jane Doe", core.FieldTerminal: "Dallas", core.FieldType: "Speeding", core.FieldDateTime: "2024-03-05 10:00:00"},
		{core.FieldDriverName: "Jane Doe", core.FieldTerminal: "Dallas", core.FieldType: "Hard Braking", core.FieldDateTime: "2024-05-01 08:00:00"},
		{core.FieldDriverName: "John Roe", core.FieldTerminal: "Austin", core.FieldType: "Speeding", core.FieldDateTime: "2024-03-20 12:00:00"},
	}
	tax := core.Taxonomy{
		Drivers: []core.DriverRow{
			{Name: "Jane Doe", Terminal: "Dallas", Status: "Active"},
			{Name: "John Roe", Terminal: "Austin", Status: "Active"},
		},
	}
	tree := core.StatsTree{}
	tree.Add("Jane Doe", "2024", core.March, "Speeding", 2)
	tree.Add("Jane Doe", "2024", core.March, "Total", 2)
	tree.Add("Jane Doe", "2024", core.April, "Hard Braking", 1)
	store := memory.New(records, tax, core.StatsSnapshot{Tree: tree, Drivers: []string{"Jane Doe", " jane doe "}})

	return func(ctx context.Context) (*snapshot.Snapshot, error) {
		return snapshot.NewLoader(store).Load(ctx)
	}
}

func run(t *testing.T, load SnapshotFunc, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	o := &options{
		load: load,
		now:  func() time.Time { return time.Date(2024, time.July, 4, 0, 0, 0, 0, time.UTC) },
	}
	cmd := newRootCommand(o)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestFilterCommand(t *testing.T) {
	out, _, err := run(t, fixtureLoader(), "filter", "--driver", "jane doe", "--start", "2024-03-01", "--end", "2024-03-31")
	require.NoError(t, err)

	var got struct {
		Query   string        `json:"query"`
		Total   int           `json:"total"`
		Records []core.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Total)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "Speeding", got.Records[0][core.FieldType])
	assert.Equal(t, "driver=jane+doe&end=2024-03-31&start=2024-03-01", got.Query)
}

func TestFilterCommandBridgeQueryAndLimit(t *testing.T) {
	link, _, err := run(t, nil, "link", "encode", "Jane Doe", "--year", "2024", "--start-month", "MARCH", "--end-month", "MAY")
	require.NoError(t, err)

	out, _, err := run(t, fixtureLoader(), "filter", "--terminal", "Austin", "--query", link[:len(link)-1], "-n", "1")
	require.NoError(t, err)

	var got struct {
		Total   int           `json:"total"`
		Records []core.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Total, "bridged query replaces the terminal selection")
	assert.Len(t, got.Records, 1)
}

func TestFilterCommandMalformedRange(t *testing.T) {
	out, stderr, err := run(t, fixtureLoader(), "filter", "--start", "March")
	require.NoError(t, err)
	assert.Contains(t, stderr, "malformed query parameters")
	assert.Contains(t, out, `"total": 3`)
}

func TestStatsCommand(t *testing.T) {
	out, _, err := run(t, fixtureLoader(), "stats", "-d", "Jane Doe", "--start-month", "MARCH", "--end-month", "APRIL")
	require.NoError(t, err)

	var got statsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "2024", got.Query.Year)
	assert.Equal(t, []core.FilteredRow{
		{Month: "MARCH", Reason: "Speeding", Count: 2},
		{Month: "APRIL", Reason: "Hard Braking", Count: 1},
	}, got.Rows)
	assert.Equal(t, 3, got.Total)
	assert.Contains(t, got.IncidentsQuery, "fromOtherView=true")
}

func TestStatsCommandErrors(t *testing.T) {
	_, _, err := run(t, fixtureLoader(), "stats")
	assert.ErrorIs(t, err, core.ErrMissingSelection)

	_, _, err = run(t, fixtureLoader(), "stats", "-d", "Jane Doe", "--start-month", "MAY", "--end-month", "MARCH")
	assert.ErrorIs(t, err, core.ErrInvalidMonthRange)

	_, _, err = run(t, fixtureLoader(), "stats", "-d", "Nobody")
	assert.ErrorIs(t, err, core.ErrNoDataForDriver)
}

func TestLinkDecode(t *testing.T) {
	out, _, err := run(t, nil, "link", "decode", "?driver=Jane+Doe&startMonth=2024-03-01T00:00:00.000Z&fromOtherView=yes")
	require.NoError(t, err)

	var got struct {
		Driver        string         `json:"driver"`
		StartMonth    time.Time      `json:"startMonth"`
		FromOtherView bool           `json:"fromOtherView"`
		Malformed     []string       `json:"malformed"`
		Filters       map[string]any `json:"filters"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Jane Doe", got.Driver)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), got.StartMonth)
	assert.False(t, got.FromOtherView)
	assert.Equal(t, []string{"fromOtherView"}, got.Malformed)
	assert.Equal(t, "2024-03-01", got.Filters["start"])
}

func TestOptionsCommandYAML(t *testing.T) {
	out, _, err := run(t, fixtureLoader(), "options", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "drivers:\n  - id: 0\n    name: Jane Doe\n")
	assert.Contains(t, out, "statsDrivers:\n  - id: 0\n    name: Jane Doe\n")
	assert.NotContains(t, out, "jane doe")
	assert.Contains(t, out, "name: DECEMBER")
}

func TestUnknownFormat(t *testing.T) {
	_, _, err := run(t, fixtureLoader(), "options", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestLoadFailure(t *testing.T) {
	failing := func(context.Context) (*snapshot.Snapshot, error) { return nil, errors.New("sheets down") }
	_, _, err := run(t, failing, "options")
	assert.EqualError(t, err, "failed to load data: sheets down")
}
