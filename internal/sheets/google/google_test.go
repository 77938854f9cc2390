package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norloworld/internal/core"
	"norloworld/internal/log"

	goption "google.golang.org/api/option"
)

// fakeSheets serves the subset of the Sheets values API the client uses.
type fakeSheets struct {
	mu       sync.Mutex
	values   map[string][][]any
	appended [][]any
	gets     []string
	renders  map[string]string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	if strings.HasSuffix(rng, ":append") && r.Method == http.MethodPost {
		var body struct {
			Values [][]any `json:"values"`
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		f.appended = append(f.appended, body.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Incidents!A7:G7"},
		})
		return
	}

	f.gets = append(f.gets, rng)
	if f.renders == nil {
		f.renders = map[string]string{}
	}
	f.renders[rng] = r.URL.Query().Get("valueRenderOption")
	vals, ok := f.values[rng]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "Unable to parse range: " + rng},
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "majorDimension": "ROWS", "values": vals})
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	return newTestClientWithLogger(t, f, nil)
}

func newTestClientWithLogger(t *testing.T, f *fakeSheets, logger *log.Logger) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		SpreadsheetID: "sheet-id",
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithHTTPClient(srv.Client()),
		},
		Logger: logger,
	})
	require.NoError(t, err)
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet-id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestClient_Reads(t *testing.T) {
	f := &fakeSheets{values: map[string][][]any{
		"Incidents": {
			{"Driver Name", "Terminal", "status"},
			{"Jane Doe", "Dallas", "Open"},
		},
		"Drivers!A2:C": {{"Jane Doe", "Dallas", "Active"}},
		"Types":        {{"Safety"}, {"Speeding"}},
		"Stats!A2:E":   {{"Jane Doe", "2024", "MARCH", "Speeding", 2.0}},
	}}
	c := newTestClient(t, f)
	ctx := context.Background()

	records, err := c.ListIncidents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{core.FieldDriverName: "Jane Doe", core.FieldTerminal: "Dallas", core.FieldStatus: "Open"}}, records)

	tax, err := c.ReadTaxonomy(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.DriverRow{{Name: "Jane Doe", Terminal: "Dallas", Status: "Active"}}, tax.Drivers)
	assert.Equal(t, []core.TypeGroup{{ColumnName: "Safety", Items: []string{"Speeding"}}}, tax.Types)

	stats, err := c.ReadStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Tree["Jane Doe"]["2024"]["MARCH"]["Speeding"])
	assert.Equal(t, "UNFORMATTED_VALUE", f.renders["Stats!A2:E"])
	assert.Empty(t, f.renders["Incidents"])
}

func TestClient_ReadStatsLogsSkippedRows(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Handler: slog.NewTextHandler(&buf, nil)})
	f := &fakeSheets{values: map[string][][]any{
		"Stats!A2:E": {
			{"Jane Doe", "2024", "MARCH", "Speeding", 1234.0},
			{"Jane Doe", "2024", "APRIL", "Speeding", -3.0},
		},
	}}
	c := newTestClientWithLogger(t, f, logger)

	stats, err := c.ReadStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234, stats.Tree["Jane Doe"]["2024"]["MARCH"]["Speeding"])
	assert.NotContains(t, stats.Tree["Jane Doe"]["2024"], "APRIL")

	out := buf.String()
	assert.Contains(t, out, "Skipped malformed stats rows")
	assert.Contains(t, out, "component=sheets")
	assert.Contains(t, out, "count=1")
}

func TestClient_ReadError(t *testing.T) {
	c := newTestClient(t, &fakeSheets{values: map[string][][]any{}})
	_, err := c.ReadStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read stats")
}

func TestClient_AppendIncident(t *testing.T) {
	f := &fakeSheets{values: map[string][][]any{
		"Incidents!1:1": {{"Driver Name", "Date Time", "Type", "Incident", "Documented By"}},
	}}
	c := newTestClient(t, f)

	report := core.IncidentReport{
		DriverName:  "Jane Doe",
		DateTime:    time.Date(2024, time.February, 3, 14, 5, 0, 0, time.UTC),
		Description: "Late delivery",
		Incident:    "Speeding",
		SubmittedBy: "Safety Team",
	}

	ref, err := c.AppendIncident(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "Incidents!A7:G7", ref)

	_, err = c.AppendIncident(context.Background(), report)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.appended, 2)
	assert.Equal(t, []any{"Jane Doe", "2024-02-03 14:05:00", "Speeding", "Late delivery", "Safety Team"}, f.appended[0])
	assert.Equal(t, []string{"Incidents!1:1"}, f.gets, "header is cached between appends")
}

func TestClient_AppendIncidentValidates(t *testing.T) {
	c := &Client{spreadsheetID: "sheet-id"}
	_, err := c.AppendIncident(context.Background(), core.IncidentReport{DriverName: "Jane Doe"})
	assert.ErrorIs(t, err, core.ErrMissingRequiredField)
}

func TestClient_HeaderCacheExpiration(t *testing.T) {
	c := &Client{cacheValidDuration: 50 * time.Millisecond}
	c.storeHeader([]string{"Driver Name"})

	c.mu.Lock()
	valid := time.Now().Before(c.cacheExpiresAt)
	c.mu.Unlock()
	assert.True(t, valid)

	time.Sleep(80 * time.Millisecond)

	c.mu.Lock()
	valid = time.Now().Before(c.cacheExpiresAt)
	c.mu.Unlock()
	assert.False(t, valid)
}
