package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"norloworld/internal/core"
	"norloworld/internal/log"
	ports "norloworld/internal/sheets"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Sheets names the tabs the client reads and writes.
type Sheets struct {
	Incidents string
	Drivers   string
	Types     string
	Stats     string
}

// DefaultSheets are the tab names used when none are configured.
var DefaultSheets = Sheets{Incidents: "Incidents", Drivers: "Drivers", Types: "Types", Stats: "Stats"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheets        Sheets
	loc           *time.Location
	logger        *log.Logger

	// Incidents header, reused by appends until it expires.
	mu                 sync.Mutex
	cachedHeader       []string
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var (
	_ ports.IncidentLister = (*Client)(nil)
	_ ports.TaxonomyReader = (*Client)(nil)
	_ ports.StatsReader    = (*Client)(nil)
	_ ports.IncidentWriter = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	SpreadsheetID   string
	Sheets          Sheets
	CredentialsJSON []byte
	CredentialsFile string
	Location        *time.Location
	HeaderCacheTTL  time.Duration
	ClientOptions   []goption.ClientOption
	Logger          *log.Logger
}

// New creates a Sheets client authenticated with service-account
// credentials, or with opts.ClientOptions when those are given.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	opts.Logger = logger.WithComponent(log.ComponentSheets)

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := loadCredentials(ctx, opts.Logger, opts.CredentialsJSON, opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		conf, err := googleoauth.JWTConfigFromJSON(creds, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account credentials: %w", err)
		}
		// Token requests and API calls share the pooled transport.
		base := context.WithValue(context.Background(), oauth2.HTTPClient, newHTTPClientWithPooling())
		clientOpts = []goption.ClientOption{goption.WithHTTPClient(conf.Client(base))}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(svc, opts), nil
}

func newClient(svc *gsheet.Service, opts Options) *Client {
	names := opts.Sheets
	if names.Incidents == "" {
		names.Incidents = DefaultSheets.Incidents
	}
	if names.Drivers == "" {
		names.Drivers = DefaultSheets.Drivers
	}
	if names.Types == "" {
		names.Types = DefaultSheets.Types
	}
	if names.Stats == "" {
		names.Stats = DefaultSheets.Stats
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	ttl := opts.HeaderCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithComponent(log.ComponentSheets)
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      opts.SpreadsheetID,
		sheets:             names,
		loc:                loc,
		logger:             logger,
		cacheValidDuration: ttl,
	}
}

// loadCredentials returns inline service-account JSON, or reads it from a
// file.
func loadCredentials(ctx context.Context, logger *log.Logger, inline []byte, file string) ([]byte, error) {
	switch {
	case len(inline) > 0:
		logger.InfoContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return inline, nil
	case strings.TrimSpace(file) != "":
		logger.InfoContext(ctx, "Reading service account credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) get(ctx context.Context, rng string) ([][]any, error) {
	return c.getRendered(ctx, rng, "")
}

// getRendered reads rng with the given value render option; empty means the
// API default, FORMATTED_VALUE.
func (c *Client) getRendered(ctx context.Context, rng, render string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	call := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng)
	if render != "" {
		call = call.ValueRenderOption(render)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// ListIncidents reads the whole incidents tab.
func (c *Client) ListIncidents(ctx context.Context) ([]core.Record, error) {
	values, err := c.get(ctx, c.sheets.Incidents)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		c.storeHeader(toStrings(values[0]))
	}
	return parseIncidents(values), nil
}

// ReadTaxonomy reads the driver roster and the incident type groups.
func (c *Client) ReadTaxonomy(ctx context.Context) (core.Taxonomy, error) {
	drivers, err := c.get(ctx, fmt.Sprintf("%s!A2:C", c.sheets.Drivers))
	if err != nil {
		return core.Taxonomy{}, fmt.Errorf("failed to read drivers: %w", err)
	}
	types, err := c.get(ctx, c.sheets.Types)
	if err != nil {
		return core.Taxonomy{}, fmt.Errorf("failed to read incident types: %w", err)
	}
	return core.Taxonomy{Drivers: parseDrivers(drivers), Types: parseTypes(types)}, nil
}

// ReadStats reads the long-format statistics tab. Counts are read
// unformatted so display grouping never reaches the parser.
func (c *Client) ReadStats(ctx context.Context) (core.StatsSnapshot, error) {
	values, err := c.getRendered(ctx, fmt.Sprintf("%s!A2:E", c.sheets.Stats), "UNFORMATTED_VALUE")
	if err != nil {
		return core.StatsSnapshot{}, fmt.Errorf("failed to read stats: %w", err)
	}
	snap, skipped := parseStats(values)
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped malformed stats rows", "sheet", c.sheets.Stats, log.FieldCount, skipped)
	}
	return snap, nil
}

// AppendIncident writes the report as a new row under the incidents header
// and returns the updated range.
func (c *Client) AppendIncident(ctx context.Context, r core.IncidentReport) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	header, err := c.header(ctx)
	if err != nil {
		return "", err
	}

	rng := fmt.Sprintf("%s!A1", c.sheets.Incidents)
	vr := &gsheet.ValueRange{Values: [][]any{incidentRow(header, r, c.loc)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to append to sheet %s: %w", c.sheets.Incidents, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return c.sheets.Incidents, nil
}

func (c *Client) header(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if time.Now().Before(c.cacheExpiresAt) && len(c.cachedHeader) > 0 {
		h := c.cachedHeader
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	values, err := c.get(ctx, fmt.Sprintf("%s!1:1", c.sheets.Incidents))
	if err != nil {
		return nil, fmt.Errorf("failed to read incidents header: %w", err)
	}
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, fmt.Errorf("incidents sheet %s has no header row", c.sheets.Incidents)
	}
	h := toStrings(values[0])
	c.storeHeader(h)
	return h, nil
}

func (c *Client) storeHeader(h []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedHeader = h
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
}
