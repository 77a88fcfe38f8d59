package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cloudflare "github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"

	"zonekeeper/internal/records"
)

const (
	DefaultPageSize  = 100
	DefaultRateLimit = 4.0
	maxPages         = 10000
)

// ZoneRef identifies a zone visible to a credential.
type ZoneRef struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
}

// TokenStatus is the result of a token verification.
type TokenStatus struct {
	ID        string    `json:"id" yaml:"id"`
	Status    string    `json:"status" yaml:"status"`
	NotBefore time.Time `json:"not_before,omitempty" yaml:"not_before,omitempty"`
	ExpiresOn time.Time `json:"expires_on,omitempty" yaml:"expires_on,omitempty"`
}

// API is the record store surface used by the resolver and the engine.
type API interface {
	LookupZone(ctx context.Context, name string) ([]ZoneRef, error)
	ListAll(ctx context.Context, zoneID string) ([]records.Record, error)
	Create(ctx context.Context, zoneID string, payload records.Payload) (records.Record, error)
	Update(ctx context.Context, zoneID, recordID string, payload records.Payload) (records.Record, error)
	Delete(ctx context.Context, zoneID, recordID string) error
}

// Factory opens a store session for one credential token.
type Factory func(token string) (API, error)

// Options tune how clients talk to the provider.
type Options struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
	// PageSize is the number of records requested per list page.
	PageSize int
	// RateLimit is requests per second; zero uses the SDK default.
	RateLimit float64
	// Comment is stamped on records the client writes.
	Comment string
	Logger  logr.Logger
}

// Client talks to Cloudflare through cloudflare-go. Every call is a single
// attempt: the SDK retry policy is disabled and failures are returned as
// *ProviderError.
type Client struct {
	api       *cloudflare.API
	transport *recordingTransport
	pageSize  int
	comment   string
	log       logr.Logger
}

// NewClient instantiates a Client using an API token.
func NewClient(apiToken string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiToken) == "" {
		return nil, errors.New("cloudflare token is required")
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	next := base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	transport := &recordingTransport{next: next}
	httpClient := *base
	httpClient.Transport = transport

	cfOpts := []cloudflare.Option{
		cloudflare.HTTPClient(&httpClient),
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}
	if opts.BaseURL != "" {
		cfOpts = append(cfOpts, cloudflare.BaseURL(strings.TrimSuffix(opts.BaseURL, "/")))
	}
	rate := opts.RateLimit
	if rate <= 0 {
		rate = DefaultRateLimit
	}
	cfOpts = append(cfOpts, cloudflare.UsingRateLimit(rate))

	api, err := cloudflare.NewWithAPIToken(apiToken, cfOpts...)
	if err != nil {
		return nil, fmt.Errorf("init cloudflare client: %w", err)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Client{api: api, transport: transport, pageSize: pageSize, comment: opts.Comment, log: log}, nil
}

// NewFactory returns a Factory that builds Clients with opts.
func NewFactory(opts Options) Factory {
	return func(token string) (API, error) {
		return NewClient(token, opts)
	}
}

// LookupZone returns the zones named name that the token can see.
func (c *Client) LookupZone(ctx context.Context, name string) ([]ZoneRef, error) {
	name = records.NormalizeName(name)
	c.transport.reset()
	resp, err := c.api.ListZonesContext(ctx, cloudflare.WithZoneFilters(name, "", ""))
	if err != nil {
		return nil, c.fail("lookup zone "+name, err)
	}
	var out []ZoneRef
	for _, z := range resp.Result {
		if records.SameName(z.Name, name) {
			out = append(out, ZoneRef{ID: z.ID, Name: records.NormalizeName(z.Name), Status: z.Status})
		}
	}
	c.log.V(1).Info("zone lookup", "zone", name, "matches", len(out))
	return out, nil
}

// ListZones returns every zone the token can see.
func (c *Client) ListZones(ctx context.Context) ([]ZoneRef, error) {
	c.transport.reset()
	zones, err := c.api.ListZones(ctx)
	if err != nil {
		return nil, c.fail("list zones", err)
	}
	out := make([]ZoneRef, 0, len(zones))
	for _, z := range zones {
		out = append(out, ZoneRef{ID: z.ID, Name: records.NormalizeName(z.Name), Status: z.Status})
	}
	return out, nil
}

// ListAll fetches the complete record inventory of a zone. Pages are
// requested until the provider reports the last page; without a page count
// a short or empty page ends the listing. Any failed page fails the whole call.
func (c *Client) ListAll(ctx context.Context, zoneID string) ([]records.Record, error) {
	if strings.TrimSpace(zoneID) == "" {
		return nil, errors.New("zone identifier is required")
	}
	rc := cloudflare.ZoneIdentifier(zoneID)
	params := cloudflare.ListDNSRecordsParams{}
	params.ResultInfo.PerPage = c.pageSize

	var all []records.Record
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("list dns records: gave up after %d pages", maxPages)
		}
		params.ResultInfo.Page = page
		c.transport.reset()
		batch, info, err := c.api.ListDNSRecords(ctx, rc, params)
		if err != nil {
			return nil, c.fail(fmt.Sprintf("list dns records (page %d)", page), err)
		}
		for _, rec := range batch {
			all = append(all, fromAPIRecord(rec))
		}
		c.log.V(1).Info("fetched record page", "zone", zoneID, "page", page, "records", len(batch))
		if info != nil && info.TotalPages > 0 {
			// The provider may cap the page size, so a short page is only
			// the last one when it says so.
			if info.Page >= info.TotalPages {
				break
			}
			continue
		}
		if len(batch) == 0 || len(batch) < c.pageSize {
			break
		}
	}
	return all, nil
}

// Create writes a new record.
func (c *Client) Create(ctx context.Context, zoneID string, payload records.Payload) (records.Record, error) {
	if payload == nil {
		return records.Record{}, errors.New("payload is required")
	}
	c.transport.reset()
	rec, err := c.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), toCreateParams(payload.Fields(), c.comment))
	if err != nil {
		return records.Record{}, c.fail(fmt.Sprintf("create %s %s", payload.Type(), payload.Name()), err)
	}
	c.log.Info("record created", "type", payload.Type(), "name", payload.Name(), "id", rec.ID)
	return fromAPIRecord(rec), nil
}

// Update rewrites an existing record in place.
func (c *Client) Update(ctx context.Context, zoneID, recordID string, payload records.Payload) (records.Record, error) {
	if payload == nil {
		return records.Record{}, errors.New("payload is required")
	}
	if recordID == "" {
		return records.Record{}, fmt.Errorf("cannot update record %s without identifier", payload.Name())
	}
	c.transport.reset()
	rec, err := c.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), toUpdateParams(recordID, payload.Fields(), c.comment))
	if err != nil {
		return records.Record{}, c.fail(fmt.Sprintf("update %s %s", payload.Type(), payload.Name()), err)
	}
	c.log.Info("record updated", "type", payload.Type(), "name", payload.Name(), "id", recordID)
	if rec.ID == "" {
		rec.ID = recordID
	}
	return fromAPIRecord(rec), nil
}

// Delete removes a record by identifier.
func (c *Client) Delete(ctx context.Context, zoneID, recordID string) error {
	if recordID == "" {
		return errors.New("cannot delete record without identifier")
	}
	c.transport.reset()
	if err := c.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), recordID); err != nil {
		return c.fail("delete record "+recordID, err)
	}
	c.log.Info("record deleted", "id", recordID)
	return nil
}

// VerifyToken checks that the token is valid and returns its metadata.
func (c *Client) VerifyToken(ctx context.Context) (TokenStatus, error) {
	c.transport.reset()
	body, err := c.api.VerifyAPIToken(ctx)
	if err != nil {
		return TokenStatus{}, c.fail("verify token", err)
	}
	return TokenStatus{ID: body.ID, Status: body.Status, NotBefore: body.NotBefore, ExpiresOn: body.ExpiresOn}, nil
}

func (c *Client) fail(op string, err error) error {
	return providerError(op, err, c.transport.lastFailure())
}
