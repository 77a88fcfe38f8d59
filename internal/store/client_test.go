package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	cloudflare "github.com/cloudflare/cloudflare-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonekeeper/internal/records"
	"zonekeeper/internal/store/storetest"
)

func newTestClient(t *testing.T, srv *storetest.Server, token string, pageSize int) *Client {
	t.Helper()
	client, err := NewClient(token, Options{BaseURL: srv.URL, PageSize: pageSize, RateLimit: 1000})
	require.NoError(t, err)
	return client
}

func seedA(srv *storetest.Server, zoneID string, n int) {
	for i := 0; i < n; i++ {
		srv.Seed(zoneID, cloudflare.DNSRecord{Type: "A", Name: "example.org", Content: fmt.Sprintf("10.0.0.%d", i+1), TTL: 1, Proxied: records.Bool(false)})
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("  ", Options{})
	assert.Error(t, err)
}

func TestListAllPaginates(t *testing.T) {
	tests := []struct {
		name      string
		records   int
		pageSize  int
		omitTotal bool
		capPage   int
		wantGets  int
	}{
		{name: "total pages reported", records: 5, pageSize: 2, wantGets: 3},
		{name: "short page ends listing", records: 5, pageSize: 2, omitTotal: true, wantGets: 3},
		{name: "exact multiple probes empty page", records: 4, pageSize: 2, omitTotal: true, wantGets: 3},
		{name: "capped page size follows total pages", records: 6, pageSize: 3, capPage: 2, wantGets: 3},
		{name: "single page", records: 3, pageSize: 100, wantGets: 1},
		{name: "empty zone", records: 0, pageSize: 100, wantGets: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := storetest.New(t)
			zoneID := srv.AddZone("example.org", "tok")
			seedA(srv, zoneID, tt.records)
			if tt.omitTotal {
				srv.OmitTotalPages()
			}
			if tt.capPage > 0 {
				srv.CapPageSize(tt.capPage)
			}
			client := newTestClient(t, srv, "tok", tt.pageSize)

			recs, err := client.ListAll(context.Background(), zoneID)
			require.NoError(t, err)
			assert.Len(t, recs, tt.records)
			if tt.records > 0 {
				assert.Equal(t, "10.0.0.1", recs[0].Content)
				assert.Equal(t, records.TypeA, recs[0].Type)
			}
			assert.Len(t, srv.Requests(), tt.wantGets)
		})
	}
}

func TestListAllFailsOnAnyPage(t *testing.T) {
	srv := storetest.New(t)
	zoneID := srv.AddZone("example.org", "tok")
	seedA(srv, zoneID, 5)
	srv.FailListPage(2, http.StatusInternalServerError, "upstream exploded")
	client := newTestClient(t, srv, "tok", 2)

	recs, err := client.ListAll(context.Background(), zoneID)
	require.Error(t, err)
	assert.Nil(t, recs, "a partial inventory must never be returned")

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusInternalServerError, perr.StatusCode)
	assert.Equal(t, []string{"upstream exploded"}, perr.Messages)
	assert.Len(t, srv.Requests(), 2, "failed calls must not be retried")
}

func TestCreateUpdateDelete(t *testing.T) {
	srv := storetest.New(t)
	zoneID := srv.AddZone("example.org", "tok")
	client := newTestClient(t, srv, "tok", 100)
	ctx := context.Background()

	payload, err := records.NewPayload(records.Fields{Type: records.TypeTXT, Name: "_dmarc.example.org", Content: "v=DMARC1; p=none"})
	require.NoError(t, err)
	created, err := client.Create(ctx, zoneID, payload)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, `"v=DMARC1; p=none"`, created.Content)

	payload, err = records.NewPayload(records.Fields{Type: records.TypeTXT, Name: "_dmarc.example.org", Content: "v=DMARC1; p=reject"})
	require.NoError(t, err)
	updated, err := client.Update(ctx, zoneID, created.ID, payload)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, `"v=DMARC1; p=reject"`, srv.Records(zoneID)[0].Content)

	require.NoError(t, client.Delete(ctx, zoneID, created.ID))
	assert.Empty(t, srv.Records(zoneID))

	err = client.Delete(ctx, zoneID, created.ID)
	assert.True(t, IsNotFound(err))
}

func TestWriteErrorsCarryProviderMessages(t *testing.T) {
	srv := storetest.New(t)
	zoneID := srv.AddZone("example.org", "tok")
	srv.FailWrites("www.example.org", http.StatusBadRequest, "An A, AAAA, or CNAME record with that host already exists.")
	client := newTestClient(t, srv, "tok", 100)

	payload, err := records.NewPayload(records.Fields{Type: records.TypeCNAME, Name: "www.example.org", Content: "example.org"})
	require.NoError(t, err)
	_, err = client.Create(context.Background(), zoneID, payload)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Equal(t, []string{"An A, AAAA, or CNAME record with that host already exists."}, perr.Messages)
	assert.Contains(t, perr.Error(), "HTTP 400")
	assert.Len(t, srv.Writes(), 1)
}

func TestSRVRoundTrip(t *testing.T) {
	srv := storetest.New(t)
	zoneID := srv.AddZone("example.org", "tok")
	client := newTestClient(t, srv, "tok", 100)
	ctx := context.Background()

	payload, err := records.NewPayload(records.Fields{
		Type: records.TypeSRV,
		Name: "_sip._tls.example.org",
		SRV:  &records.SRVData{Priority: 100, Weight: 1, Port: 443, Target: "sipdir.online.lync.com"},
	})
	require.NoError(t, err)
	_, err = client.Create(ctx, zoneID, payload)
	require.NoError(t, err)

	recs, err := client.ListAll(ctx, zoneID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].SRV)
	assert.Equal(t, records.SRVData{Priority: 100, Weight: 1, Port: 443, Target: "sipdir.online.lync.com"}, *recs[0].SRV)
}

func TestParseSRVFromContent(t *testing.T) {
	data := parseSRV(cloudflare.DNSRecord{Type: "SRV", Content: "1 5061 sipfed.online.lync.com.", Priority: records.Uint16(100)})
	require.NotNil(t, data)
	assert.Equal(t, records.SRVData{Priority: 100, Weight: 1, Port: 5061, Target: "sipfed.online.lync.com"}, *data)

	assert.Nil(t, parseSRV(cloudflare.DNSRecord{Type: "SRV", Content: "garbage"}))
}

func TestLookupZoneAndVerify(t *testing.T) {
	srv := storetest.New(t)
	srv.AddZone("example.org", "tok")
	srv.AddZone("other.net", "someone-else")
	client := newTestClient(t, srv, "tok", 100)
	ctx := context.Background()

	zones, err := client.LookupZone(ctx, "Example.org.")
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "example.org", zones[0].Name)

	zones, err = client.LookupZone(ctx, "other.net")
	require.NoError(t, err)
	assert.Empty(t, zones)

	all, err := client.ListZones(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	status, err := client.VerifyToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "active", status.Status)
}

func TestRevokedTokenIsAuthError(t *testing.T) {
	srv := storetest.New(t)
	srv.AddZone("example.org", "tok")
	srv.Revoke("tok")
	client := newTestClient(t, srv, "tok", 100)

	_, err := client.LookupZone(context.Background(), "example.org")
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.Contains(t, err.Error(), "Invalid access token")
}

func TestStatusFromSDK(t *testing.T) {
	unauthorized := cloudflare.NewAuthorizationError(&cloudflare.Error{StatusCode: http.StatusUnauthorized})
	forbidden := cloudflare.NewAuthenticationError(&cloudflare.Error{StatusCode: http.StatusForbidden})
	notFound := cloudflare.NewNotFoundError(&cloudflare.Error{StatusCode: http.StatusNotFound})

	assert.Equal(t, http.StatusUnauthorized, statusFromSDK(&unauthorized))
	assert.Equal(t, http.StatusForbidden, statusFromSDK(&forbidden))
	assert.Equal(t, http.StatusNotFound, statusFromSDK(&notFound))
}
