package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway/gs1"
	"github.com/tricket/tricket-integrations/internal/pkg/objectstore"
	"github.com/tricket/tricket-integrations/internal/pkg/reconcile"
	"github.com/tricket/tricket-integrations/internal/pkg/secrets"
	"github.com/tricket/tricket-integrations/internal/pkg/testutil"
	"github.com/tricket/tricket-integrations/internal/pkg/tokenbroker"
)

var gs1Secrets = secrets.MapSource{
	gs1.ClientIDSecret:     "cid",
	gs1.ClientSecretSecret: "csecret",
	gs1.UserEmailSecret:    "ops@tricket.com.br",
	gs1.PasswordSecret:     "pw",
}

type recordingHandoff struct {
	mu    sync.Mutex
	calls [][]uint
}

func (r *recordingHandoff) Handoff(_ context.Context, ids []uint, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]uint(nil), ids...))
	return nil
}

// fakeGS1 serves the token endpoint and a verified-record endpoint driven by
// the records map. Unknown codes return 404.
func fakeGS1(t *testing.T, records map[string]map[string]any) (*httptest.Server, *int64) {
	t.Helper()
	var lookups int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/access-token":
			_, _ = w.Write([]byte(`{"access_token":"at-1","expires_in":3600}`))
		case "/provider/v2/verified":
			atomic.AddInt64(&lookups, 1)
			assert.Equal(t, "at-1", r.Header.Get("Access_Token"))
			rec, ok := records[r.URL.Query().Get("gtin")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"message":"not found"}`))
				return
			}
			_ = json.NewEncoder(w).Encode([]any{rec})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &lookups
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func fakeImages(t *testing.T) *httptest.Server {
	t.Helper()
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.png", "/b.png":
			_, _ = w.Write(body)
		case "/not-an-image":
			_, _ = w.Write([]byte("<html></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func productRecord(gtin string, imageURLs ...string) map[string]any {
	files := []any{map[string]any{"referencedFileTypeCode": "OUT_OF_PACKAGE_IMAGE", "uniformResourceIdentifier": "http://ignored"}}
	for _, u := range imageURLs {
		files = append(files, map[string]any{"referencedFileTypeCode": "PRODUCT_IMAGE", "uniformResourceIdentifier": u})
	}
	return map[string]any{
		"gtin": gtin,
		"dadosNacionais": map[string]any{
			"product": map[string]any{
				"tradeItemDescriptionInformationLang": []any{map[string]any{"tradeItemDescription": "Cafe Torrado " + gtin}},
				"brandNameInformationLang":            []any{map[string]any{"brandName": "Cafe Bom"}},
				"tradeItemClassification": map[string]any{
					"gpcCategoryCode": "10000115",
					"additionalTradeItemClassifications": []any{
						map[string]any{"additionalTradeItemClassificationSystemCode": "NCM", "additionalTradeItemClassificationCodeValue": "09012100"},
						map[string]any{"additionalTradeItemClassificationSystemCode": "CEST", "additionalTradeItemClassificationCodeValue": "1709600"},
					},
				},
				"tradeItemMeasurements":      map[string]any{"netContent": map[string]any{"value": 500, "measurementUnitCode": "GRM"}},
				"tradeItemWeight":            map[string]any{"grossWeight": map[string]any{"value": 0.52, "measurementUnitCode": "KGM"}},
				"referencedFileInformations": files,
			},
		},
		"dadosInternacionais": map[string]any{
			"gs1Licence":        map[string]any{"licenseeName": "Cafe Bom Ltda"},
			"countryOfSaleCode": []any{map[string]any{"alpha2": "BR"}},
		},
	}
}

type fixture struct {
	db      *gorm.DB
	store   *reconcile.Store
	objects *objectstore.MemoryStore
	o       *Orchestrator
	lookups *int64
}

func newFixture(t *testing.T, src secrets.MapSource, records map[string]map[string]any) *fixture {
	t.Helper()
	srv, lookups := fakeGS1(t, records)
	client := gs1.New(gateway.NewClient(gs1.ServiceName, srv.URL))
	db := testutil.NewDB(t)
	store := reconcile.NewStore(db)
	objects := objectstore.NewMemoryStore("https://cdn.example.com/product-images")
	o := New(secrets.NewStore(src), tokenbroker.New(client), client, store, objects,
		WithFanOut(4),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }))
	return &fixture{db: db, store: store, objects: objects, o: o, lookups: lookups}
}

func TestLookupCodesPersistsFoundAndHandsOffExactlyThoseIDs(t *testing.T) {
	f := newFixture(t, gs1Secrets, map[string]map[string]any{
		"7891000100103": productRecord("7891000100103"),
		"7891000100202": productRecord("7891000100202"),
	})
	h := &recordingHandoff{}
	f.o.SetHandoff(h)

	res, err := f.o.LookupCodes(context.Background(), []string{"7891000100103", "0000000000000", "7891000100202"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Found)
	assert.Len(t, res.ResponseIDs, 2)

	var rows []models.Gs1APIResponse
	require.NoError(t, f.db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, models.LookupStatusPending, row.Status)
		assert.Equal(t, "user-1", row.CreatedBy)
		assert.Contains(t, res.ResponseIDs, row.ID)
	}

	require.Len(t, h.calls, 1)
	assert.ElementsMatch(t, res.ResponseIDs, h.calls[0])
}

func TestLookupCodesWithoutResultsSkipsHandoff(t *testing.T) {
	f := newFixture(t, gs1Secrets, nil)
	h := &recordingHandoff{}
	f.o.SetHandoff(h)

	res, err := f.o.LookupCodes(context.Background(), []string{" 123 ", "123", ""}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed, "codes are trimmed and blanks dropped")
	assert.Zero(t, res.Found)
	assert.Empty(t, res.ResponseIDs)
	assert.Empty(t, h.calls)
}

func TestLookupCodesKeepsRepeatedCodes(t *testing.T) {
	f := newFixture(t, gs1Secrets, map[string]map[string]any{
		"7891000100103": productRecord("7891000100103"),
	})
	h := &recordingHandoff{}
	f.o.SetHandoff(h)

	res, err := f.o.LookupCodes(context.Background(), []string{"7891000100103", "7891000100103", " 7891000100103", "0000000000000"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 3, res.Found)
	assert.Len(t, res.ResponseIDs, 3)
	assert.Equal(t, int64(4), atomic.LoadInt64(f.lookups))

	var count int64
	require.NoError(t, f.db.Model(&models.Gs1APIResponse{}).Where("gtin = ?", "7891000100103").Count(&count).Error)
	assert.Equal(t, int64(3), count)

	require.Len(t, h.calls, 1)
	assert.ElementsMatch(t, res.ResponseIDs, h.calls[0])
}

func TestLookupCodesMissingSecretMakesNoCalls(t *testing.T) {
	partial := secrets.MapSource{gs1.ClientIDSecret: "cid"}
	f := newFixture(t, partial, map[string]map[string]any{"1": productRecord("1")})

	_, err := f.o.LookupCodes(context.Background(), []string{"1"}, "user-1")
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindConfiguration, appErr.Kind)
	assert.ElementsMatch(t, []string{gs1.ClientSecretSecret, gs1.UserEmailSecret, gs1.PasswordSecret}, appErr.Fields)
	assert.Zero(t, atomic.LoadInt64(f.lookups))
}

func TestLookupCodesRequiresCodes(t *testing.T) {
	f := newFixture(t, gs1Secrets, nil)

	_, err := f.o.LookupCodes(context.Background(), []string{"  "}, "user-1")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestFullEnrichmentRunsAllStages(t *testing.T) {
	images := fakeImages(t)
	gtin := "7891000100103"
	f := newFixture(t, gs1Secrets, map[string]map[string]any{
		gtin: productRecord(gtin, images.URL+"/a.png", images.URL+"/missing.png", images.URL+"/not-an-image", images.URL+"/b.png"),
	})

	res, err := f.o.LookupCodes(context.Background(), []string{gtin}, "user-1")
	require.NoError(t, err)
	require.Len(t, res.ResponseIDs, 1)

	var product models.Product
	require.NoError(t, f.db.Where("gtin = ?", gtin).First(&product).Error)
	assert.Equal(t, "Cafe Torrado "+gtin, product.Name)
	assert.Equal(t, "09012100", product.NcmCode)
	assert.Equal(t, "1709600", product.CestCode)
	assert.Equal(t, "500", product.NetContent)
	assert.Equal(t, "GRM", product.NetContentUnit)
	assert.Equal(t, "0.52", product.GrossWeight)
	assert.Equal(t, "BR", product.CountryOfOriginCode)
	assert.Equal(t, "Cafe Bom Ltda", product.Gs1CompanyName)

	var brand models.Brand
	require.NoError(t, f.db.First(&brand, product.BrandID).Error)
	assert.Equal(t, "Cafe Bom", brand.Name)

	row, err := f.store.GetLookupResponse(context.Background(), res.ResponseIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.LookupStatusProcessed, row.Status)

	var stored []models.ProductImage
	require.NoError(t, f.db.Where("product_id = ?", product.ID).Order("sort_order").Find(&stored).Error)
	require.Len(t, stored, 2, "failed images are isolated from their siblings")
	assert.Equal(t, 0, stored[0].SortOrder)
	assert.Equal(t, 3, stored[1].SortOrder)
	assert.Equal(t, product.Name, stored[0].AltText)
	wantKey := fmt.Sprintf("%d/%d-1700000000000-0.png", product.ID, product.ID)
	assert.Equal(t, "https://cdn.example.com/product-images/"+wantKey, stored[0].ImageURL)

	obj, ok := f.objects.Get(wantKey)
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
}

func TestProcessResponsesIsIdempotent(t *testing.T) {
	images := fakeImages(t)
	f := newFixture(t, gs1Secrets, nil)
	ctx := context.Background()

	raw, err := json.Marshal(productRecord("123", images.URL+"/a.png"))
	require.NoError(t, err)
	id, err := f.store.InsertLookupResponse(ctx, "123", string(raw), "user-1")
	require.NoError(t, err)

	first, err := f.o.ProcessResponses(ctx, []uint{id}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ProcessReport{Processed: 1, WithImages: 1}, first)

	second, err := f.o.ProcessResponses(ctx, []uint{id}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ProcessReport{Skipped: 1}, second)

	var count int64
	require.NoError(t, f.db.Model(&models.ProductImage{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.NoError(t, f.db.Model(&models.Product{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProcessResponsesMarksMissingProductAsError(t *testing.T) {
	f := newFixture(t, gs1Secrets, nil)
	ctx := context.Background()

	raw := `{"gtin":"999","dadosNacionais":{"message":"GTIN sem dados"},"dadosInternacionais":{"gs1Licence":{"licenseeName":"Licenciada SA"}}}`
	id, err := f.store.InsertLookupResponse(ctx, "999", raw, "user-1")
	require.NoError(t, err)
	bare, err := f.store.InsertLookupResponse(ctx, "998", `{"gtin":"998"}`, "user-1")
	require.NoError(t, err)

	report, err := f.o.ProcessResponses(ctx, []uint{id, bare}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Errored)

	row, err := f.store.GetLookupResponse(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.LookupStatusError, row.Status)
	assert.Equal(t, "GTIN sem dados", row.ErrorMessage)

	row, err = f.store.GetLookupResponse(ctx, bare)
	require.NoError(t, err)
	assert.Equal(t, missingDataMessage, row.ErrorMessage)

	var brand models.Brand
	require.NoError(t, f.db.Where("name = ?", "Licenciada SA").First(&brand).Error)

	var count int64
	require.NoError(t, f.db.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessResponsesDefaultsNames(t *testing.T) {
	f := newFixture(t, gs1Secrets, nil)
	ctx := context.Background()

	id, err := f.store.InsertLookupResponse(ctx, "555", `{"dadosNacionais":{"product":{}},"dadosInternacionais":{}}`, "user-1")
	require.NoError(t, err)

	_, err = f.o.ProcessResponses(ctx, []uint{id}, "user-1")
	require.NoError(t, err)

	var product models.Product
	require.NoError(t, f.db.Where("gtin = ?", "555").First(&product).Error)
	assert.Equal(t, defaultProductName, product.Name)
	var brand models.Brand
	require.NoError(t, f.db.First(&brand, product.BrandID).Error)
	assert.Equal(t, defaultBrandName, brand.Name)
}

func TestProcessResponsesReportsUnknownIDs(t *testing.T) {
	f := newFixture(t, gs1Secrets, nil)

	report, err := f.o.ProcessResponses(context.Background(), []uint{4242}, "user-1")
	assert.Error(t, err)
	assert.Equal(t, 1, report.Errored)
}

func TestIngestImagesUsesDefaultAltText(t *testing.T) {
	images := fakeImages(t)
	f := newFixture(t, gs1Secrets, nil)

	report := f.o.IngestImages(context.Background(), []ProductImages{
		{ProductID: 7, URLs: []string{images.URL + "/a.png"}},
		{ProductID: 8},
	})
	assert.Equal(t, ImageReport{Products: 2, Stored: 1}, report)

	var img models.ProductImage
	require.NoError(t, f.db.Where("product_id = ?", 7).First(&img).Error)
	assert.Equal(t, defaultAltText, img.AltText)
}

func TestResweepPendingRehandsStaleRows(t *testing.T) {
	f := newFixture(t, gs1Secrets, nil)
	h := &recordingHandoff{}
	f.o.SetHandoff(h)
	ctx := context.Background()

	stale, err := f.store.InsertLookupResponse(ctx, "1", `{}`, "user-1")
	require.NoError(t, err)
	_, err = f.store.InsertLookupResponse(ctx, "2", `{}`, "user-1")
	require.NoError(t, err)
	// the fixture clock is fixed in 2023
	require.NoError(t, f.db.Model(&models.Gs1APIResponse{}).Where("id = ?", stale).
		Update("created_at", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)).Error)

	n, err := f.o.ResweepPending(ctx, 15*time.Minute, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, h.calls, 1)
	assert.Equal(t, []uint{stale}, h.calls[0])
}
