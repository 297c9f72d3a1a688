package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open2log/open2log-go/internal/model"
)

func TestBearerTokenAndJSONHeaders(t *testing.T) {
	var gotAuth, gotContentType, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		_ = json.NewEncoder(w).Encode(model.User{ID: "u1", Email: "a@b.c"})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetToken("secret-token")

	user, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "application/json", gotAccept)
}

func TestNoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(AuthResponse{Token: "t"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestServerErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"email already registered"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Register(context.Background(), "a@b.c", "pw")
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "email already registered", serverErr.Message)
}

func TestHTTPErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).GetProduct(context.Background(), "missing")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).SearchProducts(context.Background(), "milk", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPostIsNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL, 0).SubmitPriceRecord(context.Background(), model.PriceRecord{
		PriceCents: 100,
		ShopGersID: "g1",
		ScannedAt:  time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNearbyShopsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shops/nearby", r.URL.Path)
		assert.Equal(t, "48.8566", r.URL.Query().Get("lat"))
		assert.Equal(t, "2.3522", r.URL.Query().Get("lon"))
		assert.Equal(t, "5", r.URL.Query().Get("radius"))
		_, _ = w.Write([]byte(`[{"id":"s1","name":"Corner Shop","latitude":48.85,"longitude":2.35}]`))
	}))
	defer srv.Close()

	shops, err := New(srv.URL, 0).NearbyShops(context.Background(), 48.8566, 2.3522, 5)
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "Corner Shop", shops[0].Name)
}

func TestSubmitPriceRecordOmitsAbsentKeys(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()

	priceURL := "https://cdn.example.com/p.avif"
	err := New(srv.URL, 0).SubmitPriceRecord(context.Background(), model.PriceRecord{
		PriceCents:    249,
		ShopGersID:    "gers-42",
		ScannedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		PriceImageURL: &priceURL,
	})
	require.NoError(t, err)

	assert.Equal(t, priceURL, body["price_image_url"])
	assert.Equal(t, "gers-42", body["shop_gers_id"])
	assert.NotContains(t, body, "ean")
	assert.NotContains(t, body, "product_name")
	assert.NotContains(t, body, "barcode_image_url")
	assert.NotContains(t, body, "product_image_url")
	assert.Equal(t, "2026-03-01T10:00:00Z", body["scanned_at"])
}

func TestUploadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices/upload_url", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "f.jpg", req["filename"])
		assert.Equal(t, "image/jpeg", req["content_type"])
		assert.Equal(t, "price", req["upload_type"])
		_, _ = w.Write([]byte(`{"upload_url":"https://r2.example.com/put","public_url":"https://cdn.example.com/f.jpg","expires_at":1750000000}`))
	}))
	defer srv.Close()

	dest, err := New(srv.URL, 0).UploadURL(context.Background(), "f.jpg", "image/jpeg", "price")
	require.NoError(t, err)
	assert.Equal(t, "https://r2.example.com/put", dest.UploadURL)
	assert.Equal(t, "https://cdn.example.com/f.jpg", dest.PublicURL)
	assert.EqualValues(t, 1750000000, dest.ExpiresAt)
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL, 0).CurrentUser(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}
