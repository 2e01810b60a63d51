package server

import (
	"archive/zip"
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpass/inkpass/bundle"
	"github.com/inkpass/inkpass/config"
	"github.com/inkpass/inkpass/credentials"
	"github.com/inkpass/inkpass/observability"
	"github.com/inkpass/inkpass/passes"
	"github.com/inkpass/inkpass/pending"
)

func testCredentials(t *testing.T) *credentials.Bundle {
	t.Helper()

	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(10),
		Subject:               pkix.Name{CommonName: "Test Pass Authority"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(11),
		Subject:      pkix.Name{CommonName: "Pass Type ID: pass.test.inkpass"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, &leafKey.PublicKey, caKey)
	require.NoError(t, err)
	leafCert, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	return &credentials.Bundle{Certificate: leafCert, PrivateKey: leafKey, Intermediate: caCert}
}

func testGenerator(t *testing.T, opts ...passes.GeneratorOption) *passes.Generator {
	t.Helper()

	descriptor := passes.Descriptor{
		"formatVersion":      json.RawMessage(`1`),
		"passTypeIdentifier": json.RawMessage(`"pass.test.inkpass"`),
		"teamIdentifier":     json.RawMessage(`"TEAMID1234"`),
		"description":        json.RawMessage(`"Test pass"`),
		"generic":            json.RawMessage(`{"primaryFields":[{"key":"note","label":"NOTE","value":""}]}`),
	}
	tmpl, err := passes.NewTemplate(descriptor, nil)
	require.NoError(t, err)

	return passes.NewGenerator(testCredentials(t), tmpl, opts...)
}

func testServer(t *testing.T, opts ...passes.GeneratorOption) *Server {
	t.Helper()

	cfg := &config.ServerEnvironment{
		Environment:     "test",
		Host:            "127.0.0.1",
		Port:            0,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: time.Second,
		RenderWorkers:   2,
	}
	return NewServer(testGenerator(t, opts...), cfg, observability.NewNullLogger())
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleGenerate(t *testing.T) {
	srv := testServer(t)

	rec := postJSON(t, srv.Handler(), "/v1/passes", passes.Request{Text: "hi", Color: "blue"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bundle.MediaType, rec.Header().Get("Content-Type"))

	archive := rec.Body.Bytes()
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	names := make(map[string]bool, len(reader.File))
	for _, f := range reader.File {
		names[f.Name] = true
	}
	for _, want := range []string{bundle.DescriptorName, bundle.ManifestName, bundle.SignatureName} {
		assert.True(t, names[want], "archive missing %s", want)
	}
}

func TestHandleGenerate_BadColor(t *testing.T) {
	srv := testServer(t)

	rec := postJSON(t, srv.Handler(), "/v1/passes", passes.Request{Color: "mauve"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "mauve")
}

func TestHandleGenerate_MalformedBody(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/passes", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrepareThenRetrieve(t *testing.T) {
	srv := testServer(t)

	rec := postJSON(t, srv.Handler(), "/v1/passes/pending", passes.Request{Text: "later", Color: "green"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var prepared struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prepared))
	require.NotEmpty(t, prepared.Token)

	fetch := get(t, srv.Handler(), "/v1/passes/pending/"+prepared.Token)
	require.Equal(t, http.StatusOK, fetch.Code)
	assert.Equal(t, bundle.MediaType, fetch.Header().Get("Content-Type"))

	// The token is single use.
	again := get(t, srv.Handler(), "/v1/passes/pending/"+prepared.Token)
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestRetrieve_UnknownToken(t *testing.T) {
	srv := testServer(t)

	rec := get(t, srv.Handler(), "/v1/passes/pending/no-such-token")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetrieve_ExpiredToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := pending.NewStore[passes.Request](time.Minute, pending.WithClock[passes.Request](func() time.Time {
		defer func() { now = now.Add(2 * time.Minute) }()
		return now
	}))
	srv := testServer(t, passes.WithPendingStore(store))

	rec := postJSON(t, srv.Handler(), "/v1/passes/pending", passes.Request{Color: "red"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var prepared struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prepared))

	fetch := get(t, srv.Handler(), "/v1/passes/pending/"+prepared.Token)
	assert.Equal(t, http.StatusGone, fetch.Code)
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)

	rec := get(t, srv.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)

	// Generate once so pass metrics exist.
	postJSON(t, srv.Handler(), "/v1/passes", passes.Request{Color: "slate"})

	rec := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inkpass_passes_generated_total")
}
