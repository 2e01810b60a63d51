package passes

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/big"
	mrand "math/rand"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpass/inkpass/artwork"
	"github.com/inkpass/inkpass/bundle"
	"github.com/inkpass/inkpass/bundle/signatures"
	"github.com/inkpass/inkpass/credentials"
	"github.com/inkpass/inkpass/observability"
	"github.com/inkpass/inkpass/pending"
)

func testCredentials(t *testing.T) *credentials.Bundle {
	t.Helper()

	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
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
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Pass Type ID: pass.test.inkpass"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, &leafKey.PublicKey, caKey)
	require.NoError(t, err)
	leafCert, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	return &credentials.Bundle{
		Certificate:  leafCert,
		PrivateKey:   leafKey,
		Intermediate: caCert,
	}
}

func testTemplate(t *testing.T) *Template {
	t.Helper()

	descriptor := Descriptor{}
	for key, value := range map[string]string{
		"formatVersion":      `1`,
		"passTypeIdentifier": `"pass.test.inkpass"`,
		"teamIdentifier":     `"TEAMID1234"`,
		"organizationName":   `"Inkpass Test"`,
		"description":        `"Test pass"`,
		"generic":            `{"primaryFields":[{"key":"note","label":"NOTE","value":""}]}`,
	} {
		descriptor[key] = json.RawMessage(value)
	}

	tmpl, err := NewTemplate(descriptor, map[string][]byte{
		"logo.png": []byte("not a real png, carried verbatim"),
	})
	require.NoError(t, err)
	return tmpl
}

func testGenerator(t *testing.T, opts ...GeneratorOption) *Generator {
	t.Helper()
	return NewGenerator(testCredentials(t), testTemplate(t), opts...)
}

// unzipAll returns every entry of the archive keyed by name.
func unzipAll(t *testing.T, archive []byte) map[string][]byte {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	entries := make(map[string][]byte, len(reader.File))
	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = data
	}
	return entries
}

func drawingPNG(t *testing.T, c color.RGBA, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGenerate_ManifestCoversEveryFile(t *testing.T) {
	g := testGenerator(t)

	archive, err := g.Generate(context.Background(), Request{Color: "green"})
	require.NoError(t, err)

	entries := unzipAll(t, archive)
	manifestBytes, ok := entries[bundle.ManifestName]
	require.True(t, ok, "archive missing manifest")
	_, ok = entries[bundle.SignatureName]
	require.True(t, ok, "archive missing signature")

	var manifest map[string]string
	require.NoError(t, json.Unmarshal(manifestBytes, &manifest))

	// Every archive entry except the manifest and signature is digested,
	// and every digest matches its payload.
	assert.Len(t, manifest, len(entries)-2)
	for name, data := range entries {
		if name == bundle.ManifestName || name == bundle.SignatureName {
			continue
		}
		digest := sha1.Sum(data)
		assert.Equal(t, hex.EncodeToString(digest[:]), manifest[name], "digest mismatch for %s", name)
	}
}

func TestGenerate_SignatureVerifiesOverManifest(t *testing.T) {
	g := testGenerator(t)

	archive, err := g.Generate(context.Background(), Request{Color: "red"})
	require.NoError(t, err)

	entries := unzipAll(t, archive)
	require.NoError(t, signatures.Verify(entries[bundle.ManifestName], entries[bundle.SignatureName]))

	parsed, err := signatures.Parse(entries[bundle.SignatureName])
	require.NoError(t, err)
	assert.Len(t, parsed.Certificates, 2, "signature should embed leaf and intermediate")
}

func TestGenerate_BlueRequest(t *testing.T) {
	g := testGenerator(t, WithSerialSource(func() string { return "serial-0001" }))

	archive, err := g.Generate(context.Background(), Request{
		Text:  "hello from the lake",
		Color: "blue",
	})
	require.NoError(t, err)

	entries := unzipAll(t, archive)
	for _, name := range []string{
		"pass.json", "manifest.json", "signature", "logo.png",
		"background.png", "background@2x.png", "icon.png", "icon@2x.png",
	} {
		assert.Contains(t, entries, name)
	}

	var descriptor struct {
		SerialNumber    string `json:"serialNumber"`
		BackgroundColor string `json:"backgroundColor"`
		ForegroundColor string `json:"foregroundColor"`
		Generic         struct {
			PrimaryFields []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"primaryFields"`
		} `json:"generic"`
	}
	require.NoError(t, json.Unmarshal(entries["pass.json"], &descriptor))

	pal, _ := artwork.PaletteFor(artwork.ColorBlue)
	assert.Equal(t, "serial-0001", descriptor.SerialNumber)
	assert.Equal(t, pal.Background, descriptor.BackgroundColor)
	assert.Equal(t, pal.Foreground, descriptor.ForegroundColor)
	require.NotEmpty(t, descriptor.Generic.PrimaryFields)
	assert.Equal(t, "hello from the lake", descriptor.Generic.PrimaryFields[0].Value)

	assert.Equal(t, []byte("not a real png, carried verbatim"), entries["logo.png"])
}

func TestGenerate_InvalidRequest(t *testing.T) {
	g := testGenerator(t, WithMaxDrawingBytes(64))

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown color", Request{Color: "mauve"}},
		{"empty color", Request{}},
		{"text too long", Request{Color: "blue", Text: string(bytes.Repeat([]byte("a"), MaxTextLength+1))}},
		{"drawing too large", Request{Color: "blue", Drawing: bytes.Repeat([]byte{0}, 65)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestGenerate_UndecodableDrawingDegrades(t *testing.T) {
	g := testGenerator(t)

	garbage := bytes.Repeat([]byte{0xAB, 0xCD}, 200)
	archive, err := g.Generate(context.Background(), Request{Color: "slate", Drawing: garbage})
	require.NoError(t, err, "undecodable drawing must not fail the request")

	entries := unzipAll(t, archive)
	assert.Contains(t, entries, "background.png")
}

func TestGenerate_DrawingChangesBackground(t *testing.T) {
	serial := func() string { return "fixed" }
	seeded := func() *artwork.Renderer {
		return artwork.NewRenderer(artwork.WithRandSource(mrand.NewSource(7)))
	}

	plain := testGenerator(t, WithSerialSource(serial), WithRenderer(seeded()))
	drawn := testGenerator(t, WithSerialSource(serial), WithRenderer(seeded()))

	a, err := plain.Generate(context.Background(), Request{Color: "purple"})
	require.NoError(t, err)
	b, err := drawn.Generate(context.Background(), Request{
		Color:   "purple",
		Drawing: drawingPNG(t, color.RGBA{R: 255, A: 255}, 120, 90),
	})
	require.NoError(t, err)

	assert.NotEqual(t, unzipAll(t, a)["background.png"], unzipAll(t, b)["background.png"])
}

func TestGenerate_DistinctSerialsSameShape(t *testing.T) {
	g := testGenerator(t)

	first, err := g.Generate(context.Background(), Request{Color: "blue"})
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), Request{Color: "blue"})
	require.NoError(t, err)

	a, b := unzipAll(t, first), unzipAll(t, second)
	assert.Len(t, b, len(a))
	for name := range a {
		assert.Contains(t, b, name)
	}

	var descA, descB struct {
		SerialNumber string `json:"serialNumber"`
	}
	require.NoError(t, json.Unmarshal(a["pass.json"], &descA))
	require.NoError(t, json.Unmarshal(b["pass.json"], &descB))
	assert.NotEmpty(t, descA.SerialNumber)
	assert.NotEqual(t, descA.SerialNumber, descB.SerialNumber)
}

func TestPrepareRetrieve_MatchesDirectGenerate(t *testing.T) {
	serial := func() string { return "fixed-serial" }
	req := Request{Text: "parked", Color: "green"}

	// Both generators get the same serial and an identically seeded
	// renderer so the speckle texture, and therefore the manifest, match
	// byte for byte.
	newGen := func() *Generator {
		return testGenerator(t,
			WithSerialSource(serial),
			WithRenderer(artwork.NewRenderer(artwork.WithRandSource(mrand.NewSource(11)))))
	}
	direct := newGen()
	deferred := newGen()

	want, err := direct.Generate(context.Background(), req)
	require.NoError(t, err)

	token, err := deferred.Prepare(req)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := deferred.Retrieve(context.Background(), token)
	require.NoError(t, err)

	// The signing time differs between the two runs, so compare the
	// signed payload rather than whole archives.
	wantEntries, gotEntries := unzipAll(t, want), unzipAll(t, got)
	assert.Equal(t, wantEntries["pass.json"], gotEntries["pass.json"])
	assert.Equal(t, wantEntries[bundle.ManifestName], gotEntries[bundle.ManifestName])
	require.NoError(t, signatures.Verify(gotEntries[bundle.ManifestName], gotEntries[bundle.SignatureName]))
}

func TestRetrieve_TokenIsSingleUse(t *testing.T) {
	g := testGenerator(t)

	token, err := g.Prepare(Request{Color: "red"})
	require.NoError(t, err)

	_, err = g.Retrieve(context.Background(), token)
	require.NoError(t, err)

	_, err = g.Retrieve(context.Background(), token)
	assert.ErrorIs(t, err, pending.ErrNotFound)
}

func TestRetrieve_ExpiredToken(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	store := pending.NewStore[Request](time.Minute, pending.WithClock[Request](clock))
	g := testGenerator(t, WithPendingStore(store))

	token, err := g.Prepare(Request{Color: "blue"})
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	_, err = g.Retrieve(context.Background(), token)
	assert.ErrorIs(t, err, pending.ErrExpired)
}

func TestPendingTokensGauge_TracksStore(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	store := pending.NewStore[Request](time.Minute, pending.WithClock[Request](clock))
	g := testGenerator(t, WithPendingStore(store))

	readGauge := func() float64 {
		t.Helper()
		var m dto.Metric
		require.NoError(t, observability.PendingTokens.Write(&m))
		return m.GetGauge().GetValue()
	}

	_, err := g.Prepare(Request{Color: "blue"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), readGauge())

	// Past the TTL the entry drops out of the gauge with no Prepare or
	// Retrieve call in between.
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	assert.Equal(t, float64(0), readGauge())
}

func TestPrepare_RejectsInvalidRequest(t *testing.T) {
	g := testGenerator(t)

	_, err := g.Prepare(Request{Color: "chartreuse"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 0, gStoreLen(g))
}

func gStoreLen(g *Generator) int { return g.store.Len() }

func TestGenerate_ConcurrentRequests(t *testing.T) {
	g := testGenerator(t)

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := g.Generate(context.Background(), Request{Color: "slate"})
			errs <- err
		}()
	}
	for i := 0; i < workers; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestValidate_AcceptsEveryPaletteKey(t *testing.T) {
	for _, key := range artwork.Keys() {
		assert.NoError(t, Request{Color: string(key)}.Validate(0), "color %s", key)
	}
}

func TestValidate_DefaultDrawingBound(t *testing.T) {
	req := Request{Color: "blue", Drawing: make([]byte, DefaultMaxDrawingBytes+1)}
	assert.ErrorIs(t, req.Validate(0), ErrInvalidRequest)
}
