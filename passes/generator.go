package passes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/inkpass/inkpass/artwork"
	"github.com/inkpass/inkpass/bundle"
	"github.com/inkpass/inkpass/bundle/signatures"
	"github.com/inkpass/inkpass/credentials"
	"github.com/inkpass/inkpass/observability"
	"github.com/inkpass/inkpass/pending"
)

// Generator runs the full pipeline for one deployment: one credential
// bundle, one template, one renderer. Safe for concurrent use.
type Generator struct {
	creds    *credentials.Bundle
	template *Template
	renderer *artwork.Renderer
	store    *pending.Store[Request]
	logger   observability.Logger

	kinds           []artwork.Kind
	serial          func() string
	maxDrawingBytes int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets the generator's logger.
func WithLogger(logger observability.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = logger }
}

// WithRenderer replaces the default artwork renderer.
func WithRenderer(r *artwork.Renderer) GeneratorOption {
	return func(g *Generator) { g.renderer = r }
}

// WithPendingStore replaces the default pending request store.
func WithPendingStore(s *pending.Store[Request]) GeneratorOption {
	return func(g *Generator) { g.store = s }
}

// WithAssetKinds selects which artwork kinds each pass carries.
func WithAssetKinds(kinds ...artwork.Kind) GeneratorOption {
	return func(g *Generator) { g.kinds = append([]artwork.Kind(nil), kinds...) }
}

// WithSerialSource replaces the serial number source, for tests.
func WithSerialSource(fn func() string) GeneratorOption {
	return func(g *Generator) { g.serial = fn }
}

// WithMaxDrawingBytes bounds the accepted drawing payload size.
func WithMaxDrawingBytes(n int) GeneratorOption {
	return func(g *Generator) { g.maxDrawingBytes = n }
}

// NewGenerator creates a generator. By default passes carry background
// and icon artwork, serials come from uuid, and pending tokens live for
// pending.DefaultTTL.
func NewGenerator(creds *credentials.Bundle, tmpl *Template, opts ...GeneratorOption) *Generator {
	g := &Generator{
		creds:           creds,
		template:        tmpl,
		renderer:        artwork.NewRenderer(),
		logger:          observability.NewNullLogger(),
		kinds:           []artwork.Kind{artwork.KindBackground, artwork.KindIcon},
		serial:          uuid.NewString,
		maxDrawingBytes: DefaultMaxDrawingBytes,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = pending.NewStore[Request](pending.DefaultTTL)
	}
	observability.SetPendingTokensSource(g.store.Len)
	return g
}

// Generate produces a complete signed pass bundle for the request.
func (g *Generator) Generate(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "pass.generate")
	defer span.End()

	if err := req.Validate(g.maxDrawingBytes); err != nil {
		observability.PassesGeneratedTotal.WithLabelValues("validation_error").Inc()
		return nil, err
	}

	pal := req.Palette()
	serial := g.serial()
	span.SetAttributes(
		attribute.String("pass.color", req.Color),
		attribute.String("pass.serial", serial),
	)
	log := g.logger.ForContext("Serial", serial)

	descriptor, err := g.template.Merge(req, pal, serial)
	if err != nil {
		return g.fail(log, "merge descriptor", err)
	}
	descriptorBytes, err := descriptor.Marshal()
	if err != nil {
		return g.fail(log, "encode descriptor", err)
	}

	assets, err := g.renderAssets(ctx, log, req, pal)
	if err != nil {
		return g.fail(log, "render artwork", err)
	}

	files := bundle.FileSet{}
	if err := files.AddAll(g.template.Files()); err != nil {
		return g.fail(log, "collect template files", err)
	}
	if err := files.Add(bundle.DescriptorName, descriptorBytes); err != nil {
		return g.fail(log, "add descriptor", err)
	}
	if err := files.AddAll(assets); err != nil {
		return g.fail(log, "add artwork", err)
	}

	manifestBytes, err := bundle.BuildManifest(files).Marshal()
	if err != nil {
		return g.fail(log, "build manifest", err)
	}

	_, signSpan := observability.StartSpan(ctx, "pass.sign")
	signature, err := signatures.SignDetached(manifestBytes, signatures.SigningOptions{
		Certificate:  g.creds.Certificate,
		PrivateKey:   g.creds.PrivateKey,
		Intermediate: g.creds.Intermediate,
	})
	signSpan.End()
	if err != nil {
		return g.fail(log, "sign manifest", err)
	}

	archive, err := bundle.Package(files, manifestBytes, signature)
	if err != nil {
		return g.fail(log, "package bundle", err)
	}

	observability.PassesGeneratedTotal.WithLabelValues("success").Inc()
	observability.PassGenerateDuration.Observe(time.Since(start).Seconds())
	log.Info("Generated pass with {Files} files in {Elapsed}", len(files), time.Since(start))
	return archive, nil
}

// renderAssets decodes the optional drawing and renders the configured
// artwork kinds. An undecodable drawing degrades to gradient-only
// artwork instead of failing the request.
func (g *Generator) renderAssets(ctx context.Context, log observability.Logger, req Request, pal artwork.Palette) (map[string][]byte, error) {
	_, span := observability.StartSpan(ctx, "pass.render")
	defer span.End()

	drawing, err := g.renderer.DecodeDrawing(req.Drawing)
	switch {
	case errors.Is(err, artwork.ErrUndecodableDrawing):
		log.Warn("Dropping undecodable drawing of {Bytes} bytes", len(req.Drawing))
		observability.DrawingOverlaysTotal.WithLabelValues("undecodable").Inc()
		drawing = nil
	case err != nil:
		return nil, err
	case drawing != nil:
		observability.DrawingOverlaysTotal.WithLabelValues("composited").Inc()
	default:
		observability.DrawingOverlaysTotal.WithLabelValues("absent").Inc()
	}

	return g.renderer.RenderSet(g.kinds, pal, drawing)
}

func (g *Generator) fail(log observability.Logger, stage string, err error) ([]byte, error) {
	observability.PassesGeneratedTotal.WithLabelValues("failure").Inc()
	log.Error("Pass generation failed at {Stage}: {Error}", stage, err)
	return nil, fmt.Errorf("%s: %w", stage, err)
}

// Prepare validates and parks a request, returning a one-time token.
// The pass itself is generated on Retrieve so the token stays cheap.
func (g *Generator) Prepare(req Request) (string, error) {
	if err := req.Validate(g.maxDrawingBytes); err != nil {
		return "", err
	}
	token, err := g.store.Put(req)
	if err != nil {
		return "", fmt.Errorf("store pending request: %w", err)
	}
	return token, nil
}

// Retrieve consumes a pending token and generates its pass. A token is
// consumed exactly once; expired and unknown tokens fail with the
// pending package sentinels.
func (g *Generator) Retrieve(ctx context.Context, token string) ([]byte, error) {
	req, err := g.store.Consume(token)
	if err != nil {
		return nil, err
	}
	return g.Generate(ctx, req)
}
