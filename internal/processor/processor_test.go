package processor_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/aliskhannn/ai-image-analyzer/internal/model"
	"github.com/aliskhannn/ai-image-analyzer/internal/processor"
	imagerepo "github.com/aliskhannn/ai-image-analyzer/internal/repository/image"
)

// recorder collects the collaborator calls made by the pipeline so
// tests can assert on ordering and call counts.
type recorder struct {
	calls []string
}

func (r *recorder) add(call string) {
	r.calls = append(r.calls, call)
}

type fakeRepo struct {
	rec *recorder

	owned        bool
	meta         model.Metadata
	metaErr      error
	upsertErr    func(upd model.MetadataUpdate) error
	thumbnailErr error

	upserts    []model.MetadataUpdate
	thumbPaths []string
}

func (f *fakeRepo) VerifyOwnership(_ context.Context, _ int64, _ string) (bool, error) {
	f.rec.add("VerifyOwnership")
	return f.owned, nil
}

func (f *fakeRepo) GetMetadata(_ context.Context, _ int64, _ string) (model.Metadata, error) {
	f.rec.add("GetMetadata")
	return f.meta, f.metaErr
}

func (f *fakeRepo) UpsertMetadata(_ context.Context, _ int64, _ string, upd model.MetadataUpdate) error {
	f.rec.add("UpsertMetadata:" + string(upd.Status))
	if f.upsertErr != nil {
		if err := f.upsertErr(upd); err != nil {
			return err
		}
	}
	f.upserts = append(f.upserts, upd)
	return nil
}

func (f *fakeRepo) UpdateThumbnailPath(_ context.Context, _ int64, path string) error {
	f.rec.add("UpdateThumbnailPath")
	if f.thumbnailErr != nil {
		return f.thumbnailErr
	}
	f.thumbPaths = append(f.thumbPaths, path)
	return nil
}

type fakeStorage struct {
	rec *recorder

	original    []byte
	downloadErr error
	uploadErr   error

	uploadedPaths []string
}

func (f *fakeStorage) DownloadOriginal(_ context.Context, _ string) ([]byte, error) {
	f.rec.add("DownloadOriginal")
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.original, nil
}

func (f *fakeStorage) UploadThumbnail(_ context.Context, path string, _ []byte) (string, error) {
	f.rec.add("UploadThumbnail")
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploadedPaths = append(f.uploadedPaths, path)
	return path, nil
}

type fakeAnalyzer struct {
	rec *recorder

	analysis model.Analysis
	err      error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ []byte) (model.Analysis, error) {
	f.rec.add("Analyze")
	return f.analysis, f.err
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 180, B: 60, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}

	return buf.Bytes()
}

func newFixture(t *testing.T) (*processor.Processor, *fakeRepo, *fakeStorage, *fakeAnalyzer, *recorder) {
	t.Helper()

	rec := &recorder{}
	repo := &fakeRepo{
		rec:     rec,
		owned:   true,
		metaErr: imagerepo.ErrMetadataNotFound,
	}
	storage := &fakeStorage{
		rec:      rec,
		original: testJPEG(t, 64, 48),
	}
	analyzer := &fakeAnalyzer{
		rec: rec,
		analysis: model.Analysis{
			Description: "a green field",
			Tags:        []string{"field", "green"},
		},
	}

	cfg := processor.Config{ThumbnailSize: 32, MaxTags: 8, TopColors: 3}

	return processor.New(repo, storage, analyzer, cfg), repo, storage, analyzer, rec
}

func TestProcessCompletedIsIdempotent(t *testing.T) {
	p, repo, storage, _, rec := newFixture(t)
	repo.meta = model.Metadata{Status: model.StatusCompleted}
	repo.metaErr = nil

	if err := p.Process(context.Background(), 1, "user-1", "user-1/original/a.jpg"); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(repo.upserts) != 0 {
		t.Errorf("expected no metadata writes, got %d", len(repo.upserts))
	}
	if len(storage.uploadedPaths) != 0 {
		t.Errorf("expected no storage uploads, got %d", len(storage.uploadedPaths))
	}
	for _, call := range rec.calls {
		if call == "DownloadOriginal" || call == "Analyze" {
			t.Errorf("unexpected call %q after idempotency guard", call)
		}
	}
}

func TestProcessOwnershipGate(t *testing.T) {
	p, repo, _, _, rec := newFixture(t)
	repo.owned = false

	err := p.Process(context.Background(), 1, "intruder", "user-1/original/a.jpg")
	if !errors.Is(err, processor.ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	if len(repo.upserts) != 0 {
		t.Errorf("expected no metadata writes, got %d", len(repo.upserts))
	}
	want := []string{"VerifyOwnership"}
	if len(rec.calls) != len(want) || rec.calls[0] != want[0] {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestProcessPipelineOrder(t *testing.T) {
	p, repo, _, _, rec := newFixture(t)

	if err := p.Process(context.Background(), 1, "user-1", "user-1/original/a.jpg"); err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []string{
		"VerifyOwnership",
		"GetMetadata",
		"UpsertMetadata:processing",
		"DownloadOriginal",
		"UploadThumbnail",
		"UpdateThumbnailPath",
		"Analyze",
		"UpsertMetadata:completed",
	}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("calls[%d] = %q, want %q (full: %v)", i, rec.calls[i], want[i], rec.calls)
		}
	}

	final := repo.upserts[len(repo.upserts)-1]
	if final.Status != model.StatusCompleted {
		t.Errorf("final status = %q, want completed", final.Status)
	}
	if final.Description == nil || *final.Description != "a green field" {
		t.Errorf("final description = %v, want %q", final.Description, "a green field")
	}
	if len(final.Colors) == 0 {
		t.Error("final colors are empty")
	}
	for _, c := range final.Colors {
		if !strings.HasPrefix(c, "#") || len(c) != 7 {
			t.Errorf("color %q is not of the form #rrggbb", c)
		}
	}
}

func TestProcessDownloadFailureMarksFailed(t *testing.T) {
	p, repo, storage, _, _ := newFixture(t)
	storage.downloadErr = errors.New("object not found")

	err := p.Process(context.Background(), 1, "user-1", "user-1/original/missing.jpg")
	if err == nil || !strings.Contains(err.Error(), "object not found") {
		t.Fatalf("err = %v, want download failure", err)
	}

	if len(repo.upserts) != 2 {
		t.Fatalf("got %d metadata writes, want processing + failed: %+v", len(repo.upserts), repo.upserts)
	}
	if repo.upserts[0].Status != model.StatusProcessing {
		t.Errorf("first status = %q, want processing", repo.upserts[0].Status)
	}

	final := repo.upserts[1]
	if final.Status != model.StatusFailed {
		t.Errorf("final status = %q, want failed", final.Status)
	}
	if final.Description != nil || final.Tags != nil || final.Colors != nil {
		t.Errorf("failed write carries AI fields: %+v", final)
	}
	if len(repo.thumbPaths) != 0 {
		t.Errorf("thumbnail path written on failed run: %v", repo.thumbPaths)
	}
}

func TestProcessTagTruncation(t *testing.T) {
	p, repo, _, analyzer, _ := newFixture(t)

	tags := make([]string, 12)
	for i := range tags {
		tags[i] = fmt.Sprintf("tag-%d", i)
	}
	analyzer.analysis.Tags = tags

	if err := p.Process(context.Background(), 1, "user-1", "user-1/original/a.jpg"); err != nil {
		t.Fatalf("Process: %v", err)
	}

	final := repo.upserts[len(repo.upserts)-1]
	if len(final.Tags) != 8 {
		t.Fatalf("persisted %d tags, want 8: %v", len(final.Tags), final.Tags)
	}
	for i, tag := range final.Tags {
		if want := fmt.Sprintf("tag-%d", i); tag != want {
			t.Errorf("tags[%d] = %q, want %q (original order must be kept)", i, tag, want)
		}
	}
}

func TestProcessThumbnailPathsUnique(t *testing.T) {
	p, repo, storage, _, _ := newFixture(t)

	for i := 0; i < 2; i++ {
		if err := p.Process(context.Background(), 1, "user-1", "user-1/original/a.jpg"); err != nil {
			t.Fatalf("Process run %d: %v", i, err)
		}
		// Re-running is allowed until the stored status reads completed.
		repo.metaErr = imagerepo.ErrMetadataNotFound
	}

	if len(storage.uploadedPaths) != 2 {
		t.Fatalf("got %d uploads, want 2", len(storage.uploadedPaths))
	}
	if storage.uploadedPaths[0] == storage.uploadedPaths[1] {
		t.Errorf("thumbnail paths collide: %q", storage.uploadedPaths[0])
	}
	for _, p := range storage.uploadedPaths {
		if !strings.HasPrefix(p, "user-1/thumbnails/") || !strings.HasSuffix(p, ".jpg") {
			t.Errorf("unexpected thumbnail path %q", p)
		}
	}
}

func TestProcessFailedStatusWriteIsBestEffort(t *testing.T) {
	p, repo, _, analyzer, _ := newFixture(t)

	analyzerErr := errors.New("vision API returned status 500")
	analyzer.err = analyzerErr
	repo.upsertErr = func(upd model.MetadataUpdate) error {
		if upd.Status == model.StatusFailed {
			return errors.New("database unavailable")
		}
		return nil
	}

	err := p.Process(context.Background(), 1, "user-1", "user-1/original/a.jpg")
	if !errors.Is(err, analyzerErr) {
		t.Fatalf("err = %v, want the original analyzer error", err)
	}
}

func TestProcessDecodeFailureMarksFailed(t *testing.T) {
	p, repo, storage, _, _ := newFixture(t)
	storage.original = []byte("definitely not an image")

	if err := p.Process(context.Background(), 1, "user-1", "user-1/original/a.jpg"); err == nil {
		t.Fatal("expected decode failure")
	}

	final := repo.upserts[len(repo.upserts)-1]
	if final.Status != model.StatusFailed {
		t.Errorf("final status = %q, want failed", final.Status)
	}
}
