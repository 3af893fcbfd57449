package catalog

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"videoflix/internal/domain/video"
)

type stubStore struct {
	assets      map[string]video.Asset
	renditions  map[string][]video.Rendition
	genres      []video.Genre
	listCalls   int
	setStateErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		assets:     map[string]video.Asset{},
		renditions: map[string][]video.Rendition{},
	}
}

func (s *stubStore) CreateVideo(_ context.Context, a *video.Asset) error {
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	s.assets[a.ID] = *a
	return nil
}

func (s *stubStore) GetVideo(_ context.Context, id string) (video.Asset, error) {
	asset, ok := s.assets[id]
	if !ok {
		return video.Asset{}, video.ErrNotFound
	}
	return asset, nil
}

func (s *stubStore) ListPublished(_ context.Context) ([]video.Asset, error) {
	s.listCalls++
	out := make([]video.Asset, 0)
	for _, asset := range s.assets {
		if asset.Published {
			out = append(out, asset)
		}
	}
	return out, nil
}

func (s *stubStore) DeleteVideo(_ context.Context, id string) error {
	if _, ok := s.assets[id]; !ok {
		return video.ErrNotFound
	}
	delete(s.assets, id)
	delete(s.renditions, id)
	return nil
}

func (s *stubStore) SetState(_ context.Context, id string, state video.ProcessingState) error {
	if s.setStateErr != nil {
		return s.setStateErr
	}
	asset, ok := s.assets[id]
	if !ok {
		return video.ErrNotFound
	}
	asset.State = state
	s.assets[id] = asset
	return nil
}

func (s *stubStore) ListRenditions(_ context.Context, videoID string) ([]video.Rendition, error) {
	return s.renditions[videoID], nil
}

func (s *stubStore) ListGenres(_ context.Context) ([]video.Genre, error) {
	return s.genres, nil
}

type stubFiles struct {
	saved     map[string]string
	existing  map[string]bool
	removed   []string
	removeErr error
}

func newStubFiles() *stubFiles {
	return &stubFiles{saved: map[string]string{}, existing: map[string]bool{}}
}

func (f *stubFiles) SaveSource(id, originalName string, r io.Reader) (string, error) {
	rel := "videos/uploads/video_" + id + ".mp4"
	data, _ := io.ReadAll(r)
	f.saved[rel] = string(data)
	f.existing[rel] = true
	return rel, nil
}

func (f *stubFiles) SaveThumbnail(id, originalName string, r io.Reader) (string, error) {
	rel := "thumbnails/video_" + id + ".jpg"
	data, _ := io.ReadAll(r)
	f.saved[rel] = string(data)
	f.existing[rel] = true
	return rel, nil
}

func (f *stubFiles) ThumbnailRel(id string) string { return "thumbnails/video_" + id + ".jpg" }
func (f *stubFiles) ManifestRel(id string, tier video.Tier) string {
	return path.Join("hls/video_"+id, tier.ManifestName())
}
func (f *stubFiles) SegmentRel(id, segment string) string {
	return path.Join("hls/video_"+id, segment)
}
func (f *stubFiles) Abs(rel string) (string, error) { return "/media/" + rel, nil }
func (f *stubFiles) FileExists(rel string) bool     { return f.existing[rel] }

func (f *stubFiles) RemoveFile(rel string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, rel)
	delete(f.existing, rel)
	return nil
}

func (f *stubFiles) RemoveTree(rel string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, rel)
	return nil
}

type stubDispatcher struct {
	dispatched []string
	err        error
}

func (d *stubDispatcher) Dispatch(_ context.Context, assetID string) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, assetID)
	return nil
}

type memoryCache struct {
	entries map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{entries: map[string][]byte{}} }

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	value, ok := c.entries[key]
	return value, ok
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.entries[key] = value
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	delete(c.entries, key)
}

type fixture struct {
	store      *stubStore
	files      *stubFiles
	dispatcher *stubDispatcher
	cache      *memoryCache
	service    *Service
}

func newFixture() *fixture {
	store := newStubStore()
	files := newStubFiles()
	dispatcher := &stubDispatcher{}
	listings := newMemoryCache()
	return &fixture{
		store:      store,
		files:      files,
		dispatcher: dispatcher,
		cache:      listings,
		service:    NewService(store, files, dispatcher, listings, zerolog.Nop(), time.Minute),
	}
}

const testID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

func (fx *fixture) seedPublished(id string) video.Asset {
	asset := video.Asset{
		ID:         id,
		Title:      "seeded",
		SourcePath: "videos/uploads/video_" + id + ".mp4",
		Published:  true,
		State:      video.StateReady,
		CreatedAt:  time.Now(),
	}
	fx.store.assets[id] = asset
	return asset
}

func TestCreateVideo_PersistsAndDispatches(t *testing.T) {
	fx := newFixture()

	asset, err := fx.service.CreateVideo(context.Background(), Upload{
		Title:      "My upload",
		SourceName: "movie.mp4",
		Source:     strings.NewReader("bytes"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if asset.State != video.StateProcessing {
		t.Fatalf("expected processing before hand-off, got %s", asset.State)
	}
	stored := fx.store.assets[asset.ID]
	if stored.State != video.StateProcessing {
		t.Fatalf("stored state must be processing, got %s", stored.State)
	}
	if len(fx.dispatcher.dispatched) != 1 || fx.dispatcher.dispatched[0] != asset.ID {
		t.Fatalf("expected one dispatched job, got %v", fx.dispatcher.dispatched)
	}
	if fx.files.saved[stored.SourcePath] != "bytes" {
		t.Fatal("source payload not stored")
	}
}

func TestCreateVideo_KeepsSuppliedThumbnail(t *testing.T) {
	fx := newFixture()

	asset, err := fx.service.CreateVideo(context.Background(), Upload{
		Title:         "With thumb",
		SourceName:    "movie.mp4",
		Source:        strings.NewReader("v"),
		ThumbnailName: "cover.jpg",
		Thumbnail:     strings.NewReader("t"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if asset.ThumbnailPath == nil {
		t.Fatal("expected stored thumbnail path")
	}
}

func TestCreateVideo_RejectsMissingTitle(t *testing.T) {
	fx := newFixture()
	_, err := fx.service.CreateVideo(context.Background(), Upload{
		Title:  "   ",
		Source: strings.NewReader("v"),
	})
	if !errors.Is(err, video.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateVideo_DispatchFailureMarksFailed(t *testing.T) {
	fx := newFixture()
	fx.dispatcher.err = errors.New("queue down")

	_, err := fx.service.CreateVideo(context.Background(), Upload{
		Title:      "Doomed",
		SourceName: "movie.mp4",
		Source:     strings.NewReader("v"),
	})
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	for _, asset := range fx.store.assets {
		if asset.State != video.StateFailed {
			t.Fatalf("asset must not linger as processing, got %s", asset.State)
		}
	}
}

func TestCreateVideo_StateFailureLeavesNothingBehind(t *testing.T) {
	fx := newFixture()
	fx.store.setStateErr = errors.New("db down")

	_, err := fx.service.CreateVideo(context.Background(), Upload{
		Title:         "Doomed",
		SourceName:    "movie.mp4",
		Source:        strings.NewReader("v"),
		ThumbnailName: "cover.jpg",
		Thumbnail:     strings.NewReader("jpeg"),
	})
	if err == nil {
		t.Fatal("expected state transition error")
	}
	if len(fx.store.assets) != 0 {
		t.Fatalf("record must not survive a failed transition, got %d", len(fx.store.assets))
	}
	if len(fx.files.removed) != 2 {
		t.Fatalf("expected source and thumbnail removed, got %v", fx.files.removed)
	}
	if len(fx.dispatcher.dispatched) != 0 {
		t.Fatalf("nothing should have been dispatched, got %v", fx.dispatcher.dispatched)
	}
}

func TestListPublished_ReadThrough(t *testing.T) {
	fx := newFixture()
	fx.seedPublished(testID)
	ctx := context.Background()

	first, err := fx.service.ListPublished(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("unexpected first listing: %v %v", first, err)
	}
	if fx.store.listCalls != 1 {
		t.Fatalf("expected one store read, got %d", fx.store.listCalls)
	}

	// Second read is served from the cache.
	if _, err := fx.service.ListPublished(ctx); err != nil {
		t.Fatalf("cached listing failed: %v", err)
	}
	if fx.store.listCalls != 1 {
		t.Fatalf("expected cached read, store reads=%d", fx.store.listCalls)
	}
}

func TestListPublished_InvalidationAfterDelete(t *testing.T) {
	fx := newFixture()
	asset := fx.seedPublished(testID)
	ctx := context.Background()

	if _, err := fx.service.ListPublished(ctx); err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if err := fx.service.DeleteVideo(ctx, asset.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	items, err := fx.service.ListPublished(ctx)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	for _, item := range items {
		if item.ID == asset.ID {
			t.Fatal("deleted asset still listed")
		}
	}
	if fx.store.listCalls != 2 {
		t.Fatalf("delete must invalidate the cache, store reads=%d", fx.store.listCalls)
	}
}

func TestGetDetail_UnpublishedIsNotFound(t *testing.T) {
	fx := newFixture()
	asset := fx.seedPublished(testID)
	asset.Published = false
	fx.store.assets[asset.ID] = asset

	if _, err := fx.service.GetDetail(context.Background(), asset.ID); !errors.Is(err, video.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteVideo_RemovesArtifacts(t *testing.T) {
	fx := newFixture()
	asset := fx.seedPublished(testID)
	thumb := "thumbnails/video_" + asset.ID + ".jpg"
	outDir := "hls/video_" + asset.ID
	asset.ThumbnailPath = &thumb
	asset.OutputDir = &outDir
	fx.store.assets[asset.ID] = asset

	if err := fx.service.DeleteVideo(context.Background(), asset.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	want := []string{asset.SourcePath, thumb, outDir}
	if len(fx.files.removed) != len(want) {
		t.Fatalf("expected %d removals, got %v", len(want), fx.files.removed)
	}
	for i, rel := range want {
		if fx.files.removed[i] != rel {
			t.Fatalf("removal %d: expected %s, got %s", i, rel, fx.files.removed[i])
		}
	}
	if _, ok := fx.store.assets[asset.ID]; ok {
		t.Fatal("record still present after delete")
	}
}

func TestDeleteVideo_SurfacesStorageErrors(t *testing.T) {
	fx := newFixture()
	asset := fx.seedPublished(testID)
	fx.files.removeErr = &video.StorageError{Path: "x", Err: errors.New("device busy")}

	err := fx.service.DeleteVideo(context.Background(), asset.ID)
	var storageErr *video.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if _, ok := fx.store.assets[asset.ID]; !ok {
		t.Fatal("record must survive a failed cleanup")
	}
}

func TestDeleteVideo_RejectsMalformedID(t *testing.T) {
	fx := newFixture()
	if err := fx.service.DeleteVideo(context.Background(), "42; DROP TABLE"); !errors.Is(err, video.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolveManifest_HappyPath(t *testing.T) {
	fx := newFixture()
	asset := fx.seedPublished(testID)
	rel := "hls/video_" + asset.ID + "/mid.m3u8"
	fx.files.existing[rel] = true

	full, err := fx.service.ResolveManifest(context.Background(), asset.ID, "mid")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if full != "/media/"+rel {
		t.Fatalf("unexpected path: %s", full)
	}
}

func TestResolveManifest_UnpublishedHidesExistingFile(t *testing.T) {
	fx := newFixture()
	asset := fx.seedPublished(testID)
	asset.Published = false
	fx.store.assets[asset.ID] = asset
	fx.files.existing["hls/video_"+asset.ID+"/mid.m3u8"] = true

	if _, err := fx.service.ResolveManifest(context.Background(), asset.ID, "mid"); !errors.Is(err, video.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveManifest_MissingTierFile(t *testing.T) {
	fx := newFixture()
	asset := fx.seedPublished(testID)

	if _, err := fx.service.ResolveManifest(context.Background(), asset.ID, "high"); !errors.Is(err, video.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a never-generated tier, got %v", err)
	}
}

func TestResolveSegment_ValidatesName(t *testing.T) {
	fx := newFixture()
	asset := fx.seedPublished(testID)
	fx.files.existing["hls/video_"+asset.ID+"/low_000.ts"] = true

	if _, err := fx.service.ResolveSegment(context.Background(), asset.ID, "low", "low_000.ts"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := fx.service.ResolveSegment(context.Background(), asset.ID, "low", "../../../etc/passwd"); !errors.Is(err, video.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for traversal, got %v", err)
	}
}

func TestResolveSegment_UnknownTier(t *testing.T) {
	fx := newFixture()
	asset := fx.seedPublished(testID)
	if _, err := fx.service.ResolveSegment(context.Background(), asset.ID, "8k", "8k_000.ts"); !errors.Is(err, video.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
