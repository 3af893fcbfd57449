package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"videoflix/internal/domain/video"
)

const (
	uploadsSubdir    = "videos/uploads"
	thumbnailsSubdir = "thumbnails"
	hlsSubdir        = "hls"
)

// Layout owns the on-disk media tree:
//
//	{root}/videos/uploads/...            source files
//	{root}/thumbnails/video_{id}.jpg     thumbnails
//	{root}/hls/video_{id}/{tier}.m3u8    playlists + segments
type Layout struct {
	Root string
}

// NewLayout creates the filesystem adapter rooted at the media directory.
func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

// EnsureDirs creates the media roots used by the service.
func (l *Layout) EnsureDirs() error {
	for _, sub := range []string{uploadsSubdir, thumbnailsSubdir, hlsSubdir} {
		dir := filepath.Join(l.Root, filepath.FromSlash(sub))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &video.StorageError{Path: dir, Err: err}
		}
	}
	return nil
}

// Abs resolves a stored relative path to an absolute one, refusing anything
// that escapes the media root.
func (l *Layout) Abs(rel string) (string, error) {
	norm := strings.ReplaceAll(rel, "\\", "/")
	for _, part := range strings.Split(norm, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: media path escapes root", video.ErrInvalidInput)
		}
	}
	cleaned := path.Clean("/" + norm)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("%w: empty media path", video.ErrInvalidInput)
	}
	full := filepath.Join(l.Root, filepath.FromSlash(cleaned))
	if !isWithinDir(l.Root, full) {
		return "", fmt.Errorf("%w: media path escapes root", video.ErrInvalidInput)
	}
	return full, nil
}

// SaveSource streams an uploaded source file into the uploads directory and
// returns its stored relative path.
func (l *Layout) SaveSource(id, originalName string, r io.Reader) (string, error) {
	ext := safeExt(originalName, ".mp4")
	rel := path.Join(uploadsSubdir, "video_"+id+ext)
	if err := l.writeFile(rel, r); err != nil {
		return "", err
	}
	return rel, nil
}

// SaveThumbnail streams a client-supplied thumbnail into the thumbnails
// directory and returns its stored relative path.
func (l *Layout) SaveThumbnail(id, originalName string, r io.Reader) (string, error) {
	ext := safeExt(originalName, ".jpg")
	rel := path.Join(thumbnailsSubdir, "video_"+id+ext)
	if err := l.writeFile(rel, r); err != nil {
		return "", err
	}
	return rel, nil
}

// ThumbnailRel is the deterministic path the pipeline generates thumbnails at.
func (l *Layout) ThumbnailRel(id string) string {
	return path.Join(thumbnailsSubdir, video.ThumbnailName(id))
}

// OutputDirRel is an asset's HLS output directory, relative to the media root.
func (l *Layout) OutputDirRel(id string) string {
	return path.Join(hlsSubdir, video.OutputDirName(id))
}

// ManifestRel is the stored relative path of one tier's playlist.
func (l *Layout) ManifestRel(id string, tier video.Tier) string {
	return path.Join(l.OutputDirRel(id), tier.ManifestName())
}

// SegmentRel is the stored relative path of one validated segment name.
func (l *Layout) SegmentRel(id, segment string) string {
	return path.Join(l.OutputDirRel(id), segment)
}

// RemoveFile deletes a single stored file. A missing file is not an error;
// any other failure is surfaced as a StorageError.
func (l *Layout) RemoveFile(rel string) error {
	full, err := l.Abs(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &video.StorageError{Path: full, Err: err}
	}
	return nil
}

// RemoveTree deletes a stored directory recursively.
func (l *Layout) RemoveTree(rel string) error {
	full, err := l.Abs(rel)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return &video.StorageError{Path: full, Err: err}
	}
	return nil
}

// FileExists reports whether a stored relative path resolves to a regular file.
func (l *Layout) FileExists(rel string) bool {
	full, err := l.Abs(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

func (l *Layout) writeFile(rel string, r io.Reader) error {
	full, err := l.Abs(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &video.StorageError{Path: filepath.Dir(full), Err: err}
	}
	dst, err := os.Create(full)
	if err != nil {
		return &video.StorageError{Path: full, Err: err}
	}
	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		_ = os.Remove(full)
		return &video.StorageError{Path: full, Err: err}
	}
	if err := dst.Close(); err != nil {
		return &video.StorageError{Path: full, Err: err}
	}
	return nil
}

func safeExt(name, fallback string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if ext == "" || strings.ContainsAny(ext, "/\\") || len(ext) > 8 {
		return fallback
	}
	return ext
}

func isWithinDir(basePath, targetPath string) bool {
	baseAbs, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false
	}
	sep := string(os.PathSeparator)
	if rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return false
	}
	return true
}
