// Package catalog resolves album selectors to ordered track lists on disk.
//
// The layout is one folder per album under a music root:
//
//	music/
//	  beatles-abbey-road/
//	    01 Come Together.mp3
//	    02 Something.mp3
//
// A folder name is the code printed on the album's card.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/qrjukebox/internal/domain/album"
	"github.com/osa030/qrjukebox/internal/domain/track"
)

// DefaultExtensions are the media file extensions recognized by default.
var DefaultExtensions = []string{".mp3", ".m4a", ".ogg", ".flac", ".wav"}

// ErrInvalidSelector is returned for selectors that are not a plain folder name.
var ErrInvalidSelector = errors.New("invalid album selector")

// Config holds catalog configuration.
type Config struct {
	Root       string   // Music root directory
	Extensions []string // Recognized extensions (case-insensitive)
	ReadTags   bool     // Read title/artist tags from files
}

// Catalog lists albums and tracks from a directory tree.
// Nothing is cached: every call reads the file system again.
type Catalog struct {
	root       string
	extensions map[string]struct{}
	readTags   bool
}

// New creates a catalog.
func New(cfg Config) *Catalog {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	// Tracks carry absolute paths, so resolve a relative root once here.
	root := cfg.Root
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Catalog{
		root:       root,
		extensions: set,
		readTags:   cfg.ReadTags,
	}
}

// Root returns the music root directory.
func (c *Catalog) Root() string {
	return c.root
}

// Albums returns the names of all non-hidden album folders, sorted.
func (c *Catalog) Albums() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read music dir %s", c.root)
	}

	albums := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		albums = append(albums, e.Name())
	}
	sort.Strings(albums)
	return albums, nil
}

// Has reports whether selector names an existing album folder.
func (c *Catalog) Has(selector string) bool {
	dir, err := c.albumDir(selector)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// ListTracks returns the playable tracks of an album sorted by file name.
// A missing folder or a folder without media files yields an empty list.
func (c *Catalog) ListTracks(selector string) ([]track.Track, error) {
	dir, err := c.albumDir(selector)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []track.Track{}, nil
		}
		return nil, errors.Wrapf(err, "failed to read album %s", selector)
	}

	tracks := make([]track.Track, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		t := track.New(filepath.Join(dir, e.Name()))
		if !c.isSupported(t) {
			continue
		}
		tracks = append(tracks, t)
	}
	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].FileName() < tracks[j].FileName()
	})

	if c.readTags {
		for i := range tracks {
			readTags(&tracks[i])
		}
	}
	return tracks, nil
}

// Album resolves selector into an album.
func (c *Catalog) Album(selector string) (album.Album, error) {
	tracks, err := c.ListTracks(selector)
	if err != nil {
		return album.Album{}, err
	}
	return album.New(selector, tracks), nil
}

// Files lists every file name in an album folder, used to explain why an
// album resolved to no tracks.
func (c *Catalog) Files(selector string) ([]string, error) {
	dir, err := c.albumDir(selector)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read album %s", selector)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		files = append(files, e.Name())
	}
	return files, nil
}

func (c *Catalog) albumDir(selector string) (string, error) {
	if selector == "" || selector == "." || selector == ".." ||
		strings.ContainsAny(selector, `/\`) || filepath.Base(selector) != selector {
		return "", errors.Wrapf(ErrInvalidSelector, "%q", selector)
	}
	return filepath.Join(c.root, selector), nil
}

func (c *Catalog) isSupported(t track.Track) bool {
	_, ok := c.extensions[t.Ext()]
	return ok
}

// readTags fills title/artist/album from embedded tags when present.
func readTags(t *track.Track) {
	f, err := os.Open(t.Path)
	if err != nil {
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged files are common (wav, ripped folders)
		zlog.Debug().Msgf("catalog: no tags in %s: %v", t.FileName(), err)
		return
	}
	t.Title = strings.TrimSpace(m.Title())
	t.Artist = strings.TrimSpace(m.Artist())
	t.Album = strings.TrimSpace(m.Album())
}
