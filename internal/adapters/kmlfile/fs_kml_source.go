package kmlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
)

var fileNamePattern = regexp.MustCompile(`^Zona([1-9][0-9]*)_Sottozona([AB])\.kml$`)

// FSKMLSource reads provisioned KML files from a directory. Files follow
// the Zona<N>_Sottozona<A|B>.kml naming pattern exactly; other spellings
// are not listed because reads resolve the canonical name.
type FSKMLSource struct {
	fsys fs.FS
}

// NewDirSource serves files from dir on the local filesystem.
func NewDirSource(dir string) *FSKMLSource {
	return &FSKMLSource{fsys: os.DirFS(dir)}
}

// NewFSSource serves files from any fs.FS, e.g. an embed.FS or fstest.MapFS.
func NewFSSource(fsys fs.FS) *FSKMLSource {
	return &FSKMLSource{fsys: fsys}
}

var _ ports.KMLSource = (*FSKMLSource)(nil)

func (s *FSKMLSource) Exists(ctx context.Context, key domain.ZoneKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	info, err := fs.Stat(s.fsys, key.FileName())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat kml file %s: %w", key.FileName(), err)
	}
	return !info.IsDir(), nil
}

func (s *FSKMLSource) ReadText(ctx context.Context, key domain.ZoneKey) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b, err := fs.ReadFile(s.fsys, key.FileName())
	if err != nil {
		return "", fmt.Errorf("read kml file %s: %w", key.FileName(), err)
	}
	return string(b), nil
}

// ListAvailable returns the provisioned files sorted by zone, then plan.
func (s *FSKMLSource) ListAvailable(ctx context.Context) ([]ports.KMLFileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list kml directory: %w", err)
	}

	out := make([]ports.KMLFileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := keyFromFileName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat kml file %s: %w", e.Name(), err)
		}
		out = append(out, ports.KMLFileInfo{
			Key:        key,
			FileName:   filepath.Base(e.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Zone != out[j].Key.Zone {
			return out[i].Key.Zone < out[j].Key.Zone
		}
		return out[i].Key.Plan < out[j].Key.Plan
	})
	return out, nil
}

func keyFromFileName(name string) (domain.ZoneKey, bool) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return domain.ZoneKey{}, false
	}
	zone, err := strconv.Atoi(m[1])
	if err != nil {
		return domain.ZoneKey{}, false
	}
	key, err := domain.NewZoneKey(zone, m[2])
	if err != nil || key.FileName() != name {
		return domain.ZoneKey{}, false
	}
	return key, true
}
