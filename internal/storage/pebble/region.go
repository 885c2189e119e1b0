package pebblestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
)

const (
	regionPrefix = "region/"
	metaPrefix   = "regionmeta/"
)

// RegionInfo describes a saved region image.
type RegionInfo struct {
	Name    string    `json:"name"`
	Size    int       `json:"size"`
	SavedAt time.Time `json:"savedAt"`
}

// SaveRegion stores a copy of a ring buffer region under name, replacing
// any previous image.
func (db *DB) SaveRegion(name string, image []byte) error {
	if name == "" {
		return errors.New("pebble: empty region name")
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], uint64(time.Now().UnixNano()))

	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set([]byte(regionPrefix+name), image, nil); err != nil {
		return err
	}
	if err := b.Set([]byte(metaPrefix+name), meta[:], nil); err != nil {
		return err
	}
	if err := db.commit(b); err != nil {
		return fmt.Errorf("pebble: save region %s: %w", name, err)
	}
	return nil
}

// LoadRegion returns the saved image for name, or ErrNotFound.
func (db *DB) LoadRegion(name string) ([]byte, error) {
	return db.Get([]byte(regionPrefix + name))
}

// DeleteRegion drops a saved image.
func (db *DB) DeleteRegion(name string) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Delete([]byte(regionPrefix+name), nil); err != nil {
		return err
	}
	if err := b.Delete([]byte(metaPrefix+name), nil); err != nil {
		return err
	}
	return db.commit(b)
}

// Regions lists saved images.
func (db *DB) Regions() ([]RegionInfo, error) {
	keys, err := db.Keys([]byte(regionPrefix))
	if err != nil {
		return nil, err
	}
	out := make([]RegionInfo, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, regionPrefix)
		info := RegionInfo{Name: name}
		if img, err := db.Get([]byte(k)); err == nil {
			info.Size = len(img)
		}
		if meta, err := db.Get([]byte(metaPrefix + name)); err == nil && len(meta) == 8 {
			info.SavedAt = time.Unix(0, int64(binary.BigEndian.Uint64(meta))).UTC()
		}
		out = append(out, info)
	}
	return out, nil
}

// Region binds a region name so the result can serve as a checkpoint
// target for the log store.
func (db *DB) Region(name string) *Region {
	return &Region{db: db, name: name}
}

// Region is one named region image.
type Region struct {
	db   *DB
	name string
}

// SaveRegion stores image under the bound name.
func (r *Region) SaveRegion(image []byte) error { return r.db.SaveRegion(r.name, image) }

// Load returns the saved image. A missing image yields (nil, nil).
func (r *Region) Load() ([]byte, error) {
	img, err := r.db.LoadRegion(r.name)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	return img, err
}
