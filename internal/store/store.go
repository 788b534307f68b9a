// Package store provides a thin bbolt wrapper for opsreport's local data store.
//
// The store is written explicitly: `--store` records raw report payloads as
// they are fetched, and `--offline` replays them without touching the
// network. No TTL, no auto-invalidation.
//
// Buckets:
//
//	payloads: raw API response bodies keyed by endpoint+query
//	presets : saved report filters
//	_meta   : internal: schema version, created_at
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/kebunops/opsreport/internal/report"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketPayloads = []byte("payloads")
	bucketPresets  = []byte("presets")
	bucketInternal = []byte("_meta")
)

// AllBuckets lists every user-facing bucket for stats and clear operations.
var AllBuckets = []string{"payloads", "presets"}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPayloads, bucketPresets, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// Meta returns the internal schema_version and created_at values.
func (s *Store) Meta() (version, createdAt string, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInternal)
		version = string(b.Get([]byte("schema_version")))
		createdAt = string(b.Get([]byte("created_at")))
		return nil
	})
	return version, createdAt, err
}

// ─── Payloads ─────────────────────────────────────────────────────────────────

// storedPayload is the on-disk envelope for a raw response body.
type storedPayload struct {
	Key       string          `json:"key"`
	FetchedAt time.Time       `json:"fetched_at"`
	Body      json.RawMessage `json:"body"`
}

// PutPayload stores a raw JSON response body under key. Bodies that are not
// valid JSON are rejected so the envelope stays decodable.
func (s *Store) PutPayload(key string, body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("payload %s is not valid JSON", key)
	}
	b, err := json.Marshal(storedPayload{
		Key:       key,
		FetchedAt: time.Now().UTC(),
		Body:      json.RawMessage(bytes.TrimSpace(body)),
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPayloads).Put([]byte(key), b)
	})
}

// GetPayload retrieves a raw body by key.
// Returns (body, true, nil) if found, (nil, false, nil) if not found.
func (s *Store) GetPayload(key string) ([]byte, bool, error) {
	var env storedPayload
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPayloads).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &env)
	})
	if err != nil || !found {
		return nil, false, err
	}
	return []byte(env.Body), true, nil
}

// PayloadInfo describes one stored payload without its body.
type PayloadInfo struct {
	Key       string    `json:"key"`
	FetchedAt time.Time `json:"fetched_at"`
	Bytes     int       `json:"bytes"`
}

// ListPayloads returns info for every payload whose key starts with prefix.
// Pass prefix="" to list all.
func (s *Store) ListPayloads(prefix string) ([]PayloadInfo, error) {
	var out []PayloadInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPayloads).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var env storedPayload
			if err := json.Unmarshal(v, &env); err != nil {
				return fmt.Errorf("decoding payload %s: %w", k, err)
			}
			out = append(out, PayloadInfo{Key: string(k), FetchedAt: env.FetchedAt, Bytes: len(env.Body)})
		}
		return nil
	})
	return out, err
}

// ─── Presets ──────────────────────────────────────────────────────────────────

// Preset is a saved report filter that can be re-run by name or ID.
type Preset struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Report    string        `json:"report"` // hpt | production | productivity
	Filter    report.Filter `json:"filter"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewPreset builds a preset with a fresh ID.
func NewPreset(name, reportKind string, f report.Filter) Preset {
	return Preset{
		ID:        uuid.NewString(),
		Name:      name,
		Report:    reportKind,
		Filter:    f,
		CreatedAt: time.Now().UTC(),
	}
}

// PutPreset saves a preset. The key is preset:<ID>.
func (s *Store) PutPreset(p Preset) error {
	if p.ID == "" {
		return fmt.Errorf("preset has no ID")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding preset: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPresets).Put([]byte("preset:"+p.ID), b)
	})
}

// GetPreset retrieves a preset by ID, or by name when no ID matches.
func (s *Store) GetPreset(idOrName string) (Preset, bool, error) {
	var p Preset
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPresets)
		if v := b.Get([]byte("preset:" + idOrName)); v != nil {
			return json.Unmarshal(v, &p)
		}
		return b.ForEach(func(_, v []byte) error {
			if p.ID != "" {
				return nil
			}
			var cand Preset
			if err := json.Unmarshal(v, &cand); err != nil {
				return err
			}
			if strings.EqualFold(cand.Name, idOrName) {
				p = cand
			}
			return nil
		})
	})
	if err != nil {
		return Preset{}, false, err
	}
	return p, p.ID != "", nil
}

// ListPresets returns all presets ordered by creation time.
func (s *Store) ListPresets() ([]Preset, error) {
	var presets []Preset
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPresets).ForEach(func(k, v []byte) error {
			var p Preset
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			presets = append(presets, p)
			return nil
		})
	})
	sort.SliceStable(presets, func(i, j int) bool {
		return presets[i].CreatedAt.Before(presets[j].CreatedAt)
	})
	return presets, err
}

// DeletePreset removes a preset by ID. Deleting a missing ID is not an error.
func (s *Store) DeletePreset(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPresets).Delete([]byte("preset:" + id))
	})
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Stats returns row counts and approximate sizes for all user-facing
// buckets, in AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			st := BucketStats{Name: name}
			if err := b.ForEach(func(k, v []byte) error {
				st.Count++
				st.Bytes += int64(len(k) + len(v))
				return nil
			}); err != nil {
				return err
			}
			stats = append(stats, st)
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	if !isUserBucket(name) {
		return fmt.Errorf("unknown bucket %q (valid: %s)", name, strings.Join(AllBuckets, ", "))
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}

func isUserBucket(name string) bool {
	for _, b := range AllBuckets {
		if b == name {
			return true
		}
	}
	return false
}

// Compact rewrites the database into a fresh file, reclaiming pages freed by
// deletes, then swaps it into place. The store stays usable afterwards.
// Returns the file sizes before and after.
func (s *Store) Compact() (before, after int64, err error) {
	path := s.db.Path()
	if fi, statErr := os.Stat(path); statErr == nil {
		before = fi.Size()
	}

	tmpPath := path + ".compact"
	_ = os.Remove(tmpPath)
	dst, err := bolt.Open(tmpPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return before, 0, fmt.Errorf("opening compaction target: %w", err)
	}
	if err := bolt.Compact(dst, s.db, 0); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return before, 0, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return before, 0, err
	}
	if err := s.db.Close(); err != nil {
		return before, 0, err
	}
	renameErr := os.Rename(tmpPath, path)
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return before, 0, fmt.Errorf("reopening db: %w", err)
	}
	s.db = db
	if renameErr != nil {
		os.Remove(tmpPath)
		return before, 0, fmt.Errorf("replacing db: %w", renameErr)
	}
	if fi, statErr := os.Stat(path); statErr == nil {
		after = fi.Size()
	}
	return before, after, nil
}
