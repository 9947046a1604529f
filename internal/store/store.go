// Package store provides a thin bbolt wrapper for composite's local run store.
//
// Every completed run is saved with its contingency tables and thresholds so
// forecasts can be blended later without re-reading the input series. Data is
// written explicitly by `composite run` and read by `forecast --run` and the
// `store` commands. No TTL, no auto-invalidation.
//
// Buckets:
//
//	runs       completed runs keyed by run ID (msgpack)
//	forecasts  forecasts keyed by run ID, station, lag and date (msgpack)
//	_meta      internal: schema version, created_at
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/composite/internal/model"
)

// SchemaVersion is written to the meta bucket. Bump when the bucket layout or
// key format changes.
const SchemaVersion = 1

// Bucket name constants.
var (
	bucketRuns      = []byte("runs")
	bucketForecasts = []byte("forecasts")
	bucketInternal  = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"runs", "forecasts"}

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("run ID prefix matches more than one run")
)

// clock stamps CreatedAt so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

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

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketForecasts, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", SchemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(clock.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Runs ─────────────────────────────────────────────────────────────────────

// StationResult is the persisted outcome of one station.
type StationResult struct {
	Code        string         `msgpack:"code"`
	Name        string         `msgpack:"name"`
	Lat         float64        `msgpack:"lat"`
	Lon         float64        `msgpack:"lon"`
	Alt         float64        `msgpack:"alt"`
	DType       string         `msgpack:"d_type"`
	IType       string         `msgpack:"i_type"`
	DThresholds []float64      `msgpack:"d_thresholds"`
	IThresholds []float64      `msgpack:"i_thresholds"`
	Tables      []*model.Table `msgpack:"tables"`
}

// Run is a completed analysis.
type Run struct {
	ID         string              `msgpack:"id"`
	Name       string              `msgpack:"name"`
	Runfile    string              `msgpack:"runfile"`
	CreatedAt  time.Time           `msgpack:"created_at"`
	Categories model.CategoryCount `msgpack:"categories"`
	Interval   string              `msgpack:"interval"`
	Lags       []int               `msgpack:"lags"`
	Period     model.Period        `msgpack:"period"`
	State      int                 `msgpack:"state"`
	Stations   []StationResult     `msgpack:"stations"`
	Warnings   []string            `msgpack:"warnings"`
}

// RunSummary is the listing form of a Run.
type RunSummary struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	CreatedAt  time.Time           `json:"created_at"`
	Categories model.CategoryCount `json:"categories"`
	Interval   string              `json:"interval"`
	Period     model.Period        `json:"period"`
	Stations   int                 `json:"stations"`
}

// Summary returns the listing form of r.
func (r Run) Summary() RunSummary {
	return RunSummary{
		ID:         r.ID,
		Name:       r.Name,
		CreatedAt:  r.CreatedAt,
		Categories: r.Categories,
		Interval:   r.Interval,
		Period:     r.Period,
		Stations:   len(r.Stations),
	}
}

// ModelStations rebuilds the stations of r with their table maps, ready for
// forecasting.
func (r Run) ModelStations() []*model.Station {
	out := make([]*model.Station, len(r.Stations))
	for i, sr := range r.Stations {
		st := &model.Station{
			Code:   sr.Code,
			Name:   sr.Name,
			Lat:    sr.Lat,
			Lon:    sr.Lon,
			Alt:    sr.Alt,
			Period: r.Period,
			Tables: make(map[model.TableKey]*model.Table, len(sr.Tables)),
		}
		for _, t := range sr.Tables {
			st.Tables[model.TableKey{Lag: t.Lag, Period: t.Period}] = t
		}
		out[i] = st
	}
	return out
}

// PutRun saves r, assigning an ID and CreatedAt when unset. The stored run
// is returned.
func (s *Store) PutRun(r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = clock.Now().UTC()
	}
	b, err := msgpack.Marshal(&r)
	if err != nil {
		return Run{}, fmt.Errorf("encoding run: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(r.ID), b)
	})
	return r, err
}

// GetRun retrieves a run by full ID or unique ID prefix.
func (s *Store) GetRun(id string) (Run, error) {
	if id == "" {
		return Run{}, ErrRunNotFound
	}
	var run Run
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if v := b.Get([]byte(id)); v != nil {
			return msgpack.Unmarshal(v, &run)
		}
		var match []byte
		c := b.Cursor()
		prefix := []byte(id)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if match != nil {
				return fmt.Errorf("%s: %w", id, ErrAmbiguousRun)
			}
			match = v
		}
		if match == nil {
			return fmt.Errorf("%s: %w", id, ErrRunNotFound)
		}
		return msgpack.Unmarshal(match, &run)
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns the summaries of every stored run, newest first.
func (s *Store) ListRuns() ([]RunSummary, error) {
	var out []RunSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var r Run
			if err := msgpack.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decoding run %s: %w", k, err)
			}
			out = append(out, r.Summary())
			return nil
		})
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

// DeleteRun removes a run and its forecasts.
func (s *Store) DeleteRun(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		if runs.Get([]byte(id)) == nil {
			return fmt.Errorf("%s: %w", id, ErrRunNotFound)
		}
		if err := runs.Delete([]byte(id)); err != nil {
			return err
		}
		return deletePrefix(tx.Bucket(bucketForecasts), []byte(id+"|"))
	})
}

func deletePrefix(b *bolt.Bucket, prefix []byte) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ─── Forecasts ────────────────────────────────────────────────────────────────

// ForecastKey builds the canonical key of a stored forecast.
// Format: <runID>|<station>|lag:<n>|<YYYY-MM-DD>
func ForecastKey(runID string, f model.Forecast) string {
	return strings.Join([]string{runID, f.Station, fmt.Sprintf("lag:%d", f.Lag), f.Date.Format("2006-01-02")}, "|")
}

// PutForecasts saves forecasts blended from run runID.
func (s *Store) PutForecasts(runID string, fs []model.Forecast) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketForecasts)
		for _, f := range fs {
			data, err := msgpack.Marshal(&f)
			if err != nil {
				return fmt.Errorf("encoding forecast: %w", err)
			}
			if err := b.Put([]byte(ForecastKey(runID, f)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListForecasts returns the forecasts of run runID in key order.
func (s *Store) ListForecasts(runID string) ([]model.Forecast, error) {
	var out []model.Forecast
	prefix := []byte(runID + "|")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketForecasts).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var f model.Forecast
			if err := msgpack.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("decoding forecast %s: %w", k, err)
			}
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Stats returns row counts and approximate sizes for all buckets.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var size int64
			_ = b.ForEach(func(k, v []byte) error {
				count++
				size += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: size})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	known := false
	for _, b := range AllBuckets {
		known = known || b == name
	}
	if !known {
		return fmt.Errorf("unknown bucket %q (use %s)", name, strings.Join(AllBuckets, ", "))
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
