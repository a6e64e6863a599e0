/*
Package state persists a fusion session: the last emitted estimate in a
bbolt database, and the raw sensor records and emitted outputs as
append-only gzipped NDJSON files alongside it.
*/
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rotblauer/catfuse/catdb/flat"
	"github.com/rotblauer/catfuse/fusion"
	"github.com/rotblauer/catfuse/params"
	"go.etcd.io/bbolt"
	"log/slog"
	"os"
	"time"
)

var ErrNoLast = errors.New("no last estimate")

const lastCacheKey = "last"

type State struct {
	DB   *bbolt.DB
	Flat *flat.Flat

	// TTLCache holds the most recent output so readers need not hit the db.
	TTLCache *ttlcache.Cache[string, fusion.Output]
	rOnly    bool
	logger   *slog.Logger
}

// Open opens (creating, unless readOnly) the state database under cfg.DataDir.
// A writable db holds an exclusive file lock; Open waits up to a few
// seconds for it.
func Open(cfg *params.StateConfig, readOnly bool) (*State, error) {
	if cfg == nil {
		cfg = params.DefaultStateConfig()
	}
	f := flat.NewFlatWithRoot(cfg.DataDir)
	if !readOnly {
		if err := f.MkdirAll(); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(cfg.DBPath(), 0600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	return &State{
		DB:   db,
		Flat: f,
		TTLCache: ttlcache.New[string, fusion.Output](
			ttlcache.WithTTL[string, fusion.Output](params.CacheLastKnownTTL)),
		rOnly:  readOnly,
		logger: slog.With("d", "state"),
	}, nil
}

func (s *State) Close() error {
	return s.DB.Close()
}

// SetLast caches o as the most recent output.
func (s *State) SetLast(o fusion.Output) {
	s.TTLCache.Set(lastCacheKey, o, ttlcache.DefaultTTL)
}

// Last returns the cached output, falling back to the persisted one.
func (s *State) Last() (fusion.Output, error) {
	if item := s.TTLCache.Get(lastCacheKey); item != nil {
		return item.Value(), nil
	}
	o, err := s.ReadLast()
	if err != nil {
		return o, err
	}
	s.SetLast(o)
	return o, nil
}

// StoreLast persists the cached output.
func (s *State) StoreLast() error {
	item := s.TTLCache.Get(lastCacheKey)
	if item == nil {
		return ErrNoLast
	}
	b, err := json.Marshal(item.Value())
	if err != nil {
		return err
	}
	if err := s.storeKV(params.StateLastKey, b); err != nil {
		s.logger.Error("Failed to store last estimate", "error", err)
		return err
	}
	s.logger.Debug("Stored last estimate", "output", item.Value())
	return nil
}

func (s *State) ReadLast() (fusion.Output, error) {
	var o fusion.Output
	got, err := s.readKV(params.StateLastKey)
	if err != nil {
		return o, err
	}
	if got == nil {
		return o, ErrNoLast
	}
	if err := json.Unmarshal(got, &o); err != nil {
		return o, fmt.Errorf("%w: %q", err, string(got))
	}
	return o, nil
}

func (s *State) storeKV(key []byte, data []byte) error {
	if s.rOnly {
		return fmt.Errorf("storeKV: %w", os.ErrPermission)
	}
	if key == nil {
		return fmt.Errorf("storeKV: nil key")
	}
	if data == nil {
		return fmt.Errorf("storeKV: nil data")
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(params.StateLastBucket)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

func (s *State) readKV(key []byte) ([]byte, error) {
	buf := bytes.NewBuffer([]byte{})
	var found bool
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(params.StateLastBucket)
		if bucket == nil {
			return nil
		}
		// Gotcha! The value returned by Get is only valid in the scope of the transaction.
		got := bucket.Get(key)
		if got == nil {
			return nil
		}
		found = true
		_, err := buf.Write(got)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return buf.Bytes(), nil
}
