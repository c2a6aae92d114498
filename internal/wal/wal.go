package wal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Store is the append-only, sharded write-ahead log. The file that
// receives job id's records is file (id mod shards); a single id's
// records always land in the same file, so replay order only matters
// within a file.
type Store struct {
	dir    string
	shards int

	mu    sync.Mutex
	files []*os.File
}

func shardName(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("wal-%d.bin", i))
}

// Open creates dir if missing and opens (or creates) its shard files
// for appending.
func Open(dir string, shards int) (*Store, error) {
	if shards <= 0 {
		shards = 8
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}
	s := &Store{dir: dir, shards: shards, files: make([]*os.File, shards)}
	for i := 0; i < shards; i++ {
		f, err := os.OpenFile(shardName(dir, i), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("wal: open shard %d: %w", i, err)
		}
		s.files[i] = f
	}
	return s, nil
}

// Shards reports the shard count the store was opened with.
func (s *Store) Shards() int { return s.shards }

// Append writes rec to the shard file for rec.ID.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.files[rec.ID%uint64(s.shards)]
	return rec.Encode(f)
}

// Close flushes and closes every shard file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, f := range s.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Replay scans every shard file and folds its records into a recovered
// job map, keyed by id. A full record overwrites the entry completely; a
// delta merges onto the existing entry (forcing reserved back to ready,
// per the at-least-once-under-failure contract), or deletes the entry
// if its state is invalid.
func (s *Store) Replay() (map[uint64]Record, error) {
	recovered := make(map[uint64]Record)
	for i := 0; i < s.shards; i++ {
		if err := s.replayFile(i, recovered); err != nil {
			return nil, err
		}
	}
	return recovered, nil
}

func (s *Store) replayFile(i int, recovered map[uint64]Record) error {
	s.mu.Lock()
	f := s.files[i]
	s.mu.Unlock()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek shard %d: %w", i, err)
	}
	r := bufio.NewReader(f)
	for {
		rec, err := DecodeRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		applyRecord(recovered, rec)
	}
	// Restore the append offset for subsequent writers.
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("wal: seek shard %d: %w", i, err)
	}
	return nil
}

func applyRecord(recovered map[uint64]Record, rec Record) {
	if rec.Full {
		recovered[rec.ID] = rec
		return
	}
	if rec.State == StateInvalid {
		delete(recovered, rec.ID)
		return
	}
	if rec.State == StateReserved {
		rec.State = StateReady
	}
	existing, ok := recovered[rec.ID]
	if ok {
		rec.Tube = existing.Tube
		rec.Body = existing.Body
		rec.Full = existing.Full
	}
	recovered[rec.ID] = rec
}

// Rotate truncates every shard file and begins writing into it afresh,
// first re-establishing a full record for every surviving job so the
// newly-initialized files are self-sufficient.
func (s *Store) Rotate(survivors map[uint64]Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.files {
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("wal: truncate shard %d: %w", i, err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("wal: seek shard %d: %w", i, err)
		}
	}

	for _, rec := range survivors {
		rec.Full = true
		f := s.files[rec.ID%uint64(s.shards)]
		if err := rec.Encode(f); err != nil {
			return fmt.Errorf("wal: write recovered record %d: %w", rec.ID, err)
		}
	}
	return nil
}
