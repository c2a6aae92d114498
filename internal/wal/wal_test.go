package wal

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	rec := Record{
		ID: 42, Delay: 5, TTR: 60, Priority: 10,
		CreatedAt: 1000, DeadlineAt: 2000, State: StateReady,
		Reserves: 1, Timeouts: 2, Releases: 3, Buries: 4, Kicks: 5,
		Tube: "default", Body: []byte("hello"), Full: true,
	}
	var buf bytes.Buffer
	if err := rec.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRecord(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != rec.ID || got.Tube != rec.Tube || !bytes.Equal(got.Body, rec.Body) || !got.Full {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRecordRoundTripDelta(t *testing.T) {
	rec := Record{ID: 7, Priority: 3, State: StateBuried, Buries: 1}
	var buf bytes.Buffer
	if err := rec.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRecord(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Full || got.Tube != "" || got.Body != nil {
		t.Fatalf("delta record should carry no tube/body: %+v", got)
	}
}

func TestDecodeTruncatedTailIsEOF(t *testing.T) {
	rec := Record{ID: 1, Tube: "default", Body: []byte("x"), Full: true}
	var buf bytes.Buffer
	rec.Encode(&buf)
	truncated := buf.Bytes()[:buf.Len()-3]
	_, err := DecodeRecord(bufio.NewReader(bytes.NewReader(truncated)))
	if err != io.EOF {
		t.Fatalf("expected io.EOF on a truncated tail, got %v", err)
	}
}

func TestReplayMergeSemantics(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	full := Record{ID: 1, Tube: "default", Body: []byte("x"), Priority: 5, State: StateReady, Full: true}
	if err := s.Append(full); err != nil {
		t.Fatalf("append full: %v", err)
	}
	delta := Record{ID: 1, Priority: 9, State: StateReserved}
	if err := s.Append(delta); err != nil {
		t.Fatalf("append delta: %v", err)
	}

	recovered, err := s.Replay()
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	rec, ok := recovered[1]
	if !ok {
		t.Fatal("job 1 missing after replay")
	}
	if rec.State != StateReady {
		t.Fatalf("reserved job should demote to ready on replay, got %v", rec.State)
	}
	if rec.Priority != 9 {
		t.Fatalf("delta priority should win, got %d", rec.Priority)
	}
	if rec.Tube != "default" || !bytes.Equal(rec.Body, []byte("x")) {
		t.Fatalf("tube/body should be preserved from the full record: %+v", rec)
	}
}

func TestReplayTombstoneDeletes(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.Append(Record{ID: 1, Tube: "default", Body: []byte("x"), Full: true})
	s.Append(Record{ID: 1, State: StateInvalid})

	recovered, err := s.Replay()
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if _, ok := recovered[1]; ok {
		t.Fatal("tombstoned job should not survive replay")
	}
}

func TestRotateProducesSelfSufficientShards(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.Append(Record{ID: 1, Tube: "default", Body: []byte("x"), Full: true})
	s.Append(Record{ID: 1, Priority: 7, State: StateReady})

	recovered, err := s.Replay()
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if err := s.Rotate(recovered); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	reopened, err := Open(dir, 2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	again, err := reopened.Replay()
	if err != nil {
		t.Fatalf("replay after rotate: %v", err)
	}
	rec, ok := again[1]
	if !ok || rec.Priority != 7 || rec.Tube != "default" {
		t.Fatalf("rotated shard should replay to the same state: %+v ok=%v", rec, ok)
	}
}

func TestShardPlacementByID(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Append(Record{ID: 5, Tube: "default", Body: nil, Full: true}); err != nil {
		t.Fatalf("append: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "wal-1.bin"))
	if err != nil {
		t.Fatalf("expected shard 1 (5 mod 4) to receive the record: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("shard file is empty")
	}
}
