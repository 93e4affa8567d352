package store

import (
	"context"
	"time"
)

type eventKind int

const (
	eventInsert eventKind = iota
	eventUpdate
	eventDelete
	eventRead
)

type event struct {
	kind       eventKind
	collection string
}

const flushInterval = 5 * time.Second

// run folds operation events into the store counters and flushes them
// to .store.json periodically and on shutdown.
func (s *Store) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case e, ok := <-s.events:
			if !ok {
				if dirty {
					s.flushMetadata()
				}
				return
			}
			s.metaMu.Lock()
			switch e.kind {
			case eventInsert:
				s.meta.Counters.Inserts++
			case eventUpdate:
				s.meta.Counters.Updates++
			case eventDelete:
				s.meta.Counters.Deletes++
			case eventRead:
				s.meta.Counters.Reads++
			}
			s.meta.UpdatedAt = time.Now().UTC()
			s.metaMu.Unlock()
			dirty = true
		case <-ticker.C:
			if dirty {
				s.flushMetadata()
				dirty = false
			}
		}
	}
}

func (s *Store) flushMetadata() {
	s.metaMu.Lock()
	meta := s.meta
	s.metaMu.Unlock()
	if err := saveJSON(context.Background(), s.fs, storeMetadataFile, &meta); err != nil {
		s.logger.Error("flushing store metadata", "error", err)
	}
}

func (s *Store) emit(kind eventKind, collection string) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return
	}
	s.events <- event{kind: kind, collection: collection}
}
