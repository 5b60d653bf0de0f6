// Package archive periodically persists the documentation buffer of live
// doc rooms so generated docs survive a restart even though room state
// itself is process-lifetime only.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/rishabh-28-shubham/TechStroke/internal/db"
	"github.com/rishabh-28-shubham/TechStroke/internal/protocol"
	"github.com/rishabh-28-shubham/TechStroke/internal/room"
)

type Service struct {
	log      *slog.Logger
	database *db.Database
	registry *room.Registry
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup

	mu       sync.Mutex
	archived map[string]string // room id -> content hash of last archive
}

func New(log *slog.Logger, database *db.Database, registry *room.Registry, interval time.Duration) *Service {
	return &Service{
		log:      log,
		database: database,
		registry: registry,
		interval: interval,
		stop:     make(chan struct{}),
		archived: make(map[string]string),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	s.log.Info("documentation archiver started", "interval", s.interval)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.log.Info("documentation archiver stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.archiveAll()
		}
	}
}

// archiveAll writes one archive entry per doc room whose documentation
// buffer changed since the last pass. Empty buffers are skipped.
func (s *Service) archiveAll() {
	s.registry.Each(func(rm *room.Room) {
		if rm.Kind != protocol.KindDoc {
			return
		}

		snap := rm.Snapshot()
		if snap.Payload.Content == "" {
			return
		}

		hash := contentHash(snap.Payload.Content)

		s.mu.Lock()
		unchanged := s.archived[rm.ID] == hash
		s.mu.Unlock()
		if unchanged {
			return
		}

		repoURL := ""
		if snap.Payload.RepoSnapshot != nil {
			repoURL = snap.Payload.RepoSnapshot.URL
		}

		if _, err := s.database.SaveDocumentation(rm.ID, repoURL, snap.Payload.Content); err != nil {
			s.log.Warn("archive failed", "room", rm.ID, "err", err)
			return
		}

		s.mu.Lock()
		s.archived[rm.ID] = hash
		s.mu.Unlock()

		s.log.Debug("documentation archived", "room", rm.ID, "bytes", len(snap.Payload.Content))
	})
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
