package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// PersistenceError signals that a snapshot write failed even after the backup
// retry. In-memory state is left unchanged when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

const backupSuffix = ".bak"

// Store holds vector records in memory and mirrors them to a JSON snapshot on
// disk. Mutations build a fresh map and swap it in, so in-flight searches keep
// reading a consistent point-in-time view. Physical writes are serialized;
// reads never wait on a pending write.
type Store struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex // guards the records map reference
	writeMu sync.Mutex   // serializes snapshot writes
	records map[string]*models.VectorRecord
}

// NewStore creates a store persisting to path. An empty path keeps the store
// memory-only (used in tests).
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:    path,
		logger:  logger,
		records: make(map[string]*models.VectorRecord),
	}
}

// Load reads the snapshot from disk, falling back to the retained backup when
// the primary file is missing or corrupt. A store with no snapshot starts empty.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	recs, err := readSnapshot(s.path)
	if err != nil {
		s.logger.Warn("snapshot unreadable, trying backup", zap.String("path", s.path), zap.Error(err))
		recs, err = readSnapshot(s.path + backupSuffix)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
	}
	if recs == nil {
		return nil
	}
	next := make(map[string]*models.VectorRecord, len(recs))
	for _, r := range recs {
		next[r.ID] = r
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	s.logger.Info("vector snapshot loaded", zap.Int("records", len(next)))
	return nil
}

// Upsert replaces any existing record sharing an ID and persists the result
// atomically. On persistence failure the in-memory state is unchanged and a
// *PersistenceError is returned.
func (s *Store) Upsert(ctx context.Context, records []*models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.cloneRecords()
	for _, r := range records {
		if r == nil || r.ID == "" {
			return fmt.Errorf("upsert: record without id")
		}
		next[r.ID] = r
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	return nil
}

// Delete removes every record belonging to docID and persists atomically.
// Deleting an unknown document is a no-op.
func (s *Store) Delete(ctx context.Context, docID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.cloneRecords()
	removed := 0
	for id, r := range next {
		if r.DocumentID == docID {
			delete(next, id)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	s.logger.Debug("document deleted", zap.String("document_id", docID), zap.Int("chunks", removed))
	return nil
}

// Search returns up to topK accessible records ranked by descending cosine
// similarity. Access filtering happens before ranking and truncation, so a
// caller never loses accessible matches to inaccessible ones crowding the
// top-K window. Ties break on record ID ascending. An empty store or an empty
// filtered candidate set yields an empty slice.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, topK int, user models.UserProfile) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	recs := s.records
	s.mu.RUnlock()

	results := make([]models.RetrievalResult, 0, len(recs))
	for _, r := range recs {
		if !Accessible(r, user) {
			continue
		}
		results = append(results, models.RetrievalResult{
			Record: r,
			Score:  CosineSimilarity(queryEmbedding, r.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Accessible reports whether user may retrieve r. Records without a department,
// or marked "General", are open to everyone; admins bypass department checks.
func Accessible(r *models.VectorRecord, user models.UserProfile) bool {
	dept := strings.TrimSpace(r.Department)
	if dept == "" || strings.EqualFold(dept, "General") {
		return true
	}
	if user.IsAdmin() {
		return true
	}
	return strings.EqualFold(dept, strings.TrimSpace(user.Department))
}

// Size returns the number of records.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) cloneRecords() map[string]*models.VectorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	next := make(map[string]*models.VectorRecord, len(s.records)+1)
	for id, r := range s.records {
		next[id] = r
	}
	return next
}

// persist writes the snapshot atomically: marshal to a temp file, retain the
// previous snapshot as backup, then rename into place. A failed write is
// retried once after restoring the snapshot from backup.
func (s *Store) persist(recs map[string]*models.VectorRecord) error {
	if s.path == "" {
		return nil
	}
	if err := s.writeSnapshot(recs); err != nil {
		s.logger.Warn("snapshot write failed, retrying after backup restore", zap.Error(err))
		s.restoreBackup()
		if err2 := s.writeSnapshot(recs); err2 != nil {
			return &PersistenceError{Op: "write snapshot", Err: err2}
		}
	}
	return nil
}

func (s *Store) writeSnapshot(recs map[string]*models.VectorRecord) error {
	ordered := make([]*models.VectorRecord, 0, len(recs))
	for _, r := range recs {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	data, err := json.Marshal(snapshotFile{Records: ordered})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, s.path+backupSuffix); err != nil {
			return fmt.Errorf("retain backup: %w", err)
		}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (s *Store) restoreBackup() {
	if _, err := os.Stat(s.path + backupSuffix); err != nil {
		return
	}
	if err := copyFile(s.path+backupSuffix, s.path); err != nil {
		s.logger.Warn("backup restore failed", zap.Error(err))
	}
}

type snapshotFile struct {
	Records []*models.VectorRecord `json:"records"`
}

func readSnapshot(path string) ([]*models.VectorRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", filepath.Base(path), err)
	}
	return snap.Records, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
