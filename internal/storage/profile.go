// internal/storage/profile.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"healthara/internal/models"
)

const recordPerm = 0o600

// ProfileStore persists one health profile and its conversation history as a
// single JSON document. Every mutating call is one durable write.
type ProfileStore struct {
	path string
	rec  *models.Record // last successfully read or written record
	now  func() time.Time
}

func NewProfileStore(path string) *ProfileStore {
	return &ProfileStore{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the backing file.
func (s *ProfileStore) Path() string {
	return s.path
}

// Load returns the stored profile. It returns ErrProfileNotFound when no
// profile exists yet and ErrStorage when the file can't be read or parsed.
func (s *ProfileStore) Load() (*models.HealthProfile, error) {
	rec, err := s.read()
	if err != nil {
		return nil, err
	}
	if rec.Profile == nil {
		return nil, models.ErrProfileNotFound
	}
	return rec.Profile.Clone(), nil
}

// History returns the conversation entries in append order.
func (s *ProfileStore) History() ([]models.ConversationEntry, error) {
	rec, err := s.read()
	if err != nil {
		return nil, err
	}
	return cloneEntries(rec.History), nil
}

// Save validates and persists the profile, keeping the existing history.
func (s *ProfileStore) Save(profile *models.HealthProfile) error {
	if profile == nil {
		return fmt.Errorf("%w: profile is nil", models.ErrInvalidInput)
	}
	p := profile.Clone()
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	return s.update(func(rec *models.Record) {
		if !reflect.DeepEqual(rec.Profile, p) {
			rec.UpdatedAt = s.now()
		}
		rec.Profile = p
	})
}

// AppendEntry appends one conversation entry.
func (s *ProfileStore) AppendEntry(entry models.ConversationEntry) error {
	return s.AppendExchange(entry)
}

// AppendExchange appends several entries in a single write, so a user turn
// and its reply are persisted together or not at all.
func (s *ProfileStore) AppendExchange(entries ...models.ConversationEntry) error {
	prepared := make([]models.ConversationEntry, 0, len(entries))
	for _, e := range entries {
		entry, err := s.prepareEntry(e)
		if err != nil {
			return err
		}
		prepared = append(prepared, entry)
	}
	if len(prepared) == 0 {
		return nil
	}

	return s.update(func(rec *models.Record) {
		rec.History = append(rec.History, prepared...)
	})
}

// ClearHistory drops the conversation but keeps the profile.
func (s *ProfileStore) ClearHistory() error {
	return s.update(func(rec *models.Record) {
		rec.History = []models.ConversationEntry{}
	})
}

// Delete removes the backing file. Deleting a missing record is not an error.
func (s *ProfileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to delete record: %v", models.ErrStorage, err)
	}
	s.rec = emptyRecord()
	return nil
}

// Bundle returns the export bundle for the current record.
func (s *ProfileStore) Bundle() (*models.ExportBundle, error) {
	rec, err := s.read()
	if err != nil {
		return nil, err
	}
	return &models.ExportBundle{
		Version:    rec.Version,
		UpdatedAt:  rec.UpdatedAt,
		Profile:    rec.Profile.Clone(),
		History:    cloneEntries(rec.History),
		ExportedAt: s.now(),
	}, nil
}

// Export serializes the bundle, optionally indented.
func (s *ProfileStore) Export(pretty bool) ([]byte, error) {
	bundle, err := s.Bundle()
	if err != nil {
		return nil, err
	}
	return MarshalBundle(bundle, pretty)
}

func MarshalBundle(bundle *models.ExportBundle, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(bundle, "", "  ")
	}
	return json.Marshal(bundle)
}

func (s *ProfileStore) prepareEntry(e models.ConversationEntry) (models.ConversationEntry, error) {
	if e.Role != models.RoleUser && e.Role != models.RoleAssistant {
		return e, fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, e.Role)
	}
	if strings.TrimSpace(e.Text) == "" {
		return e, fmt.Errorf("%w: entry text is empty", models.ErrInvalidInput)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	return e, nil
}

// update applies mutate to a copy of the current record and persists it. If
// the file on disk is unreadable it is moved aside first, so a corrupt record
// never blocks new writes and is never silently overwritten.
func (s *ProfileStore) update(mutate func(rec *models.Record)) error {
	current, err := s.read()
	if err != nil {
		if !errors.Is(err, models.ErrStorage) {
			return err
		}
		if qerr := s.quarantine(); qerr != nil {
			return qerr
		}
		current = emptyRecord()
	}

	next := cloneRecord(current)
	mutate(next)
	next.Version = models.RecordVersion

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode record: %v", models.ErrStorage, err)
	}
	if err := writeFileAtomic(s.path, data, recordPerm); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorage, err)
	}

	s.rec = next
	return nil
}

func (s *ProfileStore) read() (*models.Record, error) {
	if s.rec != nil {
		return s.rec, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.rec = emptyRecord()
		return s.rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", models.ErrStorage, s.path, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrStorage, s.path, err)
	}
	s.rec = rec
	return s.rec, nil
}

func (s *ProfileStore) quarantine() error {
	aside := s.path + ".corrupt"
	if err := os.Rename(s.path, aside); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to move unreadable record aside: %v", models.ErrStorage, err)
	}
	log.Warn().Str("path", s.path).Str("moved_to", aside).Msg("Unreadable health record moved aside")
	return nil
}

// decodeRecord parses a persisted record. Unknown fields are ignored, a
// missing version is read as version 1, and newer versions are rejected.
func decodeRecord(data []byte) (*models.Record, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return emptyRecord(), nil
	}

	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("malformed record: %w", err)
	}
	if rec.Version == 0 {
		rec.Version = models.RecordVersion
	}
	if rec.Version > models.RecordVersion {
		return nil, fmt.Errorf("record version %d is newer than supported version %d", rec.Version, models.RecordVersion)
	}
	if rec.Profile != nil {
		rec.Profile.Normalize()
	}
	if rec.History == nil {
		rec.History = []models.ConversationEntry{}
	}
	return &rec, nil
}

func emptyRecord() *models.Record {
	return &models.Record{
		Version: models.RecordVersion,
		History: []models.ConversationEntry{},
	}
}

func cloneRecord(rec *models.Record) *models.Record {
	return &models.Record{
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
		Profile:   rec.Profile.Clone(),
		History:   cloneEntries(rec.History),
	}
}

func cloneEntries(in []models.ConversationEntry) []models.ConversationEntry {
	out := make([]models.ConversationEntry, len(in))
	copy(out, in)
	return out
}
