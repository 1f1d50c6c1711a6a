// internal/storage/archive.go
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"healthara/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Fixed-width so stored timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Archive keeps saved conversation snapshots in SQLite.
type Archive struct {
	db *sql.DB
}

func NewArchive(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps writes serialized and in-memory databases shared.
	db.SetMaxOpenConns(1)

	archive := &Archive{db: db}
	if err := archive.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return archive, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) initSchema() error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY,
        summary TEXT NOT NULL,
        saved_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        conversation_id TEXT NOT NULL,
        entry_id TEXT NOT NULL,
        role TEXT NOT NULL,
        text TEXT NOT NULL,
        timestamp TEXT NOT NULL,
        FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_conversations_saved_at ON conversations(saved_at);
    CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);
    `

	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveConversation stores a snapshot of entries and returns it with its
// generated ID. Entries must not be empty.
func (a *Archive) SaveConversation(entries []models.ConversationEntry) (*models.SavedConversation, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: conversation is empty", models.ErrInvalidInput)
	}

	conv := &models.SavedConversation{
		ID:      uuid.New().String(),
		Summary: summarize(entries),
		SavedAt: time.Now().UTC(),
		Entries: cloneEntries(entries),
	}

	tx, err := a.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO conversations (id, summary, saved_at) VALUES (?, ?, ?)`,
		conv.ID, conv.Summary, formatTime(conv.SavedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	messageQuery := `
        INSERT INTO messages (conversation_id, entry_id, role, text, timestamp)
        VALUES (?, ?, ?, ?, ?)
    `
	for _, e := range conv.Entries {
		_, err = tx.Exec(messageQuery, conv.ID, e.ID, string(e.Role), e.Text, formatTime(e.Timestamp))
		if err != nil {
			return nil, fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the newest snapshots first.
func (a *Archive) ListConversations(limit int) ([]*models.SavedConversation, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := a.db.Query(`
        SELECT id, summary, saved_at
        FROM conversations
        ORDER BY saved_at DESC, rowid DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}

	convs := []*models.SavedConversation{}
	for rows.Next() {
		conv := &models.SavedConversation{}
		var savedAtStr string
		if err := rows.Scan(&conv.ID, &conv.Summary, &savedAtStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if conv.SavedAt, err = parseTime(savedAtStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse saved_at: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	// Close before loading messages: the pool holds one connection.
	rows.Close()

	for _, conv := range convs {
		if err := a.loadMessages(conv); err != nil {
			return nil, fmt.Errorf("failed to load messages for conversation %s: %w", conv.ID, err)
		}
	}

	return convs, nil
}

// GetConversation returns one snapshot or ErrConversationNotFound.
func (a *Archive) GetConversation(id string) (*models.SavedConversation, error) {
	conv := &models.SavedConversation{}
	var savedAtStr string
	err := a.db.QueryRow(`SELECT id, summary, saved_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Summary, &savedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	if conv.SavedAt, err = parseTime(savedAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse saved_at: %w", err)
	}
	if err := a.loadMessages(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (a *Archive) loadMessages(conv *models.SavedConversation) error {
	rows, err := a.db.Query(`
        SELECT entry_id, role, text, timestamp
        FROM messages
        WHERE conversation_id = ?
        ORDER BY id
    `, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	entries := []models.ConversationEntry{}
	for rows.Next() {
		var e models.ConversationEntry
		var roleStr, tsStr string
		if err := rows.Scan(&e.ID, &roleStr, &e.Text, &tsStr); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		if e.Timestamp, err = parseTime(tsStr); err != nil {
			return fmt.Errorf("failed to parse timestamp: %w", err)
		}
		e.Role = models.Role(roleStr)
		entries = append(entries, e)
	}

	conv.Entries = entries
	return rows.Err()
}

func summarize(entries []models.ConversationEntry) string {
	for _, e := range entries {
		if e.Role == models.RoleUser && strings.TrimSpace(e.Text) != "" {
			text := strings.Join(strings.Fields(e.Text), " ")
			runes := []rune(text)
			if len(runes) > 50 {
				text = string(runes[:47]) + "..."
			}
			return text
		}
	}
	return "New conversation"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
