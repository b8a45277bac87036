package store

import (
	"bytes"
	"database/sql"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sessionmesh/sessionmesh/core"
)

//go:embed schema.sql
var schemaSQL string

// Metadata keys of the wire format.
const (
	metaSessionID       = "session_id"
	metaSchemaVersion   = "schema_version"
	metaMaxArtifactSize = "max_artifact_size"
	metaStateVersion    = "state_version"
)

// Save writes the entire session to a single SQLite file at path, overwriting
// any existing file. The write is atomic-on-success: a temp file in the same
// directory is populated, fsynced and renamed into place. Failures are
// reported as PERSISTENCE_ERROR and leave no partial file behind.
//
// Save appends no trajectory entries, so a subsequent Load reproduces the
// session exactly as it was at the moment of the call.
func Save(sess *core.Session, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".session-*.db")
	if err != nil {
		return core.Errorf(core.CodePersistenceError, "create temp file: %v", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return core.Errorf(core.CodePersistenceError, "close temp file: %v", err)
	}

	if err := writeSession(sess, tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := syncFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return core.Errorf(core.CodePersistenceError, "rename into place: %v", err)
	}
	// Rename durability needs the directory synced as well; failure here is
	// not fatal to the data already on disk.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Load reconstructs a session from a SQLite file previously produced by Save
// (or any other implementation of the wire format). Schema mismatches,
// corruption and I/O failures are reported as PERSISTENCE_ERROR; a failed
// load never yields a partial session.
func Load(path string) (*core.Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, core.Errorf(core.CodePersistenceError, "session file not found: %s", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, core.Errorf(core.CodePersistenceError, "open database: %v", err)
	}
	defer db.Close()

	meta, err := loadMetadata(db)
	if err != nil {
		return nil, err
	}

	state, err := loadState(db)
	if err != nil {
		return nil, err
	}
	trajectory, err := loadTrajectory(db)
	if err != nil {
		return nil, err
	}
	artifacts, err := loadArtifacts(db)
	if err != nil {
		return nil, err
	}

	return core.Restore(core.RestoredSession{
		SessionID:       meta.sessionID,
		MaxArtifactSize: meta.maxArtifactSize,
		StateVersion:    meta.stateVersion,
		State:           state,
		Trajectory:      trajectory,
		Artifacts:       artifacts,
	})
}

// =========================================================================
// Write path
// =========================================================================

func writeSession(sess *core.Session, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return core.Errorf(core.CodePersistenceError, "open database: %v", err)
	}
	defer db.Close()

	// SQLite supports one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		return core.Errorf(core.CodePersistenceError, "apply schema: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return core.Errorf(core.CodePersistenceError, "begin transaction: %v", err)
	}
	defer tx.Rollback()

	if err := writeMetadata(tx, sess); err != nil {
		return err
	}
	if err := writeState(tx, sess.State()); err != nil {
		return err
	}
	if err := writeTrajectory(tx, sess.Trajectory(core.TrajectoryFilter{})); err != nil {
		return err
	}
	if err := writeArtifacts(tx, sess.Artifacts()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return core.Errorf(core.CodePersistenceError, "commit: %v", err)
	}
	return nil
}

func writeMetadata(tx *sql.Tx, sess *core.Session) error {
	rows := [][2]string{
		{metaSessionID, sess.ID()},
		{metaSchemaVersion, strconv.Itoa(core.SchemaVersion)},
		{metaMaxArtifactSize, strconv.FormatInt(sess.MaxArtifactSize(), 10)},
		{metaStateVersion, strconv.FormatInt(sess.StateVersion(), 10)},
	}
	for _, row := range rows {
		if _, err := tx.Exec("INSERT INTO metadata (key, value) VALUES (?, ?)", row[0], row[1]); err != nil {
			return core.Errorf(core.CodePersistenceError, "write metadata %s: %v", row[0], err)
		}
	}
	return nil
}

func writeState(tx *sql.Tx, state map[string]any) error {
	for key, value := range state {
		encoded, err := json.Marshal(value)
		if err != nil {
			// Set-time validation guarantees serializability; reaching this
			// branch means internal state corruption.
			return core.Errorf(core.CodePersistenceError, "encode state %q: %v", key, err)
		}
		if _, err := tx.Exec("INSERT INTO state (key, value) VALUES (?, ?)", key, encoded); err != nil {
			return core.Errorf(core.CodePersistenceError, "write state %q: %v", key, err)
		}
	}
	return nil
}

func writeTrajectory(tx *sql.Tx, entries []core.TrajectoryEntry) error {
	stmt, err := tx.Prepare(`INSERT INTO trajectory
		(seq_num, timestamp, agent_id, entry_type, content) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return core.Errorf(core.CodePersistenceError, "prepare trajectory insert: %v", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		content, err := json.Marshal(e.Content)
		if err != nil {
			return core.Errorf(core.CodePersistenceError, "encode entry %d content: %v", e.SeqNum, err)
		}
		_, err = stmt.Exec(e.SeqNum, e.Timestamp.UTC().Format(time.RFC3339Nano), e.AgentID, string(e.EntryType), content)
		if err != nil {
			return core.Errorf(core.CodePersistenceError, "write entry %d: %v", e.SeqNum, err)
		}
	}
	return nil
}

func writeArtifacts(tx *sql.Tx, artifacts map[string][]byte) error {
	for name, data := range artifacts {
		if _, err := tx.Exec("INSERT INTO artifacts (name, data) VALUES (?, ?)", name, data); err != nil {
			return core.Errorf(core.CodePersistenceError, "write artifact %q: %v", name, err)
		}
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return core.Errorf(core.CodePersistenceError, "open for fsync: %v", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return core.Errorf(core.CodePersistenceError, "fsync: %v", err)
	}
	return nil
}

// =========================================================================
// Read path
// =========================================================================

type metadata struct {
	sessionID       string
	maxArtifactSize int64
	stateVersion    int64
}

func loadMetadata(db *sql.DB) (metadata, error) {
	rows, err := db.Query("SELECT key, value FROM metadata")
	if err != nil {
		return metadata{}, core.Errorf(core.CodePersistenceError, "read metadata: %v", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return metadata{}, core.Errorf(core.CodePersistenceError, "scan metadata: %v", err)
		}
		kv[key] = value
	}
	if err := rows.Err(); err != nil {
		return metadata{}, core.Errorf(core.CodePersistenceError, "read metadata: %v", err)
	}

	schemaVersion, err := strconv.Atoi(kv[metaSchemaVersion])
	if err != nil {
		return metadata{}, core.Errorf(core.CodePersistenceError, "missing or invalid schema_version")
	}
	if schemaVersion != core.SchemaVersion {
		return metadata{}, core.Errorf(core.CodePersistenceError,
			"schema version mismatch: file has %d, expected %d", schemaVersion, core.SchemaVersion)
	}

	sessionID, ok := kv[metaSessionID]
	if !ok || sessionID == "" {
		return metadata{}, core.Errorf(core.CodePersistenceError, "metadata is missing session_id")
	}
	maxSize, err := strconv.ParseInt(kv[metaMaxArtifactSize], 10, 64)
	if err != nil {
		return metadata{}, core.Errorf(core.CodePersistenceError, "missing or invalid max_artifact_size")
	}
	stateVersion, err := strconv.ParseInt(kv[metaStateVersion], 10, 64)
	if err != nil {
		return metadata{}, core.Errorf(core.CodePersistenceError, "missing or invalid state_version")
	}

	return metadata{sessionID: sessionID, maxArtifactSize: maxSize, stateVersion: stateVersion}, nil
}

func loadState(db *sql.DB) (map[string]any, error) {
	rows, err := db.Query("SELECT key, value FROM state")
	if err != nil {
		return nil, core.Errorf(core.CodePersistenceError, "read state: %v", err)
	}
	defer rows.Close()

	state := make(map[string]any)
	for rows.Next() {
		var key string
		var encoded []byte
		if err := rows.Scan(&key, &encoded); err != nil {
			return nil, core.Errorf(core.CodePersistenceError, "scan state: %v", err)
		}
		value, err := decodeJSON(encoded)
		if err != nil {
			return nil, core.Errorf(core.CodePersistenceError, "decode state %q: %v", key, err)
		}
		state[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, core.Errorf(core.CodePersistenceError, "read state: %v", err)
	}
	return state, nil
}

func loadTrajectory(db *sql.DB) ([]core.TrajectoryEntry, error) {
	rows, err := db.Query(`SELECT seq_num, timestamp, agent_id, entry_type, content
		FROM trajectory ORDER BY seq_num ASC`)
	if err != nil {
		return nil, core.Errorf(core.CodePersistenceError, "read trajectory: %v", err)
	}
	defer rows.Close()

	var entries []core.TrajectoryEntry
	for rows.Next() {
		var (
			seqNum    int64
			stamp     string
			agentID   string
			entryType string
			content   []byte
		)
		if err := rows.Scan(&seqNum, &stamp, &agentID, &entryType, &content); err != nil {
			return nil, core.Errorf(core.CodePersistenceError, "scan trajectory: %v", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, stamp)
		if err != nil {
			return nil, core.Errorf(core.CodePersistenceError, "entry %d has invalid timestamp %q", seqNum, stamp)
		}
		if !core.EntryType(entryType).Valid() {
			return nil, core.Errorf(core.CodePersistenceError, "entry %d has unknown type %q", seqNum, entryType)
		}
		decoded, err := decodeJSON(content)
		if err != nil {
			return nil, core.Errorf(core.CodePersistenceError, "decode entry %d content: %v", seqNum, err)
		}
		payload, ok := decoded.(map[string]any)
		if !ok {
			return nil, core.Errorf(core.CodePersistenceError, "entry %d content is not an object", seqNum)
		}
		entries = append(entries, core.TrajectoryEntry{
			SeqNum:    seqNum,
			Timestamp: ts.UTC(),
			AgentID:   agentID,
			EntryType: core.EntryType(entryType),
			Content:   payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, core.Errorf(core.CodePersistenceError, "read trajectory: %v", err)
	}
	return entries, nil
}

func loadArtifacts(db *sql.DB) (map[string][]byte, error) {
	rows, err := db.Query("SELECT name, data FROM artifacts")
	if err != nil {
		return nil, core.Errorf(core.CodePersistenceError, "read artifacts: %v", err)
	}
	defer rows.Close()

	artifacts := make(map[string][]byte)
	for rows.Next() {
		var name string
		var data []byte
		if err := rows.Scan(&name, &data); err != nil {
			return nil, core.Errorf(core.CodePersistenceError, "scan artifacts: %v", err)
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		artifacts[name] = cp
	}
	if err := rows.Err(); err != nil {
		return nil, core.Errorf(core.CodePersistenceError, "read artifacts: %v", err)
	}
	return artifacts, nil
}

// decodeJSON decodes with UseNumber so numeric values come back in the
// session's canonical form.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
