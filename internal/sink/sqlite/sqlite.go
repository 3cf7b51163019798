// Package sqlite stores attacks in a local SQLite database with one row
// per attack in events and one row per evidence packet in packets.
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/sink"
)

const Name = "sqlite"

func init() {
	sink.Register(Name, func(cfg config.SinkConfig) (sink.Sink, error) {
		if cfg.SQLite.Path == "" {
			return nil, fmt.Errorf("sqlite sink requires 'path' field")
		}
		return New(cfg.SQLite.Path), nil
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	signature TEXT NOT NULL UNIQUE,
	start_date INTEGER NOT NULL,
	attack_address TEXT NOT NULL,
	victim_address TEXT NOT NULL,
	attack_type TEXT NOT NULL,
	scanner_id TEXT NOT NULL,
	last_activity INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS packets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id INTEGER NOT NULL REFERENCES events(id),
	packet_id TEXT NOT NULL,
	port_source INTEGER,
	port_destination INTEGER,
	ip_address_source TEXT,
	ip_address_destination TEXT,
	domain_source TEXT,
	domain_destination TEXT,
	hardware_address_source TEXT,
	hardware_address_target TEXT,
	type TEXT,
	payload BLOB,
	timestamp INTEGER NOT NULL,
	protocol TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_packets_event ON packets(event_id);
`

const insertPacket = `
INSERT INTO packets (event_id, packet_id, port_source, port_destination,
	ip_address_source, ip_address_destination, domain_source, domain_destination,
	hardware_address_source, hardware_address_target, type, payload, timestamp, protocol)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Sink writes attacks to SQLite. Writes are serialized.
type Sink struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func New(path string) *Sink {
	return &Sink{path: path}
}

func (s *Sink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := sql.Open("sqlite", s.path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open sqlite sink: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to init sqlite schema: %w", err)
	}
	s.db = db
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Create inserts the event row and every packet, then marks the packets
// logged.
func (s *Sink) Create(a *core.Attack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return core.ErrSinkClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO events (signature, start_date, attack_address, victim_address, attack_type, scanner_id, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Signature(),
		a.FirstSeen().UnixMilli(),
		a.Attacker,
		a.Victim,
		a.Type,
		a.Detector.ID,
		a.LastSeen().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", a.Signature(), err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if err := insertPackets(tx, eventID, a.Packets); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, p := range a.Packets {
		p.MarkLogged()
	}
	return nil
}

// Update appends packets not yet logged and moves last_activity forward.
// It does nothing when every packet is already stored.
func (s *Sink) Update(a *core.Attack) error {
	var fresh []*core.Packet
	for _, p := range a.Packets {
		if !p.Logged() {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return core.ErrSinkClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var eventID int64
	err = tx.QueryRow(`SELECT id FROM events WHERE signature = ?`, a.Signature()).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("lookup event %s: %w", a.Signature(), err)
	}

	if _, err := tx.Exec(`UPDATE events SET last_activity = ? WHERE id = ?`,
		a.LastSeen().UnixMilli(), eventID); err != nil {
		return err
	}

	if err := insertPackets(tx, eventID, fresh); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, p := range fresh {
		p.MarkLogged()
	}
	return nil
}

func insertPackets(tx *sql.Tx, eventID int64, packets []*core.Packet) error {
	stmt, err := tx.Prepare(insertPacket)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range packets {
		v := p.View()
		_, err := stmt.Exec(
			eventID,
			v.ID,
			v.SrcPort,
			v.DstPort,
			v.SrcIP,
			v.DstIP,
			nullable(v.SrcDomain),
			nullable(v.DstDomain),
			v.SrcMAC,
			v.DstMAC,
			v.ICMPType,
			v.Payload,
			v.Timestamp.UnixMilli(),
			v.Protocol,
		)
		if err != nil {
			return fmt.Errorf("insert packet %s: %w", v.ID, err)
		}
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// EventRow is one stored attack, as read back by Events.
type EventRow struct {
	ID           int64
	Signature    string
	StartDate    time.Time
	Attacker     string
	Victim       string
	AttackType   string
	ScannerID    string
	LastActivity time.Time
	Packets      int
}

// Events returns every stored event with its packet count, oldest first.
func (s *Sink) Events() ([]EventRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, core.ErrSinkClosed
	}

	rows, err := s.db.Query(`
		SELECT e.id, e.signature, e.start_date, e.attack_address, e.victim_address,
			e.attack_type, e.scanner_id, e.last_activity, COUNT(p.id)
		FROM events e LEFT JOIN packets p ON p.event_id = e.id
		GROUP BY e.id
		ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		var start, last int64
		if err := rows.Scan(&r.ID, &r.Signature, &start, &r.Attacker, &r.Victim,
			&r.AttackType, &r.ScannerID, &last, &r.Packets); err != nil {
			return nil, err
		}
		r.StartDate = time.UnixMilli(start)
		r.LastActivity = time.UnixMilli(last)
		out = append(out, r)
	}
	return out, rows.Err()
}
