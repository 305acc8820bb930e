package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"coreconvo/domain"
)

// SQLiteRepository is the durable Repository backend, selected whenever
// DB_URL points at a file path rather than the literal "memory". It follows
// the teacher's srv/sqlite.Storage shape -- a single *sql.DB wrapped in a
// struct that implements every storage interface the domain layer needs --
// but trades golang-migrate for a single embedded schema file applied with
// CREATE TABLE IF NOT EXISTS, since this core has no released-version
// history to step through yet.
type SQLiteRepository struct {
	db *sql.DB
}

var _ domain.Repository = (*SQLiteRepository)(nil)

// Open connects to the SQLite database at path (creating it if absent) and
// applies the embedded schema.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer avoids SQLITE_BUSY under the keyed-mutex orchestrator
	r := &SQLiteRepository{db: db}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading embedded migrations: %w", err)
	}
	for _, e := range entries {
		contents, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", e.Name(), err)
		}
		if _, err := r.db.ExecContext(ctx, string(contents)); err != nil {
			return fmt.Errorf("applying migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (r *SQLiteRepository) CheckConnection(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func toJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromJSONMap(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

func timeStr(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func wrapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewError(domain.ErrStorageFailure, op, err)
}

// --- Dialogue ---

func (r *SQLiteRepository) CreateDialogue(ctx context.Context, d domain.Dialogue) (domain.Dialogue, error) {
	if d.Id == "" {
		d.Id = newID("dlg")
	}
	d.CreatedAt = now()
	d.LastActivityAt = d.CreatedAt
	d.IsActive = true
	meta, err := toJSON(d.Metadata)
	if err != nil {
		return domain.Dialogue{}, wrapStorageErr("marshal dialogue metadata", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO dialogue
		(id, dialogue_type, human_id, ai_id, relation_id, title, description, created_at, last_activity_at, is_active, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Id, d.DialogueType, d.HumanId, d.AiId, d.RelationId, d.Title, d.Description,
		timeStr(d.CreatedAt), timeStr(d.LastActivityAt), boolToInt(d.IsActive), meta)
	if err != nil {
		return domain.Dialogue{}, wrapStorageErr("insert dialogue", err)
	}
	return d, nil
}

func (r *SQLiteRepository) GetDialogue(ctx context.Context, id string) (domain.Dialogue, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, dialogue_type, human_id, ai_id, relation_id, title, description,
		created_at, last_activity_at, is_active, metadata FROM dialogue WHERE id = ?`, id)
	return scanDialogue(row)
}

func scanDialogue(row *sql.Row) (domain.Dialogue, error) {
	var d domain.Dialogue
	var createdAt, lastActivityAt, meta string
	var isActive int
	err := row.Scan(&d.Id, &d.DialogueType, &d.HumanId, &d.AiId, &d.RelationId, &d.Title, &d.Description,
		&createdAt, &lastActivityAt, &isActive, &meta)
	if err == sql.ErrNoRows {
		return domain.Dialogue{}, domain.NewError(domain.ErrDialogueNotFound, "dialogue not found", nil)
	}
	if err != nil {
		return domain.Dialogue{}, wrapStorageErr("scan dialogue", err)
	}
	d.CreatedAt = parseTime(createdAt)
	d.LastActivityAt = parseTime(lastActivityAt)
	d.IsActive = isActive != 0
	d.Metadata = fromJSONMap(meta)
	return d, nil
}

func (r *SQLiteRepository) UpdateDialogue(ctx context.Context, d domain.Dialogue) error {
	meta, err := toJSON(d.Metadata)
	if err != nil {
		return wrapStorageErr("marshal dialogue metadata", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE dialogue SET title = ?, description = ?, last_activity_at = ?,
		is_active = ?, metadata = ? WHERE id = ?`,
		d.Title, d.Description, timeStr(d.LastActivityAt), boolToInt(d.IsActive), meta, d.Id)
	if err != nil {
		return wrapStorageErr("update dialogue", err)
	}
	return requireAffected(res, domain.ErrDialogueNotFound, "dialogue not found: "+d.Id)
}

func (r *SQLiteRepository) ListDialogues(ctx context.Context, filter domain.DialogueFilter) (domain.Page[domain.Dialogue], error) {
	where, args := "1=1", []any{}
	if filter.DialogueType != "" {
		where += " AND dialogue_type = ?"
		args = append(args, filter.DialogueType)
	}
	if filter.HumanId != "" {
		where += " AND human_id = ?"
		args = append(args, filter.HumanId)
	}
	if filter.AiId != "" {
		where += " AND ai_id = ?"
		args = append(args, filter.AiId)
	}
	if filter.IsActive != nil {
		where += " AND is_active = ?"
		args = append(args, boolToInt(*filter.IsActive))
	}

	total, err := r.count(ctx, "dialogue", where, args)
	if err != nil {
		return domain.Page[domain.Dialogue]{}, err
	}
	page, pageSize := normalizePaging(filter.Page, filter.PageSize)
	rows, err := r.db.QueryContext(ctx, `SELECT id, dialogue_type, human_id, ai_id, relation_id, title, description,
		created_at, last_activity_at, is_active, metadata FROM dialogue WHERE `+where+`
		ORDER BY created_at ASC LIMIT ? OFFSET ?`, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return domain.Page[domain.Dialogue]{}, wrapStorageErr("list dialogues", err)
	}
	defer rows.Close()

	var items []domain.Dialogue
	for rows.Next() {
		var d domain.Dialogue
		var createdAt, lastActivityAt, meta string
		var isActive int
		if err := rows.Scan(&d.Id, &d.DialogueType, &d.HumanId, &d.AiId, &d.RelationId, &d.Title, &d.Description,
			&createdAt, &lastActivityAt, &isActive, &meta); err != nil {
			return domain.Page[domain.Dialogue]{}, wrapStorageErr("scan dialogue row", err)
		}
		d.CreatedAt = parseTime(createdAt)
		d.LastActivityAt = parseTime(lastActivityAt)
		d.IsActive = isActive != 0
		d.Metadata = fromJSONMap(meta)
		items = append(items, d)
	}
	return buildPage(items, total, page, pageSize), nil
}

func (r *SQLiteRepository) CloseDialogue(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE dialogue SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return wrapStorageErr("close dialogue", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return domain.NewError(domain.ErrDialogueNotFound, "dialogue not found: "+id, nil)
	}
	endAt := timeStr(now())
	_, err = r.db.ExecContext(ctx, `UPDATE session SET end_at = ? WHERE dialogue_id = ? AND end_at IS NULL`, endAt, id)
	return wrapStorageErr("close open sessions", err)
}

// --- Session ---

func (r *SQLiteRepository) CreateSession(ctx context.Context, s domain.Session) (domain.Session, error) {
	if s.Id == "" {
		s.Id = newID("ses")
	}
	if s.StartAt.IsZero() {
		s.StartAt = now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO session (id, dialogue_id, session_type, start_at, end_at, description, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Id, s.DialogueId, s.SessionType, timeStr(s.StartAt), nullableTime(s.EndAt), s.Description, s.CreatedBy)
	if err != nil {
		return domain.Session{}, wrapStorageErr("insert session", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, dialogue_id, session_type, start_at, end_at, description, created_by
		FROM session WHERE id = ?`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (domain.Session, error) {
	var s domain.Session
	var startAt string
	var endAt sql.NullString
	err := row.Scan(&s.Id, &s.DialogueId, &s.SessionType, &startAt, &endAt, &s.Description, &s.CreatedBy)
	if err == sql.ErrNoRows {
		return domain.Session{}, domain.NewError(domain.ErrNotFound, "session not found", nil)
	}
	if err != nil {
		return domain.Session{}, wrapStorageErr("scan session", err)
	}
	s.StartAt = parseTime(startAt)
	if endAt.Valid {
		t := parseTime(endAt.String)
		s.EndAt = &t
	}
	return s, nil
}

func (r *SQLiteRepository) CloseSession(ctx context.Context, id string, endAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE session SET end_at = ? WHERE id = ?`, timeStr(endAt), id)
	if err != nil {
		return wrapStorageErr("close session", err)
	}
	return requireAffected(res, domain.ErrNotFound, "session not found: "+id)
}

func (r *SQLiteRepository) GetOpenSession(ctx context.Context, dialogueId string) (domain.Session, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, dialogue_id, session_type, start_at, end_at, description, created_by
		FROM session WHERE dialogue_id = ? AND end_at IS NULL ORDER BY start_at DESC LIMIT 1`, dialogueId)
	s, err := scanSession(row)
	if err != nil {
		if kind, ok := domain.KindOf(err); ok && kind == domain.ErrNotFound {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	return s, true, nil
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, filter domain.SessionFilter) (domain.Page[domain.Session], error) {
	where, args := "1=1", []any{}
	if filter.DialogueId != "" {
		where += " AND dialogue_id = ?"
		args = append(args, filter.DialogueId)
	}
	total, err := r.count(ctx, "session", where, args)
	if err != nil {
		return domain.Page[domain.Session]{}, err
	}
	page, pageSize := normalizePaging(filter.Page, filter.PageSize)
	rows, err := r.db.QueryContext(ctx, `SELECT id, dialogue_id, session_type, start_at, end_at, description, created_by
		FROM session WHERE `+where+` ORDER BY start_at ASC LIMIT ? OFFSET ?`, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return domain.Page[domain.Session]{}, wrapStorageErr("list sessions", err)
	}
	defer rows.Close()
	var items []domain.Session
	for rows.Next() {
		var s domain.Session
		var startAt string
		var endAt sql.NullString
		if err := rows.Scan(&s.Id, &s.DialogueId, &s.SessionType, &startAt, &endAt, &s.Description, &s.CreatedBy); err != nil {
			return domain.Page[domain.Session]{}, wrapStorageErr("scan session row", err)
		}
		s.StartAt = parseTime(startAt)
		if endAt.Valid {
			t := parseTime(endAt.String)
			s.EndAt = &t
		}
		items = append(items, s)
	}
	return buildPage(items, total, page, pageSize), nil
}

// --- Turn ---

func (r *SQLiteRepository) CreateTurn(ctx context.Context, t domain.Turn) (domain.Turn, error) {
	if t.Id == "" {
		t.Id = newID("trn")
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = now()
	}
	if t.Status == "" {
		t.Status = domain.TurnStatusPending
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO turn
		(id, dialogue_id, session_id, initiator_role, responder_role, started_at, closed_at, status, response_window_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Id, t.DialogueId, t.SessionId, t.InitiatorRole, t.ResponderRole,
		timeStr(t.StartedAt), nullableTime(t.ClosedAt), t.Status, int64(t.ResponseWindow))
	if err != nil {
		return domain.Turn{}, wrapStorageErr("insert turn", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTurn(ctx context.Context, id string) (domain.Turn, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, dialogue_id, session_id, initiator_role, responder_role, started_at,
		closed_at, status, response_window_ns FROM turn WHERE id = ?`, id)
	return scanTurn(row)
}

func scanTurn(row *sql.Row) (domain.Turn, error) {
	var t domain.Turn
	var startedAt string
	var closedAt sql.NullString
	var windowNs int64
	err := row.Scan(&t.Id, &t.DialogueId, &t.SessionId, &t.InitiatorRole, &t.ResponderRole, &startedAt,
		&closedAt, &t.Status, &windowNs)
	if err == sql.ErrNoRows {
		return domain.Turn{}, domain.NewError(domain.ErrNotFound, "turn not found", nil)
	}
	if err != nil {
		return domain.Turn{}, wrapStorageErr("scan turn", err)
	}
	t.StartedAt = parseTime(startedAt)
	if closedAt.Valid {
		c := parseTime(closedAt.String)
		t.ClosedAt = &c
	}
	t.ResponseWindow = time.Duration(windowNs)
	return t, nil
}

func (r *SQLiteRepository) UpdateTurn(ctx context.Context, t domain.Turn) error {
	existing, err := r.GetTurn(ctx, t.Id)
	if err != nil {
		return err
	}
	if existing.Terminal() && existing.Status != t.Status {
		return domain.NewError(domain.ErrTurnClosed, "terminal turn status is immutable: "+t.Id, nil)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE turn SET closed_at = ?, status = ? WHERE id = ?`,
		nullableTime(t.ClosedAt), t.Status, t.Id)
	if err != nil {
		return wrapStorageErr("update turn", err)
	}
	return requireAffected(res, domain.ErrNotFound, "turn not found: "+t.Id)
}

func (r *SQLiteRepository) ListTurns(ctx context.Context, filter domain.TurnFilter) (domain.Page[domain.Turn], error) {
	where, args := "1=1", []any{}
	if filter.DialogueId != "" {
		where += " AND dialogue_id = ?"
		args = append(args, filter.DialogueId)
	}
	if filter.SessionId != "" {
		where += " AND session_id = ?"
		args = append(args, filter.SessionId)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	total, err := r.count(ctx, "turn", where, args)
	if err != nil {
		return domain.Page[domain.Turn]{}, err
	}
	page, pageSize := normalizePaging(filter.Page, filter.PageSize)
	rows, err := r.db.QueryContext(ctx, `SELECT id, dialogue_id, session_id, initiator_role, responder_role, started_at,
		closed_at, status, response_window_ns FROM turn WHERE `+where+` ORDER BY started_at ASC LIMIT ? OFFSET ?`,
		append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return domain.Page[domain.Turn]{}, wrapStorageErr("list turns", err)
	}
	defer rows.Close()
	var items []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var startedAt string
		var closedAt sql.NullString
		var windowNs int64
		if err := rows.Scan(&t.Id, &t.DialogueId, &t.SessionId, &t.InitiatorRole, &t.ResponderRole, &startedAt,
			&closedAt, &t.Status, &windowNs); err != nil {
			return domain.Page[domain.Turn]{}, wrapStorageErr("scan turn row", err)
		}
		t.StartedAt = parseTime(startedAt)
		if closedAt.Valid {
			c := parseTime(closedAt.String)
			t.ClosedAt = &c
		}
		t.ResponseWindow = time.Duration(windowNs)
		items = append(items, t)
	}
	return buildPage(items, total, page, pageSize), nil
}

func (r *SQLiteRepository) ListPendingBefore(ctx context.Context, asOf time.Time) ([]domain.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, dialogue_id, session_id, initiator_role, responder_role, started_at,
		closed_at, status, response_window_ns FROM turn WHERE status = ?`, domain.TurnStatusPending)
	if err != nil {
		return nil, wrapStorageErr("list pending turns", err)
	}
	defer rows.Close()
	var out []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var startedAt string
		var closedAt sql.NullString
		var windowNs int64
		if err := rows.Scan(&t.Id, &t.DialogueId, &t.SessionId, &t.InitiatorRole, &t.ResponderRole, &startedAt,
			&closedAt, &t.Status, &windowNs); err != nil {
			return nil, wrapStorageErr("scan pending turn", err)
		}
		t.StartedAt = parseTime(startedAt)
		t.ResponseWindow = time.Duration(windowNs)
		if !t.Deadline().After(asOf) {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- Message ---

func (r *SQLiteRepository) CreateMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	if m.Id == "" {
		m.Id = newID("msg")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	meta, err := toJSON(m.Metadata)
	if err != nil {
		return domain.Message{}, wrapStorageErr("marshal message metadata", err)
	}
	row := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM message`)
	if err := row.Scan(&m.SequenceNum); err != nil {
		return domain.Message{}, wrapStorageErr("assign sequence_num", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO message
		(id, dialogue_id, session_id, turn_id, sender_role, sender_id, content, content_type, created_at, sequence_num, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Id, m.DialogueId, m.SessionId, m.TurnId, m.SenderRole, m.SenderId, m.Content, m.ContentType,
		timeStr(m.CreatedAt), m.SequenceNum, meta)
	if err != nil {
		return domain.Message{}, wrapStorageErr("insert message", err)
	}
	return m, nil
}

func (r *SQLiteRepository) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, dialogue_id, session_id, turn_id, sender_role, sender_id, content,
		content_type, created_at, sequence_num, metadata FROM message WHERE id = ?`, id)
	return scanMessage(row)
}

func scanMessage(row *sql.Row) (domain.Message, error) {
	var m domain.Message
	var createdAt, meta string
	err := row.Scan(&m.Id, &m.DialogueId, &m.SessionId, &m.TurnId, &m.SenderRole, &m.SenderId, &m.Content,
		&m.ContentType, &createdAt, &m.SequenceNum, &meta)
	if err == sql.ErrNoRows {
		return domain.Message{}, domain.NewError(domain.ErrNotFound, "message not found", nil)
	}
	if err != nil {
		return domain.Message{}, wrapStorageErr("scan message", err)
	}
	m.CreatedAt = parseTime(createdAt)
	m.Metadata = fromJSONMap(meta)
	return m, nil
}

func (r *SQLiteRepository) ListMessages(ctx context.Context, filter domain.MessageFilter) (domain.Page[domain.Message], error) {
	where, args := "1=1", []any{}
	if filter.DialogueId != "" {
		where += " AND dialogue_id = ?"
		args = append(args, filter.DialogueId)
	}
	if filter.SessionId != "" {
		where += " AND session_id = ?"
		args = append(args, filter.SessionId)
	}
	if filter.TurnId != "" {
		where += " AND turn_id = ?"
		args = append(args, filter.TurnId)
	}
	if filter.SenderRole != "" {
		where += " AND sender_role = ?"
		args = append(args, filter.SenderRole)
	}
	if filter.ContentType != "" {
		where += " AND content_type = ?"
		args = append(args, filter.ContentType)
	}
	if filter.Since != nil {
		where += " AND created_at >= ?"
		args = append(args, timeStr(*filter.Since))
	}
	if filter.Until != nil {
		where += " AND created_at <= ?"
		args = append(args, timeStr(*filter.Until))
	}
	if filter.Query != "" {
		where += " AND content LIKE ?"
		args = append(args, "%"+filter.Query+"%")
	}
	total, err := r.count(ctx, "message", where, args)
	if err != nil {
		return domain.Page[domain.Message]{}, err
	}
	page, pageSize := normalizePaging(filter.Page, filter.PageSize)
	rows, err := r.db.QueryContext(ctx, `SELECT id, dialogue_id, session_id, turn_id, sender_role, sender_id, content,
		content_type, created_at, sequence_num, metadata FROM message WHERE `+where+`
		ORDER BY created_at ASC, sequence_num ASC LIMIT ? OFFSET ?`, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return domain.Page[domain.Message]{}, wrapStorageErr("list messages", err)
	}
	defer rows.Close()
	items, err := scanMessages(rows)
	if err != nil {
		return domain.Page[domain.Message]{}, err
	}
	return buildPage(items, total, page, pageSize), nil
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var createdAt, meta string
		if err := rows.Scan(&m.Id, &m.DialogueId, &m.SessionId, &m.TurnId, &m.SenderRole, &m.SenderId, &m.Content,
			&m.ContentType, &createdAt, &m.SequenceNum, &meta); err != nil {
			return nil, wrapStorageErr("scan message row", err)
		}
		m.CreatedAt = parseTime(createdAt)
		m.Metadata = fromJSONMap(meta)
		out = append(out, m)
	}
	return out, nil
}

func (r *SQLiteRepository) ListTurnMessages(ctx context.Context, turnId string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, dialogue_id, session_id, turn_id, sender_role, sender_id, content,
		content_type, created_at, sequence_num, metadata FROM message WHERE turn_id = ?
		ORDER BY created_at ASC, sequence_num ASC`, turnId)
	if err != nil {
		return nil, wrapStorageErr("list turn messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *SQLiteRepository) ListSessionMessages(ctx context.Context, sessionId string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, dialogue_id, session_id, turn_id, sender_role, sender_id, content,
		content_type, created_at, sequence_num, metadata FROM message WHERE session_id = ?
		ORDER BY created_at DESC, sequence_num DESC LIMIT ?`, sessionId, limit)
	if err != nil {
		return nil, wrapStorageErr("list session messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// --- ToolCall ---

func (r *SQLiteRepository) CreateToolCall(ctx context.Context, c domain.ToolCall) (domain.ToolCall, error) {
	if c.Id == "" {
		c.Id = newLogID("tc")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	params, err := toJSON(c.Parameters)
	if err != nil {
		return domain.ToolCall{}, wrapStorageErr("marshal tool call parameters", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO tool_call
		(id, dialogue_id, turn_id, tool_id, parameters, success, result, error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Id, c.DialogueId, c.TurnId, c.ToolId, params, boolToInt(c.Success), c.Result, c.Error, c.LatencyMs, timeStr(c.CreatedAt))
	if err != nil {
		return domain.ToolCall{}, wrapStorageErr("insert tool call", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListToolCalls(ctx context.Context, dialogueId, turnId string) ([]domain.ToolCall, error) {
	where, args := "dialogue_id = ?", []any{dialogueId}
	if turnId != "" {
		where += " AND turn_id = ?"
		args = append(args, turnId)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, dialogue_id, turn_id, tool_id, parameters, success, result, error,
		latency_ms, created_at FROM tool_call WHERE `+where+` ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, wrapStorageErr("list tool calls", err)
	}
	defer rows.Close()
	var out []domain.ToolCall
	for rows.Next() {
		var c domain.ToolCall
		var params, createdAt string
		var success int
		if err := rows.Scan(&c.Id, &c.DialogueId, &c.TurnId, &c.ToolId, &params, &success, &c.Result, &c.Error,
			&c.LatencyMs, &createdAt); err != nil {
			return nil, wrapStorageErr("scan tool call", err)
		}
		c.Success = success != 0
		c.Parameters = fromJSONMap(params)
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, nil
}

// --- EventLog ---

func (r *SQLiteRepository) AppendEvent(ctx context.Context, e domain.EventLog) error {
	if e.Id == "" {
		e.Id = newLogID("evt")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	details, err := toJSON(e.Details)
	if err != nil {
		return wrapStorageErr("marshal event details", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO event_log
		(id, dialogue_id, turn_id, kind, stage, message, error_kind, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Id, e.DialogueId, e.TurnId, e.Kind, e.Stage, e.Message, e.ErrorKind, details, timeStr(e.CreatedAt))
	return wrapStorageErr("insert event", err)
}

func (r *SQLiteRepository) ListEvents(ctx context.Context, dialogueId string, limit int) ([]domain.EventLog, error) {
	query := `SELECT id, dialogue_id, turn_id, kind, stage, message, error_kind, details, created_at
		FROM event_log WHERE dialogue_id = ? ORDER BY created_at DESC`
	args := []any{dialogueId}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr("list events", err)
	}
	defer rows.Close()
	var out []domain.EventLog
	for rows.Next() {
		var e domain.EventLog
		var details, createdAt string
		if err := rows.Scan(&e.Id, &e.DialogueId, &e.TurnId, &e.Kind, &e.Stage, &e.Message, &e.ErrorKind,
			&details, &createdAt); err != nil {
			return nil, wrapStorageErr("scan event", err)
		}
		e.Details = fromJSONMap(details)
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	// oldest-first, matching the memory backend's chronological ListEvents contract
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// --- IntrospectionSession ---

func (r *SQLiteRepository) CreateIntrospectionSession(ctx context.Context, s domain.IntrospectionSession) (domain.IntrospectionSession, error) {
	if s.Id == "" {
		s.Id = newID("intro")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	steps, err := toJSON(s.Steps)
	if err != nil {
		return domain.IntrospectionSession{}, wrapStorageErr("marshal introspection steps", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO introspection_session (id, dialogue_id, session_id, goal, steps, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Id, s.DialogueId, s.SessionId, s.Goal, steps, s.Summary, timeStr(s.CreatedAt))
	if err != nil {
		return domain.IntrospectionSession{}, wrapStorageErr("insert introspection session", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetIntrospectionSession(ctx context.Context, id string) (domain.IntrospectionSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, dialogue_id, session_id, goal, steps, summary, created_at
		FROM introspection_session WHERE id = ?`, id)
	var s domain.IntrospectionSession
	var steps, createdAt string
	err := row.Scan(&s.Id, &s.DialogueId, &s.SessionId, &s.Goal, &steps, &s.Summary, &createdAt)
	if err == sql.ErrNoRows {
		return domain.IntrospectionSession{}, domain.NewError(domain.ErrNotFound, "introspection session not found: "+id, nil)
	}
	if err != nil {
		return domain.IntrospectionSession{}, wrapStorageErr("scan introspection session", err)
	}
	_ = json.Unmarshal([]byte(steps), &s.Steps)
	s.CreatedAt = parseTime(createdAt)
	return s, nil
}

func (r *SQLiteRepository) UpdateIntrospectionSession(ctx context.Context, s domain.IntrospectionSession) error {
	steps, err := toJSON(s.Steps)
	if err != nil {
		return wrapStorageErr("marshal introspection steps", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE introspection_session SET steps = ?, summary = ? WHERE id = ?`,
		steps, s.Summary, s.Id)
	if err != nil {
		return wrapStorageErr("update introspection session", err)
	}
	return requireAffected(res, domain.ErrNotFound, "introspection session not found: "+s.Id)
}

// --- CollaborationSession ---

func (r *SQLiteRepository) CreateCollaborationSession(ctx context.Context, s domain.CollaborationSession) (domain.CollaborationSession, error) {
	if s.Id == "" {
		s.Id = newID("collab")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	participants, err := toJSON(s.Participants)
	if err != nil {
		return domain.CollaborationSession{}, wrapStorageErr("marshal participants", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO collaboration_session (id, dialogue_id, goal, participants, created_at)
		VALUES (?, ?, ?, ?, ?)`, s.Id, s.DialogueId, s.Goal, participants, timeStr(s.CreatedAt))
	if err != nil {
		return domain.CollaborationSession{}, wrapStorageErr("insert collaboration session", err)
	}
	return s, nil
}

func (r *SQLiteRepository) AppendCollaborationMessage(ctx context.Context, m domain.CollaborationMessage) (domain.CollaborationMessage, error) {
	if m.Id == "" {
		m.Id = newID("cmsg")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO collaboration_message
		(id, collaboration_session_id, from_participant, to_participant, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Id, m.CollaborationSessionId, m.FromParticipant, m.ToParticipant, m.Content, timeStr(m.CreatedAt))
	if err != nil {
		return domain.CollaborationMessage{}, wrapStorageErr("insert collaboration message", err)
	}
	return m, nil
}

func (r *SQLiteRepository) ListCollaborationMessages(ctx context.Context, collaborationSessionId string) ([]domain.CollaborationMessage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, collaboration_session_id, from_participant, to_participant, content, created_at
		FROM collaboration_message WHERE collaboration_session_id = ? ORDER BY created_at ASC`, collaborationSessionId)
	if err != nil {
		return nil, wrapStorageErr("list collaboration messages", err)
	}
	defer rows.Close()
	var out []domain.CollaborationMessage
	for rows.Next() {
		var m domain.CollaborationMessage
		var createdAt string
		if err := rows.Scan(&m.Id, &m.CollaborationSessionId, &m.FromParticipant, &m.ToParticipant, &m.Content, &createdAt); err != nil {
			return nil, wrapStorageErr("scan collaboration message", err)
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, nil
}

// --- shared helpers ---

func (r *SQLiteRepository) count(ctx context.Context, table, where string, args []any) (int, error) {
	var total int
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE "+where, args...)
	if err := row.Scan(&total); err != nil {
		return 0, wrapStorageErr("count "+table, err)
	}
	return total, nil
}

func normalizePaging(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func buildPage[T any](items []T, total, page, pageSize int) domain.Page[T] {
	totalPages := (total + pageSize - 1) / pageSize
	return domain.Page[T]{Items: items, Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}
}

func requireAffected(res sql.Result, kind domain.ErrorKind, message string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStorageErr("rows affected", err)
	}
	if affected == 0 {
		return domain.NewError(kind, message, nil)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeStr(*t)
}
