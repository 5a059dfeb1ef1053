// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package changefeed polls SQL Server Change Tracking and fans out matching
row changes to live subscribers. It owns the subscription registry and the
wire-level [Message] shapes; [internal/realtimews] only moves those
messages across a WebSocket connection.

The poll loop tracks a single monotonically increasing version watermark.
Each tick it reads CHANGE_TRACKING_CURRENT_VERSION(); if it has advanced
past the watermark, every table with at least one live subscriber is
queried via CHANGETABLE(CHANGES ..., @last) for everything that changed
since the previous watermark. The watermark only ever advances to the
version observed at the *start* of the tick, never to the newest version
seen mid-poll, so a write landing between the version read and the table
scan is never silently skipped on the next tick.
*/
package changefeed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/taibuivan/sqlrest/internal/catalog"
	"github.com/taibuivan/sqlrest/internal/filterql"
	"github.com/taibuivan/sqlrest/internal/mssqlpool"
	"github.com/taibuivan/sqlrest/internal/platform/ctxutil"
	"github.com/taibuivan/sqlrest/internal/sqlident"
	"github.com/taibuivan/sqlrest/internal/sqlrow"
	"github.com/taibuivan/sqlrest/pkg/uuidv7"
)

// ChangeOp is one of the three Change Tracking operations a subscription
// can filter on.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// Message is the tagged union the engine emits; [internal/realtimews]
// marshals it directly as the outbound WebSocket text frame.
type Message struct {
	Type    string     `json:"type"`
	ID      string      `json:"id,omitempty"`
	Table   string      `json:"table,omitempty"`
	Message string      `json:"message,omitempty"`
	Record  *sqlrow.Row `json:"record,omitempty"`
}

// Config controls the poll loop and default table resolution.
type Config struct {
	Enabled       bool
	PollPeriod    time.Duration
	DefaultSchema string
}

type subscription struct {
	id       string
	clientID uuid.UUID
	tableKey string
	send     chan<- Message
	filter   []filterql.Node
	events   map[ChangeOp]bool
}

// Engine is the subscription registry and poll loop. The zero value is not
// usable; construct with [NewEngine].
type Engine struct {
	cfg   Config
	pool  *mssqlpool.Pool
	store *catalog.Store

	mu         sync.RWMutex
	tableSubs  map[string]map[uuid.UUID]bool
	allSubs    map[uuid.UUID]*subscription
	clientSubs map[uuid.UUID]map[uuid.UUID]bool

	lastVersion atomic.Int64
}

// NewEngine constructs an Engine. lastVersion starts at -1 until
// [Engine.InitVersion] runs.
func NewEngine(pool *mssqlpool.Pool, store *catalog.Store, cfg Config) *Engine {
	e := &Engine{
		cfg:        cfg,
		pool:       pool,
		store:      store,
		tableSubs:  make(map[string]map[uuid.UUID]bool),
		allSubs:    make(map[uuid.UUID]*subscription),
		clientSubs: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
	e.lastVersion.Store(-1)
	return e
}

// InitVersion seeds the watermark from the database's current change
// version, so the first poll doesn't replay the table's entire history.
func (e *Engine) InitVersion(ctx context.Context) error {
	guard, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("changefeed: init version: %w", err)
	}
	defer guard.Release()

	var version sql.NullInt64
	row := guard.Conn().QueryRowContext(ctx, "SELECT CHANGE_TRACKING_CURRENT_VERSION()")
	if err := row.Scan(&version); err != nil {
		return fmt.Errorf("changefeed: init version: %w", err)
	}
	if version.Valid {
		e.lastVersion.Store(version.Int64)
	} else {
		e.lastVersion.Store(0)
	}
	return nil
}

// Run drives the poll loop until ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	if !e.cfg.Enabled {
		return
	}
	period := e.cfg.PollPeriod
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.pollOnce(ctx); err != nil {
				ctxutil.GetLogger(ctx).ErrorContext(ctx, "changefeed_poll_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Subscribe registers sub against table, resolving a bare table name
// against cfg.DefaultSchema. filterRaw is an `&`-joined list of
// `column=op.value` terms, the same grammar a table query string uses, or
// empty for no filter. events selects which operations to deliver, empty
// meaning all three.
func (e *Engine) Subscribe(clientID uuid.UUID, subID, table, filterRaw string, events []string, send chan<- Message) (tableKey string, err error) {
	schema, name := splitTable(table, e.cfg.DefaultSchema)
	tableKey = schema + "." + name

	cat := e.store.Current()
	if cat == nil {
		return "", fmt.Errorf("catalog not loaded")
	}
	info, ok := cat.Table(schema, name)
	if !ok {
		return "", fmt.Errorf("table not found: %s", tableKey)
	}
	if !info.ChangeTrackingEnabled {
		return "", fmt.Errorf("change tracking not enabled on %s", tableKey)
	}

	filter, err := parseFilterString(filterRaw)
	if err != nil {
		return "", fmt.Errorf("invalid filter: %w", err)
	}

	sub := &subscription{
		id:       subID,
		clientID: clientID,
		tableKey: tableKey,
		send:     send,
		filter:   filter,
		events:   eventSet(events),
	}

	subUUID := uuidv7.NewUUID()

	e.mu.Lock()
	e.allSubs[subUUID] = sub
	if e.tableSubs[tableKey] == nil {
		e.tableSubs[tableKey] = make(map[uuid.UUID]bool)
	}
	e.tableSubs[tableKey][subUUID] = true
	if e.clientSubs[clientID] == nil {
		e.clientSubs[clientID] = make(map[uuid.UUID]bool)
	}
	e.clientSubs[clientID][subUUID] = true
	e.mu.Unlock()

	return tableKey, nil
}

// Unsubscribe removes the one subscription clientID registered under subID.
func (e *Engine) Unsubscribe(clientID uuid.UUID, subID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for subUUID := range e.clientSubs[clientID] {
		sub, ok := e.allSubs[subUUID]
		if !ok || sub.id != subID {
			continue
		}
		e.removeLocked(clientID, subUUID, sub.tableKey)
		return
	}
}

// RemoveClient tears down every subscription a disconnecting client held.
func (e *Engine) RemoveClient(clientID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for subUUID := range e.clientSubs[clientID] {
		if sub, ok := e.allSubs[subUUID]; ok {
			e.removeLocked(clientID, subUUID, sub.tableKey)
		}
	}
	delete(e.clientSubs, clientID)
}

// removeLocked deletes subUUID from all three indexes. Caller holds e.mu.
func (e *Engine) removeLocked(clientID, subUUID uuid.UUID, tableKey string) {
	delete(e.allSubs, subUUID)
	delete(e.tableSubs[tableKey], subUUID)
	if len(e.tableSubs[tableKey]) == 0 {
		delete(e.tableSubs, tableKey)
	}
	delete(e.clientSubs[clientID], subUUID)
}

func (e *Engine) pollOnce(ctx context.Context) error {
	e.mu.RLock()
	activeTables := make([]string, 0, len(e.tableSubs))
	for table, subs := range e.tableSubs {
		if len(subs) > 0 {
			activeTables = append(activeTables, table)
		}
	}
	e.mu.RUnlock()

	if len(activeTables) == 0 {
		return nil
	}

	guard, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("changefeed: acquire: %w", err)
	}
	defer guard.Release()

	var currentVersion sql.NullInt64
	row := guard.Conn().QueryRowContext(ctx, "SELECT CHANGE_TRACKING_CURRENT_VERSION()")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("changefeed: current version: %w", err)
	}
	if !currentVersion.Valid {
		return nil
	}

	last := e.lastVersion.Load()
	if currentVersion.Int64 <= last {
		return nil
	}

	cat := e.store.Current()
	if cat == nil {
		return nil
	}

	for _, tableKey := range activeTables {
		schema, name, ok := strings.Cut(tableKey, ".")
		if !ok {
			continue
		}
		info, ok := cat.Table(schema, name)
		if !ok || len(info.PrimaryKey) == 0 {
			continue
		}

		rows, err := e.queryChanges(ctx, guard.Conn(), info, last)
		if err != nil {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "changefeed_query_failed",
				slog.String("table", tableKey), slog.String("error", err.Error()))
			continue
		}

		e.fanOut(tableKey, rows)
	}

	e.lastVersion.Store(currentVersion.Int64)
	return nil
}

// queryChanges issues the CHANGETABLE query for one table and returns the
// result with the internal `SYS_CHANGE_*`/`__ct_*` columns stripped off
// into a plain per-change record.
func (e *Engine) queryChanges(ctx context.Context, conn *sql.Conn, info *catalog.TableInfo, since int64) ([]changeRecord, error) {
	pkJoin := make([]string, len(info.PrimaryKey))
	ctPK := make([]string, len(info.PrimaryKey))
	for i, pk := range info.PrimaryKey {
		q := sqlident.QuoteIdent(pk)
		pkJoin[i] = "t." + q + " = ct." + q
		ctPK[i] = "ct." + q + " AS " + sqlident.QuoteIdent("__ct_"+pk)
	}
	allCols := make([]string, len(info.Columns))
	for i, c := range info.Columns {
		allCols[i] = "t." + sqlident.QuoteIdent(c.Name)
	}

	sqlText := fmt.Sprintf(
		"SELECT ct.SYS_CHANGE_OPERATION, %s, %s FROM CHANGETABLE(CHANGES %s, @P1) AS ct LEFT JOIN %s t ON %s",
		strings.Join(ctPK, ", "),
		strings.Join(allCols, ", "),
		info.FullName(),
		info.FullName(),
		strings.Join(pkJoin, " AND "),
	)

	sqlRows, err := conn.QueryContext(ctx, sqlText, sql.Named("P1", since))
	if err != nil {
		return nil, err
	}
	scanned, err := sqlrow.Scan(sqlRows)
	if err != nil {
		return nil, err
	}

	out := make([]changeRecord, 0, len(scanned))
	for _, r := range scanned {
		opCode, _ := r.StringValue("SYS_CHANGE_OPERATION")
		op, ok := changeOpFromCode(opCode)
		if !ok {
			continue
		}

		var rec sqlrow.Row
		for _, col := range r.Columns() {
			switch {
			case col == "SYS_CHANGE_OPERATION":
				continue
			case op == OpDelete && strings.HasPrefix(col, "__ct_"):
				v, _ := r.Get(col)
				rec.Set(strings.TrimPrefix(col, "__ct_"), v)
			case op != OpDelete && !strings.HasPrefix(col, "__ct_"):
				v, _ := r.Get(col)
				rec.Set(col, v)
			}
		}
		out = append(out, changeRecord{op: op, row: rec})
	}
	return out, nil
}

type changeRecord struct {
	op  ChangeOp
	row sqlrow.Row
}

func changeOpFromCode(code string) (ChangeOp, bool) {
	switch code {
	case "I":
		return OpInsert, true
	case "U":
		return OpUpdate, true
	case "D":
		return OpDelete, true
	default:
		return "", false
	}
}

// fanOut delivers each change record to every subscription on tableKey
// whose event set and filter both match. A subscriber whose send channel
// is full silently drops the message rather than blocking the poll loop.
func (e *Engine) fanOut(tableKey string, changes []changeRecord) {
	if len(changes) == 0 {
		return
	}

	e.mu.RLock()
	subUUIDs := make([]uuid.UUID, 0, len(e.tableSubs[tableKey]))
	for id := range e.tableSubs[tableKey] {
		subUUIDs = append(subUUIDs, id)
	}
	subs := make([]*subscription, 0, len(subUUIDs))
	for _, id := range subUUIDs {
		if sub, ok := e.allSubs[id]; ok {
			subs = append(subs, sub)
		}
	}
	e.mu.RUnlock()

	for _, change := range changes {
		record := change.row
		get := func(col string) (string, bool) { return record.StringValue(col) }

		for _, sub := range subs {
			if !sub.events[change.op] {
				continue
			}
			if !matchesAll(sub.filter, get) {
				continue
			}

			msg := Message{Type: string(change.op), ID: sub.id, Table: tableKey, Record: &record}
			select {
			case sub.send <- msg:
			default:
			}
		}
	}
}

func matchesAll(nodes []filterql.Node, get filterql.FieldGetter) bool {
	for _, n := range nodes {
		if !filterql.Eval(n, get) {
			return false
		}
	}
	return true
}

// parseFilterString parses an `&`-joined `column=op.value` list — the same
// grammar a table query string's filter parameters use, without select/
// order/limit/offset or logic groups, which the realtime protocol doesn't
// expose.
func parseFilterString(raw string) ([]filterql.Node, error) {
	if raw == "" {
		return nil, nil
	}
	var nodes []filterql.Node
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		column, expr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("expected column=op.value: %q", part)
		}
		cond, err := filterql.ParseCondition(column, expr)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, filterql.Cond{Condition: cond})
	}
	return nodes, nil
}

// eventSet builds the accepted-operations set from the client's requested
// event names, defaulting to all three when none are named.
func eventSet(events []string) map[ChangeOp]bool {
	if len(events) == 0 {
		return map[ChangeOp]bool{OpInsert: true, OpUpdate: true, OpDelete: true}
	}
	set := make(map[ChangeOp]bool, len(events))
	for _, e := range events {
		switch strings.ToUpper(e) {
		case "INSERT":
			set[OpInsert] = true
		case "UPDATE":
			set[OpUpdate] = true
		case "DELETE":
			set[OpDelete] = true
		}
	}
	return set
}

// splitTable splits a "schema.table" or bare "table" name, applying
// defaultSchema in the latter case.
func splitTable(table, defaultSchema string) (schema, name string) {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return schema, name
	}
	return defaultSchema, table
}
