//go:build cgo

package rograph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
// Statements on the single connection are serialized.
type KuzuStore struct {
	mu   sync.Mutex
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path, so the index survives across runs. KuzuDB creates the leaf
// directory itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS RunningOrder(
		id STRING,
		slug STRING,
		start_time STRING,
		duration DOUBLE,
		completed BOOLEAN,
		message_id INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Story(
		id STRING,
		ro_id STRING,
		story_id STRING,
		slug STRING,
		position INT64,
		offset_sec DOUBLE,
		duration DOUBLE,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Item(
		id STRING,
		story_key STRING,
		item_id STRING,
		slug STRING,
		object_id STRING,
		obj_type STRING,
		note STRING,
		position INT64,
		duration DOUBLE,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_STORY(FROM RunningOrder TO Story)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_ITEM(FROM Story TO Item)`,
	`CREATE REL TABLE IF NOT EXISTS NEXT(FROM Story TO Story)`,
}

var relTables = []string{"HAS_STORY", "HAS_ITEM", "NEXT"}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

func (s *KuzuStore) AddRunningOrder(_ context.Context, node RunningOrderNode) error {
	return s.exec(
		`CREATE (r:RunningOrder {
			id: $id,
			slug: $slug,
			start_time: $start,
			duration: $dur,
			completed: $done,
			message_id: $mid
		})`,
		map[string]any{
			"id":    node.ID,
			"slug":  node.Slug,
			"start": node.Start,
			"dur":   node.Duration,
			"done":  node.Completed,
			"mid":   int64(node.MessageID),
		},
	)
}

func (s *KuzuStore) AddStory(_ context.Context, node StoryNode) error {
	return s.exec(
		`CREATE (s:Story {
			id: $id,
			ro_id: $ro,
			story_id: $sid,
			slug: $slug,
			position: $pos,
			offset_sec: $off,
			duration: $dur
		})`,
		map[string]any{
			"id":   node.Key,
			"ro":   node.ROID,
			"sid":  node.StoryID,
			"slug": node.Slug,
			"pos":  int64(node.Position),
			"off":  node.Offset,
			"dur":  node.Duration,
		},
	)
}

func (s *KuzuStore) AddItem(_ context.Context, node ItemNode) error {
	return s.exec(
		`CREATE (i:Item {
			id: $id,
			story_key: $sk,
			item_id: $iid,
			slug: $slug,
			object_id: $obj,
			obj_type: $typ,
			note: $note,
			position: $pos,
			duration: $dur
		})`,
		map[string]any{
			"id":   node.Key,
			"sk":   node.StoryKey,
			"iid":  node.ItemID,
			"slug": node.Slug,
			"obj":  node.ObjectID,
			"typ":  node.Type,
			"note": node.Note,
			"pos":  int64(node.Position),
			"dur":  node.Duration,
		},
	)
}

// AddEdge inserts a relationship edge between two nodes. CONTAINS edges go
// to HAS_STORY or HAS_ITEM depending on which pair of nodes matches.
func (s *KuzuStore) AddEdge(_ context.Context, edge Edge) error {
	params := map[string]any{"src": edge.SourceID, "dst": edge.TargetID}
	switch edge.Kind {
	case EdgeKindContains:
		if err := s.exec(`MATCH (a:RunningOrder {id: $src}), (b:Story {id: $dst})
				CREATE (a)-[:HAS_STORY]->(b)`, params); err != nil {
			return err
		}
		return s.exec(`MATCH (a:Story {id: $src}), (b:Item {id: $dst})
				CREATE (a)-[:HAS_ITEM]->(b)`, params)
	case EdgeKindNext:
		return s.exec(`MATCH (a:Story {id: $src}), (b:Story {id: $dst})
				CREATE (a)-[:NEXT]->(b)`, params)
	default:
		return fmt.Errorf("kuzu: unsupported edge kind: %s", edge.Kind)
	}
}

func (s *KuzuStore) DeleteRunningOrder(_ context.Context, roID string) error {
	params := map[string]any{"id": roID}
	for _, cypher := range []string{
		"MATCH (s:Story)-[:HAS_ITEM]->(i:Item) WHERE s.ro_id = $id DETACH DELETE i",
		"MATCH (s:Story) WHERE s.ro_id = $id DETACH DELETE s",
		"MATCH (r:RunningOrder {id: $id}) DETACH DELETE r",
	} {
		if err := s.exec(cypher, params); err != nil {
			return err
		}
	}
	return nil
}

// ---------- Read operations ----------

const (
	roColumns    = "r.id, r.slug, r.start_time, r.duration, r.completed, r.message_id"
	storyColumns = "s.id, s.ro_id, s.story_id, s.slug, s.position, s.offset_sec, s.duration"
)

func (s *KuzuStore) GetRunningOrder(_ context.Context, roID string) (*RunningOrderNode, error) {
	rows, err := s.query(
		"MATCH (r:RunningOrder {id: $id}) RETURN "+roColumns,
		map[string]any{"id": roID},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ro := rowToRunningOrder(rows[0])
	return &ro, nil
}

func (s *KuzuStore) RunningOrders(_ context.Context) ([]RunningOrderNode, error) {
	rows, err := s.query("MATCH (r:RunningOrder) RETURN "+roColumns+" ORDER BY r.id", nil)
	if err != nil {
		return nil, err
	}
	out := make([]RunningOrderNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToRunningOrder(r))
	}
	return out, nil
}

func (s *KuzuStore) Stories(_ context.Context, roID string) ([]StoryNode, error) {
	rows, err := s.query(
		"MATCH (s:Story) WHERE s.ro_id = $ro RETURN "+storyColumns+" ORDER BY s.position",
		map[string]any{"ro": roID},
	)
	if err != nil {
		return nil, err
	}
	return rowsToStories(rows), nil
}

func (s *KuzuStore) Items(_ context.Context, storyKey string) ([]ItemNode, error) {
	rows, err := s.query(
		`MATCH (i:Item) WHERE i.story_key = $sk
		 RETURN i.id, i.story_key, i.item_id, i.slug, i.object_id, i.obj_type, i.note, i.position, i.duration
		 ORDER BY i.position`,
		map[string]any{"sk": storyKey},
	)
	if err != nil {
		return nil, err
	}
	out := make([]ItemNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, ItemNode{
			Key:      toString(r[0]),
			StoryKey: toString(r[1]),
			ItemID:   toString(r[2]),
			Slug:     toString(r[3]),
			ObjectID: toString(r[4]),
			Type:     toString(r[5]),
			Note:     toString(r[6]),
			Position: toInt(r[7]),
			Duration: toFloat64(r[8]),
		})
	}
	return out, nil
}

func (s *KuzuStore) QueryStories(_ context.Context, queryStr string, limit int) ([]StoryNode, error) {
	cypher := `MATCH (s:Story) WHERE lower(s.slug) CONTAINS lower($q)
		 RETURN ` + storyColumns + `
		 ORDER BY s.ro_id, s.position`
	params := map[string]any{"q": queryStr}
	if limit > 0 {
		cypher += " LIMIT $lim"
		params["lim"] = int64(limit)
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	return rowsToStories(rows), nil
}

// ---------- Stats ----------

// Stats returns counts of all node and edge tables.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	ros, err := s.countTable("RunningOrder")
	if err != nil {
		return nil, err
	}
	stories, err := s.countTable("Story")
	if err != nil {
		return nil, err
	}
	items, err := s.countTable("Item")
	if err != nil {
		return nil, err
	}
	edges, err := s.countEdges()
	if err != nil {
		return nil, err
	}
	return &GraphStats{
		RunningOrderCount: ros,
		StoryCount:        stories,
		ItemCount:         items,
		EdgeCount:         edges,
	}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// countTable returns the number of rows in a node table.
func (s *KuzuStore) countTable(table string) (int, error) {
	// Table name is a fixed internal constant, not user input.
	rows, err := s.query(fmt.Sprintf("MATCH (n:%s) RETURN count(n)", table), nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// countEdges returns the total number of edges across all relationship tables.
func (s *KuzuStore) countEdges() (int, error) {
	total := 0
	for _, t := range relTables {
		rows, err := s.query(fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r)", t), nil)
		if err != nil {
			return 0, err
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			total += toInt(rows[0][0])
		}
	}
	return total, nil
}

// rowToRunningOrder converts a result row in roColumns order.
func rowToRunningOrder(r []any) RunningOrderNode {
	return RunningOrderNode{
		ID:        toString(r[0]),
		Slug:      toString(r[1]),
		Start:     toString(r[2]),
		Duration:  toFloat64(r[3]),
		Completed: toBool(r[4]),
		MessageID: toInt(r[5]),
	}
}

// rowsToStories converts result rows in storyColumns order.
func rowsToStories(rows [][]any) []StoryNode {
	out := make([]StoryNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, StoryNode{
			Key:      toString(r[0]),
			ROID:     toString(r[1]),
			StoryID:  toString(r[2]),
			Slug:     toString(r[3]),
			Position: toInt(r[4]),
			Offset:   toFloat64(r[5]),
			Duration: toFloat64(r[6]),
		})
	}
	return out
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
