// Package gormgw implements the gateway boundary on top of a GORM database.
// It backs the dev gateway emulator and the test suites, and mirrors the
// hosted backend's behavior: generic CRUD over named relations, count-only
// queries, row ownership policy on mutations, and change fan-out to
// subscribers after every successful write.
package gormgw

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/models"
)

// UserSource supplies the identity the row policy evaluates against.
type UserSource interface {
	// UserID returns the signed-in user id, or ok=false when signed out.
	UserID() (string, bool)
}

// anonymous is the zero UserSource: always signed out.
type anonymous struct{}

func (anonymous) UserID() (string, bool) { return "", false }

// DB is a gateway.Gateway over a GORM connection.
type DB struct {
	db     *gorm.DB
	broker *broker
	user   UserSource
	policy Policy
}

// prototypes maps relation names to model constructors so inserts run
// through GORM hooks (UUID assignment, defaults).
var prototypes = map[string]func() any{
	gateway.TablePosts:       func() any { return &models.Post{} },
	gateway.TablePostLikes:   func() any { return &models.PostLike{} },
	gateway.TableComments:    func() any { return &models.Comment{} },
	gateway.TableReposts:     func() any { return &models.Repost{} },
	gateway.TableBookmarks:   func() any { return &models.Bookmark{} },
	gateway.TableProfiles:    func() any { return &models.Profile{} },
	gateway.TableFollows:     func() any { return &models.Follow{} },
	gateway.TableCommunities: func() any { return &models.Community{} },
}

// New wraps a GORM connection. user may be nil for an unauthenticated
// gateway (reads only; policy rejects writes to owned relations).
func New(db *gorm.DB, user UserSource) *DB {
	if user == nil {
		user = anonymous{}
	}
	return &DB{
		db:     db,
		broker: newBroker(),
		user:   user,
		policy: DefaultPolicy(),
	}
}

// WithUser returns a gateway sharing this one's connection and broker but
// acting as the given identity. The dev gateway uses it to evaluate each
// request under the caller's token.
func (g *DB) WithUser(user UserSource) *DB {
	if user == nil {
		user = anonymous{}
	}
	return &DB{db: g.db, broker: g.broker, user: user, policy: g.policy}
}

// Select returns matching rows.
func (g *DB) Select(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	if _, ok := prototypes[q.Table]; !ok {
		return nil, fmt.Errorf("select %s: unknown relation", q.Table)
	}

	tx := g.db.WithContext(ctx).Table(q.Table)
	if len(q.Columns) > 0 {
		tx = tx.Select(q.Columns)
	}
	tx = applyFilters(tx, q.Filters)
	if len(q.OrFilters) > 0 {
		or := applyOrFilters(g.db.Table(q.Table), q.OrFilters)
		tx = tx.Where(or)
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("%s %s", q.OrderBy, dir))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []map[string]any
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	out := make([]gateway.Row, len(rows))
	for i, r := range rows {
		out[i] = normalizeRow(r)
	}
	return out, nil
}

// Count returns the number of matching rows without returning them.
func (g *DB) Count(ctx context.Context, table string, filters []gateway.Filter) (int64, error) {
	if _, ok := prototypes[table]; !ok {
		return 0, fmt.Errorf("count %s: unknown relation", table)
	}
	var n int64
	tx := applyFilters(g.db.WithContext(ctx).Table(table), filters)
	if err := tx.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Insert creates rows and returns them with generated columns filled in.
func (g *DB) Insert(ctx context.Context, table string, rows []gateway.Row) ([]gateway.Row, error) {
	proto, ok := prototypes[table]
	if !ok {
		return nil, fmt.Errorf("insert %s: unknown relation", table)
	}
	if err := g.policy.CheckInsert(table, rows, g.user); err != nil {
		return nil, err
	}

	inserted := make([]gateway.Row, 0, len(rows))
	for _, row := range rows {
		model := proto()
		if err := gateway.Decode(row, model); err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		if err := g.db.WithContext(ctx).Create(model).Error; err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		out, err := gateway.ToRow(model)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		inserted = append(inserted, out)
		g.broker.publish(gateway.ChangeEvent{Type: gateway.EventInsert, Table: table, After: out})
	}
	return inserted, nil
}

// Update patches matching rows.
func (g *DB) Update(ctx context.Context, table string, patch gateway.Row, filters []gateway.Filter) error {
	if _, ok := prototypes[table]; !ok {
		return fmt.Errorf("update %s: unknown relation", table)
	}
	before, err := g.Select(ctx, gateway.Query{Table: table, Filters: filters})
	if err != nil {
		return err
	}
	if len(before) == 0 {
		return nil
	}
	if err := g.policy.CheckUpdate(table, before, g.user); err != nil {
		return err
	}

	ids := rowIDs(before)
	tx := g.db.WithContext(ctx).Table(table).Where("id IN ?", ids)
	if err := tx.Updates(map[string]any(patch)).Error; err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}

	after, err := g.Select(ctx, gateway.Query{Table: table, Filters: []gateway.Filter{gateway.In("id", ids)}})
	if err != nil {
		logger.Log.Warn("Update succeeded but re-read failed, emitting events without after rows",
			logger.WithTable(table), zap.Error(err))
		after = nil
	}
	afterByID := make(map[string]gateway.Row, len(after))
	for _, row := range after {
		afterByID[gateway.StringField(row, "id")] = row
	}
	for _, b := range before {
		g.broker.publish(gateway.ChangeEvent{
			Type:   gateway.EventUpdate,
			Table:  table,
			Before: b,
			After:  afterByID[gateway.StringField(b, "id")],
		})
	}
	return nil
}

// Delete removes matching rows. Ownership policy applies: rows in owned
// relations can only be deleted by the user they belong to.
func (g *DB) Delete(ctx context.Context, table string, filters []gateway.Filter) error {
	proto, ok := prototypes[table]
	if !ok {
		return fmt.Errorf("delete %s: unknown relation", table)
	}
	victims, err := g.Select(ctx, gateway.Query{Table: table, Filters: filters})
	if err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	if err := g.policy.CheckDelete(table, victims, g.user); err != nil {
		return err
	}

	ids := rowIDs(victims)
	if err := g.db.WithContext(ctx).Where("id IN ?", ids).Delete(proto()).Error; err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	for _, v := range victims {
		g.broker.publish(gateway.ChangeEvent{Type: gateway.EventDelete, Table: table, Before: v})
	}
	return nil
}

// SubscribeChanges registers for row change events. Only Eq filters take
// part in routing, mirroring the hosted channel semantics.
func (g *DB) SubscribeChanges(ctx context.Context, table string, filters []gateway.Filter, mask gateway.EventMask) (gateway.Subscription, error) {
	if _, ok := prototypes[table]; !ok {
		return nil, fmt.Errorf("subscribe %s: unknown relation", table)
	}
	return g.broker.subscribe(table, filters, mask), nil
}

// Publish injects a change event as if the backend had produced it. Tests
// use it to simulate pushes that did not originate from this process.
func (g *DB) Publish(ev gateway.ChangeEvent) {
	g.broker.publish(ev)
}

// applyFilters translates AND-ed predicates onto the query.
func applyFilters(tx *gorm.DB, filters []gateway.Filter) *gorm.DB {
	for _, f := range filters {
		tx = applyFilter(tx, f, false)
	}
	return tx
}

// applyOrFilters builds an OR group from the predicates.
func applyOrFilters(tx *gorm.DB, filters []gateway.Filter) *gorm.DB {
	for i, f := range filters {
		tx = applyFilter(tx, f, i > 0)
	}
	return tx
}

func applyFilter(tx *gorm.DB, f gateway.Filter, asOr bool) *gorm.DB {
	var cond string
	var arg any
	switch f.Op {
	case gateway.OpEq:
		cond, arg = fmt.Sprintf("%s = ?", f.Column), f.Value
	case gateway.OpIn:
		cond, arg = fmt.Sprintf("%s IN ?", f.Column), f.Value
	case gateway.OpILike:
		// LOWER/LIKE instead of ILIKE so SQLite tests behave like Postgres
		cond, arg = fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", f.Column), f.Value
	default:
		return tx
	}
	if asOr {
		return tx.Or(cond, arg)
	}
	return tx.Where(cond, arg)
}

func rowIDs(rows []gateway.Row) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if id := gateway.StringField(r, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// normalizeRow flattens driver-specific scan types into JSON-friendly values
// so rows look the same coming from SQLite, Postgres, or the wire.
func normalizeRow(in map[string]any) gateway.Row {
	out := make(gateway.Row, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case []byte:
			out[k] = string(t)
		default:
			out[k] = v
		}
	}
	return out
}
