package gormgw

import (
	"fmt"

	"github.com/trailtalk/trailtalk/internal/gateway"
)

// Policy emulates the hosted backend's row-level access rules. The client
// core never enforces ownership itself; it relies on the gateway rejecting
// what the policy forbids, exactly like the production backend does.
type Policy struct {
	// ownerColumn maps relations whose rows belong to a single user to
	// the column carrying that user's id.
	ownerColumn map[string]string
}

// DefaultPolicy matches the hosted backend's rules: interaction rows,
// comments, and follows belong to the user that created them; posts belong
// to their author; profile and community writes are left to the onboarding
// flows and accepted as-is here.
func DefaultPolicy() Policy {
	return Policy{
		ownerColumn: map[string]string{
			gateway.TablePostLikes: "user_id",
			gateway.TableComments:  "user_id",
			gateway.TableReposts:   "user_id",
			gateway.TableBookmarks: "user_id",
			gateway.TableFollows:   "follower_user_id",
			gateway.TablePosts:     "author_id",
		},
	}
}

// CheckInsert verifies new rows are created under the caller's identity.
func (p Policy) CheckInsert(table string, rows []gateway.Row, user UserSource) error {
	col, owned := p.ownerColumn[table]
	if !owned {
		return nil
	}
	uid, ok := user.UserID()
	if !ok {
		return fmt.Errorf("insert %s: %w", table, gateway.ErrAuthRequired)
	}
	for _, row := range rows {
		if owner := gateway.StringField(row, col); owner != uid {
			return fmt.Errorf("insert %s as %s: %w", table, owner, gateway.ErrPermissionDenied)
		}
	}
	return nil
}

// CheckUpdate verifies patches touch rows the caller may write.
// Denormalized counter columns on posts are writable by any signed-in user,
// matching the backend where clients opportunistically patch counts.
func (p Policy) CheckUpdate(table string, rows []gateway.Row, user UserSource) error {
	if _, ok := user.UserID(); !ok {
		return fmt.Errorf("update %s: %w", table, gateway.ErrAuthRequired)
	}
	if table == gateway.TablePosts {
		return nil
	}
	return p.requireOwnership(table, rows, user, "update")
}

// CheckDelete verifies every targeted row belongs to the caller.
func (p Policy) CheckDelete(table string, rows []gateway.Row, user UserSource) error {
	return p.requireOwnership(table, rows, user, "delete")
}

func (p Policy) requireOwnership(table string, rows []gateway.Row, user UserSource, op string) error {
	col, owned := p.ownerColumn[table]
	if !owned {
		return nil
	}
	uid, ok := user.UserID()
	if !ok {
		return fmt.Errorf("%s %s: %w", op, table, gateway.ErrAuthRequired)
	}
	for _, row := range rows {
		if gateway.StringField(row, col) != uid {
			return fmt.Errorf("%s %s: %w", op, table, gateway.ErrPermissionDenied)
		}
	}
	return nil
}
