package auth

import (
	"strings"

	"github.com/go-faster/errors"
)

// ErrUnknownRole is returned by ParseRole for values outside the role set.
var ErrUnknownRole = errors.New("unknown role")

// Role is what a signed-in user may do. The set is closed.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

// ParseRole parses s case-insensitively.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleCashier:
		return r, nil
	default:
		return "", errors.Wrapf(ErrUnknownRole, "%q", s)
	}
}

// Tab is a dashboard area.
type Tab string

const (
	TabPOS         Tab = "pos"
	TabInventory   Tab = "inventory"
	TabReports     Tab = "reports"
	TabAlerts      Tab = "alerts"
	TabMarketplace Tab = "marketplace"
	TabProfile     Tab = "profile"
)

// Tabs returns the tabs available to the role, in menu order.
func (r Role) Tabs() []Tab {
	switch r {
	case RoleAdmin:
		return []Tab{TabPOS, TabInventory, TabReports, TabAlerts, TabMarketplace, TabProfile}
	case RoleCashier:
		return []Tab{TabPOS}
	default:
		return nil
	}
}

// Allows reports whether the role may use tab.
func (r Role) Allows(tab Tab) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleCashier:
		return tab == TabPOS
	default:
		return false
	}
}

// DisplayName is the default name for a user with this role.
func (r Role) DisplayName() string {
	switch r {
	case RoleAdmin:
		return "Store Owner"
	case RoleCashier:
		return "Cashier"
	default:
		return string(r)
	}
}
