// internal/scanner/entitlements.go
package scanner

// Entitlements resolves whether a caller gets the privileged cooldown.
type Entitlements interface {
	IsPrivileged(userID string) bool
}

// StaticEntitlements is a fixed allow-list.
type StaticEntitlements map[string]struct{}

func NewStaticEntitlements(userIDs []string) StaticEntitlements {
	e := make(StaticEntitlements, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			e[id] = struct{}{}
		}
	}
	return e
}

func (e StaticEntitlements) IsPrivileged(userID string) bool {
	_, ok := e[userID]
	return ok
}
