package authcore

import "context"

// CheckPermission reports whether userID's current role grants permission.
// The role is read from the Directory on every call, so role changes apply
// without a new login. Lookup failures, inactive users and unknown roles
// all deny.
func (e *Engine) CheckPermission(ctx context.Context, userID, permission string) bool {
	if !e.ready() || userID == "" || permission == "" {
		return false
	}
	record, err := e.directory.FindByID(ctx, userID)
	if err != nil || record == nil || !record.Active {
		e.metricInc(MetricPermissionDenied)
		return false
	}
	if !e.resolver.Allows(record.Role, permission) {
		e.metricInc(MetricPermissionDenied)
		return false
	}
	return true
}

// Permissions lists the permissions granted to role, sorted. A wildcard
// role yields ["*"]; an unknown role yields nil.
func (e *Engine) Permissions(role string) []string {
	if e == nil {
		return nil
	}
	return e.resolver.Permissions(role)
}
