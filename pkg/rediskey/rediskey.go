package rediskey

import "fmt"

// Tenant keys (global convention across services)
const (
	TenantPlanPrefix = "tenant:plan"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildTenantPlanKey returns "tenant:plan:{tenantID}"
func BuildTenantPlanKey(tenantID string) string {
	return NamespaceKey(TenantPlanPrefix, tenantID)
}
