package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Scope namespaces keys so equal params in different flows never collide
type Scope string

const (
	// ScopeCheckout anchors one pending payment per family checkout selection
	ScopeCheckout Scope = "checkout"

	// ScopeGatewayIntent keys intent creation at the gateway
	ScopeGatewayIntent Scope = "gateway_intent"
)

// Generator derives deterministic idempotency keys
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey hashes scope and params into "<scope>-<16 hex chars>". Param
// order does not matter, and neither does the order of []string values.
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	keys := lo.Keys(params)
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%v", k, normalize(params[k]))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return string(scope) + "-" + hex.EncodeToString(hash[:8])
}

func normalize(v interface{}) interface{} {
	list, ok := v.([]string)
	if !ok {
		return v
	}
	sorted := slices.Clone(list)
	slices.Sort(sorted)
	return strings.Join(sorted, ",")
}
