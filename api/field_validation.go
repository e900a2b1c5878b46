package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kovanet/kovascan/internal/common"
)

// EntityFilters defines the filterable columns for each entity type. Filters
// are equality-only; anything outside the allow-list is rejected.
var EntityFilters = map[string][]string{
	"blocks":            {},
	"transactions":      {"sender"},
	"domains":           {},
	"rollup_batches":    {"domain_id"},
	"governance_events": {},
	"privacy_actions":   {},
	"accounts":          {},
}

// hexFilters lists filter keys whose values are binary identifiers. Their
// values are normalized to raw bytes before storage comparison.
var hexFilters = map[string]bool{
	"sender": true,
}

// ValidateFilters checks every supplied filter key against the entity's
// allow-list and decodes hex-valued filters. The returned map holds decoded
// byte values for hex filters keyed by filter name.
func ValidateFilters(entity string, filters map[string]string) (map[string][]byte, error) {
	allowed, exists := EntityFilters[entity]
	if !exists {
		return nil, fmt.Errorf("unknown entity: %s", entity)
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = true
	}

	decoded := make(map[string][]byte)
	for key, value := range filters {
		if !allowedSet[key] {
			return nil, fmt.Errorf("invalid filter '%s' for entity '%s'. Valid filters are: %s",
				key, entity, strings.Join(sortedCopy(allowed), ", "))
		}
		if hexFilters[key] {
			b, err := common.DecodeHex(value)
			if err != nil {
				return nil, fmt.Errorf("invalid filter value for '%s': %w", key, err)
			}
			decoded[key] = b
		}
	}
	return decoded, nil
}

func sortedCopy(fields []string) []string {
	out := append([]string(nil), fields...)
	sort.Strings(out)
	return out
}
