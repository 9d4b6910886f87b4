package types

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	Name        string  `json:"name"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Size        int64   `json:"size"`
	Capacity    int64   `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`
	Enabled     bool    `json:"enabled"`
}

// PartitionedCacheStats represents statistics for a cache with per-partition
// regions and a global item budget.
type PartitionedCacheStats struct {
	Name              string  `json:"name"`
	Hits              uint64  `json:"hits"`
	Misses            uint64  `json:"misses"`
	LocalEvictions    uint64  `json:"local_evictions"`
	GlobalEvictions   uint64  `json:"global_evictions"`
	TotalItems        int64   `json:"total_items"`
	GlobalCapacity    int64   `json:"global_capacity"`
	PartitionCapacity int64   `json:"partition_capacity"`
	Partitions        int     `json:"partitions"`
	HitRate           float64 `json:"hit_rate"`
	Utilization       float64 `json:"utilization"`
	Enabled           bool    `json:"enabled"`
}

// Product is a catalog entry served by the product API.
type Product struct {
	ID                  string            `json:"id" yaml:"id"`
	Name                string            `json:"name" yaml:"name"`
	Type                string            `json:"type" yaml:"type"`
	Category            string            `json:"category" yaml:"category"`
	Price               int64             `json:"price" yaml:"price"`
	RecommendedAgeGroup string            `json:"recommendedAgeGroup,omitempty" yaml:"recommended_age_group"`
	Attributes          map[string]string `json:"attributes" yaml:"attributes"`
}

// Clone returns a deep copy so cached products are never shared with callers.
func (p Product) Clone() Product {
	out := p
	out.Attributes = make(map[string]string, len(p.Attributes))
	for k, v := range p.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// RecommendationQuery holds the optional filters of a recommendation request.
// Nil fields do not filter.
type RecommendationQuery struct {
	MinPrice *int64  `json:"minPrice,omitempty"`
	MaxPrice *int64  `json:"maxPrice,omitempty"`
	Type     *string `json:"type,omitempty"`
	Category *string `json:"category,omitempty"`
	Age      *int    `json:"age,omitempty"`
}

// CacheKey returns a canonical key for the query. Queries differing only in
// the case of type or category share a key.
func (q RecommendationQuery) CacheKey() string {
	var sb strings.Builder
	sb.WriteString("RecommendationQuery{")
	sb.WriteString("minPrice=" + formatOptInt64(q.MinPrice))
	sb.WriteString(", maxPrice=" + formatOptInt64(q.MaxPrice))
	sb.WriteString(", type=" + formatOptString(q.Type))
	sb.WriteString(", category=" + formatOptString(q.Category))
	if q.Age != nil {
		sb.WriteString(fmt.Sprintf(", age=%d", *q.Age))
	} else {
		sb.WriteString(", age=null")
	}
	sb.WriteString("}")
	return sb.String()
}

func formatOptInt64(v *int64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *v)
}

func formatOptString(v *string) string {
	if v == nil {
		return "null"
	}
	return "'" + NormalizeLabel(*v) + "'"
}

// NormalizeLabel returns the canonical form of a product type or category:
// trimmed and upper-cased. It is the partition key of the type cache.
func NormalizeLabel(s string) string {
	// Casers are stateful and must not be shared between goroutines
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// EqualFold reports whether two labels match ignoring case.
func EqualFold(a, b string) bool {
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(a)) == fold.String(strings.TrimSpace(b))
}
