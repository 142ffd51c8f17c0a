// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import "github.com/wingedpig/burrow/internal/json"

// Approximate per-node heap costs used for cache accounting. The exact
// numbers matter less than being consistent: the cache bound is enforced
// against the sum of these estimates.
const (
	objectOverhead = 48
	pairOverhead   = 32
	arrayOverhead  = 40
	elemOverhead   = 8
	stringOverhead = 16
	scalarSize     = 16
)

// estimateObject walks a JSON tree and returns its estimated in-memory
// size in bytes.
func estimateObject(obj *json.Object) int64 {
	if obj == nil {
		return 0
	}
	total := int64(objectOverhead)
	obj.Range(func(key string, v *json.Value) bool {
		total += pairOverhead + int64(len(key))
		total += estimateValue(v)
		return true
	})
	return total
}

func estimateValue(v *json.Value) int64 {
	switch v.Type() {
	case json.TypeObject:
		return estimateObject(v.AsObject())
	case json.TypeArray:
		total := int64(arrayOverhead)
		for _, e := range v.AsArray() {
			total += elemOverhead + estimateValue(e)
		}
		return total
	case json.TypeString:
		return stringOverhead + int64(len(v.AsString()))
	default:
		return scalarSize
	}
}
