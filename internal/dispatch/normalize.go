package dispatch

import (
	"reflect"

	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
)

// normalizeResult shapes the raw runtime result before it reaches an after
// callback. Deletions report a raw affected-row count rather than the
// deleted data; callbacks receive that as a boolean, true exactly when one
// row was removed. Collections and single records pass through untouched.
func normalizeResult(results any) any {
	if results == nil {
		return nil
	}

	v := reflect.ValueOf(results)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return results
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 1
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 1
	case reflect.Float32, reflect.Float64:
		return v.Float() == 1
	}
	return results
}

// firstRecord extracts the single record out of a runtime result for
// single-instance delivery. Collection results yield their first element;
// a bare record yields itself; empty results yield nil.
func firstRecord(results any) srvpkg.Record {
	if results == nil {
		return nil
	}

	if rec, ok := results.(srvpkg.Record); ok {
		return rec
	}
	if recs, ok := results.([]srvpkg.Record); ok {
		if len(recs) == 0 {
			return nil
		}
		return recs[0]
	}

	v := reflect.ValueOf(results)
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		if v.Len() == 0 {
			return nil
		}
		if rec, ok := v.Index(0).Interface().(srvpkg.Record); ok {
			return rec
		}
	}
	return nil
}
