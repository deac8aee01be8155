// Package httputil holds the JSON response helpers shared by the query API
// and health endpoints.
package httputil
