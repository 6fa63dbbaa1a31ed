// Package protocol defines the wire contract between a sourcing worker and
// the orchestrator: endpoint paths, the readiness body, and payload shapes.
package protocol

import (
	"slices"

	"github.com/tidwall/gjson"
)

const (
	PathReady          = "/"
	PathCreatePage     = "/create-page"
	PathSetDataForSlug = "/set-data-for-slug"
	PathSetData        = "/set-data"

	ReadyBody    = "ready"
	NotReadyBody = "not ready"

	// BaseURL is the host part used for requests over the unix socket;
	// the dialer ignores it.
	BaseURL = "http://toast"
)

// Ack is the success body of every registration endpoint.
type Ack struct {
	OK bool `json:"ok"`
}

// Unprocessable is the 422 body naming the rejected top-level keys.
type Unprocessable struct {
	Error string   `json:"error"`
	Keys  []string `json:"keys"`
}

var allowedKeys = map[string][]string{
	PathCreatePage:     {"module", "slug", "data", "moduleType"},
	PathSetDataForSlug: {"slug", "component", "wrapper", "data", "moduleType"},
	PathSetData:        {"slug", "data"},
}

// Endpoints lists the registration endpoints in a stable order.
func Endpoints() []string {
	return []string{PathCreatePage, PathSetDataForSlug, PathSetData}
}

// RejectedKeys returns the top-level keys of body that make it structurally
// invalid for endpoint. A body that is not a JSON object yields ["$"].
func RejectedKeys(endpoint string, body []byte) []string {
	if !gjson.ValidBytes(body) {
		return []string{"$"}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return []string{"$"}
	}

	allowed := allowedKeys[endpoint]
	var rejected []string
	reject := func(key string) {
		if !slices.Contains(rejected, key) {
			rejected = append(rejected, key)
		}
	}

	root.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if !slices.Contains(allowed, k) {
			reject(k)
			return true
		}
		switch k {
		case "slug", "module", "moduleType":
			if value.Type != gjson.String {
				reject(k)
			}
		case "data":
			if value.Type != gjson.Null && !value.IsObject() {
				reject(k)
			}
		case "component", "wrapper":
			if value.Type != gjson.Null && !validDescriptor(value) {
				reject(k)
			}
		}
		return true
	})

	if slug := root.Get("slug"); !slug.Exists() || slug.String() == "" {
		reject("slug")
	}
	if endpoint == PathCreatePage && !root.Get("module").Exists() {
		reject("module")
	}

	return rejected
}

func validDescriptor(v gjson.Result) bool {
	if !v.IsObject() {
		return false
	}
	mode := v.Get("mode")
	if mode.Type != gjson.String {
		return false
	}
	value := v.Get("value")
	switch mode.String() {
	case "no-module":
		return true
	case "source", "filepath":
		return value.Type == gjson.String
	default:
		return false
	}
}
