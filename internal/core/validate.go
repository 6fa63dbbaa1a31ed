package core

import (
	"encoding/json"
	"fmt"
)

// malformedComponentHelp takes the offending key and the slug.
const malformedComponentHelp = `The ` + "`%[1]s`" + ` passed to ` + "`setDataForSlug`" + ` was passed as a string for slug ` + "`%[2]s`" + `.
  It should be an object with a mode of "filepath" or "source":
  ` + "```" + `
  const page = {
    %[1]s: {
      mode: "source",
      value: ` + "`" + `import { h } from "preact";
  export default props => <div>
    <h1>Some Code</h1>
  </div>` + "`" + `
    }
  }
  ` + "```" + `
  or
  ` + "```" + `
  const page = {
    %[1]s: {
      mode: "filepath",
      value: "src/pages/index.js"
    }
  }
  ` + "```"

const misplacedModeHelp = "`mode` was passed as a top-level key to `setDataForSlug` for slug '%s'." + `
  Did you mean to put it in ` + "`component`" + ` or ` + "`wrapper`" + ` object?
  ## sample unexpected input:
  ` + "```" + `
  const page = {
    mode: "filepath",
    data: {},
  }
  ` + "```" + `
  ## sample successful input:
  ` + "```" + `
  const page = {
    component: {
      mode: "filepath",
      value: "src/pages/index.js"
    },
    data: {}
  }
  ` + "```"

// IsFalsySlug reports whether a slug value is unusable as a page key:
// nil, the empty string, zero or false.
func IsFalsySlug(slug any) bool {
	switch v := slug.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case int:
		return v == 0
	case int64:
		return v == 0
	case float64:
		return v == 0
	case json.Number:
		return v == "" || v == "0"
	default:
		return false
	}
}

// ParseSetDataForSlug turns user supplied arguments into a PageRegistration,
// rejecting the shapes users most often get wrong.
func ParseSetDataForSlug(slug any, args map[string]any) (PageRegistration, error) {
	if IsFalsySlug(slug) {
		return PageRegistration{}, &RegistrationError{
			Kind:    ErrInvalidSlug,
			Message: "setDataForSlug requires a slug as the first argument. second argument is " + jsonString(args),
		}
	}

	slugStr, ok := slug.(string)
	if !ok {
		slugStr = fmt.Sprint(slug)
	}

	for _, key := range []string{"component", "wrapper"} {
		if _, isString := args[key].(string); isString {
			return PageRegistration{}, &RegistrationError{
				Kind:    ErrMalformedComponent,
				Slug:    slugStr,
				Keys:    []string{key},
				Message: fmt.Sprintf(malformedComponentHelp, key, slugStr),
			}
		}
	}

	if mode, present := args["mode"]; present && mode != nil && mode != "" && mode != false {
		return PageRegistration{}, &RegistrationError{
			Kind:    ErrMisplacedMode,
			Slug:    slugStr,
			Keys:    []string{"mode"},
			Message: fmt.Sprintf(misplacedModeHelp, slugStr),
		}
	}

	reg := PageRegistration{Slug: slugStr}

	for _, key := range []string{"component", "wrapper"} {
		raw, present := args[key]
		if !present {
			continue
		}
		d, err := ParseDescriptor(raw)
		if err != nil {
			return PageRegistration{}, &RegistrationError{
				Kind:    ErrMalformedComponent,
				Slug:    slugStr,
				Keys:    []string{key},
				Message: fmt.Sprintf(malformedComponentHelp, key, slugStr),
				Cause:   err,
			}
		}
		if key == "component" {
			reg.Component = &d
		} else {
			reg.Wrapper = &d
		}
	}

	if raw, present := args["data"]; present && raw != nil {
		data, ok := raw.(map[string]any)
		if !ok {
			return PageRegistration{}, &RegistrationError{
				Kind:    ErrUnprocessablePayload,
				Slug:    slugStr,
				Keys:    []string{"data"},
				Message: fmt.Sprintf("data must be an object, got %T", raw),
			}
		}
		reg.Data = data
	}

	if mt, ok := args["moduleType"].(string); ok {
		reg.ModuleType = mt
	}

	return reg, nil
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
