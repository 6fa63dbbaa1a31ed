package modules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/3-lines-studio/toast/internal/core"
)

type kinded interface {
	Kind() string
}

// IsStatic reports whether c is rendered only on the server, so its browser
// module has to be generated from the server output.
func IsStatic(c core.Component) bool {
	k, ok := c.(kinded)
	if !ok {
		return false
	}
	return k.Kind() == ModuleTypeHTML || k.Kind() == ModuleTypeMarkdown
}

// StaticPageModule is an ES module whose default export renders markup.
func StaticPageModule(runtimeModule, markup string) (string, error) {
	lit, err := jsString(markup)
	if err != nil {
		return "", err
	}
	runtime, err := jsString(runtimeModule)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`import { h } from %s;

const markup = %s;

export default function StaticPage() {
  return h("div", { "data-toast-static": "", dangerouslySetInnerHTML: { __html: markup } });
}
`, runtime, lit), nil
}

// StaticWrapperModule is an ES module wrapper that places its children
// where childrenMarkup appeared in wrapperMarkup.
func StaticWrapperModule(runtimeModule, wrapperMarkup, childrenMarkup string) (string, error) {
	before, after, found := strings.Cut(wrapperMarkup, childrenMarkup)
	if !found || childrenMarkup == "" {
		before, after = wrapperMarkup, ""
	}

	runtime, err := jsString(runtimeModule)
	if err != nil {
		return "", err
	}
	beforeLit, err := jsString(before)
	if err != nil {
		return "", err
	}
	afterLit, err := jsString(after)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`import { h, Fragment } from %s;

const before = %s;
const after = %s;

export default function StaticWrapper({ children }) {
  return h(
    Fragment,
    null,
    h("div", { "data-toast-static": "", dangerouslySetInnerHTML: { __html: before } }),
    children,
    h("div", { "data-toast-static": "", dangerouslySetInnerHTML: { __html: after } })
  );
}
`, runtime, beforeLit, afterLit), nil
}

func jsString(s string) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
