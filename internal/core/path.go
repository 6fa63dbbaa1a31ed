package core

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const (
	PagesDir           = "src/pages"
	WrapperModulePath  = "src/page-wrapper.js"
	DataFileExt        = ".json"
	BrowserModuleExt   = ".js"
	RenderManifestPath = ".toast/render-manifest.json"
	// WebModulesDir holds browser builds of bare imports, in the site and
	// in the output.
	WebModulesDir      = "web_modules"
)

// BrowserPath turns a site relative filesystem path into a site rooted URL
// path with forward slashes.
func BrowserPath(rel string) string {
	p := strings.ReplaceAll(rel, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// PageFileForSlug is the site relative browser module of a slug,
// e.g. "/posts/a" -> "src/pages/posts/a.js".
func PageFileForSlug(slug string) string {
	return path.Join(PagesDir, SlugRelativePath(slug)+BrowserModuleExt)
}

// BrowserModuleFile is the site relative browser module that stands for a
// page file, e.g. "src/pages/a.html" -> "src/pages/a.js".
func BrowserModuleFile(pageFile string) string {
	rel := strings.TrimPrefix(filepath.ToSlash(pageFile), "./")
	return strings.TrimSuffix(rel, path.Ext(rel)) + BrowserModuleExt
}

// DataFilePath is the output relative JSON data file of a page file: the
// pages prefix is stripped and the script extension replaced with .json,
// e.g. "src/pages/about.js" -> "about.json".
func DataFilePath(pageFile string) string {
	return pageStem(pageFile) + DataFileExt
}

// WrapperFileForPage is the site relative browser module of a wrapper that
// belongs to a single page, e.g. "src/pages/a.js" -> "src/pages/a.wrapper.js".
func WrapperFileForPage(pageFile string) string {
	return path.Join(PagesDir, pageStem(pageFile)+".wrapper"+BrowserModuleExt)
}

// OutputHTMLPath strips the pages prefix and swaps the script extension for .html.
func OutputHTMLPath(outputDir, pageFile string) string {
	return filepath.Join(outputDir, filepath.FromSlash(pageStem(pageFile)+".html"))
}

func pageStem(pageFile string) string {
	rel := filepath.ToSlash(pageFile)
	rel = strings.TrimPrefix(rel, "./")
	rel = strings.TrimPrefix(rel, PagesDir+"/")
	return strings.TrimSuffix(rel, path.Ext(rel))
}

// ValidateSlug rejects slugs that cannot map onto a single output file.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug cannot be empty")
	}

	if strings.Contains(slug, "?") {
		return fmt.Errorf("slug cannot contain query string: %s", slug)
	}

	if strings.Contains(slug, "#") {
		return fmt.Errorf("slug cannot contain fragment: %s", slug)
	}

	if strings.Contains(slug, "\\") {
		return fmt.Errorf("slug cannot contain backslashes: %s", slug)
	}

	for _, segment := range strings.Split(slug, "/") {
		if segment == ".." || segment == "." {
			return fmt.Errorf("slug cannot contain relative segments: %s", slug)
		}
	}

	return nil
}

// ValidatePageFile rejects page paths that would escape the output directory.
func ValidatePageFile(pageFile string) error {
	if pageFile == "" {
		return fmt.Errorf("page file cannot be empty")
	}

	p := filepath.ToSlash(pageFile)
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("page file must be relative: %s", pageFile)
	}

	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return fmt.Errorf("page file cannot contain parent directory references: %s", pageFile)
		}
	}

	if path.Ext(p) == "" {
		return fmt.Errorf("page file must have a script extension: %s", pageFile)
	}

	return nil
}

// ModuleImportPath computes a relative ESM import specifier from one site
// file to another.
func ModuleImportPath(fromFile, toFile string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(fromFile), toFile)
	if err != nil {
		return "", err
	}

	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, ".") {
		return rel, nil
	}

	return "./" + rel, nil
}
