package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/browsermob/agent/pkg/runner"
)

// Implemented by sessions that can load a page.
type navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Build one smoke test per page. Each test loads the page, relative to
// the application URL, and saves a "loaded" screenshot.
func smokeSuite(application string, pages []string) ([]runner.TestCase, error) {
	base, err := url.Parse(application)
	if err != nil {
		return nil, fmt.Errorf("invalid application url: %w", err)
	}

	cases := make([]runner.TestCase, 0, len(pages))
	seen := map[string]bool{}
	for _, page := range pages {
		ref, err := url.Parse(page)
		if err != nil {
			return nil, fmt.Errorf("invalid page %q: %w", page, err)
		}
		target := base.ResolveReference(ref).String()

		// Pages differing only in separators share a method name.
		name := methodName(ref)
		method := name
		for n := 2; seen[method]; n++ {
			method = fmt.Sprintf("%s-%d", name, n)
		}
		seen[method] = true

		cases = append(cases, runner.TestCase{
			Class:  "Smoke",
			Method: method,
			Body: func(ctx context.Context, t *runner.T) error {
				nav, ok := t.Session().(navigator)
				if !ok {
					return errors.New("browser session cannot navigate")
				}
				if err := nav.Navigate(ctx, target); err != nil {
					return err
				}

				path, err := t.Screenshot("loaded")
				if err != nil {
					return err
				}
				t.Logf("Loaded %s, screenshot %s", target, path)
				return nil
			},
		})
	}
	return cases, nil
}

func methodName(ref *url.URL) string {
	name := strings.Trim(ref.Host+ref.Path, "/")
	name = strings.NewReplacer("/", "_", ".", "_", ":", "_").Replace(name)
	if name == "" {
		return "index"
	}
	return name
}
