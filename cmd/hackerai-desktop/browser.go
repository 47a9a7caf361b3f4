package main

import (
	"fmt"
	"io"
	"net/url"

	"github.com/cli/browser"
)

func init() {
	// xdg-open and friends chatter on stdout; keep the CLI output clean.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// openBrowser opens an http(s) URL in the default browser.
func openBrowser(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("refusing to open %q URL", u.Scheme)
	}
	return browser.OpenURL(u.String())
}
