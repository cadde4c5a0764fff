package domain

import (
	"net/url"
	"strings"
)

const (
	PageNamespace = "stellar/"
	HomePageToken = "home"
)

type PageVisit struct {
	RawURL            string
	FormattedPageName string
	Timestamp         int64
}

func NewPageVisit(rawURL string, timestamp int64) PageVisit {
	return PageVisit{
		RawURL:            rawURL,
		FormattedPageName: FormatPageName(rawURL),
		Timestamp:         timestamp,
	}
}

// Attributes returns the custom attributes a push of this visit carries.
func (v PageVisit) Attributes() Attributes {
	return Attributes{
		AttrLastPageURL:       v.FormattedPageName,
		AttrLastURLUpdateTime: v.Timestamp,
	}
}

// FormatPageName maps absolute and relative URLs onto the same
// "stellar/<last segment>" form.
func FormatPageName(rawURL string) string {
	path := pathOf(strings.TrimSpace(rawURL))
	path = strings.TrimRight(path, "/")

	segment := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		segment = path[idx+1:]
	}
	if segment == "" {
		segment = HomePageToken
	}

	return PageNamespace + segment
}

func pathOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err == nil {
		if parsed.Opaque != "" {
			return parsed.Opaque
		}
		return parsed.Path
	}

	// url.Parse rejects some inputs browsers accept (bad escapes, control
	// characters); strip the same parts by hand.
	path := rawURL
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	if idx := strings.Index(path, "://"); idx >= 0 {
		path = path[idx+3:]
		if slash := strings.Index(path, "/"); slash >= 0 {
			path = path[slash:]
		} else {
			path = ""
		}
	}

	return path
}
