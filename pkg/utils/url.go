package utils

import (
	"errors"
	"net/url"
)

// Parses a string of the form tcp://<host>:<port> and returns
// host:port suitable for net.Listen. The port defaults to 8080.
func ParseHttpUrl(urlstr string) (string, error) {
	uri, err := url.Parse(urlstr)
	if err != nil {
		return "", err
	}

	if uri.Port() == "" {
		uri.Host += ":8080"
	}

	switch uri.Scheme {
	case "tcp":
		return uri.Host, nil

	default:
		return "", errors.New("Unsupported protocol: " + uri.Scheme)
	}
}
