package utils

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// SplitProxyAuth moves credentials embedded in a proxy URL into separate
// values unless the caller already supplied a username.
func SplitProxyAuth(proxyURL, username, password string) (string, string, string) {
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.User == nil || username != "" {
		return proxyURL, username, password
	}
	username = parsed.User.Username()
	if p, set := parsed.User.Password(); set {
		password = p
	}
	parsed.User = nil
	return parsed.String(), username, password
}

// FileNameFromURL picks the last path segment, falling back to "download".
func FileNameFromURL(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return "download"
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return filepath.Base(name)
}
