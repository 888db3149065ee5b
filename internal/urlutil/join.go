package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// JoinPath safely joins URL paths, handling trailing and leading slashes correctly
func JoinPath(base string, paths ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	allPaths := append([]string{u.Path}, paths...)
	u.Path = path.Join(allPaths...)

	// Preserve trailing slash if the last path component had one
	if len(paths) > 0 && strings.HasSuffix(paths[len(paths)-1], "/") {
		u.Path += "/"
	}

	return u.String(), nil
}

// MustJoinPath is like JoinPath but panics on error (for use with known-good URLs)
func MustJoinPath(base string, paths ...string) string {
	result, err := JoinPath(base, paths...)
	if err != nil {
		panic(err)
	}
	return result
}

// Origin returns scheme://host[:port] of raw, or "" when raw is not absolute.
func Origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// OriginAndPath returns origin followed by the path, without query or fragment.
func OriginAndPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return Origin(raw) + u.EscapedPath()
}

// StripParams removes the named query parameters, and the same names from a
// query-style fragment, returning the cleaned URL.
func StripParams(raw string, names ...string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, n := range names {
		q.Del(n)
	}
	u.RawQuery = q.Encode()

	if rf := u.EscapedFragment(); fragmentIsQuery(rf) {
		if frag, err := url.ParseQuery(rf); err == nil {
			for _, n := range names {
				frag.Del(n)
			}
			enc := frag.Encode()
			u.Fragment, _ = url.PathUnescape(enc)
			u.RawFragment = enc
		}
	}
	return u.String()
}

// QueryOrFragmentParam looks name up in the query string, then in a
// query-style fragment ("#code=...").
func QueryOrFragmentParam(raw, name string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if v := u.Query().Get(name); v != "" {
		return v
	}
	if u.Fragment == "" {
		return ""
	}
	frag, err := url.ParseQuery(u.EscapedFragment())
	if err != nil {
		return ""
	}
	return frag.Get(name)
}

func fragmentIsQuery(fragment string) bool {
	return strings.Contains(fragment, "=")
}
