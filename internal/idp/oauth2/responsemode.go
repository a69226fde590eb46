package oauth2

import (
	"fmt"
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Registered response modes.
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// ResponseOutput is the encoded authorization response: either a redirect
// Location or a rendered body (form_post).
type ResponseOutput struct {
	Location    string
	Body        []byte
	ContentType string
}

// IsRedirect reports whether the output is delivered as a 302.
func (o *ResponseOutput) IsRedirect() bool { return o.Location != "" }

// ValidResponseMode reports whether the name is a registered mode.
func ValidResponseMode(mode string) bool {
	switch mode {
	case ResponseModeQuery, ResponseModeFragment, ResponseModeFormPost:
		return true
	}
	return false
}

// EncodeResponse delivers params to the redirect URI using the given mode.
// Parameters are appended in sorted key order for deterministic output.
func EncodeResponse(mode, redirectURI string, params map[string]string) (ResponseOutput, error) {
	switch mode {
	case ResponseModeQuery:
		u, err := url.Parse(redirectURI)
		if err != nil {
			return ResponseOutput{}, ErrServerError
		}
		q := u.Query()
		for _, k := range sortedKeys(params) {
			q.Set(k, params[k])
		}
		u.RawQuery = q.Encode()
		return ResponseOutput{Location: u.String()}, nil

	case ResponseModeFragment:
		var sb strings.Builder
		for _, k := range sortedKeys(params) {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(params[k]))
		}
		// Trailing marker keeps legacy user agents from reusing a cached
		// fragment-less copy of the redirect target.
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString("_=_")
		return ResponseOutput{Location: redirectURI + "#" + sb.String()}, nil

	case ResponseModeFormPost:
		return ResponseOutput{
			Body:        renderFormPost(redirectURI, params),
			ContentType: "text/html; charset=utf-8",
		}, nil

	default:
		return ResponseOutput{}, ErrInvalidRequest.WithDescription("unsupported response_mode %q", mode)
	}
}

// renderFormPost builds the auto-submitting form per OAuth 2.0 Form Post
// Response Mode.
func renderFormPost(action string, params map[string]string) []byte {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><head><title>Submit This Form</title></head>")
	sb.WriteString(`<body onload="javascript:document.forms[0].submit()">`)
	fmt.Fprintf(&sb, `<form method="post" action="%s">`, html.EscapeString(action))
	for _, k := range sortedKeys(params) {
		fmt.Fprintf(&sb, `<input type="hidden" name="%s" value="%s"/>`,
			html.EscapeString(k), html.EscapeString(params[k]))
	}
	sb.WriteString("</form></body></html>")
	return []byte(sb.String())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func itoa(n int) string { return strconv.Itoa(n) }
