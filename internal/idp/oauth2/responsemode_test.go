package oauth2

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeResponseQuery(t *testing.T) {
	t.Parallel()

	out, err := EncodeResponse(ResponseModeQuery, "https://rp.example.com/cb?keep=1", map[string]string{
		"code":  "abc",
		"state": "xyz",
	})
	require.NoError(t, err)
	require.True(t, out.IsRedirect())

	u, err := url.Parse(out.Location)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "abc", q.Get("code"))
	require.Equal(t, "xyz", q.Get("state"))
	require.Equal(t, "1", q.Get("keep"), "existing query parameters survive")
	require.Empty(t, u.Fragment)
}

func TestEncodeResponseFragment(t *testing.T) {
	t.Parallel()

	out, err := EncodeResponse(ResponseModeFragment, "https://rp.example.com/cb", map[string]string{
		"access_token": "tok",
		"token_type":   "Bearer",
	})
	require.NoError(t, err)
	require.True(t, out.IsRedirect())

	base, frag, found := strings.Cut(out.Location, "#")
	require.True(t, found)
	require.Equal(t, "https://rp.example.com/cb", base)
	require.Contains(t, frag, "access_token=tok")
	require.Contains(t, frag, "token_type=Bearer")
	require.True(t, strings.HasSuffix(frag, "_=_"), "fragment carries the cache-busting marker")
}

func TestEncodeResponseFormPost(t *testing.T) {
	t.Parallel()

	out, err := EncodeResponse(ResponseModeFormPost, "https://rp.example.com/cb", map[string]string{
		"code":  "abc",
		"state": `"><script>`,
	})
	require.NoError(t, err)
	require.False(t, out.IsRedirect())
	require.Equal(t, "text/html; charset=utf-8", out.ContentType)

	body := string(out.Body)
	require.Contains(t, body, `action="https://rp.example.com/cb"`)
	require.Contains(t, body, `name="code" value="abc"`)
	require.NotContains(t, body, "<script>", "parameter values are escaped")
	require.Contains(t, body, "document.forms[0].submit()")
}

func TestEncodeResponseUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := EncodeResponse("web_message", "https://rp.example.com/cb", nil)
	require.Error(t, err)
	require.Equal(t, ErrorCodeInvalidRequest, AsError(err).Code)
}

func TestDefaultResponseMode(t *testing.T) {
	t.Parallel()

	require.Equal(t, ResponseModeQuery, DefaultResponseMode("code"))
	require.Equal(t, ResponseModeQuery, DefaultResponseMode("none"))
	require.Equal(t, ResponseModeFragment, DefaultResponseMode("token"))
	require.Equal(t, ResponseModeFragment, DefaultResponseMode("id_token"))
	require.Equal(t, ResponseModeFragment, DefaultResponseMode("code id_token token"))
}
