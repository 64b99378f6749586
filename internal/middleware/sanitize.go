package middleware

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"mime"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Secrets are compared byte for byte and never rendered, so they are not rewritten.
var skipFields = map[string]bool{
	"password":        true,
	"currentPassword": true,
	"newPassword":     true,
	"refreshToken":    true,
}

// SanitizeString removes HTML markup, script content and control characters (except
// \n, \r and \t) from s. Entities are decoded after each pass and the result is run again
// until it stops changing, so SanitizeString(SanitizeString(s)) == SanitizeString(s).
//
// The loop terminates: a pass that changes s drops a tag, a control character or an
// entity, and each of those removes ASCII bytes, so the count of ASCII bytes in s
// strictly decreases.
func SanitizeString(s string) string {
	s = stripControl(s)
	for {
		next := stripControl(html.UnescapeString(strictPolicy.Sanitize(s)))
		if next == s {
			return s
		}
		s = next
	}
}

func stripControl(s string) string {
	clean := true
	for _, r := range s {
		if isUnsafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !isUnsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t'
}

// SanitizeValue walks a decoded JSON value and sanitizes every string leaf.
func SanitizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return SanitizeString(t)
	case map[string]interface{}:
		for k, child := range t {
			if skipFields[k] {
				continue
			}
			t[k] = SanitizeValue(child)
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = SanitizeValue(t[i])
		}
		return t
	}
	return v
}

// Sanitize cleans JSON request bodies, query values and path parameters before they
// reach handlers. Bodies that are not JSON, or do not parse, pass through untouched and
// are left for binding to reject.
func Sanitize() gin.HandlerFunc {
	return func(c *gin.Context) {
		for i := range c.Params {
			c.Params[i].Value = SanitizeString(c.Params[i].Value)
		}

		if q := c.Request.URL.Query(); len(q) > 0 {
			for key, values := range q {
				for i := range values {
					values[i] = SanitizeString(values[i])
				}
				q[key] = values
			}
			c.Request.URL.RawQuery = q.Encode()
		}

		if isJSON(c.ContentType()) && c.Request.Body != nil {
			if err := sanitizeBody(c); err != nil {
				_ = c.Error(err)
			}
		}

		c.Next()
	}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func sanitizeBody(c *gin.Context) error {
	raw, err := io.ReadAll(c.Request.Body)
	_ = c.Request.Body.Close()
	if err != nil {
		return err
	}
	body := raw
	defer func() {
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Request.ContentLength = int64(len(body))
	}()
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	out, err := json.Marshal(SanitizeValue(v))
	if err != nil {
		return err
	}
	body = out
	return nil
}
