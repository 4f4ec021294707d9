package places

import (
	"errors"
	"net/url"
)

const redacted = "REDACTED"

// redactURL masks the key query parameter so URLs can be logged and traced.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if _, ok := q["key"]; !ok {
		return raw
	}
	q.Set("key", redacted)
	u.RawQuery = q.Encode()
	return u.String()
}

// redactError rewrites the URL carried by transport errors.
func redactError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: redactURL(ue.URL), Err: ue.Err}
	}
	return err
}
