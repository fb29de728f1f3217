package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// requestTimeout covers plan generation plus calendar sync.
const requestTimeout = 5 * time.Minute

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newClient(base string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(requestTimeout)
}

func userPath(userID, suffix string) string {
	return "/api/users/" + url.PathEscape(userID) + suffix
}

// do sends req and returns the body of a 2xx response.
func do(req *resty.Request, method, path string) ([]byte, error) {
	resp, err := req.SetError(&apiError{}).Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
			return nil, fmt.Errorf("%s (%d): %s", e.Error, resp.StatusCode(), e.Message)
		}
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode())
	}
	return resp.Body(), nil
}

// printJSON pretty-prints a JSON body.
func printJSON(w io.Writer, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(body))
		return err
	}
	_, err := fmt.Fprintln(w, buf.String())
	return err
}

// localOffsetMinutes returns the local zone's offset in the sign convention the
// API expects: zones ahead of UTC are negative.
func localOffsetMinutes(now time.Time) int {
	_, secs := now.Zone()
	return -secs / 60
}
