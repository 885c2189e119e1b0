package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// BaseURLFunc provides the agent's HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

var httpClient = &http.Client{Timeout: 30 * time.Second}

// call performs a request against the agent API and pretty-prints a JSON
// body, or copies a text body as is. Non-2xx responses become errors.
func call(w io.Writer, method, base, path string, query url.Values) error {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if len(body) == 0 {
		fmt.Fprintln(w, "status:", resp.Status)
		return nil
	}
	if resp.Header.Get("Content-Type") == "application/json" {
		var out bytes.Buffer
		if err := json.Indent(&out, body, "", "  "); err == nil {
			_, err = out.WriteTo(w)
			return err
		}
	}
	_, err = w.Write(body)
	return err
}
