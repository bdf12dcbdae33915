/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FacebookBaseURL is the Graph API version the insights client targets.
const FacebookBaseURL = "https://graph.facebook.com/v18.0"

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type insightsResponse struct {
	Data  []map[string]any `json:"data"`
	Error *graphError      `json:"error"`
}

// NewFacebook creates a client for the Marketing API account insights
// endpoint. Entities are ad account IDs without the "act_" prefix.
func NewFacebook(accessToken string, opts Options) *Client {
	opts = opts.withDefaults(FacebookBaseURL)
	c := newClient("facebook", nil, opts)
	executor := newExecutor("facebook", opts.Retries, c.logger)

	c.fetch = func(ctx context.Context, account string, start, end time.Time) (Metrics, error) {
		timeRange, err := json.Marshal(map[string]string{
			"since": start.Format(dateLayout),
			"until": end.Format(dateLayout),
		})
		if err != nil {
			return nil, err
		}
		q := url.Values{}
		q.Set("access_token", accessToken)
		q.Set("time_range", string(timeRange))
		q.Set("fields", strings.Join(DefaultMetrics, ","))
		q.Set("level", "account")
		endpoint := fmt.Sprintf("%s/act_%s/insights?%s", strings.TrimRight(opts.BaseURL, "/"), url.PathEscape(account), q.Encode())

		resp, err := do(ctx, opts.HTTPClient, executor, func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		})
		if err != nil {
			return nil, fmt.Errorf("facebook insights for %s: %w", account, err)
		}
		defer func() { _ = resp.Body.Close() }()

		var body insightsResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&body); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode facebook insights: %w", err)
		}
		if body.Error != nil {
			return nil, &APIError{Platform: "facebook", StatusCode: resp.StatusCode, Code: body.Error.Code, Message: body.Error.Message}
		}
		if resp.StatusCode >= 300 {
			return nil, &APIError{Platform: "facebook", StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}

		// An account with no delivery in the period returns an empty list.
		out := Metrics{}
		for _, name := range DefaultMetrics {
			out[name] = 0
		}
		if len(body.Data) == 0 {
			return out, nil
		}
		for _, name := range DefaultMetrics {
			v, err := number(body.Data[0][name])
			if err != nil {
				return nil, fmt.Errorf("facebook %s: %w", name, err)
			}
			out[name] = v
		}
		return out, nil
	}
	return c
}
