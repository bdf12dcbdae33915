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
	"strconv"
	"strings"
	"time"
)

// TikTokBaseURL is the Marketing API version the report client targets.
const TikTokBaseURL = "https://business-api.tiktok.com/open_api/v1.3"

const (
	tiktokPageSize = 1000

	// tiktokMaxPages bounds pagination against a misbehaving page_info.
	tiktokMaxPages = 100
)

type tiktokReport struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		List []struct {
			Metrics map[string]any `json:"metrics"`
		} `json:"list"`
		PageInfo struct {
			Page      int `json:"page"`
			TotalPage int `json:"total_page"`
		} `json:"page_info"`
	} `json:"data"`
}

// NewTikTok creates a client for the integrated report endpoint. Entities
// are advertiser IDs; daily rows are summed across every page.
func NewTikTok(accessToken string, opts Options) *Client {
	opts = opts.withDefaults(TikTokBaseURL)
	c := newClient("tiktok", nil, opts)
	executor := newExecutor("tiktok", opts.Retries, c.logger)

	page := func(ctx context.Context, advertiser string, start, end time.Time, n int) (*tiktokReport, error) {
		dims, _ := json.Marshal([]string{"stat_time_day"})
		metrics, _ := json.Marshal(DefaultMetrics)
		q := url.Values{}
		q.Set("advertiser_id", advertiser)
		q.Set("report_type", "BASIC")
		q.Set("data_level", "AUCTION_ADVERTISER")
		q.Set("dimensions", string(dims))
		q.Set("metrics", string(metrics))
		q.Set("start_date", start.Format(dateLayout))
		q.Set("end_date", end.Format(dateLayout))
		q.Set("page", strconv.Itoa(n))
		q.Set("page_size", strconv.Itoa(tiktokPageSize))
		endpoint := strings.TrimRight(opts.BaseURL, "/") + "/report/integrated/get/?" + q.Encode()

		resp, err := do(ctx, opts.HTTPClient, executor, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Access-Token", accessToken)
			return req, nil
		})
		if err != nil {
			return nil, fmt.Errorf("tiktok report for %s: %w", advertiser, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 300 {
			return nil, &APIError{Platform: "tiktok", StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		var report tiktokReport
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&report); err != nil {
			return nil, fmt.Errorf("decode tiktok report: %w", err)
		}
		if report.Code != 0 {
			return nil, &APIError{Platform: "tiktok", StatusCode: resp.StatusCode, Code: report.Code, Message: report.Message}
		}
		return &report, nil
	}

	c.fetch = func(ctx context.Context, advertiser string, start, end time.Time) (Metrics, error) {
		out := Metrics{}
		for _, name := range DefaultMetrics {
			out[name] = 0
		}
		for n := 1; n <= tiktokMaxPages; n++ {
			report, err := page(ctx, advertiser, start, end, n)
			if err != nil {
				return nil, err
			}
			for _, row := range report.Data.List {
				for _, name := range DefaultMetrics {
					v, err := number(row.Metrics[name])
					if err != nil {
						return nil, fmt.Errorf("tiktok %s: %w", name, err)
					}
					out[name] += v
				}
			}
			if n >= report.Data.PageInfo.TotalPage {
				break
			}
		}
		return out, nil
	}
	return c
}
