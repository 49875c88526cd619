package client

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// PaginatedResponse is the standard list envelope returned by the API.
type PaginatedResponse struct {
	Data          []interface{} `json:"data"`
	NextPageToken string        `json:"next_page_token"`
}

// FetchAllPages follows next_page_token until the listing is exhausted and
// returns the concatenated items. baseQuery is never mutated.
func FetchAllPages(c *Client, method, path string, baseQuery url.Values) ([]interface{}, error) {
	var items []interface{}
	pageToken := ""

	for {
		query := url.Values{}
		for k, vs := range baseQuery {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		resp, err := c.Do(method, path, query, nil)
		if err != nil {
			return nil, err
		}
		if err := CheckError(resp); err != nil {
			return nil, err
		}
		body, err := ReadBody(resp)
		if err != nil {
			return nil, err
		}

		var page PaginatedResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}

		items = append(items, page.Data...)
		if page.NextPageToken == "" {
			return items, nil
		}
		pageToken = page.NextPageToken
	}
}
