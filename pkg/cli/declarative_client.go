package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"quarry/internal/api"
	"quarry/internal/declarative"
	"quarry/internal/domain"
	"quarry/pkg/cli/client"
)

// StateReader fetches the full declarative state from a server.
type StateReader interface {
	ReadState(ctx context.Context) (*declarative.DesiredState, error)
}

// StateWriter executes planned actions against a server.
type StateWriter interface {
	Execute(ctx context.Context, action declarative.Action) error
}

// APIStateClient reads and writes declarative state over the HTTP API.
type APIStateClient struct {
	api *client.Client
}

var (
	_ StateReader = (*APIStateClient)(nil)
	_ StateWriter = (*APIStateClient)(nil)
)

// NewAPIStateClient wraps an API client for declarative operations.
func NewAPIStateClient(api *client.Client) *APIStateClient {
	return &APIStateClient{api: api}
}

// ReadState fetches every dataset and macro the server knows about.
func (c *APIStateClient) ReadState(ctx context.Context) (*declarative.DesiredState, error) {
	state := &declarative.DesiredState{}

	rawDatasets, err := c.fetchAllPages("/datasets")
	if err != nil {
		return nil, err
	}
	var datasets []api.Dataset
	if err := json.Unmarshal(rawDatasets, &datasets); err != nil {
		return nil, fmt.Errorf("parse datasets: %w", err)
	}
	for i := range datasets {
		state.Datasets = append(state.Datasets, declarative.DatasetFromDomain(datasetToDomain(&datasets[i])))
	}

	rawMacros, err := c.fetchAllPages("/macros")
	if err != nil {
		return nil, err
	}
	var macros []api.Macro
	if err := json.Unmarshal(rawMacros, &macros); err != nil {
		return nil, fmt.Errorf("parse macros: %w", err)
	}
	for i := range macros {
		state.Macros = append(state.Macros, declarative.MacroFromDomain(macroToDomain(&macros[i])))
	}

	return state, nil
}

// Execute performs one planned action against the server.
func (c *APIStateClient) Execute(ctx context.Context, action declarative.Action) error {
	switch action.ResourceKind {
	case declarative.KindDataset:
		return c.executeDataset(action)
	case declarative.KindMacro:
		return c.executeMacro(action)
	default:
		return fmt.Errorf("unsupported resource kind %s", action.ResourceKind)
	}
}

func (c *APIStateClient) executeDataset(action declarative.Action) error {
	switch action.Operation {
	case declarative.OpCreate:
		desired, ok := action.Desired.(declarative.DatasetResource)
		if !ok {
			return fmt.Errorf("create dataset %s: unexpected desired type %T", action.ResourceName, action.Desired)
		}
		return c.do(http.MethodPost, "/datasets", desired.RegisterRequest())

	case declarative.OpUpdate:
		desired, ok := action.Desired.(declarative.DatasetResource)
		if !ok {
			return fmt.Errorf("update dataset %s: unexpected desired type %T", action.ResourceName, action.Desired)
		}
		return c.do(http.MethodPatch, "/datasets/"+action.ResourceName, desired.UpdateRequest())

	case declarative.OpDelete:
		return c.do(http.MethodDelete, "/datasets/"+action.ResourceName, nil)

	default:
		return fmt.Errorf("unsupported operation %s for dataset", action.Operation)
	}
}

func (c *APIStateClient) executeMacro(action declarative.Action) error {
	switch action.Operation {
	case declarative.OpCreate:
		desired, ok := action.Desired.(declarative.MacroResource)
		if !ok {
			return fmt.Errorf("create macro %s: unexpected desired type %T", action.ResourceName, action.Desired)
		}
		return c.do(http.MethodPost, "/macros", desired.CreateRequest())

	case declarative.OpUpdate:
		desired, ok := action.Desired.(declarative.MacroResource)
		if !ok {
			return fmt.Errorf("update macro %s: unexpected desired type %T", action.ResourceName, action.Desired)
		}
		return c.do(http.MethodPatch, "/macros/"+action.ResourceName, desired.UpdateRequest())

	case declarative.OpDelete:
		return c.do(http.MethodDelete, "/macros/"+action.ResourceName, nil)

	default:
		return fmt.Errorf("unsupported operation %s for macro", action.Operation)
	}
}

// do issues a request and fully consumes the response.
func (c *APIStateClient) do(method, path string, body interface{}) error {
	resp, err := c.api.Do(method, path, nil, body)
	if err != nil {
		return err
	}
	if err := client.CheckError(resp); err != nil {
		return err
	}
	_, err = client.ReadBody(resp)
	return err
}

// listResponse is the paginated envelope with the items left raw.
type listResponse struct {
	Data          json.RawMessage `json:"data"`
	NextPageToken string          `json:"next_page_token"`
}

// fetchAllPages pulls every page of a listing and merges the raw items
// into a single JSON array.
func (c *APIStateClient) fetchAllPages(path string) (json.RawMessage, error) {
	var pages []json.RawMessage
	pageToken := ""

	for {
		query := url.Values{}
		query.Set("max_results", "1000")
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		resp, err := c.api.Do(http.MethodGet, path, query, nil)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", path, err)
		}
		if err := client.CheckError(resp); err != nil {
			return nil, fmt.Errorf("GET %s: %w", path, err)
		}
		body, err := client.ReadBody(resp)
		if err != nil {
			return nil, fmt.Errorf("read GET %s: %w", path, err)
		}

		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parse GET %s: %w", path, err)
		}
		if len(page.Data) > 0 && string(page.Data) != "null" {
			pages = append(pages, page.Data)
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return mergePages(pages)
}

// mergePages concatenates raw JSON arrays into one array.
func mergePages(pages []json.RawMessage) (json.RawMessage, error) {
	if len(pages) == 0 {
		return json.RawMessage("[]"), nil
	}
	if len(pages) == 1 {
		return pages[0], nil
	}
	var merged []json.RawMessage
	for _, page := range pages {
		var items []json.RawMessage
		if err := json.Unmarshal(page, &items); err != nil {
			return nil, fmt.Errorf("merge pages: %w", err)
		}
		merged = append(merged, items...)
	}
	return json.Marshal(merged)
}

// datasetToDomain maps the wire dataset back to its domain form so the
// declarative converters stay the single source of spec mapping.
func datasetToDomain(d *api.Dataset) *domain.Dataset {
	out := &domain.Dataset{
		ID:            d.ID,
		Name:          d.Name,
		Location:      d.Location,
		Format:        d.Format,
		Pattern:       d.Pattern,
		PartitionKeys: d.PartitionKeys,
		Columns:       d.Columns,
		Description:   d.Description,
		Owner:         d.Owner,
		AllowEmpty:    d.AllowEmpty,
		RefreshCron:   d.RefreshCron,
	}
	if d.CSV != nil {
		out.CSV = *d.CSV
	}
	return out
}

func macroToDomain(m *api.Macro) *domain.Macro {
	return &domain.Macro{
		ID:          m.ID,
		Name:        m.Name,
		Parameters:  m.Parameters,
		Body:        m.Body,
		Description: m.Description,
		Owner:       m.Owner,
		Status:      m.Status,
	}
}
