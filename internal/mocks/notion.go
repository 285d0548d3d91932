package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/pep299/qiita-highlight-bridge/internal/notion"
)

// MockPage is a page stored by MockNotionAPI.
type MockPage struct {
	ID         string
	URL        string
	Properties notion.Properties
}

// MockNotionAPI is an in-memory Notion database.
type MockNotionAPI struct {
	mu sync.Mutex

	Schema        map[string]notion.PropertySchema
	Pages         []MockPage
	SchemaUpdates []map[string]any
	Calls         map[string]int

	// Hooks return a non-nil error to fail the n-th (1-based) call.
	RetrieveErr func(call int) error
	QueryErr    func(url string, call int) error
	CreateErr   func(properties notion.Properties, call int) error
	UpdateErr   func(pageID string, call int) error
	// CreatePanic makes CreatePage panic for the given URL.
	CreatePanic string

	nextID int
}

// NewMockNotionAPI returns a database that already has the given property types.
// A nil schema means the full article schema.
func NewMockNotionAPI(schema map[string]string) *MockNotionAPI {
	if schema == nil {
		schema = map[string]string{
			"title":      "title",
			"url":        "url",
			"author":     "rich_text",
			"likes":      "number",
			"stocks":     "number",
			"tags":       "multi_select",
			"summary":    "rich_text",
			"created_at": "date",
		}
	}
	m := &MockNotionAPI{
		Schema: make(map[string]notion.PropertySchema),
		Calls:  make(map[string]int),
	}
	for name, typ := range schema {
		m.Schema[name] = notion.PropertySchema{ID: name, Name: name, Type: typ}
	}
	return m
}

func (m *MockNotionAPI) RetrieveDatabase(ctx context.Context) (*notion.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["retrieve"]++
	if m.RetrieveErr != nil {
		if err := m.RetrieveErr(m.Calls["retrieve"]); err != nil {
			return nil, err
		}
	}

	props := make(map[string]notion.PropertySchema, len(m.Schema))
	for name, prop := range m.Schema {
		props[name] = prop
	}
	return &notion.Database{ID: "db", Properties: props}, nil
}

func (m *MockNotionAPI) UpdateDatabaseProperties(ctx context.Context, properties map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["update_database"]++
	m.SchemaUpdates = append(m.SchemaUpdates, properties)

	for name, raw := range properties {
		spec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if newName, ok := spec["name"].(string); ok {
			prop := m.Schema[name]
			delete(m.Schema, name)
			prop.Name = newName
			m.Schema[newName] = prop
			continue
		}
		for typ := range spec {
			m.Schema[name] = notion.PropertySchema{ID: name, Name: name, Type: typ}
		}
	}
	return nil
}

func (m *MockNotionAPI) QueryDatabase(ctx context.Context, query notion.QueryRequest) (*notion.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["query"]++

	url := ""
	if query.Filter != nil && query.Filter.URL != nil {
		url = query.Filter.URL.Equals
	}
	if m.QueryErr != nil {
		if err := m.QueryErr(url, m.Calls["query"]); err != nil {
			return nil, err
		}
	}

	result := &notion.QueryResult{Results: []notion.Page{}}
	for _, page := range m.Pages {
		if page.URL == url {
			result.Results = append(result.Results, notion.Page{ID: page.ID})
		}
		if query.PageSize > 0 && len(result.Results) == query.PageSize {
			break
		}
	}
	return result, nil
}

func (m *MockNotionAPI) CreatePage(ctx context.Context, properties notion.Properties) (*notion.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["create"]++

	url := PropertyURL(properties)
	if m.CreatePanic != "" && url == m.CreatePanic {
		panic("mock create panic")
	}
	if m.CreateErr != nil {
		if err := m.CreateErr(properties, m.Calls["create"]); err != nil {
			return nil, err
		}
	}

	m.nextID++
	page := MockPage{ID: fmt.Sprintf("page-%d", m.nextID), URL: url, Properties: properties}
	m.Pages = append(m.Pages, page)
	return &notion.Page{ID: page.ID}, nil
}

func (m *MockNotionAPI) UpdatePage(ctx context.Context, pageID string, properties notion.Properties) (*notion.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["update"]++
	if m.UpdateErr != nil {
		if err := m.UpdateErr(pageID, m.Calls["update"]); err != nil {
			return nil, err
		}
	}

	for i := range m.Pages {
		if m.Pages[i].ID == pageID {
			m.Pages[i].Properties = properties
			m.Pages[i].URL = PropertyURL(properties)
			return &notion.Page{ID: pageID}, nil
		}
	}
	return nil, &notion.APIError{Status: 404, Code: "object_not_found", Message: "page not found"}
}

// CallCount returns how many times the named operation ran.
func (m *MockNotionAPI) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}

// PageCount returns the number of stored pages.
func (m *MockNotionAPI) PageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Pages)
}

// PropertyURL reads the url property out of a page payload.
func PropertyURL(properties notion.Properties) string {
	value, ok := properties["url"].(map[string]any)
	if !ok {
		return ""
	}
	url, _ := value["url"].(string)
	return url
}
