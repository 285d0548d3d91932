package notionsync

import (
	"context"
	"fmt"
	"sort"

	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/notion"
)

// Property names of the article database.
const (
	PropTitle     = "title"
	PropURL       = "url"
	PropAuthor    = "author"
	PropLikes     = "likes"
	PropStocks    = "stocks"
	PropTags      = "tags"
	PropSummary   = "summary"
	PropCreatedAt = "created_at"
)

// RequiredProperty is a column the database must have.
type RequiredProperty struct {
	Name string
	Type string
}

// RequiredSchema lists every property written by Upsert.
var RequiredSchema = []RequiredProperty{
	{PropTitle, "title"},
	{PropURL, "url"},
	{PropAuthor, "rich_text"},
	{PropLikes, "number"},
	{PropStocks, "number"},
	{PropTags, "multi_select"},
	{PropSummary, "rich_text"},
	{PropCreatedAt, "date"},
}

// EnsureSchema checks the database for the required properties and adds the
// missing ones in a single update. A database always has exactly one title
// property, so a missing "title" is handled by renaming it. Type mismatches
// are only logged. Once verification succeeds later calls are no-ops.
func (s *Synchronizer) EnsureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schemaVerified {
		return nil
	}

	db, err := s.api.RetrieveDatabase(ctx)
	if err != nil {
		return fmt.Errorf("checking database schema: %w", err)
	}

	updates := make(map[string]any)
	var added []string
	for _, required := range RequiredSchema {
		existing, ok := db.Properties[required.Name]
		if ok {
			if existing.Type != required.Type {
				s.logger.Warn("Database property has unexpected type",
					logger.String("property", required.Name),
					logger.String("expected", required.Type),
					logger.String("actual", existing.Type))
			}
			continue
		}

		if required.Type == "title" {
			if current := titlePropertyName(db.Properties); current != "" {
				updates[current] = map[string]any{"name": required.Name}
				added = append(added, current+"->"+required.Name)
				continue
			}
		}
		updates[required.Name] = map[string]any{required.Type: map[string]any{}}
		added = append(added, required.Name)
	}

	if len(updates) > 0 {
		sort.Strings(added)
		s.logger.Info("Adding missing database properties", logger.Strings("properties", added))
		if err := s.api.UpdateDatabaseProperties(ctx, updates); err != nil {
			return fmt.Errorf("adding missing properties: %w", err)
		}
	}

	s.schemaVerified = true
	return nil
}

func titlePropertyName(properties map[string]notion.PropertySchema) string {
	for name, prop := range properties {
		if prop.Type == "title" {
			return name
		}
	}
	return ""
}
