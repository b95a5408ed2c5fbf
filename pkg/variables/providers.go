package variables

import (
	"context"
	"fmt"

	"github.com/jmarianski/polytrans/pkg/contentstore"
	"github.com/jmarianski/polytrans/pkg/models"
)

// PostProvider reads the target post's fields from the content store and
// exposes them both flat (title, content, ...) and under a "post" mapping.
type PostProvider struct {
	store contentstore.Store
}

func NewPostProvider(store contentstore.Store) *PostProvider {
	return &PostProvider{store: store}
}

func (p *PostProvider) ID() string {
	return "post"
}

func (p *PostProvider) CanProvide(_ context.Context, base models.ExecutionContext) bool {
	_, ok := base["post_id"].(string)

	return ok
}

func (p *PostProvider) Variables(ctx context.Context, base models.ExecutionContext) (map[string]any, error) {
	postID, _ := base["post_id"].(string)

	post := map[string]any{"id": postID}
	vars := map[string]any{"post": post}

	for _, field := range []string{
		contentstore.FieldTitle,
		contentstore.FieldContent,
		contentstore.FieldExcerpt,
		contentstore.FieldStatus,
		contentstore.FieldDate,
	} {
		value, err := p.store.ReadField(ctx, postID, field)
		if err != nil {
			if contentstore.IsNotFound(err) {
				continue
			}

			return nil, fmt.Errorf("failed to read post field %s: %w", field, err)
		}

		post[field] = value
		vars[field] = value
	}

	return vars, nil
}

// MetaProvider exposes a fixed set of post meta keys under "meta".
type MetaProvider struct {
	store contentstore.Store
	keys  []string
}

func NewMetaProvider(store contentstore.Store, keys ...string) *MetaProvider {
	return &MetaProvider{store: store, keys: keys}
}

func (p *MetaProvider) ID() string {
	return "meta"
}

func (p *MetaProvider) CanProvide(_ context.Context, base models.ExecutionContext) bool {
	_, ok := base["post_id"].(string)

	return ok && len(p.keys) > 0
}

func (p *MetaProvider) Variables(ctx context.Context, base models.ExecutionContext) (map[string]any, error) {
	postID, _ := base["post_id"].(string)
	meta := make(map[string]any, len(p.keys))

	for _, key := range p.keys {
		value, err := p.store.ReadMeta(ctx, postID, key)
		if err != nil {
			if contentstore.IsNotFound(err) {
				continue
			}

			return nil, fmt.Errorf("failed to read post meta %s: %w", key, err)
		}

		meta[key] = value
	}

	return map[string]any{"meta": meta}, nil
}

// SiteProvider contributes static site context (name, url, default language).
type SiteProvider struct {
	site map[string]any
}

func NewSiteProvider(name, url, language string) *SiteProvider {
	return &SiteProvider{site: map[string]any{
		"name":     name,
		"url":      url,
		"language": language,
	}}
}

func (p *SiteProvider) ID() string {
	return "site"
}

func (p *SiteProvider) CanProvide(context.Context, models.ExecutionContext) bool {
	return true
}

func (p *SiteProvider) Variables(context.Context, models.ExecutionContext) (map[string]any, error) {
	return map[string]any{"site": p.site}, nil
}
