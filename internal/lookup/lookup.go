// Package lookup holds the category and discipline-icon tables the event
// client resolves new events against. They are loaded once at startup.
package lookup

import (
	"context"
	"slices"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/internal/cache"
	"github.com/agentstation/wsi/internal/transport"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
)

// Compile-time interface checks.
var (
	_ wsi.CategoryLookup = (*Categories)(nil)
	_ wsi.IconLookup     = (*Icons)(nil)
)

// Source serves the raw tables, normally a *transport.Client.
type Source interface {
	GetCategories(ctx context.Context) ([]events.Category, error)
	GetDisciplines(ctx context.Context) ([]transport.Discipline, error)
}

// Categories resolves event categories by id.
type Categories struct {
	cache *cache.Cache[*events.Category]
}

// NewCategories creates an empty table.
func NewCategories() *Categories {
	return &Categories{cache: cache.New[*events.Category](constants.CacheTTL, constants.CacheCleanupInterval)}
}

// Replace swaps the table content.
func (c *Categories) Replace(list []events.Category) {
	entries := make(map[string]*events.Category, len(list))
	for i := range list {
		cat := list[i]
		entries[strconv.Itoa(cat.ID)] = &cat
	}
	c.cache.Replace(entries)
}

// Category implements wsi.CategoryLookup.
func (c *Categories) Category(id int) (*events.Category, bool) {
	return c.cache.Get(strconv.Itoa(id))
}

// All returns the categories ordered by id, most severe first.
func (c *Categories) All() []events.Category {
	items := c.cache.Items()
	out := make([]events.Category, 0, len(items))
	for _, cat := range items {
		out = append(out, *cat)
	}
	slices.SortFunc(out, func(a, b events.Category) int { return a.ID - b.ID })
	return out
}

// Icons resolves discipline and sub-discipline icons.
type Icons struct {
	cache *cache.Cache[string]
}

// NewIcons creates an empty table.
func NewIcons() *Icons {
	return &Icons{cache: cache.New[string](constants.CacheTTL, constants.CacheCleanupInterval)}
}

func iconKey(ids ...int) string {
	key := ""
	for i, id := range ids {
		if i > 0 {
			key += ":"
		}
		key += strconv.Itoa(id)
	}
	return key
}

// Replace swaps the table content.
func (ic *Icons) Replace(list []transport.Discipline) {
	entries := make(map[string]string)
	for _, d := range list {
		if d.Icon != "" {
			entries[iconKey(d.ID)] = d.Icon
		}
		for _, sub := range d.SubDisciplines {
			if sub.Icon != "" {
				entries[iconKey(d.ID, sub.ID)] = sub.Icon
			}
		}
	}
	ic.cache.Replace(entries)
}

// Icon implements wsi.IconLookup. The sub-discipline icon wins over the
// discipline icon.
func (ic *Icons) Icon(disciplineID, subDisciplineID int) (string, bool) {
	if icon, ok := ic.cache.Get(iconKey(disciplineID, subDisciplineID)); ok {
		return icon, true
	}
	return ic.cache.Get(iconKey(disciplineID))
}

// Tables bundles both lookups.
type Tables struct {
	Categories *Categories
	Icons      *Icons
}

// Load fetches both tables concurrently.
func Load(ctx context.Context, src Source, logger *zerolog.Logger) (*Tables, error) {
	t := &Tables{Categories: NewCategories(), Icons: NewIcons()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cats, err := src.GetCategories(gctx)
		if err != nil {
			return errors.WrapResource("load", "categories", "", err)
		}
		t.Categories.Replace(cats)
		logger.Debug().Int("count", len(cats)).Msg("Categories loaded")
		return nil
	})
	g.Go(func() error {
		ds, err := src.GetDisciplines(gctx)
		if err != nil {
			return errors.WrapResource("load", "disciplines", "", err)
		}
		t.Icons.Replace(ds)
		logger.Debug().Int("count", len(ds)).Msg("Disciplines loaded")
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}
