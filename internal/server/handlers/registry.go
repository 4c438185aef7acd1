package handlers

import (
	"strconv"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/internal/cache"
	"github.com/agentstation/wsi/pkg/constants"
)

// Registry remembers the subscriptions created through the API so their
// channels can be streamed by id.
type Registry struct {
	subs *cache.Cache[*wsi.Subscription]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: cache.New[*wsi.Subscription](cache.NoExpiration, constants.CacheCleanupInterval)}
}

// Add stores sub, replacing an older subscription with the same id.
func (r *Registry) Add(sub *wsi.Subscription) {
	r.subs.Set(strconv.Itoa(sub.ID), sub)
}

// Get returns the subscription with id.
func (r *Registry) Get(id int) (*wsi.Subscription, bool) {
	return r.subs.Get(strconv.Itoa(id))
}

// Remove forgets id. The default subscription is never forgotten: the
// server holds a reference to it for its whole life.
func (r *Registry) Remove(id int) {
	if id == constants.DefaultSubscriptionID {
		return
	}
	r.subs.Delete(strconv.Itoa(id))
}

// Len returns the number of known subscriptions.
func (r *Registry) Len() int {
	return r.subs.Len()
}
