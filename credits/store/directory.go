package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/creative-boost/credits"
)

// Directory is an in-memory client and engagement directory.
type Directory struct {
	mu          sync.RWMutex
	clients     map[string]credits.Client
	engagements map[string]credits.Engagement
	services    map[string]credits.EngagementService
}

func NewDirectory() *Directory {
	return &Directory{
		clients:     make(map[string]credits.Client),
		engagements: make(map[string]credits.Engagement),
		services:    make(map[string]credits.EngagementService),
	}
}

var (
	_ credits.ClientDirectory     = (*Directory)(nil)
	_ credits.EngagementDirectory = (*Directory)(nil)
)

func (d *Directory) SaveClient(_ context.Context, c credits.Client) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[c.ID] = c
	return nil
}

func (d *Directory) SaveEngagement(_ context.Context, e credits.Engagement) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engagements[e.ID] = e
	return nil
}

func (d *Directory) SaveEngagementService(_ context.Context, es credits.EngagementService) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[es.ID] = es
	return nil
}

func (d *Directory) GetClient(_ context.Context, id string) (*credits.Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (d *Directory) GetEngagement(_ context.Context, id string) (*credits.Engagement, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.engagements[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// ListEngagementServices returns the billing lines for serviceID, ordered by id.
func (d *Directory) ListEngagementServices(_ context.Context, serviceID string) ([]credits.EngagementService, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := []credits.EngagementService{}
	for _, es := range d.services {
		if es.ServiceID == serviceID {
			result = append(result, es)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Reset drops every client, engagement and billing line.
func (d *Directory) Reset(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients = make(map[string]credits.Client)
	d.engagements = make(map[string]credits.Engagement)
	d.services = make(map[string]credits.EngagementService)
	return nil
}
