package cast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

const (
	devicesKey = "cast:devices"
	devicesTTL = 10 * time.Minute
)

// Registry caches discovered devices so the UI can list them without
// re-running a multicast sweep. Backed by Redis when available, with
// an in-process fallback.
type Registry struct {
	client *redislib.Client

	mu      sync.Mutex
	devices []Device
}

func NewRegistry(client *redislib.Client) *Registry {
	return &Registry{client: client}
}

func (r *Registry) Store(ctx context.Context, devices []Device) {
	r.mu.Lock()
	r.devices = make([]Device, len(devices))
	copy(r.devices, devices)
	r.mu.Unlock()

	if r.client == nil {
		return
	}

	payload, err := json.Marshal(devices)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, devicesKey, payload, devicesTTL).Err()
}

func (r *Registry) Cached(ctx context.Context) []Device {
	if r.client != nil {
		if raw, err := r.client.Get(ctx, devicesKey).Bytes(); err == nil {
			var devices []Device
			if err := json.Unmarshal(raw, &devices); err == nil {
				return devices
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}
