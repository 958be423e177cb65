package atlas

import "sync"

// ClientCache reuses one Client per API key pair and group. The cache is an
// explicit object owned by whoever constructs it, not package-level state, so
// its lifetime is the owner's lifetime and eviction is a plain Evict call.
type ClientCache struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewClientCache() *ClientCache {
	return &ClientCache{
		clients: make(map[string]*Client),
	}
}

// Get returns the cached client for the credentials, creating one on first use
func (c *ClientCache) Get(creds Credentials) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := creds.PublicKey + "/" + creds.GroupID
	if client, ok := c.clients[key]; ok {
		return client
	}

	client := newClient(creds)
	c.clients[key] = client
	return client
}

// Evict drops the cached client for the credentials, if any
func (c *ClientCache) Evict(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, creds.PublicKey+"/"+creds.GroupID)
}

// Len reports how many clients are currently cached
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
