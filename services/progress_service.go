package services

import (
	"sync"

	"github.com/launchforge-api/models"
)

// ProgressService fans step-transition events out to subscribers, keyed by
// deployment ID. Delivery is best-effort: a subscriber that cannot keep up
// has events dropped, and the deployment record remains authoritative.
// Topics are evicted as soon as their last subscriber cancels.
type ProgressService struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[string]map[int]chan models.ProgressEvent
}

// NewProgressService creates an empty progress channel registry
func NewProgressService() *ProgressService {
	return &ProgressService{
		subscribers: make(map[string]map[int]chan models.ProgressEvent),
	}
}

// Subscribe registers a new subscriber for one deployment's events. The
// returned cancel func must be called when the consumer's connection ends;
// it closes the channel.
func (s *ProgressService) Subscribe(deploymentID string) (<-chan models.ProgressEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan models.ProgressEvent, 16)
	id := s.nextID
	s.nextID++

	topic, ok := s.subscribers[deploymentID]
	if !ok {
		topic = make(map[int]chan models.ProgressEvent)
		s.subscribers[deploymentID] = topic
	}
	topic[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		topic, ok := s.subscribers[deploymentID]
		if !ok {
			return
		}
		if _, ok := topic[id]; !ok {
			return
		}
		delete(topic, id)
		if len(topic) == 0 {
			delete(s.subscribers, deploymentID)
		}
		close(ch)
	}

	return ch, cancel
}

// Publish delivers an event to every current subscriber of the deployment.
// Each subscriber gets its own copy; a full subscriber buffer drops the event.
func (s *ProgressService) Publish(event models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subscribers[event.DeploymentID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers for a deployment
func (s *ProgressService) SubscriberCount(deploymentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers[deploymentID])
}
