package broadcast

import "sync"

// channelState is the explicit lifecycle of a channel entry. Removal from
// the map is the terminal "gone" state.
type channelState int

const (
	stateActive channelState = iota
	stateDraining
)

// ChannelConfig holds per-channel configuration recorded at first creation.
type ChannelConfig struct {
	// Presence, if set, is invoked on every membership change. Immutable
	// for the channel's lifetime.
	Presence PresenceFunc
}

type channelEntry struct {
	subs  map[*subscriber]struct{}
	cfg   ChannelConfig
	state channelState
	refs  int
}

// registry is the thread-safe map from channel name to subscriber set.
// One mutex guards all of it, held only for pure in-memory map work and
// never across callback invocation, I/O, or enqueueing. Reads return
// snapshots so callers never iterate a live set.
type registry struct {
	mu       sync.Mutex
	channels map[string]*channelEntry
	loop     *homeLoop
}

func newRegistry() *registry {
	return &registry{channels: make(map[string]*channelEntry)}
}

// create inserts an empty channel entry if absent. Idempotent: repeated
// creation never overwrites existing configuration.
func (r *registry) create(channel string, cfg ChannelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(channel, cfg)
}

func (r *registry) ensureLocked(channel string, cfg ChannelConfig) *channelEntry {
	entry, ok := r.channels[channel]
	if !ok {
		entry = &channelEntry{
			subs:  make(map[*subscriber]struct{}),
			cfg:   cfg,
			state: stateActive,
		}
		r.channels[channel] = entry
	}
	return entry
}

// destroy removes the channel entry and all subscriber associations. It
// does not signal the subscribers; callers push close sentinels around it.
func (r *registry) destroy(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, channel)
}

// markDraining flags a channel whose subscribers have been told to close.
func (r *registry) markDraining(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.channels[channel]; ok {
		entry.state = stateDraining
	}
}

// addSubscriber registers a queue on a channel, creating the channel
// implicitly if absent.
func (r *registry) addSubscriber(channel string, sub *subscriber, cfg ChannelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.ensureLocked(channel, cfg)
	entry.subs[sub] = struct{}{}
	entry.refs++
}

// removeSubscriber unregisters a queue and reports how many subscribers
// remain. When the count drops to zero the channel entry is deleted.
func (r *registry) removeSubscriber(channel string, sub *subscriber) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.channels[channel]
	if !ok {
		return 0
	}
	if _, ok := entry.subs[sub]; !ok {
		return len(entry.subs)
	}
	delete(entry.subs, sub)
	entry.refs--
	if entry.refs <= 0 {
		delete(r.channels, channel)
		return 0
	}
	return len(entry.subs)
}

// snapshot returns a point-in-time copy of a channel's subscriber set.
func (r *registry) snapshot(channel string) []*subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.channels[channel]
	if !ok {
		return nil
	}
	subs := make([]*subscriber, 0, len(entry.subs))
	for sub := range entry.subs {
		subs = append(subs, sub)
	}
	return subs
}

// userIDs returns one entry per subscriber; the same user connected from
// several tabs appears once per connection.
func (r *registry) userIDs(channel string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.channels[channel]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(entry.subs))
	for sub := range entry.subs {
		ids = append(ids, sub.userID)
	}
	return ids
}

// subscribersForUser returns the queues belonging to one user on a channel.
func (r *registry) subscribersForUser(channel string, userID int64) []*subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.channels[channel]
	if !ok {
		return nil
	}
	var subs []*subscriber
	for sub := range entry.subs {
		if sub.userID == userID {
			subs = append(subs, sub)
		}
	}
	return subs
}

func (r *registry) channelNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}

func (r *registry) config(channel string) (ChannelConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.channels[channel]
	if !ok {
		return ChannelConfig{}, false
	}
	return entry.cfg, true
}

// ensureHomeLoop records the home loop on first connection, replacing a
// previous loop only if it has stopped.
func (r *registry) ensureHomeLoop() *homeLoop {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loop == nil || r.loop.stopped() {
		r.loop = newHomeLoop()
	}
	return r.loop
}

// homeLoop returns the recorded loop handle, or nil if no connection has
// ever been accepted.
func (r *registry) homeLoop() *homeLoop {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loop
}
