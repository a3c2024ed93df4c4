package broadcast

import (
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bobleung/ds-broadcaster/internal/metrics"
)

// DefaultHeartbeatInterval is how long a stream may sit idle before a
// heartbeat frame is injected.
const DefaultHeartbeatInterval = 15 * time.Second

// Principal is the opaque identity attached to a connection. Implementations
// with no real identity should return 0.
type Principal interface {
	UserID() int64
}

// PresenceResult is what a presence callback hands back for dispatch.
// Either part may be empty; each present part is published separately.
type PresenceResult struct {
	Elements string
	Signals  map[string]any
}

// PresenceFunc is invoked on every membership change of a channel with the
// deduplicated, ascending list of connected user ids. It may block (data
// lookups, template rendering); it never runs on the home loop.
type PresenceFunc func(channel string, userIDs []int64) (PresenceResult, error)

// ChannelOption configures a channel at creation time.
type ChannelOption func(*ChannelConfig)

// WithPresence sets the channel's presence callback. First creation wins;
// later creations never overwrite it.
func WithPresence(fn PresenceFunc) ChannelOption {
	return func(cfg *ChannelConfig) {
		cfg.Presence = fn
	}
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithClock injects the clock used for heartbeat timing.
func WithClock(clock clockwork.Clock) Option {
	return func(b *Broadcaster) {
		b.clock = clock
	}
}

// WithHeartbeatInterval overrides the idle interval before heartbeats.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(b *Broadcaster) {
		b.heartbeat = d
	}
}

// WithLogger sets the logger used for non-fatal delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

// Broadcaster fans server-generated events out to every open stream on a
// channel. All methods are safe from any goroutine: delivery is marshaled
// onto the home loop, which is started by the first OpenConnection.
type Broadcaster struct {
	registry  *registry
	clock     clockwork.Clock
	logger    *slog.Logger
	heartbeat time.Duration
}

// New creates a Broadcaster. The home loop is not started until the first
// connection is opened; publishes before that are silent no-ops.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		registry:  newRegistry(),
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
		heartbeat: DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PublishElements sends a patch-elements frame to every subscriber on the
// channel. No-op if the channel has no subscribers.
func (b *Broadcaster) PublishElements(channel, html string, opts ...PatchOption) {
	b.deliver(channel, FormatPatchElements(html, opts...), "elements")
}

// PublishSignals sends a patch-signals frame to every subscriber on the
// channel. A value that cannot be marshaled fails this call only.
func (b *Broadcaster) PublishSignals(channel string, signals map[string]any) error {
	frame, err := FormatPatchSignals(signals)
	if err != nil {
		return err
	}
	b.deliver(channel, frame, "signals")
	return nil
}

// CreateChannel creates an empty channel. Idempotent: creating an existing
// channel returns without touching its configuration.
func (b *Broadcaster) CreateChannel(channel string, opts ...ChannelOption) {
	b.registry.create(channel, buildChannelConfig(opts))
}

// OpenConnection registers a new subscriber stream on the channel, creating
// the channel (with the supplied options) if it does not exist, and triggers
// a presence broadcast reflecting the new membership. The returned Stream
// must be driven by the caller; every exit path unregisters the subscriber.
func (b *Broadcaster) OpenConnection(channel string, principal Principal, opts ...ChannelOption) *Stream {
	b.registry.ensureHomeLoop()

	sub := newSubscriber(resolveUserID(principal))
	b.registry.addSubscriber(channel, sub, buildChannelConfig(opts))
	metrics.ConnectedSubscribers.Inc()
	metrics.ActiveChannels.Set(float64(len(b.registry.channelNames())))

	b.logger.Debug("Subscriber connected",
		"channel", channel,
		"subscriber_id", sub.id.String(),
		"user_id", sub.userID,
	)

	b.broadcastPresence(channel)
	return newStream(b, channel, sub)
}

// CloseUserConnections force-closes every stream a user has open on a
// channel by pushing a close sentinel into each of its queues. No-op if the
// user has no open streams or no home loop is available.
func (b *Broadcaster) CloseUserConnections(channel string, userID int64) {
	subs := b.registry.subscribersForUser(channel, userID)
	if len(subs) == 0 {
		return
	}
	b.post(channel, "close", func() {
		for _, sub := range subs {
			sub.push(item{sentinel: true})
		}
	})
}

// KillChannel destroys a channel, force-closing all its streams. Sentinels
// are signaled before the registry entry is removed, so frames already
// queued ahead of them still drain before each stream ends.
func (b *Broadcaster) KillChannel(channel string) {
	subs := b.registry.snapshot(channel)
	if len(subs) > 0 {
		b.registry.markDraining(channel)
		b.post(channel, "close", func() {
			for _, sub := range subs {
				sub.push(item{sentinel: true})
			}
		})
	}
	b.registry.destroy(channel)
	metrics.ActiveChannels.Set(float64(len(b.registry.channelNames())))
}

// ConnectedUserIDs returns one entry per open stream on the channel;
// multi-tab users appear once per tab.
func (b *Broadcaster) ConnectedUserIDs(channel string) []int64 {
	return b.registry.userIDs(channel)
}

// ActiveChannels returns the names of channels that currently exist.
func (b *Broadcaster) ActiveChannels() []string {
	return b.registry.channelNames()
}

// Stop force-closes every stream and shuts the home loop down, blocking
// until posted work has drained. Publishes after Stop are no-ops until a
// new connection starts a fresh loop.
func (b *Broadcaster) Stop() {
	loop := b.registry.homeLoop()
	if loop == nil {
		return
	}
	for _, channel := range b.registry.channelNames() {
		for _, sub := range b.registry.snapshot(channel) {
			subRef := sub
			loop.Post(func() {
				subRef.push(item{sentinel: true})
			})
		}
	}
	loop.Stop()
	b.logger.Info("Broadcaster stopped")
}

// deliver fans one frame out to the channel's current subscriber snapshot
// as a single batch on the home loop, so no other publish to the channel
// interleaves within this call.
func (b *Broadcaster) deliver(channel string, frame Frame, frameType string) {
	subs := b.registry.snapshot(channel)
	if len(subs) == 0 {
		return
	}
	posted := b.post(channel, frameType, func() {
		for _, sub := range subs {
			sub.push(item{frame: frame})
		}
	})
	if posted {
		metrics.FramesPublishedTotal.WithLabelValues(frameType).Inc()
	}
}

// post marshals fn onto the home loop. Callers that are already running on
// the loop only exist as loop-posted closures, so there is a single code
// path to reason about; publishes with no live loop are dropped.
func (b *Broadcaster) post(channel, frameType string, fn func()) bool {
	loop := b.registry.homeLoop()
	if loop == nil {
		metrics.FramesDroppedTotal.WithLabelValues("no_home_loop").Inc()
		b.logger.Debug("Dropping publish: no home loop yet", "channel", channel, "type", frameType)
		return false
	}
	if !loop.Post(fn) {
		metrics.FramesDroppedTotal.WithLabelValues("loop_stopped").Inc()
		b.logger.Debug("Dropping publish: home loop stopped", "channel", channel, "type", frameType)
		return false
	}
	return true
}

// broadcastPresence runs the channel's presence callback, if configured,
// on a worker goroutine and publishes its result through the normal
// delivery path. Callback failures are reported and never abort the
// connection lifecycle that triggered them.
func (b *Broadcaster) broadcastPresence(channel string) {
	cfg, ok := b.registry.config(channel)
	if !ok || cfg.Presence == nil {
		return
	}
	userIDs := dedupeSorted(b.registry.userIDs(channel))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				metrics.PresenceCallbackFailures.Inc()
				b.logger.Error("Presence callback panic recovered", "channel", channel, "panic", r)
			}
		}()

		start := b.clock.Now()
		result, err := cfg.Presence(channel, userIDs)
		metrics.PresenceCallbackDuration.Observe(b.clock.Since(start).Seconds())
		if err != nil {
			metrics.PresenceCallbackFailures.Inc()
			b.logger.Error("Presence callback failed", "channel", channel, "error", err)
			return
		}

		if result.Elements != "" {
			b.PublishElements(channel, result.Elements)
		}
		if len(result.Signals) > 0 {
			if err := b.PublishSignals(channel, result.Signals); err != nil {
				b.logger.Error("Presence signals failed", "channel", channel, "error", err)
			}
		}
	}()
}

func buildChannelConfig(opts []ChannelOption) ChannelConfig {
	var cfg ChannelConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func resolveUserID(principal Principal) int64 {
	if principal == nil {
		return 0
	}
	return principal.UserID()
}

// dedupeSorted collapses multi-tab duplicates into an ascending id list.
func dedupeSorted(ids []int64) []int64 {
	slices.Sort(ids)
	return slices.Compact(ids)
}
