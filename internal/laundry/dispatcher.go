package laundry

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lavanderia-bot/laundrybot/internal/clock"
	"github.com/lavanderia-bot/laundrybot/internal/content"
	"github.com/lavanderia-bot/laundrybot/internal/observability"
	"github.com/lavanderia-bot/laundrybot/internal/policy"
	"github.com/lavanderia-bot/laundrybot/internal/reliability"
	"github.com/lavanderia-bot/laundrybot/internal/weather"
)

// Sink delivers a message to a conversation. It is owned by the transport.
type Sink interface {
	Send(ctx context.Context, conversation string, msg Outbound) error
}

// Config wires a Dispatcher to its collaborators.
type Config struct {
	Conversation    string
	Clock           clock.Clock
	Policy          Policy
	Content         content.Pack
	Sink            Sink
	Weather         weather.Provider
	WeatherLocation string
	Rand            *rand.Rand
	Metrics         *observability.Metrics
	// OnFinish runs after a session is closed by its holder, outside the
	// dispatcher lock.
	OnFinish func(conversation string, f Finished)
}

// Status is a read-only view of one machine.
type Status struct {
	Conversation string       `json:"conversation"`
	Busy         bool         `json:"busy"`
	Session      *Session     `json:"session,omitempty"`
	Queue        []QueueEntry `json:"queue"`
}

// Dispatcher turns chat commands from one conversation into machine state
// transitions and replies. Commands are applied one at a time.
type Dispatcher struct {
	mu sync.Mutex

	conversation    string
	clock           clock.Clock
	policy          Policy
	content         content.Pack
	sessions        *SessionManager
	queue           *Queue
	sink            Sink
	weather         weather.Provider
	weatherLocation string
	rng             *rand.Rand
	metrics         *observability.Metrics
	onFinish        func(string, Finished)
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	d := &Dispatcher{
		conversation:    cfg.Conversation,
		clock:           cfg.Clock,
		policy:          cfg.Policy,
		content:         cfg.Content,
		sessions:        NewSessionManager(cfg.Clock, cfg.Policy),
		queue:           NewQueue(),
		sink:            cfg.Sink,
		weather:         cfg.Weather,
		weatherLocation: cfg.WeatherLocation,
		rng:             cfg.Rand,
		metrics:         cfg.Metrics,
		onFinish:        cfg.OnFinish,
	}
	d.sessions.SetWarningHook(func(s Session) {
		d.event("warned")
		d.deliver(context.Background(), []Outbound{warningReply(d.policy, s)})
	})
	return d
}

type transition struct {
	replies  []Outbound
	finished *Finished
}

// Handle applies one inbound message and sends its replies. It returns the
// replies it attempted to send; unrecognized text yields none.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) []Outbound {
	begin := time.Now()
	cmd := ParseCommand(in.Text)
	if d.metrics != nil {
		d.metrics.Commands.WithLabelValues(cmd.Label()).Inc()
	}
	if cmd == CommandUnrecognized {
		return nil
	}

	var t transition
	if cmd == CommandWeather {
		t.replies = []Outbound{d.lookupWeather(ctx)}
	} else {
		d.mu.Lock()
		t = d.apply(cmd, in.Sender, d.clock.Now())
		d.mu.Unlock()
	}

	if t.finished != nil && d.onFinish != nil {
		d.onFinish(d.conversation, *t.finished)
	}
	d.deliver(ctx, t.replies)

	if d.metrics != nil {
		d.metrics.ObserveDispatch(time.Since(begin))
	}
	return t.replies
}

func (d *Dispatcher) apply(cmd Command, sender string, now time.Time) transition {
	switch cmd {
	case CommandMenu:
		return reply(Outbound{Text: d.content.Menu})
	case CommandTip:
		return reply(Outbound{Text: d.content.Tip})
	case CommandInfo:
		return reply(Outbound{Text: d.content.MachineInfo})
	case CommandHours:
		return reply(Outbound{Text: d.content.Hours})
	case CommandTrashDay:
		return reply(Outbound{Text: d.content.TrashDays})
	case CommandStart:
		return d.start(sender, now)
	case CommandFinish:
		return d.finish(sender, now)
	case CommandEnqueue:
		return d.enqueue(sender)
	case CommandDequeue:
		return d.dequeue(sender)
	case CommandShuffleLoad:
		load := ShuffleLoad(d.rng, d.content.Catalog, d.content.LoadCapGrams, ShuffleAttempts)
		return reply(shuffleReply(load, d.content.LoadCapGrams))
	default:
		return transition{}
	}
}

func reply(msgs ...Outbound) transition {
	return transition{replies: msgs}
}

func (d *Dispatcher) start(sender string, now time.Time) transition {
	s, err := d.sessions.TryStart(sender, now)
	switch {
	case err == nil:
		// Holding the machine and waiting for it are mutually exclusive.
		_ = d.queue.Dequeue(sender)
		d.event("started")
		return reply(startedReply(d.policy, s))
	case errors.Is(err, ErrOutsideWindow):
		d.event("rejected_window")
		return reply(outsideWindowReply(d.policy, sender))
	case errors.Is(err, ErrAlreadyHolder):
		return reply(alreadyHolderReply(d.policy, s))
	default:
		d.event("rejected_busy")
		return reply(busyReply(d.policy, sender, s))
	}
}

func (d *Dispatcher) finish(sender string, now time.Time) transition {
	f, err := d.sessions.TryFinish(sender, now)
	if err != nil {
		d.event("rejected_finish")
		return reply(finishRejectedReply())
	}
	d.event("finished")
	if f.Overtime {
		d.event("overtime")
	}

	t := transition{replies: []Outbound{finishedReply(f)}, finished: &f}
	if next, ok := d.queue.PopFront(); ok {
		d.event("promoted")
		t.replies = append(t.replies, promotedReply(next))
	}
	return t
}

func (d *Dispatcher) enqueue(sender string) transition {
	if pos := d.queue.Position(sender); pos > 0 {
		return reply(alreadyQueuedReply(sender, pos))
	}
	holder, busy := d.sessions.CurrentHolder()
	if !busy {
		return reply(machineFreeReply())
	}
	if holder == sender {
		return reply(holderEnqueueReply(sender))
	}
	pos, total, err := d.queue.Enqueue(sender)
	if errors.Is(err, ErrAlreadyQueued) {
		return reply(alreadyQueuedReply(sender, pos))
	}
	return reply(joinedReply(sender, pos, total))
}

func (d *Dispatcher) dequeue(sender string) transition {
	if err := d.queue.Dequeue(sender); err != nil {
		return reply(notQueuedReply())
	}
	if entries := d.queue.Snapshot(); len(entries) > 0 {
		return reply(leftReply(), queueSnapshotReply(entries))
	}
	return reply(leftReply(), queueEmptyReply())
}

func (d *Dispatcher) lookupWeather(ctx context.Context) Outbound {
	if d.weather == nil {
		return weatherFailedReply()
	}
	report, err := d.weather.FetchWeather(ctx, d.weatherLocation)
	if err != nil {
		log.Printf("weather lookup for %q failed: %v", d.weatherLocation, err)
		if d.metrics != nil {
			d.metrics.ProviderErrors.WithLabelValues("weather", reliability.ErrorCode(err)).Inc()
		}
		return weatherFailedReply()
	}
	return weatherReply(report)
}

// deliver sends each message independently. Failures are logged and never
// touch machine state, which is already committed.
func (d *Dispatcher) deliver(ctx context.Context, msgs []Outbound) {
	if d.sink == nil {
		return
	}
	for _, msg := range msgs {
		if err := d.sink.Send(ctx, d.conversation, msg); err != nil {
			log.Printf("send to %s failed: %v", policy.RedactIdentity(d.conversation), err)
			if d.metrics != nil {
				d.metrics.SendErrors.WithLabelValues(reliability.ErrorCode(err)).Inc()
			}
		}
	}
}

func (d *Dispatcher) event(name string) {
	if d.metrics != nil {
		d.metrics.SessionEvents.WithLabelValues(name).Inc()
	}
}

// Status returns the current machine and queue state.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{Conversation: d.conversation, Queue: d.queue.Snapshot()}
	if s, ok := d.sessions.Snapshot(); ok {
		st.Busy = true
		st.Session = &s
	}
	return st
}
