package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/crate-controller/internal/command"
	"github.com/sweeney/crate-controller/internal/crate"
	"github.com/sweeney/crate-controller/internal/gpio"
	"github.com/sweeney/crate-controller/internal/mqtt"
	"github.com/sweeney/crate-controller/internal/sense"
	"github.com/sweeney/crate-controller/internal/status"
)

// eventSink receives every controller event after it has been logged.
type eventSink interface {
	Write(e crate.Event) error
}

type loopConfig struct {
	variant     crate.Variant
	debounce    time.Duration
	moveTimeout time.Duration
	heartbeat   time.Duration

	board      gpio.Board
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker       // may be nil
	queue      *command.Queue        // may be nil
	journal    eventSink             // may be nil
}

// runLoop owns the controller. GPIO samples arrive on tick, commands arrive
// through the queue, and both are handled one at a time.
func runLoop(lc loopConfig, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	current := startTime

	lock := sense.New(lc.debounce)
	override := sense.New(lc.debounce)
	reset := sense.New(lc.debounce)

	ctrl := crate.NewController(lc.variant, crate.Ports{
		Lock:       lock,
		Override:   override,
		Reset:      reset,
		Forward:    gpio.NewRelay(lc.board, gpio.ChannelForward),
		Reverse:    gpio.NewRelay(lc.board, gpio.ChannelReverse),
		DrawerLock: gpio.NewRelay(lc.board, gpio.ChannelDrawerLock),
		Spare:      gpio.NewRelay(lc.board, gpio.ChannelSpare),
	},
		// Events and deadlines use the time of the pass that caused them.
		crate.WithClock(func() time.Time { return current }),
		crate.WithMoveTimeout(lc.moveTimeout),
	)
	reactor := crate.NewReactor(ctrl)
	heartbeat := status.NewHeartbeat(startTime)

	ready := func() bool {
		return lock.Baselined() && override.Baselined() && reset.Baselined()
	}

	dispatch := func() {
		for _, event := range ctrl.Events() {
			if event.Reason != "" {
				log.Printf("event: %s state=%s source=%s reason=%q", event.Type, event.State, event.Source, event.Reason)
			} else {
				log.Printf("event: %s state=%s source=%s", event.Type, event.State, event.Source)
			}
			if err := lc.publisher.Publish(event); err != nil {
				log.Printf("publish error: %v", err)
				// Don't crash on publish failure
			}
			if lc.journal != nil {
				if err := lc.journal.Write(event); err != nil {
					log.Printf("journal error: %v", err)
				}
			}
			if lc.tracker != nil {
				lc.tracker.RecordEvent(event)
			}
		}
	}

	updateTracker := func() {
		if lc.tracker == nil {
			return
		}
		c := status.Crate{
			State:           ctrl.State(),
			Relays:          ctrl.Relays(),
			Locked:          ctrl.Locked(),
			OverridePressed: !override.State(),
			ResetPressed:    ctrl.ResetPressed(),
			Ready:           ready(),
			Counts:          ctrl.Counts(),
		}
		if d, ok := ctrl.Deadline(); ok {
			c.Deadline = d
		}
		lc.tracker.Update(c)
		if lc.mqttStatus != nil {
			lc.tracker.SetMQTTConnected(lc.mqttStatus.IsConnected())
		}
	}

	var requests <-chan *command.Request
	if lc.queue != nil {
		requests = lc.queue.Requests()
		defer lc.queue.Stop()
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if lc.tracker != nil {
				updateTracker()
				snap := lc.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := lc.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case req := <-requests:
			current = now()
			resp := req.Run(ctrl)
			if resp.Body != "" {
				log.Printf("command: %s -> %q", req.Path, resp.Body)
			} else {
				log.Printf("command: %s", req.Path)
			}
			dispatch()
			updateTracker()
			req.Reply(resp)

		case <-tick:
			current = now()
			sample, err := lc.board.Read()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				// Inputs keep their last debounced level; deadlines and the
				// lock relay cut still run.
				ctrl.Tick(current)
				dispatch()
				updateTracker()
				continue
			}

			wasReady := ready()
			lock.Update(sample.Lock, current)
			override.Update(sample.Override, current)
			reset.Update(sample.Reset, current)
			if !wasReady && ready() {
				log.Printf("inputs baselined: lock=%v override=%v reset=%v", lock.State(), override.State(), reset.State())
			}

			reactor.Step(current)
			dispatch()

			if ready() {
				if hb := heartbeat.Check(current, lc.heartbeat); hb != nil {
					c := ctrl.Counts()
					log.Printf("heartbeat: uptime=%v state=%s opens=%d closes=%d stops=%d denials=%d timeouts=%d",
						hb.Uptime, ctrl.State(), c.Opens, c.Closes, c.Stops, c.Denials, c.Timeouts)

					hbEvent := mqtt.SystemEvent{
						Timestamp: hb.Timestamp,
						Event:     "HEARTBEAT",
					}
					if lc.tracker != nil {
						// Refresh network info for heartbeat
						if net := readNetworkInfo(); net != nil {
							lc.tracker.SetNetwork(net)
						}
						updateTracker()
						snap := lc.tracker.Snapshot()
						hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
					}
					if err := lc.publisher.PublishSystem(hbEvent); err != nil {
						log.Printf("heartbeat publish error: %v", err)
					}
				}
			}

			// Update status tracker for HTTP consumers
			updateTracker()
		}
	}
}
