package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/train-diorama/internal/config"
	"github.com/sweeney/train-diorama/internal/loop"
	"github.com/sweeney/train-diorama/internal/mqtt"
	"github.com/sweeney/train-diorama/internal/status"
)

// wireObservers connects the loop to MQTT and the status tracker.
func wireObservers(r *rig, publisher mqtt.Publisher, conn mqtt.ConnectionStatus, tracker *status.Tracker) {
	r.loop.SetPublisher(publisher)
	r.loop.OnTick(func(s loop.Snapshot) {
		tracker.Update(s)
		refreshMQTT(tracker, conn)
	})
	r.loop.OnHeartbeat(func(hb loop.HeartbeatData) {
		log.WithFields(log.Fields{"uptime": hb.Uptime, "ticks": hb.Ticks}).Info("heartbeat")
		tracker.Update(loop.Snapshot{Timestamp: hb.Timestamp, Ticks: hb.Ticks, Inputs: hb.Inputs})
		r.background.Add(1)
		go func() {
			defer r.background.Done()
			publishSystem(publisher, conn, tracker, "HEARTBEAT", "")
		}()
	})
}

// refreshMQTT copies the connection and queue state into the tracker.
func refreshMQTT(tracker *status.Tracker, conn mqtt.ConnectionStatus) {
	tracker.SetMQTTConnected(conn.IsConnected())
	if q, ok := conn.(mqtt.QueueStatus); ok {
		buffered, dropped := q.Queue()
		tracker.SetMQTTQueue(buffered, dropped)
	}
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
// STARTUP and SHUTDOWN are retained so late subscribers see the last one.
func publishSystem(publisher mqtt.Publisher, conn mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string) {
	refreshMQTT(tracker, conn)
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	fields := log.Fields{"event": event}
	if reason != "" {
		fields["reason"] = reason
	}
	if err := publisher.PublishSystem(ev); err != nil {
		fields["error"] = err
		log.WithFields(fields).Warn("failed to publish system event")
		return
	}
	log.WithFields(fields).Debug("published system event")
}

// runLoop runs the event loop until a signal arrives or tick is closed, then
// puts the outputs into a safe state and publishes SHUTDOWN.
func runLoop(r *rig, publisher mqtt.Publisher, conn mqtt.ConnectionStatus, tracker *status.Tracker, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.loop.Run(ctx, tick)
	}()

	var (
		err    error
		reason string
	)
	select {
	case s := <-sig:
		reason = signalName(s)
		log.WithField("signal", reason).Info("shutting down")
		cancel()
		err = <-done
	case err = <-done:
		reason = "TICK_STOPPED"
	}

	if serr := r.safeState(); serr != nil {
		log.WithError(serr).Warn("failed to reach safe state")
	}
	// Edges and heartbeats still in flight go out before SHUTDOWN.
	r.loop.Close()
	r.background.Wait()
	tracker.Update(r.loop.Snapshot())
	publishSystem(publisher, conn, tracker, "SHUTDOWN", reason)
	return err
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printState reads every configured input once and prints its raw level.
// Inputs are active-low: a low line means pressed or occupied.
func printState(w io.Writer, cfg config.Config, hw hardware) error {
	for _, in := range cfg.Input {
		pin, err := hw.Input(in.Pin)
		if err != nil {
			return fmt.Errorf("input %s: %w", in.Name, err)
		}
		high, err := pin.Read()
		if err != nil {
			return fmt.Errorf("read %s: %w", in.Name, err)
		}
		state := "inactive"
		if !high {
			state = "ACTIVE"
		}
		level := "high"
		if !high {
			level = "low"
		}
		fmt.Fprintf(w, "%s (%s, pin %d): %s [%s]\n", in.Name, in.Kind, in.Pin, state, level)
	}
	return nil
}
