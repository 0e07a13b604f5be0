package usecase

import (
	"mediaproc/internal/domain"
	"mediaproc/internal/ports"
)

func (c *SessionClient) consumeEvents(conn ports.RealtimeConn) {
	defer close(c.eventsDone)

	for event := range conn.Events() {
		c.handle(event)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && c.snapshot.Connection != domain.ConnectionDisconnected {
		c.snapshot.Connection = domain.ConnectionDisconnected
		c.publishLocked()
	}
}

// handle applies one inbound event. Progress and terminal events only act
// on an active job; once a result or error arrives, stragglers are dropped.
func (c *SessionClient) handle(event domain.ServerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	switch event.Name {
	case domain.EventConnect:
		c.logger.Info("connected")
		c.snapshot.Connection = domain.ConnectionConnected
		c.publishLocked()

	case domain.EventConnectAck:
		c.logger.Debug("server acknowledged connection", "detail", event.Message)

	case domain.EventProgress:
		active, ok := c.snapshot.Phase.(domain.Active)
		if !ok {
			c.logger.Debug("progress without active job ignored")
			return
		}
		active.Progress = domain.Progress{
			Percent: clampPercent(event.Progress.Percent),
			Message: event.Progress.Message,
		}
		c.snapshot.Phase = active
		c.publishLocked()

	case domain.EventAudioReady:
		active, ok := c.snapshot.Phase.(domain.Active)
		if !ok {
			return
		}
		active.Progress.Message = MessageAudioReady
		c.snapshot.Phase = active
		c.publishLocked()

	case domain.EventProcessingDone:
		active, ok := c.snapshot.Phase.(domain.Active)
		if !ok {
			c.logger.Warn("result without active job ignored")
			return
		}
		c.logger.Info("job completed", "job_id", active.JobID)
		c.snapshot.Phase = domain.Done{JobID: active.JobID, Job: active.Job, Result: event.Result}
		c.publishLocked()

	case domain.EventProcessingError:
		active, ok := c.snapshot.Phase.(domain.Active)
		if !ok {
			c.logger.Warn("job error without active job ignored", "error", event.Message)
			return
		}
		message := event.Message
		if message == "" {
			message = MessageJobFailed
		}
		c.logger.Warn("job failed", "job_id", active.JobID, "error", message)
		c.failLocked(domain.Failure{Code: domain.ErrorCodeJob, Message: message})
		if domain.IndicatesAuthFailure(message) {
			c.scheduleSignOutLocked()
		}

	case domain.EventDisconnect:
		c.logger.Info("disconnected", "reason", event.Message)
		c.snapshot.Connection = domain.ConnectionDisconnected
		c.publishLocked()

	case domain.EventConnectError:
		c.logger.Error("connection error", "detail", event.Message)
		c.snapshot.Connection = domain.ConnectionError
		c.failLocked(domain.Failure{Code: domain.ErrorCodeTransport, Message: MessageConnection})

	default:
		c.logger.Debug("unhandled event", "event", event.Name)
	}
}

func clampPercent(percent float64) float64 {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
