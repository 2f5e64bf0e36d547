package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/hotseat-backend/internal"
	"github.com/scythe504/hotseat-backend/internal/utils"
)

// Engine is the session core as seen by the gateway.
type Engine interface {
	Join(ctx context.Context, code, name string) (internal.Participant, internal.SessionStateData, error)
	Watch(ctx context.Context, code string) (internal.SessionStateData, error)
	StartSession(ctx context.Context, code string) error
	StartRound(ctx context.Context, code, participantName string) (internal.Round, error)
	SubmitVote(ctx context.Context, caller internal.Caller, roundID uuid.UUID, score int) (int, bool, error)
	ApplyDeduction(ctx context.Context, roundID uuid.UUID, deduction float64) (internal.RoundResult, error)
	FinishSession(ctx context.Context, code string) (internal.FinalResults, error)
	QueueAdd(ctx context.Context, code, name string) error
	QueueRemove(ctx context.Context, code, name string) error
}

const duplicateVoteMessage = "Vote already recorded"

// failureMessages is what a connection sees when a command fails for a
// reason outside the command taxonomy.
var failureMessages = map[string]string{
	internal.CmdJoin:          "Failed to join session",
	internal.CmdAttendeeJoin:  "Failed to join session",
	internal.CmdWatch:         "Failed to watch session",
	internal.CmdStartSession:  "Failed to start session",
	internal.CmdStartRound:    "Failed to start round",
	internal.CmdSubmitVote:    "Failed to submit vote",
	internal.CmdApplyDeduct:   "Failed to apply deduction",
	internal.CmdFinishSession: "Failed to finish session",
	internal.CmdQueueAdd:      "Failed to update queue",
	internal.CmdQueueRemove:   "Failed to update queue",
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

func (c *Client) handle(parent context.Context, raw []byte) {
	var base internal.Message[json.RawMessage]
	if err := json.Unmarshal(raw, &base); err != nil {
		log.Debug().Err(err).Str("connection_id", c.id).Msg("[handle] malformed envelope")
		c.fail("", fmt.Errorf("%w: malformed message", internal.ErrInvalidCommand))
		return
	}

	ctx, cancel := context.WithTimeout(parent, c.cfg.CommandTimeout)
	defer cancel()

	var err error
	switch base.Type {
	case internal.CmdJoin, internal.CmdAttendeeJoin:
		err = c.handleJoin(ctx, base.Data)
	case internal.CmdWatch:
		err = c.handleWatch(ctx, base.Data)
	case internal.CmdStartSession:
		var cmd internal.SessionCommand
		if err = decode(base.Data, &cmd); err == nil {
			err = c.engine.StartSession(ctx, utils.NormalizeCode(cmd.SessionCode))
		}
	case internal.CmdStartRound:
		var cmd internal.StartRoundCommand
		if err = decode(base.Data, &cmd); err == nil {
			_, err = c.engine.StartRound(ctx, utils.NormalizeCode(cmd.SessionCode), cmd.ParticipantName)
		}
	case internal.CmdSubmitVote:
		err = c.handleVote(ctx, base.Data)
	case internal.CmdApplyDeduct:
		var cmd internal.DeductionCommand
		if err = decode(base.Data, &cmd); err == nil {
			_, err = c.engine.ApplyDeduction(ctx, cmd.RoundID, cmd.Deduction)
		}
	case internal.CmdFinishSession:
		err = c.handleFinish(ctx, base.Data)
	case internal.CmdQueueAdd:
		var cmd internal.QueueCommand
		if err = decode(base.Data, &cmd); err == nil {
			err = c.engine.QueueAdd(ctx, utils.NormalizeCode(cmd.SessionCode), cmd.ParticipantName)
		}
	case internal.CmdQueueRemove:
		var cmd internal.QueueCommand
		if err = decode(base.Data, &cmd); err == nil {
			err = c.engine.QueueRemove(ctx, utils.NormalizeCode(cmd.SessionCode), cmd.ParticipantName)
		}
	default:
		err = fmt.Errorf("%w: unknown command %q", internal.ErrInvalidCommand, base.Type)
	}

	if err != nil {
		c.fail(base.Type, err)
		return
	}
	c.hub.metrics.Commands.WithLabelValues(commandLabel(base.Type), "ok").Inc()
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing payload", internal.ErrInvalidCommand)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrInvalidCommand, err)
	}
	return nil
}

// handleJoin subscribes before joining so the joiner receives the roster
// broadcast its own join triggers. A failed join restores the old channel.
func (c *Client) handleJoin(ctx context.Context, data json.RawMessage) error {
	var cmd internal.JoinCommand
	if err := decode(data, &cmd); err != nil {
		return err
	}
	code := utils.NormalizeCode(cmd.SessionCode)

	previous := c.hub.Subscribe(c, code)
	p, _, err := c.engine.Join(ctx, code, cmd.ParticipantName)
	if err != nil {
		c.hub.Subscribe(c, previous)
		return err
	}

	c.bind(internal.Caller{SessionCode: code, ParticipantID: p.ID, Name: p.Name})
	log.Info().
		Str("connection_id", c.id).
		Str("session_code", code).
		Str("participant_id", p.ID.String()).
		Msg("[handleJoin] connection bound to participant")
	return nil
}

func (c *Client) handleWatch(ctx context.Context, data json.RawMessage) error {
	var cmd internal.SessionCommand
	if err := decode(data, &cmd); err != nil {
		return err
	}
	code := utils.NormalizeCode(cmd.SessionCode)

	previous := c.hub.Subscribe(c, code)
	state, err := c.engine.Watch(ctx, code)
	if err != nil {
		c.hub.Subscribe(c, previous)
		return err
	}
	if previous != code && c.Caller().SessionCode != code {
		c.bind(internal.Caller{})
	}
	c.reply(internal.EvtSessionState, state)
	return nil
}

func (c *Client) handleVote(ctx context.Context, data json.RawMessage) error {
	var cmd internal.VoteCommand
	if err := decode(data, &cmd); err != nil {
		return err
	}

	score, duplicate, err := c.engine.SubmitVote(ctx, c.Caller(), cmd.RoundID, cmd.Score)
	if err != nil {
		return err
	}

	recorded := internal.VoteRecordedData{Score: score}
	if duplicate {
		recorded.Message = duplicateVoteMessage
	}
	c.reply(internal.EvtVoteRecorded, recorded)
	return nil
}

func (c *Client) handleFinish(ctx context.Context, data json.RawMessage) error {
	var cmd internal.SessionCommand
	if err := decode(data, &cmd); err != nil {
		return err
	}

	results, err := c.engine.FinishSession(ctx, utils.NormalizeCode(cmd.SessionCode))
	if err != nil {
		return err
	}
	c.reply(internal.EvtRedirect, internal.RedirectData{URL: results.RedirectURL})
	return nil
}

// =============================================================================
// TARGETED REPLIES
// =============================================================================

func (c *Client) reply(kind string, data any) {
	raw, err := json.Marshal(internal.NewMessage(kind, data))
	if err != nil {
		log.Error().Err(err).Str("event", kind).Msg("[reply] failed to marshal reply")
		return
	}
	if !c.enqueue(raw) {
		c.hub.metrics.DroppedClients.Inc()
		log.Warn().Str("connection_id", c.id).Msg("[reply] send buffer full, dropping connection")
		c.drop()
	}
}

// fail reports err to this connection only. Command errors carry their own
// message; anything else is logged and reported generically.
func (c *Client) fail(command string, err error) {
	message := err.Error()
	outcome := "rejected"
	if !internal.IsCommandError(err) {
		outcome = "failed"
		message = failureMessages[command]
		if message == "" {
			message = "Command failed"
		}
		log.Error().Err(err).
			Str("connection_id", c.id).
			Str("command", command).
			Msg("[fail] command failed")
	} else {
		log.Debug().Err(err).
			Str("connection_id", c.id).
			Str("command", command).
			Msg("[fail] command rejected")
	}

	c.hub.metrics.Commands.WithLabelValues(commandLabel(command), outcome).Inc()
	c.reply(internal.EvtError, internal.ErrorData{Message: message})
}

// commandLabel keeps metric cardinality bounded by folding unknown types.
func commandLabel(command string) string {
	if _, ok := failureMessages[command]; ok {
		return command
	}
	return "unknown"
}
