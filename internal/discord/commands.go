package discord

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/tunebox-bot/tunebox/internal/app/command"
	"github.com/tunebox-bot/tunebox/internal/app/session"
)

// parsed is a prefix command split into name and arguments.
type parsed struct {
	name string
	args []string
}

// parseMessage splits a chat message into a command. Returns false for
// messages that don't start with the prefix.
func parseMessage(prefix, content string) (parsed, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return parsed{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return parsed{}, false
	}
	return parsed{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

// aliases maps chat command names to operations. Commands that are not
// session mutations (queue, help) are handled separately.
var aliases = map[string]command.Op{
	"play":      command.OpPlay,
	"p":         command.OpPlay,
	"pause":     command.OpPause,
	"resume":    command.OpResume,
	"unpause":   command.OpResume,
	"stop":      command.OpStop,
	"skip":      command.OpSkip,
	"next":      command.OpSkip,
	"jump":      command.OpJump,
	"remove":    command.OpRemove,
	"rm":        command.OpRemove,
	"move":      command.OpMove,
	"shuffle":   command.OpShuffle,
	"repeat":    command.OpRepeat,
	"loop":      command.OpRepeat,
	"volume":    command.OpVolume,
	"vol":       command.OpVolume,
	"autoplay":  command.OpAutoplay,
	"ap":        command.OpAutoplay,
	"recommend": command.OpRecommend,
	"leave":     command.OpLeave,
	"dc":        command.OpLeave,
}

// buildRequest turns a parsed chat command into a dispatcher request.
// Argument problems come back as validation errors so the reply path
// can show them to the user.
func buildRequest(pc parsed, guildID, userID, userName, voiceChannelID string) (command.Request, error) {
	op, ok := aliases[pc.name]
	if !ok {
		return command.Request{}, errors.Wrapf(command.ErrUnknownOp, "%q", pc.name)
	}

	req := command.Request{
		GuildID:        guildID,
		UserID:         userID,
		UserName:       userName,
		Op:             op,
		VoiceChannelID: voiceChannelID,
	}

	switch op {
	case command.OpPlay:
		req.Query = strings.Join(pc.args, " ")
	case command.OpJump, command.OpRemove:
		n, err := argIndex(pc.args, 0)
		if err != nil {
			return command.Request{}, err
		}
		req.Index = n
	case command.OpMove:
		from, err := argIndex(pc.args, 0)
		if err != nil {
			return command.Request{}, err
		}
		to, err := argIndex(pc.args, 1)
		if err != nil {
			return command.Request{}, err
		}
		req.From, req.To = from, to
	case command.OpVolume:
		v, err := argVolume(pc.args)
		if err != nil {
			return command.Request{}, err
		}
		req.Volume = v
	case command.OpAutoplay:
		enable, err := argToggle(pc.args)
		if err != nil {
			return command.Request{}, err
		}
		req.Enable = enable
	case command.OpRecommend:
		req.Count = argCount(pc.args, 5)
	}
	return req, nil
}

// argIndex reads a 1-based position argument.
func argIndex(args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, errors.Wrap(session.ErrValidation, "missing track number")
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 0, errors.Wrapf(session.ErrValidation, "%q is not a track number", args[i])
	}
	return n, nil
}

// argVolume reads a percentage ("50" or "50%") into a gain factor.
func argVolume(args []string) (float64, error) {
	if len(args) == 0 {
		return 0, errors.Wrap(session.ErrValidation, "missing volume, try 10-200")
	}
	raw := strings.TrimSuffix(args[0], "%")
	pct, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(session.ErrValidation, "%q is not a volume", args[0])
	}
	return float64(pct) / 100, nil
}

// argToggle reads an on/off argument. Missing means on.
func argToggle(args []string) (bool, error) {
	if len(args) == 0 {
		return true, nil
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, errors.Wrapf(session.ErrValidation, "%q is not on/off", args[0])
	}
}

// argCount reads an optional count argument, falling back to def.
func argCount(args []string, def int) int {
	if len(args) == 0 {
		return def
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return def
	}
	return n
}
