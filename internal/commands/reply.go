package commands

import "peaceclaims.dev/internal/config"

// Line is one message-table key with its arguments.
type Line struct {
	Key  string
	Args []any
}

// Reply is what a command sends back to its sender.
type Reply struct {
	Lines []Line
	// Err is set when the command failed; the lines then describe it.
	Err error
}

func say(key string, args ...any) Reply {
	return Reply{Lines: []Line{{Key: key, Args: args}}}
}

func (r *Reply) add(key string, args ...any) {
	r.Lines = append(r.Lines, Line{Key: key, Args: args})
}

// Render formats every line through the message table.
func (r Reply) Render(cfg config.Config) []string {
	out := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		out = append(out, cfg.Render(l.Key, l.Args...))
	}
	return out
}

// Key is the first line's key, or "".
func (r Reply) Key() string {
	if len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[0].Key
}
