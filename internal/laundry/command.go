package laundry

import "strings"

// Command is the closed set of actions a chat message can trigger.
type Command string

const (
	CommandUnrecognized Command = ""
	CommandMenu         Command = "menu"
	CommandTip          Command = "tip"
	CommandInfo         Command = "info"
	CommandStart        Command = "start"
	CommandFinish       Command = "finish"
	CommandEnqueue      Command = "enqueue"
	CommandDequeue      Command = "dequeue"
	CommandShuffleLoad  Command = "shuffle_load"
	CommandHours        Command = "hours"
	CommandWeather      Command = "weather"
	CommandTrashDay     Command = "trash_day"
)

var keywordCommands = map[string]Command{
	"menu":    CommandMenu,
	"iniciar": CommandMenu,
	"1":       CommandTip,
	"2":       CommandInfo,
	"3":       CommandStart,
	"4":       CommandFinish,
	"5":       CommandEnqueue,
	"6":       CommandDequeue,
	"7":       CommandShuffleLoad,
	"8":       CommandHours,
	"9":       CommandWeather,
	"10":      CommandTrashDay,
	"🔟":       CommandTrashDay,
}

// Inbound is a chat message already stripped of its transport envelope.
type Inbound struct {
	Conversation string
	Sender       string
	Text         string
}

// Normalize lowercases and trims free text before keyword lookup.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// ParseCommand maps message text to a Command. Empty or unknown text maps
// to CommandUnrecognized.
func ParseCommand(text string) Command {
	cmd, ok := keywordCommands[Normalize(text)]
	if !ok {
		return CommandUnrecognized
	}
	return cmd
}

// Label is the metrics label for a command.
func (c Command) Label() string {
	if c == CommandUnrecognized {
		return "unrecognized"
	}
	return string(c)
}
