package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/1-kabir/cfm/pkg/backend"
)

// commandKind enumerates slash commands.
type commandKind int

const (
	cmdNone commandKind = iota
	cmdMode
	cmdNew
	cmdOpen
	cmdRefresh
	cmdSave
	cmdHelp
	cmdQuit
)

type command struct {
	kind   commandKind
	mode   backend.Mode // zero means flip
	id     int64
	hasArg bool
}

const helpText = "/mode [planning|building]  switch mode\n" +
	"/new  start a new conversation\n" +
	"/open <id>  open a conversation\n" +
	"/refresh  reload the conversation list\n" +
	"/save  export the latest build\n" +
	"/quit  leave\n" +
	"tab switches mode, ctrl+n starts a new chat, ctrl+up/down and ctrl+o pick a session"

// parseCommand interprets input starting with "/". Other input is a message.
func parseCommand(input string) (command, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return command{kind: cmdNone}, nil
	}
	fields := strings.Fields(input[1:])
	if len(fields) == 0 {
		return command{}, fmt.Errorf("empty command")
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "mode":
		if len(args) == 0 {
			return command{kind: cmdMode}, nil
		}
		m, err := backend.ParseMode(args[0])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdMode, mode: m, hasArg: true}, nil
	case "new":
		return command{kind: cmdNew}, nil
	case "open":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: /open <id>")
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
		if err != nil || id <= 0 {
			return command{}, fmt.Errorf("invalid conversation id %q", args[0])
		}
		return command{kind: cmdOpen, id: id, hasArg: true}, nil
	case "refresh", "list":
		return command{kind: cmdRefresh}, nil
	case "save", "export":
		return command{kind: cmdSave}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command /%s", name)
	}
}
