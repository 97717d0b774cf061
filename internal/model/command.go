package model

import "fmt"

type CommandKind string

const (
	CommandApprove CommandKind = "approve"
	CommandReject  CommandKind = "reject"
	CommandEdit    CommandKind = "edit"
)

// Command is the single shape every command source is normalized into.
// EditText is only meaningful for CommandEdit.
type Command struct {
	Kind     CommandKind
	EditText string
}

func Approve() Command { return Command{Kind: CommandApprove} }
func Reject() Command  { return Command{Kind: CommandReject} }

func Edit(text string) Command {
	return Command{Kind: CommandEdit, EditText: text}
}

func (c Command) Validate() error {
	switch c.Kind {
	case CommandApprove, CommandReject:
		return nil
	case CommandEdit:
		if c.EditText == "" {
			return fmt.Errorf("edit command requires text")
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", c.Kind)
}

// TargetStatus is the terminal status the command moves a draft into.
func (c Command) TargetStatus() DraftStatus {
	switch c.Kind {
	case CommandApprove:
		return DraftStatusSent
	case CommandEdit:
		return DraftStatusEdited
	default:
		return DraftStatusRejected
	}
}
