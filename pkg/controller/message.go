package controller

import (
	"time"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/debugger"
	"github.com/ivikasavnish/go-flowrec/pkg/recorder"
)

// Action names a host message.
type Action string

const (
	ActionStartRecording  Action = "start_recording"
	ActionPauseRecording  Action = "pause_recording"
	ActionResumeRecording Action = "resume_recording"
	ActionStopRecording   Action = "stop_recording"
	ActionStatus          Action = "status"
	ActionGenerateCode    Action = "generate_code"

	ActionDebugOpen       Action = "debug_open"
	ActionDebugStep       Action = "debug_step"
	ActionDebugRun        Action = "debug_run"
	ActionDebugPause      Action = "debug_pause"
	ActionDebugStop       Action = "debug_stop"
	ActionDebugRestart    Action = "debug_restart"
	ActionDebugBreakpoint Action = "debug_breakpoint"
	ActionDebugEdit       Action = "debug_edit"
	ActionDebugInsert     Action = "debug_insert"
	ActionDebugDelete     Action = "debug_delete"
	ActionDebugState      Action = "debug_state"
	ActionDebugSave       Action = "debug_save"
	ActionDebugClose      Action = "debug_close"

	ActionSaveFlow   Action = "save_flow"
	ActionListFlows  Action = "list_flows"
	ActionGetFlow    Action = "get_flow"
	ActionDeleteFlow Action = "delete_flow"
	ActionExport     Action = "export"
)

// Export destinations.
const (
	ExportDownload  = "download"
	ExportClipboard = "clipboard"
)

// Message is a request from the host UI. Fields are read per action.
type Message struct {
	Action Action `json:"action"`

	// Commands overrides the controller's current list for generate_code,
	// debug_open, save_flow and export.
	Commands command.List `json:"commands,omitempty"`

	// generate_code and export
	Target string `json:"target,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`

	// debug_breakpoint, debug_edit, debug_insert, debug_delete
	Index   *int            `json:"index,omitempty"`
	On      *bool           `json:"on,omitempty"`
	Command *command.Record `json:"command,omitempty"`

	// flows
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Domain string `json:"domain,omitempty"`

	// export
	Destination string `json:"destination,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Reply answers a Message.
type Reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// SessionInfo describes the recording session.
type SessionInfo struct {
	ID        string         `json:"id,omitempty"`
	State     recorder.State `json:"state"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	Commands  command.List   `json:"commands"`
}

// DebugInfo is the debugger state with its command list.
type DebugInfo struct {
	debugger.State
	Commands command.List     `json:"commands"`
	Report   *debugger.Report `json:"report,omitempty"`
}

// Status summarizes the controller.
type Status struct {
	Recording    *SessionInfo `json:"recording,omitempty"`
	DebuggerOpen bool         `json:"debugger_open"`
	Commands     int          `json:"commands"`
}

// Code is a generated script.
type Code struct {
	Target string `json:"target"`
	Code   string `json:"code"`
}
