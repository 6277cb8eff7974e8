package data

import (
	"encoding/json"
	"io"
	"time"
)

// State is a step of the update cycle.
type State string

const (
	StateCheckingVersion State = "CheckingVersion"
	StateNoUpdateNeeded  State = "NoUpdateNeeded"
	StateUpdateNeeded    State = "UpdateNeeded"
	StatePreparing       State = "Preparing"
	StateDownloading     State = "Downloading"
	StatePaused          State = "Paused"
	StateCompleted       State = "Completed"
	StateReadyToLaunch   State = "ReadyToLaunch"
	StateError           State = "Error"
)

// Terminal reports whether the state ends the current update cycle.
func (s State) Terminal() bool {
	return s == StateReadyToLaunch || s == StateError
}

// Action is the intent the primary control dispatches in a given state.
type Action string

const (
	ActionNone   Action = "none"
	ActionPlay   Action = "play"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
)

// ActionFor returns the primary action that is active in state s.
func ActionFor(s State) Action {
	switch s {
	case StateDownloading:
		return ActionPause
	case StatePaused:
		return ActionResume
	case StateReadyToLaunch:
		return ActionPlay
	default:
		return ActionNone
	}
}

// Status is the snapshot presentation layers render.
type Status struct {
	State          State     `json:"state"`
	Message        string    `json:"message"`
	Percent        int       `json:"percent"`
	TotalBytes     int64     `json:"totalBytes"`
	CompletedBytes int64     `json:"completedBytes"`
	Total          string    `json:"total"`
	Completed      string    `json:"completed"`
	DownloadRate   string    `json:"downloadRate"`
	UploadRate     string    `json:"uploadRate"`
	Installed      string    `json:"installedVersion,omitempty"`
	Remote         string    `json:"remoteVersion,omitempty"`
	InstallPath    string    `json:"installPath"`
	Action         Action    `json:"action"`
	CanVerify      bool      `json:"canVerify"`
	PromptSettings bool      `json:"promptSettings,omitempty"`
	OperationID    string    `json:"operationId,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (s *Status) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(s) }
