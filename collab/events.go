package collab

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/isdmx/coderoom/logger"
)

type joinRoom struct {
	RoomID string `json:"roomId"`
	User   User   `json:"user"`
}

type leaveRoom struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type codeChange struct {
	RoomID string `json:"roomId"`
	FileID string `json:"fileId"`
	Code   string `json:"code"`
}

type fileAdd struct {
	RoomID string          `json:"roomId"`
	File   json.RawMessage `json:"file"`
}

type fileDelete struct {
	RoomID string          `json:"roomId"`
	FileID json.RawMessage `json:"fileId"`
}

type fileRename struct {
	RoomID  string          `json:"roomId"`
	FileID  json.RawMessage `json:"fileId"`
	NewName string          `json:"newName"`
}

type terminalOutput struct {
	RoomID    string          `json:"roomId"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
	RanBy     json.RawMessage `json:"ranBy,omitempty"`
	TimeStamp json.RawMessage `json:"timeStamp,omitempty"`
}

// voiceSignal covers offer, answer and candidate; exactly one payload field is set
type voiceSignal struct {
	RoomID    string          `json:"roomId"`
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type micStatus struct {
	RoomID string          `json:"roomId"`
	UserID string          `json:"userId"`
	Status json.RawMessage `json:"status"`
}

func (h *Hub) dispatch(c *client, env Envelope, log *zap.Logger) {
	var err error
	switch env.Event {
	case EventJoinRoom:
		err = h.onJoinRoom(c, env.Data, log)
	case EventLeaveRoom:
		err = h.onLeaveRoom(c, env.Data)
	case EventCodeChange:
		var m codeChange
		if err = json.Unmarshal(env.Data, &m); err == nil {
			h.broadcast(m.RoomID, c.id, EventCodeUpdate, map[string]string{"fileId": m.FileID, "code": m.Code})
		}
	case EventFileAdd:
		var m fileAdd
		if err = json.Unmarshal(env.Data, &m); err == nil {
			h.broadcast(m.RoomID, "", EventFileAdded, m.File)
		}
	case EventFileDelete:
		var m fileDelete
		if err = json.Unmarshal(env.Data, &m); err == nil {
			h.broadcast(m.RoomID, "", EventFileDeleted, m.FileID)
		}
	case EventFileRename:
		var m fileRename
		if err = json.Unmarshal(env.Data, &m); err == nil {
			h.broadcast(m.RoomID, "", EventFileRenamed, map[string]any{"fileId": m.FileID, "newName": m.NewName})
		}
	case EventTerminalOutput:
		var m terminalOutput
		if err = json.Unmarshal(env.Data, &m); err == nil {
			h.broadcast(m.RoomID, "", EventTerminalUpdate, m)
		}
	case EventVoiceOffer, EventVoiceAnswer, EventVoiceCandidate:
		var m voiceSignal
		if err = json.Unmarshal(env.Data, &m); err == nil {
			to := m.To
			m.To = ""
			m.From = c.id
			h.emit(to, env.Event, m)
		}
	case EventMicStatus:
		var m micStatus
		if err = json.Unmarshal(env.Data, &m); err == nil {
			h.broadcast(m.RoomID, "", EventMicStatusUpdate, map[string]any{"userId": m.UserID, "status": m.Status})
		}
	default:
		log.Debug("unknown event", zap.String("event", env.Event))
		h.emit(c.id, EventError, map[string]string{"message": "unknown event: " + env.Event})
		return
	}

	if err != nil {
		log.Debug("malformed event payload", zap.String("event", env.Event), zap.Error(err))
		h.emit(c.id, EventError, map[string]string{"message": "malformed payload for " + env.Event})
	}
}

func (h *Hub) onJoinRoom(c *client, data json.RawMessage, log *zap.Logger) error {
	var m joinRoom
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	members := h.store.Join(m.RoomID, m.User, c.id)
	log.Info("joined room", zap.String(logger.KeyRoomID, m.RoomID), zap.String("user_id", m.User.ID))

	h.broadcast(m.RoomID, c.id, EventUserJoined, map[string]string{"userId": m.User.ID, "socketId": c.id})
	h.broadcast(m.RoomID, "", EventPresenceUpdate, members)
	return nil
}

func (h *Hub) onLeaveRoom(c *client, data json.RawMessage) error {
	var m leaveRoom
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	if members, changed := h.store.Leave(m.RoomID, m.UserID, c.id); changed {
		h.broadcast(m.RoomID, "", EventPresenceUpdate, members)
	}
	return nil
}
