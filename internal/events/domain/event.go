package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	graphs "github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

// Command type tags. Every relay handler re-checks the tag of the envelope
// it receives, so a handler wired to the wrong channel drops the message
// instead of misapplying it.
const (
	TypeCreateWorkspace          = "createWorkspace"
	TypeUpdateWorkspace          = "updateWorkspace"
	TypeUpdateWorkspaceThumbnail = "updateWorkspaceThumbnail"
	TypeDeleteWorkspace          = "deleteWorkspace"
	TypeCreateNode               = "createNode"
	TypeUpdateNode               = "updateNode"
	TypeUpdateNodeThumbnail      = "updateNodeThumbnail"
	TypeDeleteNode               = "deleteNode"
	TypeCreateEdge               = "createEdge"
	TypeDeleteEdge               = "deleteEdge"
)

const successSuffix = "Success"

// CommandTypes lists every accepted command tag.
var CommandTypes = []string{
	TypeCreateWorkspace,
	TypeUpdateWorkspace,
	TypeUpdateWorkspaceThumbnail,
	TypeDeleteWorkspace,
	TypeCreateNode,
	TypeUpdateNode,
	TypeUpdateNodeThumbnail,
	TypeDeleteNode,
	TypeCreateEdge,
	TypeDeleteEdge,
}

// IsCommandType reports whether t is a known command tag.
func IsCommandType(t string) bool {
	for _, c := range CommandTypes {
		if c == t {
			return true
		}
	}
	return false
}

// SuccessType returns the confirmation tag for a command tag
// ("createNode" -> "createNodeSuccess").
func SuccessType(commandType string) string {
	return commandType + successSuffix
}

// IsSuccessType reports whether t is a confirmation tag.
func IsSuccessType(t string) bool {
	return strings.HasSuffix(t, successSuffix)
}

// CommandType strips the success suffix from a confirmation tag.
func CommandType(successType string) string {
	return strings.TrimSuffix(successType, successSuffix)
}

// EventData is the addressed body of an envelope.
type EventData struct {
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	GraphIDs      []string        `json:"graphIds"`
	ClientID      string          `json:"clientId"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Envelope is the wire and log form of one relayed event. A command's
// CorrelationID is empty; a success event's CorrelationID is the id of the
// command that produced it, and its ClientID is carried over unchanged so
// the issuing client can suppress its own echo.
type Envelope struct {
	ID        string    `json:"id"`
	Data      EventData `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewCommand builds a command envelope with a fresh id.
func NewCommand(eventType string, payload interface{}, graphIDs []string, clientID string) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID: uuid.New().String(),
		Data: EventData{
			Type:     eventType,
			Payload:  raw,
			GraphIDs: graphIDs,
			ClientID: clientID,
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewSuccess builds the confirmation envelope for an applied command. The
// payload may differ from the command's (resulting ids added); graphIDs
// lists every graph document the command touched.
func NewSuccess(cmd Envelope, payload interface{}, graphIDs []string) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID: uuid.New().String(),
		Data: EventData{
			Type:          SuccessType(cmd.Data.Type),
			Payload:       raw,
			GraphIDs:      graphIDs,
			ClientID:      cmd.Data.ClientID,
			CorrelationID: cmd.ID,
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodePayload unmarshals the envelope payload into dst.
func (e Envelope) DecodePayload(dst interface{}) error {
	return json.Unmarshal(e.Data.Payload, dst)
}

// Command payload shapes. Node payloads always carry the full addressing
// block (graphId, isGraph, kind, parentIds, referenceIds) even when a
// handler only needs part of it, matching the client's event service.

type CreateWorkspacePayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"userId"`
}

type UpdateWorkspacePayload struct {
	ID      string      `json:"id"`
	Changes graphs.Data `json:"changes"`
}

type UpdateWorkspaceThumbnailPayload struct {
	ID      string `json:"id"`
	FileID  string `json:"fileId"`
	FileURL string `json:"fileUrl"`
}

type DeleteWorkspacePayload struct {
	ID string `json:"id"`
}

type CreateNodePayload struct {
	ID           string          `json:"id"`
	GraphID      string          `json:"graphId"`
	IsGraph      bool            `json:"isGraph"`
	Kind         graphs.NodeKind `json:"kind"`
	ParentIDs    []string        `json:"parentIds"`
	ReferenceIDs []string        `json:"referenceIds"`
	Data         graphs.Data     `json:"data"`
}

type UpdateNodePayload struct {
	ID           string          `json:"id"`
	GraphID      string          `json:"graphId"`
	IsGraph      bool            `json:"isGraph"`
	Changes      graphs.Data     `json:"changes"`
	Kind         graphs.NodeKind `json:"kind"`
	ParentIDs    []string        `json:"parentIds"`
	ReferenceIDs []string        `json:"referenceIds"`
}

type UpdateNodeThumbnailPayload struct {
	ID           string          `json:"id"`
	GraphID      string          `json:"graphId"`
	IsGraph      bool            `json:"isGraph"`
	FileID       string          `json:"fileId"`
	FileURL      string          `json:"fileUrl"`
	Kind         graphs.NodeKind `json:"kind"`
	ParentIDs    []string        `json:"parentIds"`
	ReferenceIDs []string        `json:"referenceIds"`
}

type DeleteNodePayload struct {
	ID           string          `json:"id"`
	GraphID      string          `json:"graphId"`
	IsGraph      bool            `json:"isGraph"`
	Kind         graphs.NodeKind `json:"kind"`
	ParentIDs    []string        `json:"parentIds"`
	ReferenceIDs []string        `json:"referenceIds"`
}

type CreateEdgePayload struct {
	ID      string `json:"id"`
	GraphID string `json:"graphId"`
	Source  string `json:"source"`
	Target  string `json:"target"`
}

type DeleteEdgePayload struct {
	ID      string `json:"id"`
	GraphID string `json:"graphId"`
}
