package http

import (
	"encoding/json"

	"github.com/codepadhq/codepad-server/internal/core"
	"github.com/codepadhq/codepad-server/internal/proto"
)

// dispatchInbound routes one decoded envelope to the relay router. A
// *proto.Error means the envelope itself was malformed; domain errors are
// emitted by the router as error events instead.
func dispatchInbound(router *core.Router, client *core.Client, inbound proto.Inbound) (*proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, err
		}
		if join.Room == "" || join.Username == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room and username are required"}, nil
		}
		router.Join(client, join.Room, join.Username)
		return nil, nil
	case proto.InboundTypeCodeChange:
		var change proto.CodeChangeData
		if err := json.Unmarshal(inbound.Data, &change); err != nil {
			return nil, err
		}
		if change.Room == "" || len(change.Update) == 0 {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room and update are required"}, nil
		}
		router.Fragment(client, change.Room, change.Update)
		return nil, nil
	case proto.InboundTypeSyncCode:
		var sync proto.SyncCodeData
		if err := json.Unmarshal(inbound.Data, &sync); err != nil {
			return nil, err
		}
		if sync.Room == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		router.Replay(client, sync.Room)
		return nil, nil
	case proto.InboundTypeRun:
		var run proto.RunData
		if err := json.Unmarshal(inbound.Data, &run); err != nil {
			return nil, err
		}
		if run.Room == "" || run.Language == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room and language are required"}, nil
		}
		router.Run(client, run.Room, run.Code, run.Language)
		return nil, nil
	case proto.InboundTypeSyncOutput:
		var sync proto.SyncOutputData
		if err := json.Unmarshal(inbound.Data, &sync); err != nil {
			return nil, err
		}
		if sync.Room == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		router.CachedOutput(client, sync.Room)
		return nil, nil
	default:
		return &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventJoined:
		clients := make([]proto.RoomMember, 0, len(event.Members))
		for _, m := range event.Members {
			clients = append(clients, proto.RoomMember{ID: m.ID, Username: m.Username})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "joined",
			Data: proto.EventJoined{
				Room:     event.Room,
				Clients:  clients,
				ID:       event.Member.ID,
				Username: event.Member.Username,
			},
		}
	case core.EventFragment:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "code-change",
			Data: proto.EventCodeChange{
				Room:   event.Room,
				Update: event.Update,
			},
		}
	case core.EventLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "disconnected",
			Data: proto.EventDisconnected{
				Room:     event.Room,
				ID:       event.Member.ID,
				Username: event.Member.Username,
			},
		}
	case core.EventOutput:
		data := proto.EventSyncOutput{Room: event.Room}
		if event.Output != nil {
			data.Output = event.Output.Output
			data.Language = event.Output.Language
			data.TriggeredBy = event.Output.TriggeredBy
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "sync-output",
			Data:  data,
		}
	case core.EventRoomFull:
		msg := "Room is full!"
		if event.Error != nil {
			msg = event.Error.Message
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: core.ErrCodeRoomFull, Msg: msg},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
