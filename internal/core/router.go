package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/codepadhq/codepad-server/internal/execengine"
	"github.com/codepadhq/codepad-server/internal/store"
)

// Router is the only component that mutates shared room state. Every
// inbound event enters here, and everything the registries and rooms know
// changes under their respective locks inside one of these methods, which
// keeps the ordering story in one place.
type Router struct {
	sessions *SessionRegistry
	rooms    *RoomDirectory
	engine   execengine.Engine
	history  store.Store // optional
	cooldown time.Duration
	log      *zerolog.Logger
}

// NewRouter wires the relay orchestrator.
func NewRouter(sessions *SessionRegistry, rooms *RoomDirectory, engine execengine.Engine, history store.Store, cooldown time.Duration, logger *zerolog.Logger) *Router {
	return &Router{
		sessions: sessions,
		rooms:    rooms,
		engine:   engine,
		history:  history,
		cooldown: cooldown,
		log:      logger,
	}
}

// Join binds the client's display name and admits it into the room. On
// success every current member, the newcomer included, receives one
// membership event carrying the full member list; that single event lets
// existing members render the newcomer and the newcomer render everyone
// else through the same path.
func (rt *Router) Join(c *Client, roomKey, username string) {
	if roomKey == "" || username == "" {
		rt.sendError(c, ErrCodeBadRequest, "room and username are required")
		return
	}
	if c.Stage() != StageConnected {
		rt.sendError(c, ErrCodeAlreadyJoined, "already joined a room")
		return
	}

	if err := rt.sessions.Bind(c.ID, username); err != nil {
		rt.sendError(c, ErrCodeAlreadyBound, "connection already has a name")
		return
	}

	announce := func(members []*Client) *Event {
		return &Event{
			Kind:    EventJoined,
			Room:    roomKey,
			Member:  MemberInfo{ID: c.ID, Username: username},
			Members: rt.memberInfos(members),
		}
	}
	rm := rt.rooms.Room(roomKey, true)
	err := rm.TryJoin(c, announce)
	for errors.Is(err, ErrRoomRetired) {
		// The janitor swept this room between the lookup and the
		// admission; a fresh lookup yields a live room.
		rm = rt.rooms.Room(roomKey, true)
		err = rm.TryJoin(c, announce)
	}
	if errors.Is(err, ErrRoomFull) {
		rt.sessions.Unbind(c.ID)
		c.deliver(&Event{
			Kind:  EventRoomFull,
			Room:  roomKey,
			Error: coreError(ErrCodeRoomFull, "Room is full!"),
		})
		return
	}
	if err != nil {
		rt.sessions.Unbind(c.ID)
		rt.sendError(c, ErrCodeAlreadyJoined, "already joined a room")
		return
	}
	if !c.markJoined(roomKey) {
		// The connection disconnected between admission and the stage
		// transition; retract the join so no ghost member lingers.
		rm.Leave(c, func([]*Client) *Event {
			return &Event{
				Kind:   EventLeft,
				Room:   roomKey,
				Member: MemberInfo{ID: c.ID, Username: username},
			}
		})
		rt.sessions.Unbind(c.ID)
		return
	}
	rt.log.Info().Str("room", roomKey).Str("client_id", c.ID).Str("username", username).Msg("client joined room")
}

// Fragment journals a document update and relays it to every other member
// of the room. The sender is never echoed to: it already holds the edit,
// and echoing would lean on merge idempotence as a safety net.
func (rt *Router) Fragment(c *Client, roomKey string, update []byte) {
	if !c.inRoom(roomKey) {
		rt.sendError(c, ErrCodeNotJoined, "join the room before sending updates")
		return
	}
	rm := rt.rooms.Room(roomKey, false)
	if rm == nil {
		rt.sendError(c, ErrCodeNotJoined, "join the room before sending updates")
		return
	}
	rm.Append(c, update)
}

// Replay sends the requester every fragment accepted before it joined, in
// acceptance order. Fragments accepted since the join arrive through the
// live path, so the requester converges on exactly the room's journal.
func (rt *Router) Replay(c *Client, roomKey string) {
	if !c.inRoom(roomKey) {
		rt.sendError(c, ErrCodeNotJoined, "join the room before requesting replay")
		return
	}
	rm := rt.rooms.Room(roomKey, false)
	if rm == nil {
		return
	}
	if count, ok := rm.ReplayAndSubscribe(c); ok {
		rt.log.Debug().Str("room", roomKey).Str("client_id", c.ID).Int("fragments", count).Msg("replayed journal")
	}
}

// Run submits the room's code to the execution backend. The backend call
// runs on its own goroutine with no room state held, and re-enters the
// room only to record and broadcast the result. A disconnect of the
// requester does not cancel the run; the result is still useful to the
// remaining members.
func (rt *Router) Run(c *Client, roomKey, code, language string) {
	if !c.inRoom(roomKey) {
		rt.sendError(c, ErrCodeNotJoined, "join the room before running code")
		return
	}
	if code == "" {
		rt.sendError(c, ErrCodeBadRequest, "code is required")
		return
	}
	if wait, ok := c.gate.allow(time.Now(), rt.cooldown); !ok {
		rt.sendError(c, ErrCodeThrottled, "please wait "+wait.Round(time.Second).String()+" before running code again")
		return
	}

	author, err := rt.sessions.Lookup(c.ID)
	if err != nil {
		author = c.ID
	}

	go func() {
		output, err := rt.engine.Run(context.Background(), code, language)
		if err != nil {
			// Backend failures populate the shared output panel as
			// content, so every member observes the same state.
			output = "Error: " + err.Error()
			rt.log.Warn().Err(err).Str("room", roomKey).Str("language", language).Msg("execution failed")
		}
		rt.completeRun(c.ID, author, roomKey, language, output)
	}()
}

func (rt *Router) completeRun(authorID, author, roomKey, language, output string) {
	result := &ExecResult{
		Output:      output,
		Language:    language,
		TriggeredBy: author,
		CreatedAt:   time.Now(),
	}

	if rt.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.history.SaveExecution(ctx, &store.Execution{
			Room:      roomKey,
			Author:    author,
			Language:  language,
			Output:    output,
			CreatedAt: result.CreatedAt,
		}); err != nil {
			rt.log.Warn().Err(err).Str("room", roomKey).Msg("failed to persist execution")
		}
	}

	rm := rt.rooms.Room(roomKey, false)
	if rm == nil {
		// Room retired while the backend was running.
		return
	}
	rm.SetOutput(authorID, result)
}

// CachedOutput hands the requester the room's last known execution result,
// if there is one. No broadcast.
func (rt *Router) CachedOutput(c *Client, roomKey string) {
	if !c.inRoom(roomKey) {
		rt.sendError(c, ErrCodeNotJoined, "join the room before requesting output")
		return
	}
	rm := rt.rooms.Room(roomKey, false)
	if rm == nil {
		return
	}
	if out := rm.Output(); out != nil {
		c.deliver(&Event{Kind: EventOutput, Room: roomKey, Output: out})
	}
}

// Disconnect tears a connection down: membership, name binding, and one
// member-left notice to whoever remains. The client's stage guard makes
// this run once even when the transport signals the disconnect twice.
func (rt *Router) Disconnect(c *Client) {
	roomKey, first := c.markDisconnected()
	if !first {
		return
	}
	c.close()

	name, err := rt.sessions.Lookup(c.ID)
	if err != nil {
		// Never bound; nothing to announce under a name.
		name = ""
	}
	rt.sessions.Unbind(c.ID)

	if roomKey == "" {
		return
	}
	rm := rt.rooms.Room(roomKey, false)
	if rm == nil {
		return
	}
	removed := rm.Leave(c, func([]*Client) *Event {
		return &Event{
			Kind:   EventLeft,
			Room:   roomKey,
			Member: MemberInfo{ID: c.ID, Username: name},
		}
	})
	if !removed {
		return
	}
	rt.log.Info().Str("room", roomKey).Str("client_id", c.ID).Str("username", name).Msg("client left room")
}

// MembersOf resolves the room's member list with display names. Used by
// the administrative read surface; not part of the relay path.
func (rt *Router) MembersOf(roomKey string) []MemberInfo {
	rm := rt.rooms.Room(roomKey, false)
	if rm == nil {
		return nil
	}
	return rt.memberInfos(rm.Members())
}

func (rt *Router) memberInfos(members []*Client) []MemberInfo {
	infos := make([]MemberInfo, 0, len(members))
	for _, m := range members {
		name, err := rt.sessions.Lookup(m.ID)
		if err != nil {
			name = m.ID
		}
		infos = append(infos, MemberInfo{ID: m.ID, Username: name})
	}
	return infos
}

func (rt *Router) sendError(c *Client, code, msg string) {
	c.deliver(&Event{Kind: EventError, Error: coreError(code, msg)})
}
