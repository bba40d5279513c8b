// Package matrix provides the Matrix transport for the bot: the sync loop,
// room messaging with live-edited progress messages, and direct-message
// delivery to bridged platform users.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms the bot joins on startup. Which communities a room sees is
	// decided by the catalog scoping, not here.
	Rooms []string
	// UserTemplate formats a bridged platform user ID into a Matrix user ID,
	// e.g. "@bridge_%s:example.com". Direct messages are disabled when empty.
	UserTemplate string
}

// RoomCache persists direct-message room assignments.
type RoomCache struct {
	DMRoom    func(ctx context.Context, userID string) (string, error)
	SetDMRoom func(ctx context.Context, userID, roomID string) error
}

// Client wraps the mautrix client.
type Client struct {
	client     *mautrix.Client
	config     *Config
	rooms      RoomCache
	stopCh     chan struct{}
	msgHandler MessageHandler
}

// MessageHandler processes incoming room messages.
type MessageHandler func(ctx context.Context, evt *event.Event)

// New creates a Matrix client. tokens persists the sync position across
// restarts; rooms caches direct-message room assignments. Either may be left
// zero-valued at the cost of replayed history or re-created DM rooms.
func New(config *Config, tokens TokenStore, rooms RoomCache) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	if tokens.Load != nil {
		client.Store = newSyncStore(tokens)
	} else {
		slog.Warn("no sync token store configured, room history will replay on restart")
	}

	return &Client{
		client: client,
		config: config,
		rooms:  rooms,
		stopCh: make(chan struct{}),
	}, nil
}

// Start joins the configured rooms and begins syncing. Sync errors trigger
// reconnection with exponential back-off; without retries a transient
// homeserver error would leave the bot deaf to all new messages.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			// Sync returns nil only on a clean StopSync call.
			return
		}
	}()

	return nil
}

// Stop stops the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendMessage sends a text message and returns the event ID, which can be
// passed to EditMessage to update the message in place.
func (c *Client) SendMessage(ctx context.Context, roomID, message string) (string, error) {
	resp, err := c.client.SendText(ctx, id.RoomID(roomID), message)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return resp.EventID.String(), nil
}

// SendFormattedMessage sends an HTML message with a plain-text fallback.
func (c *Client) SendFormattedMessage(ctx context.Context, roomID, html, plaintext string) (string, error) {
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plaintext,
		Format:        event.FormatHTML,
		FormattedBody: html,
	}
	resp, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return "", fmt.Errorf("failed to send formatted message: %w", err)
	}
	return resp.EventID.String(), nil
}

// EditMessage replaces the body of a previously sent message. Progress
// reports use this to render a batch as one live-updating message instead of
// a flood of individual ones.
func (c *Client) EditMessage(ctx context.Context, roomID, eventID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    message,
	}
	content.SetEdit(id.EventID(eventID))

	_, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// SendNotice sends a notice message (less intrusive than normal messages).
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	_, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// SendDirectMessage delivers text to a bridged platform user in a private
// room, creating and caching the room on first use.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) error {
	if c.config.UserTemplate == "" {
		return fmt.Errorf("direct messages are not configured")
	}
	mxid := fmt.Sprintf(c.config.UserTemplate, userID)

	roomID, err := c.dmRoom(ctx, mxid)
	if err != nil {
		return err
	}
	if _, err := c.client.SendText(ctx, id.RoomID(roomID), text); err != nil {
		return fmt.Errorf("failed to send direct message: %w", err)
	}
	return nil
}

func (c *Client) dmRoom(ctx context.Context, mxid string) (string, error) {
	if c.rooms.DMRoom != nil {
		roomID, err := c.rooms.DMRoom(ctx, mxid)
		if err != nil {
			slog.Warn("dm room cache lookup failed", "user", mxid, "error", err)
		} else if roomID != "" {
			return roomID, nil
		}
	}

	resp, err := c.client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Preset:   "trusted_private_chat",
		IsDirect: true,
		Invite:   []id.UserID{id.UserID(mxid)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create direct room for %s: %w", mxid, err)
	}

	roomID := resp.RoomID.String()
	if c.rooms.SetDMRoom != nil {
		if err := c.rooms.SetDMRoom(ctx, mxid, roomID); err != nil {
			slog.Warn("failed to cache dm room", "user", mxid, "error", err)
		}
	}
	return roomID, nil
}

// UserID returns the bot's own Matrix user ID.
func (c *Client) UserID() string {
	return c.config.UserID
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}
	msgContent := evt.Content.AsMessage()
	if msgContent == nil || msgContent.MsgType != event.MsgText {
		return
	}
	if c.msgHandler != nil {
		// Handlers may block waiting for a confirmation reply that only
		// arrives in a later sync response. Dispatching inline would stall
		// the sync loop until the prompt times out, so every message gets
		// its own goroutine.
		go c.msgHandler(ctx, evt)
	}
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// M_FORBIDDEN also covers the bot already being a member.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
