package view

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const socketBuffer = 64

type SocketController struct {
	ViewService ViewService
	logger      *zap.Logger
}

func NewSocketController(viewService ViewService, logger *zap.Logger) *SocketController {
	return &SocketController{
		ViewService: viewService,
		logger:      logger,
	}
}

// RequireUpgrade rejects plain HTTP requests to the socket endpoint.
func (h *SocketController) RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleSocket streams view updates to the client and applies the commands
// it sends. All writes go through one goroutine.
func (h *SocketController) HandleSocket(c *websocket.Conn) {
	v, err := h.ViewService.Get(c.Params("id"))
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": err.Error()})
		_ = c.Close()
		return
	}
	logger := h.logger.With(zap.String("viewId", v.ID()))

	out := make(chan any, socketBuffer)
	done := make(chan struct{})
	unsubscribe := v.Subscribe(func(u Update) {
		select {
		case out <- u:
		case <-done:
		default:
			logger.Warn("Socket client is slow, dropping update", zap.String("kind", string(u.Kind)))
		}
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-out:
				if err := c.WriteJSON(msg); err != nil {
					logger.Debug("Socket write failed", zap.Error(err))
					return
				}
				if u, ok := msg.(Update); ok && u.Kind == UpdateClosed {
					_ = c.Close()
					return
				}
			case <-done:
				return
			}
		}
	}()

	snapshot := v.Snapshot()
	enqueue(out, Update{Kind: UpdateLayout, Snapshot: &snapshot}, writerDone)

	for {
		var cmd Command
		if err := c.ReadJSON(&cmd); err != nil {
			break
		}
		if err := h.apply(v, cmd); err != nil {
			select {
			case out <- fiber.Map{"error": err.Error(), "action": cmd.Action}:
			default:
			}
		}
	}

	unsubscribe()
	close(done)
	<-writerDone
}

// enqueue hands msg to the writer, giving up once the writer has exited.
func enqueue(out chan<- any, msg any, writerDone <-chan struct{}) bool {
	select {
	case out <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func (h *SocketController) apply(v *View, cmd Command) error {
	switch cmd.Action {
	case "refresh":
		if cmd.WidgetID == "" {
			return v.RefreshAll()
		}
		_, err := v.RefreshWidget(cmd.WidgetID)
		return err
	case "click":
		_, err := v.Click(ClickInput{WidgetID: cmd.WidgetID, Row: cmd.Row})
		return err
	case "removeFilter":
		_, err := v.RemoveFilter(cmd.FilterID)
		return err
	case "clearFilters":
		return v.ClearFilters()
	case "setVariable":
		if cmd.Key == "" {
			return errors.New("key is required")
		}
		return v.SetVariable(cmd.Key, cmd.Value)
	}
	return errors.New("unknown action")
}
