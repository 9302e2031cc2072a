package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
)

// Receive ID types accepted by the Lark IM API
const (
	ReceiveIDTypeOpenID = "open_id"
	ReceiveIDTypeUserID = "user_id"
	ReceiveIDTypeEmail  = "email"
)

// Config holds Lark messenger configuration
type Config struct {
	AppID         string
	AppSecret     string
	ReceiveIDType string // how notification user IDs are interpreted by Lark
	BaseURL       string // prefix for action links, optional
}

type createMessageFunc func(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)

// Messenger delivers notifications as Lark text messages.
// Implements port.NotificationChannel.
type Messenger struct {
	create        createMessageFunc
	receiveIDType string
	baseURL       string
	logger        *zap.Logger
}

// NewMessenger creates a Lark messenger backed by the SDK client
func NewMessenger(cfg Config, logger *zap.Logger) *Messenger {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	return newMessenger(client.Im.Message.Create, cfg, logger)
}

func newMessenger(create createMessageFunc, cfg Config, logger *zap.Logger) *Messenger {
	receiveIDType := cfg.ReceiveIDType
	if receiveIDType == "" {
		receiveIDType = ReceiveIDTypeUserID
	}
	return &Messenger{
		create:        create,
		receiveIDType: receiveIDType,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		logger:        logger,
	}
}

// Name identifies the channel in logs
func (m *Messenger) Name() string {
	return "lark"
}

// Deliver sends the notification text to its user
func (m *Messenger) Deliver(ctx context.Context, n *entity.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("notification has no recipient")
	}

	body, err := m.messageBody(n)
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(m.receiveIDType).
		Body(body).
		Build()

	resp, err := m.create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", n.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", n.UserID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", n.UserID))
	return nil
}

// messageBody builds the text message sent for n; Uuid dedupes retries on the Lark side
func (m *Messenger) messageBody(n *entity.Notification) (*larkim.CreateMessageReqBody, error) {
	content, err := m.textContent(n)
	if err != nil {
		return nil, err
	}
	return larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(n.UserID).
		MsgType(larkim.MsgTypeText).
		Content(content).
		Uuid(n.ID).
		Build(), nil
}

func (m *Messenger) textContent(n *entity.Notification) (string, error) {
	text := n.Message
	if n.ActionURL != nil && *n.ActionURL != "" {
		text += "\n" + m.baseURL + *n.ActionURL
	}

	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message content: %w", err)
	}
	return string(data), nil
}

var _ port.NotificationChannel = (*Messenger)(nil)
