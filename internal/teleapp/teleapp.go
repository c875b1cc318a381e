package teleapp

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fachebot/live-order-bot/internal/logger"
	"github.com/fachebot/live-order-bot/internal/model"
	"github.com/fachebot/live-order-bot/internal/svc"

	"github.com/zelenin/go-tdlib/client"
)

type TeleApp struct {
	svcCtx     *svc.ServiceContext
	user       *client.User
	tdClient   *client.Client
	listener   *client.Listener
	parameters *client.SetTdlibParametersRequest
	capture    map[int64]struct{}
	usersMu    sync.RWMutex
	usersCache map[int64]*client.User
	chatsMu    sync.RWMutex
	chatsCache map[int64]*client.Chat
	ctx        context.Context
	cancel     context.CancelFunc
	ctxMu      sync.Mutex
}

func NewApp(svcCtx *svc.ServiceContext) (*TeleApp, error) {
	_, err := client.SetLogVerbosityLevel(&client.SetLogVerbosityLevelRequest{
		NewVerbosityLevel: 1,
	})
	if err != nil {
		return nil, err
	}

	c := svcCtx.Config.TelegramApp
	parameters := &client.SetTdlibParametersRequest{
		UseTestDc:           false,
		DatabaseDirectory:   filepath.Join(c.DataDir, ".tdlib", "database"),
		FilesDirectory:      filepath.Join(c.DataDir, ".tdlib", "files"),
		UseFileDatabase:     true,
		UseChatInfoDatabase: true,
		UseMessageDatabase:  true,
		UseSecretChats:      false,
		ApiId:               c.ApiId,
		ApiHash:             c.ApiHash,
		SystemLanguageCode:  "ko",
		DeviceModel:         "Server",
		SystemVersion:       "1.0.0",
		ApplicationVersion:  "1.0.0",
	}

	app := &TeleApp{
		svcCtx:     svcCtx,
		parameters: parameters,
		capture:    captureSet(c.CaptureChatIds),
		chatsCache: make(map[int64]*client.Chat),
		usersCache: make(map[int64]*client.User),
	}
	return app, nil
}

// ProxyOptions 설정된 SOCKS5 프록시를 TDLib 옵션으로
func ProxyOptions(svcCtx *svc.ServiceContext) []client.Option {
	p := svcCtx.Config.Sock5Proxy
	if !p.Enable {
		return nil
	}
	return []client.Option{client.WithProxy(&client.AddProxyRequest{
		Server: p.Host,
		Port:   p.Port,
		Enable: p.Enable,
		Type:   &client.ProxyTypeSocks5{},
	})}
}

func (app *TeleApp) Login(options ...client.Option) (*client.User, error) {
	if app.user != nil {
		return app.user, nil
	}

	authorizer := client.ClientAuthorizer(app.parameters)
	go client.CliInteractor(authorizer)

	tdlibClient, err := client.NewClient(authorizer, options...)
	if err != nil {
		return nil, err
	}

	me, err := tdlibClient.GetMe()
	if err != nil {
		return nil, err
	}

	app.user = me
	app.tdClient = tdlibClient

	chats, err := app.tdClient.GetChats(&client.GetChatsRequest{Limit: 100})
	if err != nil {
		logger.Warnf("[TeleApp] 채팅 목록 조회 실패: %v", err)
	} else {
		for _, chatId := range chats.ChatIds {
			chat, err := app.tdClient.GetChat(&client.GetChatRequest{ChatId: chatId})
			if err != nil {
				logger.Warnf("[TeleApp] 채팅 정보 조회 실패, id: %d, %v", chatId, err)
				continue
			}
			mark := ""
			if app.shouldCapture(chat.Id) {
				mark = " (수집)"
			}
			logger.Infof("[TeleApp] 채팅 목록: %s[%d]%s", chat.Title, chat.Id, mark)
		}
	}

	listener := tdlibClient.GetListener()
	app.listener = listener

	app.ctxMu.Lock()
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.ctxMu.Unlock()

	go app.getUpdates(listener)

	return me, nil
}

func (app *TeleApp) Client() *client.Client {
	return app.tdClient
}

func (app *TeleApp) Close() error {
	if app.tdClient == nil {
		return nil
	}

	app.ctxMu.Lock()
	if app.cancel != nil {
		app.cancel()
	}
	app.ctxMu.Unlock()

	if app.listener != nil {
		app.listener.Close()
	}

	_, err := app.tdClient.Close()
	return err
}

func captureSet(chatIDs []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		set[id] = struct{}{}
	}
	return set
}

// shouldCapture 수집 대상 채팅인지. 목록이 비어 있으면 모든 그룹/채널을 수집한다.
func (app *TeleApp) shouldCapture(chatID int64) bool {
	if len(app.capture) == 0 {
		return true
	}
	_, ok := app.capture[chatID]
	return ok
}

func (app *TeleApp) getChat(chatId int64) (*client.Chat, error) {
	app.chatsMu.RLock()
	chat, ok := app.chatsCache[chatId]
	app.chatsMu.RUnlock()
	if ok {
		return chat, nil
	}

	chat, err := app.tdClient.GetChat(&client.GetChatRequest{ChatId: chatId})
	if err != nil {
		return nil, err
	}

	app.chatsMu.Lock()
	app.chatsCache[chatId] = chat
	app.chatsMu.Unlock()
	return chat, nil
}

func (app *TeleApp) getUser(userId int64) (*client.User, error) {
	app.usersMu.RLock()
	user, ok := app.usersCache[userId]
	app.usersMu.RUnlock()
	if ok {
		return user, nil
	}

	user, err := app.tdClient.GetUser(&client.GetUserRequest{UserId: userId})
	if err != nil {
		return nil, err
	}

	app.usersMu.Lock()
	app.usersCache[userId] = user
	app.usersMu.Unlock()
	return user, nil
}

// userDisplayName 채팅 내보내기의 "사용자" 컬럼과 같은 표시 이름
func userDisplayName(user *client.User) string {
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	return name
}

func (app *TeleApp) getUpdates(listener *client.Listener) {
	app.ctxMu.Lock()
	ctx := app.ctx
	app.ctxMu.Unlock()

	for listener.IsActive() {
		select {
		case <-ctx.Done():
			logger.Infof("[TeleApp] 업데이트 루프 종료")
			return
		case update := <-listener.Updates:
			if update.GetType() != client.TypeUpdateNewMessage {
				continue
			}
			app.handleMessage(ctx, update.(*client.UpdateNewMessage).Message)
		}
	}
}

// handleMessage 수집 대상 채팅의 텍스트 메시지를 저장한다
func (app *TeleApp) handleMessage(ctx context.Context, message *client.Message) {
	if !app.shouldCapture(message.ChatId) {
		return
	}
	if message.Content.MessageContentType() != client.TypeMessageText {
		return
	}
	text := message.Content.(*client.MessageText)
	if text.Text == nil || text.Text.Text == "" {
		return
	}

	chat, err := app.getChat(message.ChatId)
	if err != nil {
		logger.Warnf("[TeleApp] 채팅 정보 조회 실패, id: %d, %v", message.ChatId, err)
		return
	}

	// 개인/비밀 채팅 제외
	switch chat.Type.ChatTypeType() {
	case client.TypeChatTypePrivate, client.TypeChatTypeSecret:
		return
	}

	var (
		senderID       int64
		senderName     string
		senderUsername *string
	)
	switch sender := message.SenderId.(type) {
	case *client.MessageSenderUser:
		senderID = sender.UserId
		user, err := app.getUser(sender.UserId)
		if err != nil {
			logger.Warnf("[TeleApp] 사용자 정보 조회 실패, id: %d, %v", sender.UserId, err)
			return
		}
		senderName = userDisplayName(user)
		if user.Usernames != nil && len(user.Usernames.ActiveUsernames) > 0 {
			username := "@" + user.Usernames.ActiveUsernames[0]
			senderUsername = &username
		}
	case *client.MessageSenderChat:
		// 채널 이름으로 올린 판매 공지
		senderID = sender.ChatId
		senderChat, err := app.getChat(sender.ChatId)
		if err != nil {
			logger.Warnf("[TeleApp] 채팅 정보 조회 실패, id: %d, %v", sender.ChatId, err)
			return
		}
		senderName = senderChat.Title
	}

	msgData := &model.MessageData{
		MessageID:      message.Id,
		ChatID:         message.ChatId,
		SenderID:       senderID,
		SenderName:     senderName,
		SenderUsername: senderUsername,
		Text:           text.Text.Text,
		SentAt:         time.Unix(int64(message.Date), 0),
	}
	if err := app.svcCtx.MessageModel.Create(ctx, msgData); err != nil {
		logger.Errorf("[TeleApp] 메시지 저장 실패, %v", err)
		return
	}

	logger.Debugf("[TeleApp] 메시지 저장: %s[%d] -> %s: %s", chat.Title, chat.Id, senderName, text.Text.Text)
}
