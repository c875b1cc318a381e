package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fachebot/live-order-bot/internal/config"
	"github.com/fachebot/live-order-bot/internal/logger"
	"github.com/zelenin/go-tdlib/client"
)

const (
	MaxMessageLength = 4000 // 텔레그램 메시지 최대 길이 (여유 포함)
)

// sender 텔레그램 전송 (테스트에서 mock 주입)
type sender interface {
	SendMessage(req *client.SendMessageRequest) (*client.Message, error)
}

type Notifier struct {
	tdClient sender
	config   *config.Notify
}

func NewNotifier(tdClient *client.Client, cfg *config.Notify) *Notifier {
	return &Notifier{
		tdClient: tdClient,
		config:   cfg,
	}
}

// Notify 주문 집계를 설정된 모든 채팅으로 보낸다. 한 채팅이 실패해도 나머지는 계속 보낸다.
func (n *Notifier) Notify(ctx context.Context, content string) error {
	if content == "" || !n.config.Enable {
		return nil
	}
	if len(n.config.ChatIds) == 0 {
		logger.Warnf("[Notify] 알림 받을 채팅 ID가 설정되지 않았습니다")
		return nil
	}

	messages := splitMessage(content)

	var failed []string
	for _, chatID := range n.config.ChatIds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.send(chatID, messages); err != nil {
			logger.Errorf("[Notify] %v", err)
			failed = append(failed, fmt.Sprint(chatID))
			continue
		}
		logger.Infof("[Notify] 채팅 %d 에 알림 전송 완료", chatID)
	}

	if len(failed) > 0 {
		return fmt.Errorf("알림 전송 실패: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (n *Notifier) send(chatID int64, messages []string) error {
	for _, msg := range messages {
		_, err := n.tdClient.SendMessage(&client.SendMessageRequest{
			ChatId: chatID,
			InputMessageContent: &client.InputMessageText{
				Text: parseHTMLText(msg),
			},
		})
		if err != nil {
			return fmt.Errorf("채팅 %d 로 메시지 전송 실패: %w", chatID, err)
		}
	}
	return nil
}

// parseHTMLText TDLib 의 HTML 파서로 엔티티가 붙은 FormattedText 를 만든다.
// 지원 태그: <b>굵게</b>, <a href="url">링크</a>
func parseHTMLText(text string) *client.FormattedText {
	if text == "" {
		return &client.FormattedText{Text: text}
	}

	formatted, err := client.ParseTextEntities(&client.ParseTextEntitiesRequest{
		Text:      text,
		ParseMode: &client.TextParseModeHTML{},
	})
	if err != nil {
		logger.Warnf("[Notify] HTML 파싱 실패, 일반 텍스트로 전송: %v", err)
		return &client.FormattedText{Text: text}
	}
	return formatted
}

// splitMessage 길이 제한에 맞게 문단, 줄 단위로 나눈다
func splitMessage(content string) []string {
	if len(content) <= MaxMessageLength {
		return []string{content}
	}

	paragraphs := strings.Split(content, "\n\n")
	if len(paragraphs) == 1 {
		paragraphs = strings.Split(content, "\n")
	}

	messages := make([]string, 0)
	current := ""
	flush := func() {
		if current != "" {
			messages = append(messages, current)
			current = ""
		}
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}
		if len(candidate) <= MaxMessageLength {
			current = candidate
			continue
		}

		flush()
		if len(para) <= MaxMessageLength {
			current = para
			continue
		}

		// 한 문단이 너무 길면 줄 단위로 나눈다
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			for len(line) > MaxMessageLength {
				flush()
				cut := safeCut(line, MaxMessageLength)
				messages = append(messages, line[:cut])
				line = line[cut:]
			}
			if current != "" && len(current)+1+len(line) > MaxMessageLength {
				flush()
			}
			if current != "" {
				current += "\n"
			}
			current += line
		}
	}
	flush()

	return messages
}

// safeCut limit 이하에서 UTF-8 글자 경계를 찾는다
func safeCut(s string, limit int) int {
	cut := limit
	for cut > 0 && cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return cut
}
