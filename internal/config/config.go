package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type TelegramApp struct {
	Enable         bool    `yaml:"Enable"`
	ApiId          int32   `yaml:"ApiId"`
	ApiHash        string  `yaml:"ApiHash"`
	DataDir        string  `yaml:"DataDir"`
	CaptureChatIds []int64 `yaml:"CaptureChatIds"` // 라이브 주문을 수집할 채팅방 ID
}

// Columns 채팅 내보내기 파일의 컬럼 이름
type Columns struct {
	Message string `yaml:"Message"`
	Sender  string `yaml:"Sender"`
	Time    string `yaml:"Time"` // 비워 두면 정렬하지 않음
}

type Pipeline struct {
	AuthorizedSenders  []string `yaml:"AuthorizedSenders"`  // 주문 메시지를 올리는 관리자 닉네임
	Delimiter          string   `yaml:"Delimiter"`          // 상품 정보와 주문 구간 구분자
	CurrencySuffix     string   `yaml:"CurrencySuffix"`     // 가격 뒤에 붙는 통화 단위
	PriceMinDigits     int      `yaml:"PriceMinDigits"`
	PriceMaxDigits     int      `yaml:"PriceMaxDigits"`
	BoilerplatePhrases []string `yaml:"BoilerplatePhrases"` // 상품명에서 지울 문구, 위에서부터 순서대로 적용
	Columns            Columns  `yaml:"Columns"`
}

type Storage struct {
	DBPath string `yaml:"DBPath"`
}

type Output struct {
	Dir        string `yaml:"Dir"`
	FileSuffix string `yaml:"FileSuffix"`
}

type Watch struct {
	Cron          string `yaml:"Cron"`          // cron 표현식, 예: "*/5 * * * *"
	InboxDir      string `yaml:"InboxDir"`      // 채팅 내보내기 파일을 넣는 폴더
	RangeDays     int    `yaml:"RangeDays"`     // 텔레그램 수집 메시지 처리 구간(일)
	RetentionDays int    `yaml:"RetentionDays"` // 실행 기록/수집 메시지 보관 일수
	RetryTimes    int    `yaml:"RetryTimes"`    // 처리 실패 재시도 횟수
	RetryInterval int    `yaml:"RetryInterval"` // 재시도 간격(초)
}

type Notify struct {
	Enable  bool    `yaml:"Enable"`
	ChatIds []int64 `yaml:"ChatIds"` // 구매자별 합계를 받을 채팅 ID
}

type Log struct {
	Level string `yaml:"Level"`
	Dir   string `yaml:"Dir"`
}

type Config struct {
	Pipeline    Pipeline    `yaml:"Pipeline"`
	Storage     Storage     `yaml:"Storage"`
	Output      Output      `yaml:"Output"`
	Watch       Watch       `yaml:"Watch"`
	Sock5Proxy  Sock5Proxy  `yaml:"Sock5Proxy"`
	TelegramApp TelegramApp `yaml:"TelegramApp"`
	Notify      Notify      `yaml:"Notify"`
	Log         Log         `yaml:"Log"`
}

// DefaultBoilerplatePhrases 상품명에서 지우는 기본 문구.
// "한분만"이 "한분"보다 먼저 지워지도록 긴 문구를 앞에 둔다.
var DefaultBoilerplatePhrases = []string{
	"선착순", "한정", "당일배송", "익일배송", "품절임박", "마감임박", "재고한정",
	"한분만", "한분", "두분만", "두분", "세분만", "세분", "네분만", "네분",
	"다섯분만", "다섯분", "여섯분만", "여섯분", "일곱분만", "일곱분",
	"여덟분만", "여덟분", "아홉분만", "아홉분", "열분만", "열분",
	"출발",
}

// Default 기본 설정
func Default() *Config {
	return &Config{
		Pipeline: Pipeline{
			AuthorizedSenders:  []string{"만물다잇쏘", "다잇쏘"},
			Delimiter:          "/",
			CurrencySuffix:     "원",
			PriceMinDigits:     3,
			PriceMaxDigits:     6,
			BoilerplatePhrases: append([]string(nil), DefaultBoilerplatePhrases...),
			Columns: Columns{
				Message: "메시지",
				Sender:  "사용자",
				Time:    "시간",
			},
		},
		Storage: Storage{DBPath: "data/sqlite.db"},
		Output:  Output{Dir: "output", FileSuffix: "_주문내역"},
		Watch: Watch{
			Cron:          "*/5 * * * *",
			InboxDir:      "inbox",
			RangeDays:     1,
			RetentionDays: 30,
			RetryTimes:    3,
			RetryInterval: 10,
		},
		TelegramApp: TelegramApp{DataDir: "data"},
		Log:         Log{Level: "info", Dir: "logs"},
	}
}

// LoadFromFile 기본 설정 위에 YAML 파일과 환경 변수를 덮어쓴다
func LoadFromFile(filename string) (*Config, error) {
	c := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	// 설정 검증
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// applyEnv .env 파일(있으면)과 환경 변수로 비밀 값을 덮어쓴다
func (c *Config) applyEnv() error {
	_ = godotenv.Load()

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_API_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("TELEGRAM_API_ID 형식이 잘못되었습니다: %w", err)
		}
		c.TelegramApp.ApiId = int32(id)
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_API_HASH")); v != "" {
		c.TelegramApp.ApiHash = v
	}
	if v := strings.TrimSpace(os.Getenv("LIVE_ORDER_DB_PATH")); v != "" {
		c.Storage.DBPath = v
	}
	return nil
}

// Validate 설정 유효성 검사
func (c *Config) Validate() error {
	// Pipeline
	p := c.Pipeline
	if len(p.AuthorizedSenders) == 0 {
		return fmt.Errorf("Pipeline.AuthorizedSenders 는 비어 있을 수 없습니다")
	}
	if p.Delimiter == "" {
		return fmt.Errorf("Pipeline.Delimiter 는 비어 있을 수 없습니다")
	}
	if p.CurrencySuffix == "" {
		return fmt.Errorf("Pipeline.CurrencySuffix 는 비어 있을 수 없습니다")
	}
	if p.PriceMinDigits < 1 {
		return fmt.Errorf("Pipeline.PriceMinDigits 는 1 이상이어야 합니다")
	}
	if p.PriceMaxDigits < p.PriceMinDigits {
		return fmt.Errorf("Pipeline.PriceMaxDigits 는 PriceMinDigits 이상이어야 합니다")
	}
	if p.Columns.Message == "" || p.Columns.Sender == "" {
		return fmt.Errorf("Pipeline.Columns.Message, Pipeline.Columns.Sender 는 비어 있을 수 없습니다")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("Storage.DBPath 는 비어 있을 수 없습니다")
	}

	// Watch
	if c.Watch.Cron == "" {
		return fmt.Errorf("Watch.Cron 은 비어 있을 수 없습니다")
	}
	if c.Watch.RangeDays < 0 {
		return fmt.Errorf("Watch.RangeDays 는 0 이상이어야 합니다")
	}
	if c.Watch.RetentionDays < 0 {
		return fmt.Errorf("Watch.RetentionDays 는 0 이상이어야 합니다")
	}
	if c.Watch.RetryTimes < 0 {
		return fmt.Errorf("Watch.RetryTimes 는 0 이상이어야 합니다")
	}
	if c.Watch.RetryInterval < 0 {
		return fmt.Errorf("Watch.RetryInterval 은 0 이상이어야 합니다")
	}

	// TelegramApp
	if c.TelegramApp.Enable {
		if c.TelegramApp.ApiId == 0 {
			return fmt.Errorf("TelegramApp.ApiId 는 비어 있을 수 없습니다")
		}
		if c.TelegramApp.ApiHash == "" {
			return fmt.Errorf("TelegramApp.ApiHash 는 비어 있을 수 없습니다")
		}
	}

	// Notify
	if c.Notify.Enable {
		if !c.TelegramApp.Enable {
			return fmt.Errorf("Notify.Enable 은 TelegramApp.Enable 이 필요합니다")
		}
		if len(c.Notify.ChatIds) == 0 {
			return fmt.Errorf("Notify.ChatIds 는 비어 있을 수 없습니다 (Notify.Enable 일 때)")
		}
	}

	return nil
}
