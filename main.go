//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fachebot/live-order-bot/internal/config"
	"github.com/fachebot/live-order-bot/internal/logger"
	"github.com/fachebot/live-order-bot/internal/notify"
	"github.com/fachebot/live-order-bot/internal/order"
	"github.com/fachebot/live-order-bot/internal/processor"
	"github.com/fachebot/live-order-bot/internal/scheduler"
	"github.com/fachebot/live-order-bot/internal/sheet"
	"github.com/fachebot/live-order-bot/internal/svc"
	"github.com/fachebot/live-order-bot/internal/teleapp"
)

var version = "dev"

const (
	exitOK           = 0
	exitFailure      = 1
	exitSchema       = 2
	exitNoAuthorized = 3
)

const usage = `사용법:
  live-order-bot run [-f 설정파일] [-buyers id1,id2] [-out 폴더] [-show-messages] <채팅파일.xlsx|csv>
  live-order-bot watch [-f 설정파일]
  live-order-bot buyers [-f 설정파일] list|add|remove|set [id ...]
  live-order-bot version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitFailure)
	}

	var code int
	switch os.Args[1] {
	case "run":
		code = runCommand(os.Args[2:])
	case "watch":
		code = watchCommand(os.Args[2:])
	case "buyers":
		code = buyersCommand(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprint(os.Stderr, usage)
		code = exitFailure
	}
	os.Exit(code)
}

// setup 설정을 읽고 로그와 서비스 컨텍스트를 준비한다
func setup(configFile string) (*svc.ServiceContext, error) {
	c, err := config.LoadFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("설정 파일 읽기 실패, %w", err)
	}
	if err := logger.Setup(c.Log.Level, c.Log.Dir); err != nil {
		return nil, fmt.Errorf("로그 설정 실패, %w", err)
	}
	return svc.NewServiceContext(c)
}

func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFile := fs.String("f", "etc/config.yaml", "the config file")
	buyers := fs.String("buyers", "", "이번 실행에 추가할 구매자 ID (쉼표 구분)")
	outDir := fs.String("out", "", "결과 파일 폴더 (기본: 설정의 Output.Dir)")
	showMessages := fs.Bool("show-messages", false, "주문이 없을 때 관리자 메시지 출력")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprint(os.Stderr, usage)
		return exitFailure
	}

	svcCtx, err := setup(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		return exitFailure
	}
	defer logger.Close()
	defer svcCtx.Close()

	output := svcCtx.Config.Output
	if *outDir != "" {
		output.Dir = *outDir
	}
	proc := processor.NewProcessor(svcCtx.Pipeline, svcCtx.MessageModel, svcCtx.BuyerIDModel, output)

	outcome, err := proc.ProcessFile(context.Background(), fs.Arg(0), processor.ParseBuyerIDs(*buyers))
	if err != nil {
		logger.Debugf("처리 실패 상세: %v", err)
		code, msg := failureReport(err, svcCtx.Config.Pipeline.AuthorizedSenders)
		logger.Errorf("%s", msg)
		return code
	}

	if !outcome.Result.HasOrders() {
		logger.Warnf("추출된 주문이 없습니다. 메시지 형식을 확인하세요 (관리자 메시지 %d개)", len(outcome.Result.Messages))
		if *showMessages {
			fmt.Print(processor.FormatMessages(outcome.Result.Messages))
		}
		return exitOK
	}

	fmt.Print(processor.FormatReport(outcome.Result))
	logger.Infof("결과 파일: %s", outcome.OutputPath)
	return exitOK
}

// failureReport 처리 실패를 종료 코드와 사용자에게 보여줄 메시지로 바꾼다
func failureReport(err error, authorizedSenders []string) (int, string) {
	var schemaErr *order.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		return exitSchema, fmt.Sprintf("파일 형식 오류: 필수 컬럼 %v 이(가) 없습니다", schemaErr.Missing)
	case errors.Is(err, order.ErrMissingColumns):
		return exitSchema, "파일 형식 오류: 필수 컬럼이 없습니다"
	case errors.Is(err, order.ErrNoAuthorizedMessages):
		return exitNoAuthorized, fmt.Sprintf("관리자(%v)의 메시지를 찾을 수 없습니다", authorizedSenders)
	case errors.Is(err, sheet.ErrUnsupportedFormat):
		return exitFailure, "지원하지 않는 파일 형식입니다 (.xlsx, .xlsm, .csv)"
	default:
		return exitFailure, "처리 중 오류가 발생했습니다. 입력 파일을 확인하세요"
	}
}

func watchCommand(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("f", "etc/config.yaml", "the config file")
	_ = fs.Parse(args)

	svcCtx, err := setup(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		return exitFailure
	}
	defer logger.Close()
	defer svcCtx.Close()
	c := svcCtx.Config

	// 텔레그램 수집
	var app *teleapp.TeleApp
	var notifier *notify.Notifier
	if c.TelegramApp.Enable {
		if err := os.MkdirAll(c.TelegramApp.DataDir, 0755); err != nil {
			logger.Errorf("데이터 디렉터리 생성 실패, %v", err)
			return exitFailure
		}
		app, err = teleapp.NewApp(svcCtx)
		if err != nil {
			logger.Errorf("[TeleApp] 초기화 실패, %v", err)
			return exitFailure
		}
		user, err := app.Login(teleapp.ProxyOptions(svcCtx)...)
		if err != nil {
			logger.Errorf("[TeleApp] 로그인 실패, %v", err)
			return exitFailure
		}
		logger.Infof("[TeleApp] 사용자 <%s %s>(%d) 로그인 성공", user.FirstName, user.LastName, user.Id)

		if c.Notify.Enable {
			notifier = notify.NewNotifier(app.Client(), &c.Notify)
		}
	}

	proc := processor.NewProcessor(svcCtx.Pipeline, svcCtx.MessageModel, svcCtx.BuyerIDModel, c.Output)
	schedulerInstance := scheduler.NewScheduler(proc, notifier, svcCtx.RunModel, svcCtx.MessageModel, c)
	if err := schedulerInstance.Start(); err != nil {
		logger.Errorf("[Scheduler] 시작 실패: %v", err)
		return exitFailure
	}

	// 종료 대기
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	logger.Infof("서비스 종료 중...")
	schedulerInstance.Stop()
	if app != nil {
		if err := app.Close(); err != nil {
			logger.Infof("[TeleApp] 종료 실패, %v", err)
		}
	}
	logger.Infof("서비스 종료")
	return exitOK
}

func buyersCommand(args []string) int {
	fs := flag.NewFlagSet("buyers", flag.ExitOnError)
	configFile := fs.String("f", "etc/config.yaml", "the config file")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		return exitFailure
	}

	svcCtx, err := setup(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		return exitFailure
	}
	defer logger.Close()
	defer svcCtx.Close()

	ctx := context.Background()
	m := svcCtx.BuyerIDModel
	ids := processor.ParseBuyerIDs(strings.Join(fs.Args()[1:], ","))

	switch fs.Arg(0) {
	case "list":
	case "add":
		n, err := m.Add(ctx, ids...)
		if err != nil {
			logger.Errorf("구매자 ID 추가 실패: %v", err)
			return exitFailure
		}
		logger.Infof("구매자 ID %d개 추가", n)
	case "remove":
		n, err := m.Remove(ctx, ids...)
		if err != nil {
			logger.Errorf("구매자 ID 삭제 실패: %v", err)
			return exitFailure
		}
		logger.Infof("구매자 ID %d개 삭제", n)
	case "set":
		if err := m.Replace(ctx, ids); err != nil {
			logger.Errorf("구매자 ID 저장 실패: %v", err)
			return exitFailure
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return exitFailure
	}

	stored, err := m.List(ctx)
	if err != nil {
		logger.Errorf("구매자 ID 조회 실패: %v", err)
		return exitFailure
	}
	fmt.Printf("저장된 구매자 ID (%d개)\n", len(stored))
	for _, id := range stored {
		fmt.Println(id)
	}
	return exitOK
}
