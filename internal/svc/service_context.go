package svc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fachebot/live-order-bot/internal/config"
	"github.com/fachebot/live-order-bot/internal/logger"
	"github.com/fachebot/live-order-bot/internal/model"
	"github.com/fachebot/live-order-bot/internal/order"
)

type ServiceContext struct {
	Config       *config.Config
	DB           *sql.DB
	Pipeline     *order.Pipeline
	BuyerIDModel *model.BuyerIDModel
	RunModel     *model.RunModel
	MessageModel *model.MessageModel
}

func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	pipeline, err := order.NewPipeline(&c.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("파싱 규칙 생성 실패: %w", err)
	}

	// 데이터베이스 연결
	db, err := model.Open(context.Background(), c.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("데이터베이스 열기 실패: %w", err)
	}

	svcCtx := &ServiceContext{
		Config:       c,
		DB:           db,
		Pipeline:     pipeline,
		BuyerIDModel: model.NewBuyerIDModel(db),
		RunModel:     model.NewRunModel(db),
		MessageModel: model.NewMessageModel(db),
	}
	return svcCtx, nil
}

func (svcCtx *ServiceContext) Close() {
	if err := svcCtx.DB.Close(); err != nil {
		logger.Errorf("데이터베이스 닫기 실패, %v", err)
	}
}
