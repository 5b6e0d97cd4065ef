package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/auditlog"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-tx-propagation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/logger"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/metrics"
)

const (
	memberCacheTTL = 5 * time.Minute
)

// 会員登録の結果（メトリクスのラベル）
const (
	joinResultSuccess            = "success"
	joinResultPartial            = "partial"
	joinResultFailed             = "failed"
	joinResultUnexpectedRollback = "unexpected_rollback"
)

// JoinMode は会員登録の処理方式
type JoinMode string

const (
	// JoinModeV1 はログ保存の失敗をそのまま呼び出し元へ返す
	JoinModeV1 JoinMode = "v1"
	// JoinModeV2 はログ保存の失敗を握りつぶして登録を続ける
	JoinModeV2 JoinMode = "v2"
)

type MemberService struct {
	tm         *transaction.Manager
	attrs      *transaction.AttributeSource
	memberRepo member.Repository
	logRepo    auditlog.Repository
	cache      redisinfra.MemberCacheInterface
	metrics    *metrics.Metrics
}

func NewMemberService(tm *transaction.Manager, attrs *transaction.AttributeSource, mr member.Repository, lr auditlog.Repository, cache redisinfra.MemberCacheInterface, m *metrics.Metrics) *MemberService {
	if attrs == nil {
		attrs = DefaultAttributes()
	}
	return &MemberService{tm: tm, attrs: attrs, memberRepo: mr, logRepo: lr, cache: cache, metrics: m}
}

// Join は mode に応じて JoinV1 / JoinV2 を呼び分ける
func (s *MemberService) Join(ctx context.Context, username string, mode JoinMode) (*member.Member, error) {
	if mode == JoinModeV2 {
		return s.JoinV2(ctx, username)
	}
	return s.JoinV1(ctx, username)
}

// JoinV1 は会員とログを保存する。ログ保存の失敗は呼び出し元へ返す
func (s *MemberService) JoinV1(ctx context.Context, username string) (*member.Member, error) {
	return s.join(ctx, username, false)
}

// JoinV2 は会員とログを保存する。ログ保存の失敗は記録だけして登録を続ける
// ログ保存が外側のトランザクションに参加している場合、外側は rollback-only になり
// コミット時に ErrUnexpectedRollback が返る
func (s *MemberService) JoinV2(ctx context.Context, username string) (*member.Member, error) {
	return s.join(ctx, username, true)
}

func (s *MemberService) join(ctx context.Context, username string, recoverLog bool) (*member.Member, error) {
	m := member.NewMember(username)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	entry := auditlog.NewLog(m.Username)

	var logFailed bool
	body := func(ctx context.Context) error {
		logger.Debug("会員リポジトリ呼び出し", zap.String("username", m.Username))
		if err := s.saveMember(ctx, m); err != nil {
			return err
		}

		logger.Debug("ログリポジトリ呼び出し", zap.String("message", entry.Message))
		if err := s.saveLog(ctx, entry); err != nil {
			if !recoverLog {
				return err
			}
			logFailed = true
			logger.Info("ログ保存に失敗しました", zap.String("message", entry.Message), zap.Error(err))
		}
		return nil
	}

	var err error
	if s.attrs.Has(AttrMemberJoin) {
		err = s.tm.Execute(ctx, s.attrs.Get(AttrMemberJoin), body)
	} else {
		err = body(ctx)
	}

	switch {
	case errors.Is(err, transaction.ErrUnexpectedRollback):
		s.recordJoin(joinResultUnexpectedRollback)
	case err != nil:
		s.recordJoin(joinResultFailed)
	case logFailed:
		s.recordJoin(joinResultPartial)
	default:
		s.recordJoin(joinResultSuccess)
	}
	if err != nil {
		logger.Warn("会員登録に失敗", zap.String("username", m.Username), zap.Error(err))
		return nil, err
	}
	logger.Info("会員登録完了", zap.String("username", m.Username), zap.Bool("log_failed", logFailed))
	return m, nil
}

func (s *MemberService) saveMember(ctx context.Context, m *member.Member) error {
	return s.tm.Execute(ctx, s.attrs.Get(AttrMemberSave), func(ctx context.Context) error {
		if err := s.memberRepo.Save(ctx, m); err != nil {
			return err
		}
		if s.cache == nil {
			return nil
		}
		// 物理コミットが成功した場合だけキャッシュを破棄する
		return transaction.AfterCommit(ctx, func(ctx context.Context) {
			if err := s.cache.Invalidate(ctx, m.Username); err != nil {
				logger.Warn("会員キャッシュの破棄に失敗", zap.String("username", m.Username), zap.Error(err))
			}
		})
	})
}

func (s *MemberService) saveLog(ctx context.Context, l *auditlog.Log) error {
	return s.tm.Execute(ctx, s.attrs.Get(AttrLogSave), func(ctx context.Context) error {
		if err := l.Validate(); err != nil {
			logger.Info("ログ保存中に例外発生", zap.String("message", l.Message))
			return err
		}
		return s.logRepo.Save(ctx, l)
	})
}

// FindMember はキャッシュを経由して会員を取得する
func (s *MemberService) FindMember(ctx context.Context, username string) (*member.Member, error) {
	if s.cache != nil {
		m, err := s.cache.Get(ctx, username)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("会員キャッシュの取得に失敗", zap.String("username", username), zap.Error(err))
		}
	}

	m, err := transaction.Run(ctx, s.tm, s.attrs.Get(AttrMemberFind), func(ctx context.Context) (*member.Member, error) {
		return s.memberRepo.FindByUsername(ctx, username)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, m, memberCacheTTL); err != nil {
			logger.Warn("会員キャッシュの保存に失敗", zap.String("username", username), zap.Error(err))
		}
	}
	return m, nil
}

// FindLog はメッセージからログを取得する
func (s *MemberService) FindLog(ctx context.Context, message string) (*auditlog.Log, error) {
	return transaction.Run(ctx, s.tm, s.attrs.Get(AttrLogFind), func(ctx context.Context) (*auditlog.Log, error) {
		return s.logRepo.FindByMessage(ctx, message)
	})
}

func (s *MemberService) recordJoin(result string) {
	if s.metrics != nil {
		s.metrics.MemberJoinsTotal.WithLabelValues(result).Inc()
	}
}
