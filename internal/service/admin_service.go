package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/repository"
	"plugin-chat-go/pkg/log"
)

// querySearchSize 是全文检索时返回的最大命中数。
const querySearchSize = 500

// MessageSearcher 按内容检索用户消息，返回命中的消息 ID。es.MessageIndex 实现了它。
type MessageSearcher interface {
	Search(ctx context.Context, query string, size int) ([]string, error)
}

// AdminService 定义了管理端查看用户提问的业务逻辑接口。
type AdminService interface {
	// AllQueries 将每条用户消息与同一会话中紧随其后的助手回复配对，按时间倒序返回。
	// q 非空时只保留内容匹配 q 的用户消息。
	AllQueries(ctx context.Context, q string) ([]model.QueryRow, error)
}

type adminService struct {
	msgRepo  repository.MessageRepository
	searcher MessageSearcher
}

// NewAdminService 创建一个新的 AdminService。
func NewAdminService(msgRepo repository.MessageRepository, searcher MessageSearcher) AdminService {
	return &adminService{msgRepo: msgRepo, searcher: searcher}
}

func (s *adminService) AllQueries(ctx context.Context, q string) ([]model.QueryRow, error) {
	turns, err := s.msgRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	rows := PairQueries(turns)

	q = strings.TrimSpace(q)
	if q == "" {
		return rows, nil
	}

	var keep func(model.QueryRow) bool
	ids, err := s.searcher.Search(ctx, q, querySearchSize)
	if err != nil {
		// 检索服务不可用时退化为子串匹配
		log.Warnf("检索用户消息失败，改用本地匹配: %v", err)
		lower := strings.ToLower(q)
		keep = func(r model.QueryRow) bool {
			return strings.Contains(strings.ToLower(r.UserMessage), lower)
		}
	} else {
		hit := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			hit[id] = struct{}{}
		}
		keep = func(r model.QueryRow) bool {
			_, ok := hit[r.ID]
			return ok
		}
	}

	filtered := make([]model.QueryRow, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// PairQueries 对按会话分组、组内按时间正序排列的消息做配对。
func PairQueries(turns []model.Turn) []model.QueryRow {
	byConv := make(map[string][]model.Turn)
	var order []string
	for _, t := range turns {
		if _, ok := byConv[t.ConversationID]; !ok {
			order = append(order, t.ConversationID)
		}
		byConv[t.ConversationID] = append(byConv[t.ConversationID], t)
	}

	rows := make([]model.QueryRow, 0)
	for _, convID := range order {
		msgs := byConv[convID]
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
		for i, m := range msgs {
			if m.Role != model.RoleUser {
				continue
			}
			response := model.NoResponsePlaceholder
			if i+1 < len(msgs) && msgs[i+1].Role == model.RoleAssistant {
				response = msgs[i+1].Content
			}
			rows = append(rows, model.QueryRow{
				ID:                m.ID,
				ConversationID:    convID,
				UserMessage:       m.Content,
				AssistantResponse: response,
				CreatedAt:         model.LocalTime(m.CreatedAt),
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return time.Time(rows[i].CreatedAt).After(time.Time(rows[j].CreatedAt))
	})
	return rows
}
