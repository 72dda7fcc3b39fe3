package controller

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"storefront-builder/domain/entity"
	domainRepo "storefront-builder/domain/repository"

	"github.com/gin-gonic/gin"
	svix "github.com/svix/svix-webhooks/go"
)

// Clerk 事件类型
const (
	clerkUserCreated = "user.created"
	clerkUserUpdated = "user.updated"
)

// 单个 Clerk 事件体的上限
const maxWebhookBody = 1 << 20

// WebhookController 把 Clerk 用户同步为编辑器操作员
type WebhookController struct {
	operators domainRepo.OperatorRepository
	verifier  *svix.Webhook // 为 nil 且 secret 为空时不校验签名
	secretErr error
}

// NewWebhookController 构造函数，secret 非法时所有回调都返回 500
func NewWebhookController(operators domainRepo.OperatorRepository, secret string) *WebhookController {
	wc := &WebhookController{operators: operators}
	if secret == "" {
		log.Println("[Webhook] ⚠️ 未配置 CLERK_WEBHOOK_SECRET，签名校验关闭（仅限开发环境）")
		return wc
	}
	wc.verifier, wc.secretErr = svix.NewWebhook(secret)
	if wc.secretErr != nil {
		log.Printf("[Webhook] ❌ CLERK_WEBHOOK_SECRET 无法解析: %v", wc.secretErr)
	}
	return wc
}

// clerkEvent Clerk 回调外层结构
type clerkEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// clerkUser 只取操作员需要的字段
type clerkUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Emails   []struct {
		Address string `json:"email_address"`
	} `json:"email_addresses"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImageURL  string `json:"image_url"`
}

// HandleClerkWebhook POST /webhook/clerk
// user.created / user.updated 写入操作员表，其余事件确认收到后忽略
func (wc *WebhookController) HandleClerkWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "无法读取请求体"})
		return
	}
	if status, err := wc.verify(body, c.Request.Header); err != nil {
		log.Printf("[Webhook] ❌ 拒绝回调: %v", err)
		c.JSON(status, ErrorResponse{Error: "签名校验失败", Details: err.Error()})
		return
	}

	var event clerkEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "无效的 JSON 格式"})
		return
	}

	switch event.Type {
	case clerkUserCreated, clerkUserUpdated:
		op, err := operatorFromClerk(event.Data, time.Now())
		if err == nil {
			err = wc.operators.Upsert(op)
		}
		if err != nil {
			log.Printf("[Webhook] ❌ %s 同步失败: %v", event.Type, err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "操作员同步失败", Details: err.Error()})
			return
		}
		log.Printf("[Webhook] ✅ %s: 操作员 %s (%s)", event.Type, op.ID, op.Name)
	default:
		// user.deleted 也忽略：已保存的会话记录仍引用该操作员
		log.Printf("[Webhook] ℹ️ 忽略事件 %s", event.Type)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// verify 校验 svix 签名，返回失败时应答的状态码
func (wc *WebhookController) verify(body []byte, header http.Header) (int, error) {
	if wc.secretErr != nil {
		return http.StatusInternalServerError, wc.secretErr
	}
	if wc.verifier == nil {
		return http.StatusOK, nil
	}
	if err := wc.verifier.Verify(body, header); err != nil {
		return http.StatusUnauthorized, err
	}
	return http.StatusOK, nil
}

// operatorFromClerk 把 Clerk 用户转换为操作员
func operatorFromClerk(raw json.RawMessage, now time.Time) (*entity.Operator, error) {
	var u clerkUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errors.New("缺少用户 id")
	}

	email := ""
	if len(u.Emails) > 0 {
		email = u.Emails[0].Address
	}
	return &entity.Operator{
		ID:        u.ID,
		Email:     email,
		Name:      displayName(u, email),
		AvatarURL: u.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// displayName 姓名 > 用户名 > 邮箱前缀
func displayName(u clerkUser, email string) string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
