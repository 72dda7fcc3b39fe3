package bootstrap

import (
	"log"

	"github.com/clerk/clerk-sdk-go/v2"
)

// InitClerk 配置 Clerk 密钥，返回是否启用 JWT 校验
func InitClerk(secret string) bool {
	if secret == "" {
		log.Println("⚠️ 未找到 CLERK_SECRET_KEY，API 不做身份校验")
		return false
	}
	clerk.SetKey(secret)

	log.Println("Clerk初始化成功")
	return true
}
