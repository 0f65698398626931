package models

import (
	"strings"

	"github.com/wldmarket/internal/logger"
)

// InitRootAccount 初始化平台根账户
//
// 根账户是未填写邀请码用户的默认归属，自身没有邀请人。
func InitRootAccount(rootID uint, inviteCode string) (*User, error) {
	inviteCode = strings.ToUpper(strings.TrimSpace(inviteCode))
	if inviteCode == "" {
		inviteCode = "ROOT"
	}

	var root User
	query := DB.Where("is_root = ?", true)
	if rootID > 0 {
		query = DB.Where("id = ?", rootID)
	}
	err := query.Limit(1).Find(&root).Error
	if err != nil {
		return nil, err
	}
	if root.ID != 0 {
		if !root.IsRoot {
			if err := DB.Model(&root).Update("is_root", true).Error; err != nil {
				return nil, err
			}
			root.IsRoot = true
		}
		return &root, nil
	}

	root = User{
		DisplayName: "platform",
		InviteCode:  inviteCode,
		IsRoot:      true,
		Status:      "active",
	}
	if rootID > 0 {
		root.ID = rootID
	}
	if err := DB.Create(&root).Error; err != nil {
		return nil, err
	}
	logger.Infow("root_account_created", "user_id", root.ID, "invite_code", root.InviteCode)
	return &root, nil
}
