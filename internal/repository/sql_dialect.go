package repository

import (
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// likeOperatorByDialect 返回大小写不敏感的模糊匹配操作符。
// sqlite 的 LIKE 对 ASCII 默认不区分大小写，postgres 需要 ILIKE。
func likeOperatorByDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return "ILIKE"
	default:
		return "LIKE"
	}
}

// buildLikeCondition 构建多列 OR 模糊匹配条件，并返回参数数量。
func buildLikeCondition(db *gorm.DB, columns []string) (string, int) {
	op := likeOperatorByDialect(dbDialectName(db))
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		column = strings.TrimSpace(column)
		if column == "" {
			continue
		}
		parts = append(parts, column+" "+op+" ?")
	}
	if len(parts) == 0 {
		return "", 0
	}
	return "(" + strings.Join(parts, " OR ") + ")", len(parts)
}

// repeatLikeArgs 生成重复的模糊匹配参数。
func repeatLikeArgs(keyword string, count int) []interface{} {
	if count <= 0 {
		return nil
	}
	pattern := "%" + strings.TrimSpace(keyword) + "%"
	args := make([]interface{}, count)
	for i := range args {
		args[i] = pattern
	}
	return args
}
