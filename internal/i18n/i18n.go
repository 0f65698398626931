package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// 支持的语言
const (
	LocaleZhCN = "zh-CN"
	LocaleEnUS = "en-US"

	DefaultLocale = LocaleZhCN
)

// ResolveLocale 从请求中解析语言，优先 query 参数 lang，其次 Accept-Language
func ResolveLocale(c *gin.Context) string {
	if c == nil {
		return DefaultLocale
	}
	if c.Request != nil {
		if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
			return NormalizeLocale(lang)
		}
		if header := strings.TrimSpace(c.GetHeader("Accept-Language")); header != "" {
			first := strings.Split(header, ",")[0]
			first = strings.Split(first, ";")[0]
			return NormalizeLocale(first)
		}
	}
	return DefaultLocale
}

// NormalizeLocale 归一化语言标识，未知语言回退到默认语言
func NormalizeLocale(raw string) string {
	lang := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(lang, "en"):
		return LocaleEnUS
	case strings.HasPrefix(lang, "zh"):
		return LocaleZhCN
	default:
		return DefaultLocale
	}
}

// T 翻译消息键，找不到时回退默认语言，再回退键本身
func T(locale, key string) string {
	if msgs, ok := catalogs[NormalizeLocale(locale)]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	if msg, ok := catalogs[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// Sprintf 翻译后按参数格式化
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}
