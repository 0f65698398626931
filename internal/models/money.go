package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	moneyScale = 2
	rateScale  = 8
)

// Money 统一金额类型（保留 2 位小数）
type Money struct {
	decimal.Decimal
}

// NewMoneyFromDecimal 从 decimal 创建金额
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(moneyScale)}
}

// NewMoneyFromString 从字符串创建金额，非法输入返回错误
func NewMoneyFromString(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, err
	}
	return NewMoneyFromDecimal(d), nil
}

// MarshalJSON 统一输出 2 位小数的字符串
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON 解析金额（字符串或数字）
func (m *Money) UnmarshalJSON(b []byte) error {
	d, err := unmarshalDecimal(b)
	if err != nil {
		return err
	}
	m.Decimal = d.Round(moneyScale)
	return nil
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(moneyScale).Value()
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(moneyScale)
	return nil
}

// String 返回 2 位小数格式
func (m Money) String() string {
	return m.Decimal.Round(moneyScale).StringFixed(moneyScale)
}

// Rate 汇率/比例类型（保留 8 位小数）
type Rate struct {
	decimal.Decimal
}

// NewRateFromDecimal 从 decimal 创建汇率
func NewRateFromDecimal(rate decimal.Decimal) Rate {
	return Rate{Decimal: rate.Round(rateScale)}
}

// MarshalJSON 输出去除尾零的字符串
func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON 解析汇率（字符串或数字）
func (r *Rate) UnmarshalJSON(b []byte) error {
	d, err := unmarshalDecimal(b)
	if err != nil {
		return err
	}
	r.Decimal = d.Round(rateScale)
	return nil
}

// Value 用于数据库写入
func (r Rate) Value() (driver.Value, error) {
	return r.Decimal.Round(rateScale).Value()
}

// Scan 用于数据库读取
func (r *Rate) Scan(value interface{}) error {
	if err := r.Decimal.Scan(value); err != nil {
		return err
	}
	r.Decimal = r.Decimal.Round(rateScale)
	return nil
}

// String 返回规范化后的汇率文本
func (r Rate) String() string {
	return r.Decimal.Round(rateScale).String()
}

func unmarshalDecimal(b []byte) (decimal.Decimal, error) {
	if len(b) == 0 || string(b) == "null" {
		return decimal.Zero, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return decimal.Zero, err
		}
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(f), nil
}
