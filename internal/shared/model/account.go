// Package model 定义核心数据模型
//
// account.go 包含账户相关的数据模型定义：
//   - Account：客户/管理员账户
//   - AccountRole：角色枚举
//   - AccountStatus：状态枚举
//   - CreditPackage：充值套餐
package model

import (
	"fmt"
	"time"
)

// ============================================================================
// AccountRole - 账户角色
// ============================================================================

// AccountRole 账户角色
type AccountRole string

const (
	// AccountRoleClient 客户：注册行业码后的普通租户
	AccountRoleClient AccountRole = "client"

	// AccountRoleAdmin 管理员：可查看本行业客户
	AccountRoleAdmin AccountRole = "admin"

	// AccountRoleMaster 主账号：跨账户可见，可调整额度、锁定账户、处理工单
	AccountRoleMaster AccountRole = "master"
)

// ============================================================================
// AccountStatus - 账户状态
// ============================================================================

// AccountStatus 账户状态
//
// 账户不做物理删除，仅通过状态停用。
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusLocked AccountStatus = "locked"
)

// ============================================================================
// Account - 账户
// ============================================================================

// 规格选择的上限：最多 5 个规格项，每项最多 5 个取值
const (
	MaxSpecEntries = 5
	MaxSpecValues  = 5
)

// DefaultCredits 新账户的初始点数
const DefaultCredits = 20

// Account 账户文档
//
// 注册时合并行业码携带的产品名与规格模板；
// 点数余额不允许为负（扣减前检查，见 ledger）。
//
// 数据库集合：users
type Account struct {
	ID           string        `json:"id" bson:"_id"`
	Email        string        `json:"email" bson:"email"`
	DisplayName  string        `json:"display_name" bson:"display_name"`
	PasswordHash string        `json:"-" bson:"password_hash"` // never expose in JSON
	Role         AccountRole   `json:"role" bson:"role"`
	Status       AccountStatus `json:"status" bson:"status"`

	// 注册时从行业码合并的数据
	IndustryCode string              `json:"industry_code,omitempty" bson:"industry_code,omitempty"`
	Industry     string              `json:"industry,omitempty" bson:"industry,omitempty"`
	Products     []string            `json:"products,omitempty" bson:"products,omitempty"`
	Template     string              `json:"template,omitempty" bson:"template,omitempty"`
	SpecTemplate map[string][]string `json:"spec_template,omitempty" bson:"spec_template,omitempty"`

	// 用户的规格选择（规格名 → 已选值列表，≤ 5×5）
	SpecSelections map[string][]string `json:"spec_selections,omitempty" bson:"spec_selections,omitempty"`

	// 生成偏好：用户显式选择的供应商（可为空）
	PreferredProvider string `json:"preferred_provider,omitempty" bson:"preferred_provider,omitempty"`

	// 点数余额，非负
	Credits int `json:"credits" bson:"credits"`

	EmailVerified bool `json:"email_verified" bson:"email_verified"`

	Purchases []Purchase `json:"purchases,omitempty" bson:"purchases,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Purchase 一次充值记录
type Purchase struct {
	Credits int       `json:"credits" bson:"credits"`
	Price   int       `json:"price" bson:"price"` // 分
	At      time.Time `json:"at" bson:"at"`
}

// ValidateSpecSelections 校验规格选择是否在模板允许范围内
//
// 规则：
//  1. 规格项数量 ≤ MaxSpecEntries，每项取值数量 ≤ MaxSpecValues
//  2. 若账户带有规格模板，选择的规格名与取值必须出现在模板中
func (a *Account) ValidateSpecSelections(selections map[string][]string) error {
	if len(selections) > MaxSpecEntries {
		return fmt.Errorf("too many specifications: %d > %d", len(selections), MaxSpecEntries)
	}
	for name, values := range selections {
		if len(values) > MaxSpecValues {
			return fmt.Errorf("too many values for specification %q: %d > %d", name, len(values), MaxSpecValues)
		}
		if len(a.SpecTemplate) == 0 {
			continue
		}
		allowed, ok := a.SpecTemplate[name]
		if !ok {
			return fmt.Errorf("unknown specification %q", name)
		}
		for _, v := range values {
			if !contains(allowed, v) {
				return fmt.Errorf("value %q not allowed for specification %q", v, name)
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// ============================================================================
// CreditPackage - 充值套餐
// ============================================================================

// CreditPackage 固定充值套餐（点数 → 价格）
type CreditPackage struct {
	ID      string `json:"id"`
	Credits int    `json:"credits"`
	Price   int    `json:"price"` // 分
}

// CreditPackages 套餐目录，充值时按 ID 查找并整体入账
var CreditPackages = []CreditPackage{
	{ID: "starter", Credits: 20, Price: 980},
	{ID: "standard", Credits: 60, Price: 2480},
	{ID: "studio", Credits: 200, Price: 6800},
}

// FindCreditPackage 按 ID 查找套餐，找不到返回 nil
func FindCreditPackage(id string) *CreditPackage {
	for i := range CreditPackages {
		if CreditPackages[i].ID == id {
			return &CreditPackages[i]
		}
	}
	return nil
}
