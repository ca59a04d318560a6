// Package model 定义核心数据模型的测试
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAccount_ValidateSpecSelections 验证规格选择校验
func TestAccount_ValidateSpecSelections(t *testing.T) {
	account := &Account{
		SpecTemplate: map[string][]string{
			"size": {"S", "M", "L"},
			"tone": {"warm", "cool"},
		},
	}

	// 合法选择
	err := account.ValidateSpecSelections(map[string][]string{
		"size": {"M"},
		"tone": {"warm", "cool"},
	})
	assert.NoError(t, err)

	// 未知规格名
	err = account.ValidateSpecSelections(map[string][]string{
		"fabric": {"cotton"},
	})
	assert.Error(t, err)

	// 模板外的取值
	err = account.ValidateSpecSelections(map[string][]string{
		"size": {"XXL"},
	})
	assert.Error(t, err)
}

// TestAccount_ValidateSpecSelections_Cardinality 验证 5×5 上限
func TestAccount_ValidateSpecSelections_Cardinality(t *testing.T) {
	account := &Account{} // 无模板时只校验数量上限

	tooMany := map[string][]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		tooMany[name] = []string{"v"}
	}
	assert.Error(t, account.ValidateSpecSelections(tooMany))

	assert.Error(t, account.ValidateSpecSelections(map[string][]string{
		"size": {"1", "2", "3", "4", "5", "6"},
	}))

	assert.NoError(t, account.ValidateSpecSelections(map[string][]string{
		"size": {"1", "2", "3", "4", "5"},
	}))
}

// TestIndustryCode_Validate 验证行业码定义校验
func TestIndustryCode_Validate(t *testing.T) {
	code := &IndustryCode{
		Code:     "AB12CD",
		Industry: "clothing",
		Product:  "denim jacket",
		SpecTemplate: map[string][]string{
			"size": {"S", "M", "L"},
		},
	}
	require.NoError(t, code.Validate())

	bad := *code
	bad.Code = "AB1"
	assert.Error(t, bad.Validate())

	bad = *code
	bad.SpecTemplate = map[string][]string{}
	assert.Error(t, bad.Validate())

	bad = *code
	bad.SpecTemplate = map[string][]string{
		"size": {"1", "2", "3", "4", "5", "6"},
	}
	assert.Error(t, bad.Validate())
}

// TestFindCreditPackage 验证套餐目录查找
func TestFindCreditPackage(t *testing.T) {
	pkg := FindCreditPackage("starter")
	require.NotNil(t, pkg)
	assert.Equal(t, 20, pkg.Credits)

	assert.Nil(t, FindCreditPackage("nope"))
}

// TestAdminActionStatus_IsTerminal 验证终态判断
func TestAdminActionStatus_IsTerminal(t *testing.T) {
	assert.False(t, AdminActionStatusPending.IsTerminal())
	assert.True(t, AdminActionStatusDone.IsTerminal())
	assert.True(t, AdminActionStatusFailed.IsTerminal())
}

// TestSupportStatus_IsTerminal 验证工单终态判断
func TestSupportStatus_IsTerminal(t *testing.T) {
	assert.False(t, SupportStatusPending.IsTerminal())
	assert.True(t, SupportStatusResolved.IsTerminal())
	assert.True(t, SupportStatusRejected.IsTerminal())
	assert.True(t, SupportStatusCancelled.IsTerminal())
}

// TestValidSupportCategory 验证工单类别枚举
func TestValidSupportCategory(t *testing.T) {
	for _, c := range []SupportCategory{
		SupportCategoryTechnical, SupportCategoryProduct, SupportCategoryTemplate,
		SupportCategorySecurity, SupportCategoryOther,
	} {
		assert.True(t, ValidSupportCategory(c))
	}
	assert.False(t, ValidSupportCategory("billing"))
}
