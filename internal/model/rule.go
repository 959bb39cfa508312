package model

const (
	MinChargeAmount = 10000    // 单次最低充值
	ChargeUnit      = 1000     // 充值粒度
	MaxBalance      = 10000000 // 账户余额上限
	MinUseAmount    = 5000     // 单次最低使用
)

// ValidateCharge 校验充值请求
// 规则按顺序判断，第一个不满足的规则决定返回的错误
func ValidateCharge(amount, balance int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if amount < MinChargeAmount {
		return ErrChargeAmountTooLow
	}
	if amount%ChargeUnit != 0 {
		return ErrNotUnitOfThousand
	}
	// 写成减法避免 balance+amount 溢出
	if amount > MaxBalance-balance {
		return ErrExceedMaxBalance
	}
	return nil
}

// ValidateUse 校验使用请求，规则顺序同 ValidateCharge
func ValidateUse(amount, balance int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if amount < MinUseAmount {
		return ErrUseAmountTooLow
	}
	if amount > balance {
		return ErrInsufficientPoint
	}
	return nil
}
