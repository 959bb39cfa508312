package model

import (
	"errors"
)

// PointError 积分业务错误
// 所有 PointError 都是调用方可修正的错误，出现时不会产生任何持久化变更
type PointError struct {
	Code    int    // 业务错误码，由 response 包直接返回给调用方
	Kind    string // 错误类型名
	Message string
}

func (e *PointError) Error() string {
	return e.Message
}

var (
	ErrNegativeAmount     = &PointError{Code: 2001, Kind: "NegativeAmount", Message: "amount must not be negative"}
	ErrZeroAmount         = &PointError{Code: 2002, Kind: "ZeroAmount", Message: "amount must not be zero"}
	ErrChargeAmountTooLow = &PointError{Code: 2003, Kind: "BelowMinimumCharge", Message: "charge amount must be at least 10000"}
	ErrNotUnitOfThousand  = &PointError{Code: 2004, Kind: "NotUnitOfTenThousand", Message: "charge amount must be a multiple of 1000"}
	ErrExceedMaxBalance   = &PointError{Code: 2005, Kind: "ExceedsMaximumBalance", Message: "balance must not exceed 10000000"}
	ErrUseAmountTooLow    = &PointError{Code: 2006, Kind: "BelowMinimumUse", Message: "use amount must be at least 5000"}
	ErrInsufficientPoint  = &PointError{Code: 2007, Kind: "InsufficientBalance", Message: "insufficient point"}
)

// IsPointError 判断是否为业务校验错误
func IsPointError(err error) bool {
	var pe *PointError
	return errors.As(err, &pe)
}
