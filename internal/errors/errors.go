package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode 定义错误代码类型
type ErrorCode string

// 错误代码常量
const (
	// 通用错误
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	// 存储错误
	ErrCodeStoreConnection ErrorCode = "STORE_CONNECTION_ERROR"
	ErrCodeStoreQuery      ErrorCode = "STORE_QUERY_ERROR"
	ErrCodeUnknownLabel    ErrorCode = "UNKNOWN_TABLE_LABEL"

	// 数据完整性错误：对所属计算单元是致命的。宁可中止也不输出
	// 可能错误的因子值。
	ErrCodeDataIntegrity ErrorCode = "DATA_INTEGRITY_ERROR"

	// 稀疏数据：零成交量、协方差矩阵秩不足等。记录警告并以哨兵值
	// 或回退策略继续。
	ErrCodeSparseData ErrorCode = "SPARSE_DATA"

	// 下游连接缺口：缺失的上游因子/信号值，按 0 填充。
	ErrCodeJoinGap ErrorCode = "JOIN_GAP"

	// 计算单元失败：由编排器记录，不影响兄弟任务。
	ErrCodeWorkerFailure ErrorCode = "WORKER_FAILURE"

	// 日历错误
	ErrCodeCalendarRange ErrorCode = "CALENDAR_RANGE_ERROR"
)

// ErrorSeverity 定义错误严重程度
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError 应用错误结构
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Severity  ErrorSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a contextual identifier (factor label, trade
// date, instrument) so the operator can locate the failing unit.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  severityFor(code),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  severityFor(code),
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// NewDataIntegrity reports a fatal raw-data gap, e.g. the major
// contract of an instrument has no bar on a required date.
func NewDataIntegrity(instrument, tradeDate, detail string) *AppError {
	e := New(ErrCodeDataIntegrity, detail)
	e.Context = map[string]interface{}{
		"instrument": instrument,
		"trade_date": tradeDate,
	}
	return e
}

// NewSparseData reports a benign sparse-data condition handled by a
// sentinel value or a fallback policy.
func NewSparseData(detail string) *AppError {
	return New(ErrCodeSparseData, detail)
}

func severityFor(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeDataIntegrity:
		return SeverityCritical
	case ErrCodeStoreConnection, ErrCodeWorkerFailure:
		return SeverityHigh
	case ErrCodeSparseData, ErrCodeJoinGap:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// IsCode reports whether err (or anything it wraps) carries the code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsFatal reports whether the error must abort the enclosing unit of
// work instead of being downgraded to a warning.
func IsFatal(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityCritical
	}
	return true
}
