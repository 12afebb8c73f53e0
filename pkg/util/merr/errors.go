// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// 叶子错误统一在此定义，新增前先确认下列错误是否已能表达。
// 命名：Err + 领域前缀 + 错误名
var (
	// Service related
	ErrServiceInternal = newZeusError("service internal error", 5)

	// IO related
	ErrIoFailed      = newZeusError("IO failed", 1001)
	ErrIoUnexpectEOF = newZeusError("unexpected EOF", 1002)

	// Parameter related
	ErrParameterInvalid = newZeusError("invalid parameter", 1100, WithErrorType(InputError))
	ErrParameterMissing = newZeusError("missing parameter", 1101, WithErrorType(InputError))

	// 仅用于把未知错误折算为错误码，不导出。
	errUnexpected = newZeusError("unexpected error", (1<<16)-1)

	// Marshal related
	// 数据流本身不合法：截断、未知类型标记、悬空引用、结构体成员不匹配等。
	ErrMarshalMalformed = newZeusError("marshal data malformed", 4000, WithErrorType(InputError))
	// 值无法编码：不支持的类型、匿名类、超出范围的长度。
	ErrMarshalUnsupported     = newZeusError("marshal value unsupported", 4001, WithErrorType(InputError))
	ErrMarshalDepthExceeded   = newZeusError("marshal depth limit exceeded", 4002, WithErrorType(InputError))
	ErrMarshalVersionMismatch = newZeusError("marshal format version mismatch", 4003, WithErrorType(InputError))
	// 自定义钩子返回了约定之外的结果。
	ErrMarshalHookContract   = newZeusError("marshal hook contract violated", 4004)
	ErrMarshalUndefinedClass = newZeusError("marshal class undefined", 4005, WithErrorType(InputError))

	// Stream related
	ErrStreamFrame    = newZeusError("stream frame invalid", 4100, WithErrorType(InputError))
	ErrStreamTooLarge = newZeusError("stream frame too large", 4101)
	ErrStreamCrypto   = newZeusError("stream crypto failed", 4102)
)

type errorOption func(*zeusError)

// WithErrorType 标记错误类别，InputError 表示由调用方输入导致。
func WithErrorType(etype ErrorType) errorOption {
	return func(err *zeusError) {
		err.errType = etype
	}
}

type zeusError struct {
	msg     string
	errCode int32
	errType ErrorType
}

func newZeusError(msg string, code int32, options ...errorOption) zeusError {
	err := zeusError{
		msg:     msg,
		errCode: code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e zeusError) code() int32 {
	return e.errCode
}

func (e zeusError) Error() string {
	return e.msg
}

func (e zeusError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(zeusError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
